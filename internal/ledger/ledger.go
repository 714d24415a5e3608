package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when the sender cannot cover amount plus fee.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrAccountNotFound is returned when no balance-bearing account exists for an id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound is returned when a ledger entry does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrScheduledNotPending indicates a scheduled payment already reached a terminal status.
	ErrScheduledNotPending = errors.New("scheduled payment is not pending")
)

// TransferType classifies a ledger entry.
type TransferType string

const (
	TypeWalletTransfer TransferType = "WALLET_TRANSFER"
	TypeBankTransfer   TransferType = "BANK_TRANSFER"
	TypeDeposit        TransferType = "DEPOSIT"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPending && next.Terminal()
}

// AccountStatus marks whether an account may take part in transfers.
type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountClosed AccountStatus = "closed"
)

// Account is the balance-bearing side of a user.
type Account struct {
	ID        string          `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
	Status    AccountStatus   `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Active reports whether the account can send or receive funds.
func (a Account) Active() bool {
	return a.Status == AccountActive
}

// Transaction is an append-only ledger entry. Amount is the transferred
// principal; BalanceBefore and BalanceAfter snapshot the sender.
type Transaction struct {
	ID            string          `json:"transactionId"`
	SenderID      string          `json:"senderId"`
	ReceiverID    string          `json:"receiverId"`
	Amount        decimal.Decimal `json:"balance"`
	Fee           decimal.Decimal `json:"fee"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Description   string          `json:"description"`
	Type          TransferType    `json:"type"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Involves reports whether the account is the sender or the receiver.
func (t Transaction) Involves(accountID string) bool {
	return accountID != "" && (t.SenderID == accountID || t.ReceiverID == accountID)
}

// ScheduledTransaction is a transfer deferred until SendAt.
type ScheduledTransaction struct {
	ID            string          `json:"scheduledId"`
	SenderID      string          `json:"senderId"`
	ReceiverID    string          `json:"receiverId"`
	Amount        decimal.Decimal `json:"balance"`
	Fee           decimal.Decimal `json:"fee"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Description   string          `json:"description"`
	Type          TransferType    `json:"type"`
	Status        Status          `json:"status"`
	SendAt        time.Time       `json:"sendAt"`
	TransactionID string          `json:"transactionId,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Tx is the unit-of-work view handed to Store.Atomically. Reads through Tx
// observe the authoritative balance and hold it until the unit ends.
type Tx interface {
	LockAccount(ctx context.Context, id string) (Account, error)
	SetBalance(ctx context.Context, id string, balance decimal.Decimal) error
	InsertTransaction(ctx context.Context, t Transaction) error
	// CompleteScheduled marks a pending scheduled payment as executed by t.
	CompleteScheduled(ctx context.Context, id string, t Transaction) error
}

// Store defines the contract implemented by ledger backends (e.g. Postgres).
type Store interface {
	EnsureAccount(ctx context.Context, id string) error
	CloseAccount(ctx context.Context, id string) error
	Account(ctx context.Context, id string) (Account, error)

	// Atomically runs fn as one isolated unit. Any error returned by fn, or by
	// the commit itself, discards every write made through the Tx.
	Atomically(ctx context.Context, fn func(tx Tx) error) error

	Transactions(ctx context.Context, accountID string, offset, limit int) ([]Transaction, error)
	Transaction(ctx context.Context, id string) (Transaction, error)

	ScheduleTransaction(ctx context.Context, st ScheduledTransaction) error
	ScheduledTransactions(ctx context.Context, senderID string, offset, limit int) ([]ScheduledTransaction, error)
	DueScheduled(ctx context.Context, now time.Time, limit int) ([]ScheduledTransaction, error)
	FailScheduled(ctx context.Context, id, reason string) error
}

// LockAccounts locks every distinct id in ascending order so that concurrent
// units touching the same pair cannot deadlock. Missing accounts are left out
// of the result.
func LockAccounts(ctx context.Context, tx Tx, ids ...string) (map[string]Account, error) {
	ordered := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	locked := make(map[string]Account, len(ordered))
	for _, id := range ordered {
		acct, err := tx.LockAccount(ctx, id)
		if errors.Is(err, ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		locked[id] = acct
	}
	return locked, nil
}

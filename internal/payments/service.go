package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/toybank/toybank/internal/ledger"
	"github.com/toybank/toybank/internal/notification"
)

var (
	// ErrInvalidReceiver covers self transfers and unknown or closed receivers.
	ErrInvalidReceiver = errors.New("invalid receiver")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrAmountTooSmall is returned below MinTransferAmount.
	ErrAmountTooSmall = errors.New("Min of 100 should be transferred")
	// ErrSenderNotFound is returned when the sender has no active account.
	ErrSenderNotFound = errors.New("sender account not found")
	// ErrLedgerWriteFailed wraps any failure of the atomic unit. Nothing was written.
	ErrLedgerWriteFailed = errors.New("ledger write failed")
)

// Directory answers whether an account can take part in a transfer.
type Directory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// TransferInput captures the data needed to move funds between accounts.
type TransferInput struct {
	SenderID    string
	ReceiverID  string
	Amount      decimal.Decimal
	Description string
	Type        ledger.TransferType
}

// TypeFromString maps the request's type field: "wallet" selects a wallet
// transfer, anything else a bank transfer.
func TypeFromString(v string) ledger.TransferType {
	if strings.EqualFold(strings.TrimSpace(v), "wallet") {
		return ledger.TypeWalletTransfer
	}
	return ledger.TypeBankTransfer
}

// Service is the transfer engine.
type Service struct {
	store     ledger.Store
	directory Directory
	notifier  notification.Notifier
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithTimeout bounds every atomic unit. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithClock overrides the clock used to stamp transactions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for post-commit warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService constructs a transfer engine.
func NewService(store ledger.Store, directory Directory, notifier notification.Notifier, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		notifier:  notifier,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate runs every precondition that does not need the ledger lock.
func (s *Service) Validate(ctx context.Context, in TransferInput) error {
	if in.ReceiverID == "" || in.SenderID == in.ReceiverID {
		return ErrInvalidReceiver
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if in.Amount.LessThan(MinTransferAmount) {
		return ErrAmountTooSmall
	}
	ok, err := s.directory.Exists(ctx, in.ReceiverID)
	if err != nil {
		return fmt.Errorf("lookup receiver: %w", err)
	}
	if !ok {
		return ErrInvalidReceiver
	}
	return nil
}

// Transfer moves in.Amount from sender to receiver and charges the fee to the
// sender, all in one atomic unit.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (ledger.Transaction, error) {
	if err := s.Validate(ctx, in); err != nil {
		return ledger.Transaction{}, err
	}
	return s.execute(ctx, in, "")
}

// TransferScheduled executes a due scheduled payment. The payment is marked
// COMPLETED in the same unit that moves the funds, so it runs at most once.
func (s *Service) TransferScheduled(ctx context.Context, st ledger.ScheduledTransaction) (ledger.Transaction, error) {
	in := TransferInput{
		SenderID:    st.SenderID,
		ReceiverID:  st.ReceiverID,
		Amount:      st.Amount,
		Description: st.Description,
		Type:        st.Type,
	}
	if err := s.Validate(ctx, in); err != nil {
		return ledger.Transaction{}, err
	}
	return s.execute(ctx, in, st.ID)
}

func (s *Service) execute(ctx context.Context, in TransferInput, scheduledID string) (ledger.Transaction, error) {
	if in.Type == "" {
		in.Type = ledger.TypeBankTransfer
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	fee := ComputeFee(in.Amount)
	total := in.Amount.Add(fee)

	var created ledger.Transaction
	err := s.store.Atomically(ctx, func(tx ledger.Tx) error {
		accts, err := ledger.LockAccounts(ctx, tx, in.SenderID, in.ReceiverID)
		if err != nil {
			return err
		}
		sender, ok := accts[in.SenderID]
		if !ok || !sender.Active() {
			return ErrSenderNotFound
		}
		receiver, ok := accts[in.ReceiverID]
		if !ok || !receiver.Active() {
			return ErrInvalidReceiver
		}
		if total.GreaterThan(sender.Balance) {
			return ledger.ErrInsufficientFunds
		}

		created = ledger.Transaction{
			ID:            uuid.NewString(),
			SenderID:      in.SenderID,
			ReceiverID:    in.ReceiverID,
			Amount:        in.Amount,
			Fee:           fee,
			BalanceBefore: sender.Balance,
			BalanceAfter:  sender.Balance.Sub(total),
			Description:   in.Description,
			Type:          in.Type,
			Status:        ledger.StatusCompleted,
			CreatedAt:     s.now().UTC(),
		}
		if err := tx.InsertTransaction(ctx, created); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, in.SenderID, created.BalanceAfter); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, in.ReceiverID, receiver.Balance.Add(in.Amount)); err != nil {
			return err
		}
		if scheduledID != "" {
			return tx.CompleteScheduled(ctx, scheduledID, created)
		}
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			return ledger.Transaction{}, err
		}
		return ledger.Transaction{}, fmt.Errorf("%w: %w", ErrLedgerWriteFailed, err)
	}

	s.notifyReceiver(ctx, created)
	return created, nil
}

func (s *Service) notifyReceiver(ctx context.Context, t ledger.Transaction) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindTransferReceived,
		Destination: t.ReceiverID,
		Body:        fmt.Sprintf("You received %s from %s", t.Amount.StringFixed(2), t.SenderID),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "transfer notification failed", "transaction_id", t.ID, "error", err)
	}
}

// IsRejection reports whether err is a business rule rejection. Retrying a
// rejected transfer unchanged cannot succeed.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidReceiver) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAmountTooSmall) ||
		errors.Is(err, ErrSenderNotFound) ||
		errors.Is(err, ledger.ErrInsufficientFunds)
}

func isBusinessError(err error) bool {
	return errors.Is(err, ledger.ErrInsufficientFunds) ||
		errors.Is(err, ErrSenderNotFound) ||
		errors.Is(err, ErrInvalidReceiver) ||
		errors.Is(err, ledger.ErrScheduledNotPending)
}

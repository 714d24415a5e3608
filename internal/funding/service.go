package funding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/toybank/toybank/internal/ledger"
)

var (
	// ErrInvalidCard is returned for malformed card numbers.
	ErrInvalidCard = errors.New("invalid card number")
	// ErrInvalidAmount is returned for zero or negative deposits.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrDeclined is returned when the acquirer refuses the charge.
	ErrDeclined = errors.New("card declined")
)

// Service records card deposits in the ledger after the acquirer approves them.
type Service struct {
	store    ledger.Store
	acquirer Acquirer
	now      func() time.Time
}

// NewService prepares a funding service. A nil acquirer approves everything.
func NewService(store ledger.Store, acquirer Acquirer) *Service {
	if acquirer == nil {
		acquirer = StaticAcquirer{}
	}
	return &Service{store: store, acquirer: acquirer, now: time.Now}
}

// CardInInput captures the required data for a card deposit.
type CardInInput struct {
	AccountID   string
	Amount      decimal.Decimal
	Description string
	CardNumber  string
	Expiry      string
	CVV         string
}

// DepositResult is the ledger entry plus the acquirer reference.
type DepositResult struct {
	Transaction       ledger.Transaction `json:"transaction"`
	AcquirerReference string             `json:"acquirerReference"`
}

// CardIn authorizes the card charge and credits the account. The entry has the
// account on both sides and carries no fee.
func (s *Service) CardIn(ctx context.Context, input CardInInput) (DepositResult, error) {
	if err := validateCardNumber(input.CardNumber); err != nil {
		return DepositResult{}, err
	}
	if !input.Amount.IsPositive() {
		return DepositResult{}, ErrInvalidAmount
	}
	if _, err := s.store.Account(ctx, input.AccountID); err != nil {
		return DepositResult{}, err
	}

	decision, err := s.acquirer.AuthorizeCardIn(ctx, CardInAuthorization{
		CardNumber: input.CardNumber,
		Expiry:     input.Expiry,
		CVV:        input.CVV,
		Amount:     input.Amount,
	})
	if err != nil {
		return DepositResult{}, fmt.Errorf("authorize card: %w", err)
	}
	if !decision.Approved() {
		return DepositResult{}, ErrDeclined
	}

	description := input.Description
	if description == "" {
		description = "Card deposit " + decision.Reference
	}

	var created ledger.Transaction
	err = s.store.Atomically(ctx, func(tx ledger.Tx) error {
		acct, err := tx.LockAccount(ctx, input.AccountID)
		if err != nil {
			return err
		}
		if !acct.Active() {
			return ledger.ErrAccountNotFound
		}
		created = ledger.Transaction{
			ID:            uuid.NewString(),
			SenderID:      acct.ID,
			ReceiverID:    acct.ID,
			Amount:        input.Amount,
			Fee:           decimal.Zero,
			BalanceBefore: acct.Balance,
			BalanceAfter:  acct.Balance.Add(input.Amount),
			Description:   description,
			Type:          ledger.TypeDeposit,
			Status:        ledger.StatusCompleted,
			CreatedAt:     s.now().UTC(),
		}
		if err := tx.InsertTransaction(ctx, created); err != nil {
			return err
		}
		return tx.SetBalance(ctx, acct.ID, created.BalanceAfter)
	})
	if err != nil {
		return DepositResult{}, err
	}
	return DepositResult{Transaction: created, AcquirerReference: decision.Reference}, nil
}

func validateCardNumber(card string) error {
	digits := strings.ReplaceAll(card, " ", "")
	if len(digits) < 12 || len(digits) > 19 {
		return fmt.Errorf("%w: must be between 12 and 19 digits", ErrInvalidCard)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: must be numeric", ErrInvalidCard)
		}
	}
	return nil
}

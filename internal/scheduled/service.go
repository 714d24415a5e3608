package scheduled

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/toybank/toybank/internal/ledger"
	"github.com/toybank/toybank/internal/payments"
)

// ErrSendAtNotInFuture is returned when a payment is scheduled for now or earlier.
var ErrSendAtNotInFuture = errors.New("sendAt must be in the future")

// Input describes a payment to run later.
type Input struct {
	SenderID    string
	ReceiverID  string
	Amount      decimal.Decimal
	Description string
	Type        ledger.TransferType
	SendAt      time.Time
}

// Service records scheduled payments. Funds only move when the executor runs them.
type Service struct {
	store     ledger.Store
	transfers *payments.Service
	now       func() time.Time
}

// NewService constructs a scheduling service.
func NewService(store ledger.Store, transfers *payments.Service) *Service {
	return &Service{store: store, transfers: transfers, now: time.Now}
}

// Schedule validates the payment the same way an immediate transfer is
// validated and stores it as PENDING.
func (s *Service) Schedule(ctx context.Context, in Input) (ledger.ScheduledTransaction, error) {
	if in.Type == "" {
		in.Type = ledger.TypeBankTransfer
	}
	if err := s.transfers.Validate(ctx, payments.TransferInput{
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Amount:     in.Amount,
		Type:       in.Type,
	}); err != nil {
		return ledger.ScheduledTransaction{}, err
	}
	now := s.now().UTC()
	if !in.SendAt.After(now) {
		return ledger.ScheduledTransaction{}, ErrSendAtNotInFuture
	}

	st := ledger.ScheduledTransaction{
		ID:          uuid.NewString(),
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		Amount:      in.Amount,
		Fee:         payments.ComputeFee(in.Amount),
		Description: in.Description,
		Type:        in.Type,
		Status:      ledger.StatusPending,
		SendAt:      in.SendAt.UTC(),
		CreatedAt:   now,
	}
	if err := s.store.ScheduleTransaction(ctx, st); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return ledger.ScheduledTransaction{}, payments.ErrSenderNotFound
		}
		return ledger.ScheduledTransaction{}, err
	}
	return st, nil
}

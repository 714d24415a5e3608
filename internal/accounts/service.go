package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/toybank/toybank/internal/ledger"
)

// Service is the account directory: existence and balance lookups over the
// ledger store. It holds no balance state of its own.
type Service struct {
	store ledger.Store
}

// NewService builds an account directory backed by the ledger store.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// Balance is a point-in-time read of an account balance.
type Balance struct {
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"balance"`
	AsOf      time.Time       `json:"asOf"`
}

// Open provisions the ledger account for a verified user.
func (s *Service) Open(ctx context.Context, id string) error {
	return s.store.EnsureAccount(ctx, id)
}

// Close stops the account from sending or receiving funds.
func (s *Service) Close(ctx context.Context, id string) error {
	return s.store.CloseAccount(ctx, id)
}

// Exists reports whether an active account exists for the id.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	acct, err := s.store.Account(ctx, id)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return acct.Active(), nil
}

// Get returns the account or ledger.ErrAccountNotFound.
func (s *Service) Get(ctx context.Context, id string) (ledger.Account, error) {
	return s.store.Account(ctx, id)
}

// Balance returns the committed balance for the account.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	acct, err := s.store.Account(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{AccountID: acct.ID, Amount: acct.Balance, AsOf: time.Now().UTC()}, nil
}

package history

import (
	"context"
	"errors"

	"github.com/toybank/toybank/internal/ledger"
)

const (
	// DefaultPageSize applies when the caller asks for no size.
	DefaultPageSize = 10
	// MaxPageSize caps a single page.
	MaxPageSize = 100
)

var (
	// ErrNotFound is returned when the transaction does not exist.
	ErrNotFound = errors.New("transaction not found")
	// ErrForbidden is returned when the caller is not a party to the transaction.
	ErrForbidden = errors.New("transaction belongs to another account")
)

// Page is a normalised page request.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"limit"`
}

// NewPage clamps page and size to the accepted range.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset is the number of entries skipped before this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Service is the read side of the ledger.
type Service struct {
	store ledger.Store
}

// NewService constructs a query service over the ledger store.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// ListForAccount returns transactions the account sent or received, newest first.
func (s *Service) ListForAccount(ctx context.Context, accountID string, page Page) ([]ledger.Transaction, error) {
	txns, err := s.store.Transactions(ctx, accountID, page.Offset(), page.Size)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []ledger.Transaction{}
	}
	return txns, nil
}

// GetByID returns one transaction if the caller is its sender or receiver.
func (s *Service) GetByID(ctx context.Context, callerID, txID string) (ledger.Transaction, error) {
	txn, err := s.store.Transaction(ctx, txID)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		return ledger.Transaction{}, ErrNotFound
	}
	if err != nil {
		return ledger.Transaction{}, err
	}
	if !txn.Involves(callerID) {
		return ledger.Transaction{}, ErrForbidden
	}
	return txn, nil
}

// ListScheduled returns payments the account scheduled, soonest first.
func (s *Service) ListScheduled(ctx context.Context, accountID string, page Page) ([]ledger.ScheduledTransaction, error) {
	items, err := s.store.ScheduledTransactions(ctx, accountID, page.Offset(), page.Size)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []ledger.ScheduledTransaction{}
	}
	return items, nil
}

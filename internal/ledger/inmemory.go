package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type inMemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]Account
	transactions []Transaction
	byID         map[string]int
	scheduled    map[string]ScheduledTransaction
	schedOrder   []string
	failCommit   error
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and local development. Atomic units are serialized under a single lock.
func NewInMemory() Store {
	return &inMemoryStore{
		accounts:  make(map[string]Account),
		byID:      make(map[string]int),
		scheduled: make(map[string]ScheduledTransaction),
	}
}

func (s *inMemoryStore) EnsureAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[id]; !exists {
		s.accounts[id] = Account{ID: id, Balance: decimal.Zero, Status: AccountActive, CreatedAt: time.Now().UTC()}
	}
	return nil
}

func (s *inMemoryStore) CloseAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	acct.Status = AccountClosed
	s.accounts[id] = acct
	return nil
}

func (s *inMemoryStore) Account(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acct, nil
}

// memTx stages writes; nothing reaches the store until the unit commits.
type memTx struct {
	store     *inMemoryStore
	balances  map[string]decimal.Decimal
	inserted  []Transaction
	completed map[string]ScheduledTransaction
}

func (t *memTx) LockAccount(_ context.Context, id string) (Account, error) {
	acct, ok := t.store.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	if staged, ok := t.balances[id]; ok {
		acct.Balance = staged
	}
	return acct, nil
}

func (t *memTx) SetBalance(_ context.Context, id string, balance decimal.Decimal) error {
	if _, ok := t.store.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	t.balances[id] = balance
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, tx Transaction) error {
	t.inserted = append(t.inserted, tx)
	return nil
}

func (t *memTx) CompleteScheduled(_ context.Context, id string, tx Transaction) error {
	st, ok := t.store.scheduled[id]
	if !ok {
		return ErrTransactionNotFound
	}
	if _, done := t.completed[id]; done || !st.Status.CanTransition(StatusCompleted) {
		return ErrScheduledNotPending
	}
	st.Status = StatusCompleted
	st.TransactionID = tx.ID
	st.Fee = tx.Fee
	st.BalanceBefore = tx.BalanceBefore
	st.BalanceAfter = tx.BalanceAfter
	t.completed[id] = st
	return nil
}

func (s *inMemoryStore) Atomically(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := &memTx{
		store:     s,
		balances:  make(map[string]decimal.Decimal),
		completed: make(map[string]ScheduledTransaction),
	}
	if err := fn(staged); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failCommit != nil {
		err := s.failCommit
		s.failCommit = nil
		return err
	}

	for id, balance := range staged.balances {
		acct := s.accounts[id]
		acct.Balance = balance
		s.accounts[id] = acct
	}
	for _, tx := range staged.inserted {
		s.byID[tx.ID] = len(s.transactions)
		s.transactions = append(s.transactions, tx)
	}
	for id, st := range staged.completed {
		s.scheduled[id] = st
	}
	return nil
}

func (s *inMemoryStore) Transactions(_ context.Context, accountID string, offset, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Newest insertion first so equal timestamps keep a stable order.
	matched := make([]Transaction, 0)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].Involves(accountID) {
			matched = append(matched, s.transactions[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return window(matched, offset, limit), nil
}

func (s *inMemoryStore) Transaction(_ context.Context, id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return s.transactions[idx], nil
}

func (s *inMemoryStore) ScheduleTransaction(_ context.Context, st ScheduledTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[st.SenderID]; !ok {
		return ErrAccountNotFound
	}
	if _, ok := s.accounts[st.ReceiverID]; !ok {
		return ErrAccountNotFound
	}
	s.scheduled[st.ID] = st
	s.schedOrder = append(s.schedOrder, st.ID)
	return nil
}

func (s *inMemoryStore) ScheduledTransactions(_ context.Context, senderID string, offset, limit int) ([]ScheduledTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]ScheduledTransaction, 0)
	for _, id := range s.schedOrder {
		if st := s.scheduled[id]; st.SenderID == senderID {
			matched = append(matched, st)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].SendAt.Before(matched[j].SendAt)
	})
	return window(matched, offset, limit), nil
}

func (s *inMemoryStore) DueScheduled(_ context.Context, now time.Time, limit int) ([]ScheduledTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	due := make([]ScheduledTransaction, 0)
	for _, id := range s.schedOrder {
		st := s.scheduled[id]
		if st.Status == StatusPending && !st.SendAt.After(now) {
			due = append(due, st)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].SendAt.Before(due[j].SendAt)
	})
	return window(due, 0, limit), nil
}

func (s *inMemoryStore) FailScheduled(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.scheduled[id]
	if !ok {
		return ErrTransactionNotFound
	}
	if !st.Status.CanTransition(StatusFailed) {
		return ErrScheduledNotPending
	}
	st.Status = StatusFailed
	st.FailureReason = reason
	s.scheduled[id] = st
	return nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

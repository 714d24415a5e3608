package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeedBalance is a test helper that opens the account if needed and sets its
// balance when using the in-memory ledger.
func SeedBalance(s Store, id string, amount decimal.Decimal) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		acct, exists := mem.accounts[id]
		if !exists {
			acct = Account{ID: id, Status: AccountActive, CreatedAt: time.Now().UTC()}
		}
		acct.Balance = amount
		mem.accounts[id] = acct
	}
}

// FailNextCommit makes the next atomic unit of the in-memory ledger fail with
// err after its body ran successfully, simulating a store write failure.
func FailNextCommit(s Store, err error) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.failCommit = err
	}
}

// TransactionCount reports how many ledger entries the in-memory ledger holds.
func TransactionCount(s Store) int {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.RLock()
		defer mem.mu.RUnlock()
		return len(mem.transactions)
	}
	return -1
}

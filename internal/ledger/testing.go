package ledger

import "github.com/congo-pay/bankledger/internal/amount"

// SeedBalance is a test helper that seeds the balance for a key when using the in-memory store.
func SeedBalance(s Store, key Key, value amount.Amount) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[key] = value
	}
}

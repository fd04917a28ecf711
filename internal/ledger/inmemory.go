package ledger

import (
	"context"
	"sync"

	"github.com/congo-pay/bankledger/internal/amount"
)

type inMemoryStore struct {
	mu         sync.RWMutex
	balances   map[Key]amount.Amount
	registered map[string]struct{}
}

// NewInMemory creates a concurrency-safe in-memory balance table useful for unit tests.
func NewInMemory() Store {
	return &inMemoryStore{
		balances:   make(map[Key]amount.Amount),
		registered: make(map[string]struct{}),
	}
}

func (s *inMemoryStore) Balance(_ context.Context, key Key) (amount.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[key], nil
}

func (s *inMemoryStore) Credit(_ context.Context, key Key, value amount.Amount) (amount.Amount, error) {
	if err := key.validate(); err != nil {
		return amount.Amount{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.balances[key].Add(value)
	if err != nil {
		return amount.Amount{}, err
	}
	s.balances[key] = next
	return next, nil
}

func (s *inMemoryStore) Debit(_ context.Context, key Key, value amount.Amount) (amount.Amount, error) {
	if err := key.validate(); err != nil {
		return amount.Amount{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.balances[key]
	next, err := current.Sub(value)
	if err != nil {
		return amount.Amount{}, &InsufficientBalanceError{Key: key, Balance: current, Requested: value}
	}
	s.balances[key] = next
	return next, nil
}

func (s *inMemoryStore) Register(_ context.Context, account string) error {
	if account == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered[account] = struct{}{}
	return nil
}

func (s *inMemoryStore) IsRegistered(_ context.Context, account string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registered[account]
	return ok, nil
}

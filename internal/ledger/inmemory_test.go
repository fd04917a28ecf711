package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/congo-pay/bankledger/internal/amount"
)

func TestInMemoryStore_AbsentKeyIsZero(t *testing.T) {
	s := NewInMemory()
	bal, err := s.Balance(context.Background(), Key{Counterparty: "token", Account: "alice"})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.IsZero() {
		t.Fatalf("expected zero balance, got %s", bal)
	}
}

func TestInMemoryStore_CreditRoundTrip(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	key := Key{Counterparty: "token", Account: "alice"}

	SeedBalance(s, key, amount.FromUint64(40))

	next, err := s.Credit(ctx, key, amount.FromUint64(60))
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if next.String() != "100" {
		t.Fatalf("expected 100 after credit, got %s", next)
	}

	bal, _ := s.Balance(ctx, key)
	if bal.Cmp(next) != 0 {
		t.Fatalf("balance %s does not match credit result %s", bal, next)
	}
}

func TestInMemoryStore_DebitInsufficientLeavesEntry(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	key := Key{Counterparty: "token", Account: "alice"}
	SeedBalance(s, key, amount.FromUint64(50))

	_, err := s.Debit(ctx, key, amount.FromUint64(200))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected *InsufficientBalanceError, got %T", err)
	}
	if insufficient.Balance.String() != "50" || insufficient.Requested.String() != "200" {
		t.Fatalf("unexpected diagnostic: %+v", insufficient)
	}

	bal, _ := s.Balance(ctx, key)
	if bal.String() != "50" {
		t.Fatalf("failed debit changed balance to %s", bal)
	}
}

func TestInMemoryStore_DebitToZero(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	key := Key{Account: "bob"}
	SeedBalance(s, key, amount.FromUint64(10))

	next, err := s.Debit(ctx, key, amount.FromUint64(10))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !next.IsZero() {
		t.Fatalf("expected zero, got %s", next)
	}
}

func TestInMemoryStore_CreditOverflow(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	key := Key{Counterparty: "token", Account: "whale"}
	SeedBalance(s, key, amount.MustParse("340282366920938463463374607431768211455"))

	if _, err := s.Credit(ctx, key, amount.FromUint64(1)); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	bal, _ := s.Balance(ctx, key)
	if bal.String() != "340282366920938463463374607431768211455" {
		t.Fatalf("overflowing credit changed balance to %s", bal)
	}
}

func TestInMemoryStore_RejectsEmptyAccount(t *testing.T) {
	s := NewInMemory()
	if _, err := s.Credit(context.Background(), Key{Counterparty: "token"}, amount.FromUint64(1)); err != ErrInvalidKey {
		t.Fatalf("expected invalid key, got %v", err)
	}
}

func TestInMemoryStore_ConcurrentDebitsNeverNegative(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	key := Key{Counterparty: "token", Account: "alice"}
	SeedBalance(s, key, amount.FromUint64(1_000))

	const workers = 30
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Debit(ctx, key, amount.FromUint64(50)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientBalance) {
				t.Errorf("debit %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if accepted != 20 {
		t.Fatalf("expected 20 accepted debits, got %d", accepted)
	}
	bal, _ := s.Balance(ctx, key)
	if !bal.IsZero() {
		t.Fatalf("expected drained balance, got %s", bal)
	}
}

func TestInMemoryStore_Register(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := s.Register(ctx, "carol"); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	ok, _ := s.IsRegistered(ctx, "carol")
	if !ok {
		t.Fatal("expected carol to be registered")
	}
	ok, _ = s.IsRegistered(ctx, fmt.Sprintf("dave-%d", 1))
	if ok {
		t.Fatal("unexpected registration")
	}
}

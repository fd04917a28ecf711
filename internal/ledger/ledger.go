package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/congo-pay/bankledger/internal/amount"
)

var (
	// ErrInsufficientBalance occurs when a debit would drive an entry below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrArithmeticOverflow occurs when a credit would exceed the 128-bit range.
	ErrArithmeticOverflow = amount.ErrOverflow

	// ErrInvalidKey is returned for keys with an empty account identity.
	ErrInvalidKey = errors.New("invalid balance key")
)

// Key addresses one balance entry. Counterparty is the trusted ledger that
// reported the value; it is empty for ledgers that hold a single asset.
type Key struct {
	Counterparty string
	Account      string
}

func (k Key) String() string {
	if k.Counterparty == "" {
		return k.Account
	}
	return k.Counterparty + "/" + k.Account
}

func (k Key) validate() error {
	if k.Account == "" {
		return ErrInvalidKey
	}
	return nil
}

// InsufficientBalanceError carries the balance observed by a failed debit.
type InsufficientBalanceError struct {
	Key       Key
	Balance   amount.Amount
	Requested amount.Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: have %s, need %s", e.Key, e.Balance, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientBalance) hold.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// Store defines the contract implemented by balance table backends (e.g. Postgres).
// Absent entries read as zero; Credit creates them. Debit never leaves an
// entry negative and changes nothing when it fails.
type Store interface {
	Balance(ctx context.Context, key Key) (amount.Amount, error)
	Credit(ctx context.Context, key Key, value amount.Amount) (amount.Amount, error)
	Debit(ctx context.Context, key Key, value amount.Amount) (amount.Amount, error)
	Register(ctx context.Context, account string) error
	IsRegistered(ctx context.Context, account string) (bool, error)
}

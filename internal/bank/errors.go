package bank

import (
	"errors"

	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/whitelist"
)

var (
	// ErrUnauthorized: the caller is not the administrator, not whitelisted,
	// or not a party to the relay it tries to act on.
	ErrUnauthorized = whitelist.ErrUnauthorized

	// ErrInsufficientBalance: a debit would drive an entry negative. The
	// concrete error is a *ledger.InsufficientBalanceError.
	ErrInsufficientBalance = ledger.ErrInsufficientBalance

	// ErrArithmeticOverflow: a credit would exceed the 128-bit range.
	ErrArithmeticOverflow = ledger.ErrArithmeticOverflow

	// ErrMalformedMessage: the notification payload could not be decoded.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrInvalidAmount rejects zero-value transfers.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidAccount rejects blank account identities.
	ErrInvalidAccount = errors.New("account identity is required")
)

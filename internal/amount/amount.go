// Package amount implements the unsigned 128-bit quantities exchanged
// between the ledgers.
package amount

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// MaxBits is the width of every Amount.
const MaxBits = 128

var (
	// ErrOverflow is returned when a result does not fit in 128 bits.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("arithmetic underflow")
	// ErrInvalid is returned for strings that are not non-negative decimal integers.
	ErrInvalid = errors.New("invalid amount")
)

// Amount is an unsigned 128-bit integer. The zero value is 0.
type Amount struct {
	v uint256.Int
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

// FromUint64 converts n into an Amount.
func FromUint64(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Parse reads a base-10 amount such as "340282366920938463463374607431768211455".
func Parse(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalid)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return Amount{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
	}
	var a Amount
	if err := a.v.SetFromDecimal(s); err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	if a.v.BitLen() > MaxBits {
		return Amount{}, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return a, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a+b or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow || out.v.BitLen() > MaxBits {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

// Sub returns a-b or ErrUnderflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.v.Lt(&b.v) {
		return Amount{}, ErrUnderflow
	}
	var out Amount
	out.v.Sub(&a.v, &b.v)
	return out, nil
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// Less reports whether a < b.
func (a Amount) Less(b Amount) bool {
	return a.v.Lt(&b.v)
}

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// String returns the base-10 representation.
func (a Amount) String() string {
	return a.v.Dec()
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both quoted decimal strings and bare JSON integers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: null", ErrInvalid)
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

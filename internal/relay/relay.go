// Package relay carries value movements a ledger asks its counterparty to
// perform. A relay is a two-phase saga: the ledger debits locally and
// records a pending Request, the counterparty performs the move, and the
// outcome comes back through a separate continuation call.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/congo-pay/bankledger/internal/amount"
)

// Status is the lifecycle state of a relay.
type Status string

const (
	StatusPending     Status = "pending"
	StatusCompleted   Status = "completed"
	StatusCompensated Status = "compensated"
)

var (
	// ErrNotFound is returned for unknown relay ids.
	ErrNotFound = errors.New("relay not found")
	// ErrAlreadyResolved is returned when a continuation arrives for a relay
	// that is no longer pending.
	ErrAlreadyResolved = errors.New("relay already resolved")
	// ErrQueueFull is returned by bounded in-memory queues.
	ErrQueueFull = errors.New("relay queue full")
)

// Request is one outbound relay.
type Request struct {
	ID           string        `json:"id"`
	Origin       string        `json:"origin"`
	Counterparty string        `json:"counterparty"`
	Account      string        `json:"account"`
	Amount       amount.Amount `json:"amount"`
	Status       Status        `json:"status"`
	Reason       string        `json:"reason,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Outcome is what the counterparty reports for a relay.
type Outcome struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// Store persists relay records.
type Store interface {
	Create(ctx context.Context, req Request) error
	Get(ctx context.Context, id string) (Request, error)
	// Resolve moves a pending relay to status. Non-pending relays yield
	// ErrAlreadyResolved and are left untouched.
	Resolve(ctx context.Context, id string, status Status, reason string) (Request, error)
}

// Publisher hands requests to the counterparty side.
type Publisher interface {
	Publish(ctx context.Context, req Request) error
}

// Consumer blocks until a request for counterparty is available or ctx ends.
type Consumer interface {
	Consume(ctx context.Context, counterparty string) (Request, error)
}

// Queue is both ends of a relay outbox.
type Queue interface {
	Publisher
	Consumer
}

// Package whitelist implements the membership gate both ledgers consult
// before any balance mutation.
package whitelist

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the immediate caller is not allowed to
	// perform the requested operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrEmptyIdentity rejects blank identities.
	ErrEmptyIdentity = errors.New("identity is required")
)

// Store persists the set of trusted identities.
type Store interface {
	Contains(ctx context.Context, identity string) (bool, error)
	Add(ctx context.Context, identity string) error
	Remove(ctx context.Context, identity string) error
	Members(ctx context.Context) ([]string, error)
}

// Gate couples the membership set with the fixed administrator identity.
// The owner cannot be changed after construction.
type Gate struct {
	owner string
	store Store
}

// NewGate builds a gate administered by owner.
func NewGate(owner string, store Store) (*Gate, error) {
	if owner == "" {
		return nil, fmt.Errorf("whitelist owner: %w", ErrEmptyIdentity)
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Gate{owner: owner, store: store}, nil
}

// Owner returns the administrator identity.
func (g *Gate) Owner() string {
	return g.owner
}

// Contains reports whether identity is whitelisted. Anyone may ask.
func (g *Gate) Contains(ctx context.Context, identity string) (bool, error) {
	return g.store.Contains(ctx, identity)
}

// Members lists whitelisted identities.
func (g *Gate) Members(ctx context.Context) ([]string, error) {
	return g.store.Members(ctx)
}

// Add whitelists identity. Adding a member again is a no-op.
func (g *Gate) Add(ctx context.Context, caller, identity string) error {
	if err := g.RequireOwner(caller); err != nil {
		return err
	}
	if identity == "" {
		return ErrEmptyIdentity
	}
	return g.store.Add(ctx, identity)
}

// Remove drops identity. Removing a non-member is a no-op.
func (g *Gate) Remove(ctx context.Context, caller, identity string) error {
	if err := g.RequireOwner(caller); err != nil {
		return err
	}
	if identity == "" {
		return ErrEmptyIdentity
	}
	return g.store.Remove(ctx, identity)
}

// RequireOwner fails unless caller is exactly the administrator.
func (g *Gate) RequireOwner(caller string) error {
	if caller == "" || caller != g.owner {
		return fmt.Errorf("%w: only callable by owner", ErrUnauthorized)
	}
	return nil
}

// Require fails unless caller is whitelisted. Only the immediate caller is
// checked; account identities carried in payloads are never authorization
// subjects.
func (g *Gate) Require(ctx context.Context, caller string) error {
	if caller == "" {
		return fmt.Errorf("%w: anonymous caller", ErrUnauthorized)
	}
	ok, err := g.store.Contains(ctx, caller)
	if err != nil {
		return fmt.Errorf("whitelist lookup: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s not whitelisted", ErrUnauthorized, caller)
	}
	return nil
}

// Package bank implements the ledger that holds value reported by trusted
// counterparties. Balances are keyed by (counterparty, account); the
// counterparty half is always the authenticated immediate caller that
// reported the value, never an identity taken from a payload.
package bank

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/congo-pay/bankledger/internal/amount"
	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/logging"
	"github.com/congo-pay/bankledger/internal/notification"
	"github.com/congo-pay/bankledger/internal/relay"
	"github.com/congo-pay/bankledger/internal/whitelist"
)

// Options wires a Service. Only ID and Gate are required; the remaining
// collaborators default to in-memory implementations.
type Options struct {
	ID       string
	Gate     *whitelist.Gate
	Balances ledger.Store
	Relays   relay.Store
	Outbox   relay.Publisher
	Notifier notification.Notifier
	Logger   *slog.Logger
}

// Service is one ledger instance. Every entry point runs under a single
// mutex, so calls are applied one at a time and each either fully applies
// or leaves state untouched.
type Service struct {
	mu       sync.Mutex
	id       string
	gate     *whitelist.Gate
	balances ledger.Store
	relays   relay.Store
	outbox   relay.Publisher
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a ledger service.
func New(opts Options) (*Service, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("bank id is required")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("whitelist gate is required")
	}
	if opts.Balances == nil {
		opts.Balances = ledger.NewInMemory()
	}
	if opts.Relays == nil {
		opts.Relays = relay.NewMemoryStore()
	}
	if opts.Outbox == nil {
		opts.Outbox = relay.NewMemoryQueue()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Service{
		id:       opts.ID,
		gate:     opts.Gate,
		balances: opts.Balances,
		relays:   opts.Relays,
		outbox:   opts.Outbox,
		notifier: opts.Notifier,
		logger:   opts.Logger.With(slog.String("ledger", opts.ID)),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// ID returns the ledger's own identity.
func (s *Service) ID() string {
	return s.id
}

// Gate exposes the whitelist for administration handlers.
func (s *Service) Gate() *whitelist.Gate {
	return s.gate
}

// BalanceOf returns the amount held for account as reported by
// counterparty. Absent entries read as zero.
func (s *Service) BalanceOf(ctx context.Context, counterparty, account string) (amount.Amount, error) {
	return s.balances.Balance(ctx, ledger.Key{Counterparty: counterparty, Account: account})
}

// WhitelistContains reports whether identity is a trusted counterparty.
func (s *Service) WhitelistContains(ctx context.Context, identity string) (bool, error) {
	return s.gate.Contains(ctx, identity)
}

// WhitelistAdd trusts identity. Owner only.
func (s *Service) WhitelistAdd(ctx context.Context, caller, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.gate.Add(ctx, caller, identity); err != nil {
		return err
	}
	s.logger.Info("whitelist add", slog.String("identity", identity))
	return nil
}

// WhitelistRemove revokes identity. Owner only.
func (s *Service) WhitelistRemove(ctx context.Context, caller, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.gate.Remove(ctx, caller, identity); err != nil {
		return err
	}
	s.logger.Info("whitelist remove", slog.String("identity", identity))
	return nil
}

// RegisterAccount records a zero-value placeholder for account. Owner only;
// registering twice is harmless. Balances do not depend on registration.
func (s *Service) RegisterAccount(ctx context.Context, caller, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.gate.RequireOwner(caller); err != nil {
		return err
	}
	if account == "" {
		return ErrInvalidAccount
	}
	return s.balances.Register(ctx, account)
}

// IsRegistered reports whether account was registered.
func (s *Service) IsRegistered(ctx context.Context, account string) (bool, error) {
	return s.balances.IsRegistered(ctx, account)
}

func (s *Service) emit(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	msg.Ledger = s.id
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("event delivery failed", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}

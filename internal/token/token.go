// Package token implements the peer asset ledger. It keeps one balance per
// account and moves value into receiving ledgers through a transfer-and-call
// protocol: value is credited to the receiver, the receiver is notified and
// whatever it refuses is handed back.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/congo-pay/bankledger/internal/amount"
	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/logging"
	"github.com/congo-pay/bankledger/internal/notification"
	"github.com/congo-pay/bankledger/internal/whitelist"
)

var (
	ErrUnauthorized        = whitelist.ErrUnauthorized
	ErrInsufficientBalance = ledger.ErrInsufficientBalance
	ErrNotRegistered       = errors.New("account is not registered")
	ErrUnknownReceiver     = errors.New("receiver does not accept transfers")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrRefused             = errors.New("receiver refused the transfer")
)

// Receiver is a ledger that accepts transfer-and-call deliveries. It returns
// the part of value it refuses.
type Receiver interface {
	OnTransfer(ctx context.Context, caller, source string, value amount.Amount, msg string) (amount.Amount, error)
}

// Options wires a Service. ID and Gate are required.
type Options struct {
	ID       string
	Gate     *whitelist.Gate
	Balances ledger.Store
	Notifier notification.Notifier
	Logger   *slog.Logger
}

// Service is the token ledger. Entry points are serialized by mu; the lock is
// released while a receiver runs so the receiver may call back in.
type Service struct {
	mu        sync.Mutex
	id        string
	gate      *whitelist.Gate
	balances  ledger.Store
	receivers map[string]Receiver
	notifier  notification.Notifier
	logger    *slog.Logger
}

// New constructs the token ledger.
func New(opts Options) (*Service, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("token id is required")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("whitelist gate is required")
	}
	if opts.Balances == nil {
		opts.Balances = ledger.NewInMemory()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Service{
		id:        opts.ID,
		gate:      opts.Gate,
		balances:  opts.Balances,
		receivers: make(map[string]Receiver),
		notifier:  opts.Notifier,
		logger:    opts.Logger.With(slog.String("ledger", opts.ID)),
	}, nil
}

func key(account string) ledger.Key {
	return ledger.Key{Account: account}
}

// ID returns the token ledger identity.
func (s *Service) ID() string {
	return s.id
}

// Gate exposes the whitelist for administration handlers.
func (s *Service) Gate() *whitelist.Gate {
	return s.gate
}

// RegisterReceiver registers id as an account able to receive
// transfer-and-call deliveries through r.
func (s *Service) RegisterReceiver(ctx context.Context, id string, r Receiver) error {
	if id == "" || r == nil {
		return ErrUnknownReceiver
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.balances.Register(ctx, id); err != nil {
		return err
	}
	s.receivers[id] = r
	return nil
}

// BalanceOf returns the tokens held by account.
func (s *Service) BalanceOf(ctx context.Context, account string) (amount.Amount, error) {
	return s.balances.Balance(ctx, key(account))
}

// WhitelistContains reports whether identity is trusted.
func (s *Service) WhitelistContains(ctx context.Context, identity string) (bool, error) {
	return s.gate.Contains(ctx, identity)
}

// WhitelistAdd trusts identity. Owner only.
func (s *Service) WhitelistAdd(ctx context.Context, caller, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.Add(ctx, caller, identity)
}

// WhitelistRemove revokes identity. Owner only.
func (s *Service) WhitelistRemove(ctx context.Context, caller, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.Remove(ctx, caller, identity)
}

// RegisterAccount opens account. Owner only.
func (s *Service) RegisterAccount(ctx context.Context, caller, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.gate.RequireOwner(caller); err != nil {
		return err
	}
	if account == "" {
		return ledger.ErrInvalidKey
	}
	return s.balances.Register(ctx, account)
}

// IsRegistered reports whether account was opened.
func (s *Service) IsRegistered(ctx context.Context, account string) (bool, error) {
	return s.balances.IsRegistered(ctx, account)
}

// CreateValue mints value into a registered account. Owner only.
func (s *Service) CreateValue(ctx context.Context, caller, account string, value amount.Amount) (amount.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.gate.RequireOwner(caller); err != nil {
		return amount.Amount{}, err
	}
	if err := s.requireRegistered(ctx, account); err != nil {
		return amount.Amount{}, err
	}
	if value.IsZero() {
		return amount.Amount{}, ErrInvalidAmount
	}
	balance, err := s.balances.Credit(ctx, key(account), value)
	if err != nil {
		return amount.Amount{}, err
	}
	s.logger.Info("value minted", slog.String("account", account), slog.String("amount", value.String()))
	s.emit(ctx, notification.KindTokenMinted, account, value, "")
	return balance, nil
}

// AddValue credits account. Whitelisted callers only.
func (s *Service) AddValue(ctx context.Context, caller, account string, value amount.Amount) (amount.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.gate.Require(ctx, caller); err != nil {
		return amount.Amount{}, err
	}
	return s.balances.Credit(ctx, key(account), value)
}

// RmValue debits account. Whitelisted callers only; balances never go negative.
func (s *Service) RmValue(ctx context.Context, caller, account string, value amount.Amount) (amount.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.gate.Require(ctx, caller); err != nil {
		return amount.Amount{}, err
	}
	return s.balances.Debit(ctx, key(account), value)
}

func (s *Service) requireRegistered(ctx context.Context, account string) error {
	if account == "" {
		return ledger.ErrInvalidKey
	}
	ok, err := s.balances.IsRegistered(ctx, account)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, account)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, kind, account string, value amount.Amount, ref string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:      kind,
		Ledger:    s.id,
		Account:   account,
		Amount:    value.String(),
		Reference: ref,
	})
	if err != nil {
		s.logger.Warn("event delivery failed", slog.String("kind", kind), slog.Any("error", err))
	}
}

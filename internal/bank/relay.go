package bank

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/congo-pay/bankledger/internal/amount"
	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/notification"
	"github.com/congo-pay/bankledger/internal/relay"
)

// TransferRequest asks the ledger to send value held for Account back out
// through Counterparty.
type TransferRequest struct {
	Counterparty string        `json:"counterparty"`
	Account      string        `json:"account"`
	Amount       amount.Amount `json:"amount"`
}

// Transfer starts a relay. The internal balance is debited before the
// relay is recorded and published, so the ledger never asks for an
// external move it cannot cover. The caller must be the owner or the
// account holder; the counterparty must be whitelisted.
//
// The relay settles later through CompleteRelay. A failed relay is
// compensated by crediting the amount back.
func (s *Service) Transfer(ctx context.Context, caller string, req TransferRequest) (relay.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Account == "" {
		return relay.Request{}, ErrInvalidAccount
	}
	if req.Amount.IsZero() {
		return relay.Request{}, ErrInvalidAmount
	}
	if caller == "" || (caller != s.gate.Owner() && caller != req.Account) {
		return relay.Request{}, fmt.Errorf("%w: %s may not move funds of %s", ErrUnauthorized, caller, req.Account)
	}
	if err := s.gate.Require(ctx, req.Counterparty); err != nil {
		return relay.Request{}, err
	}

	key := ledger.Key{Counterparty: req.Counterparty, Account: req.Account}
	if _, err := s.balances.Debit(ctx, key, req.Amount); err != nil {
		return relay.Request{}, err
	}

	now := s.now()
	rec := relay.Request{
		ID:           uuid.NewString(),
		Origin:       s.id,
		Counterparty: req.Counterparty,
		Account:      req.Account,
		Amount:       req.Amount,
		Status:       relay.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.relays.Create(ctx, rec); err != nil {
		s.restore(ctx, key, req.Amount, rec.ID)
		return relay.Request{}, fmt.Errorf("record relay: %w", err)
	}
	if err := s.outbox.Publish(ctx, rec); err != nil {
		if _, resolveErr := s.relays.Resolve(ctx, rec.ID, relay.StatusCompensated, "publish failed"); resolveErr != nil {
			s.logger.Error("relay cancel failed", slog.String("relay_id", rec.ID), slog.Any("error", resolveErr))
		}
		s.restore(ctx, key, req.Amount, rec.ID)
		return relay.Request{}, fmt.Errorf("publish relay: %w", err)
	}

	s.logger.Info("relay requested",
		slog.String("relay_id", rec.ID),
		slog.String("counterparty", rec.Counterparty),
		slog.String("account", rec.Account),
		slog.String("amount", rec.Amount.String()),
	)
	s.emit(ctx, notification.Message{
		Kind:         notification.KindRelayRequested,
		Counterparty: rec.Counterparty,
		Account:      rec.Account,
		Amount:       rec.Amount.String(),
		Reference:    rec.ID,
	})
	return rec, nil
}

// CompleteRelay is the continuation of Transfer. The outcome is reported by
// the relay's counterparty, which must still be whitelisted, or by the owner
// for manual reconciliation. Success finalizes the debit; failure credits
// the amount back.
func (s *Service) CompleteRelay(ctx context.Context, caller, id string, outcome relay.Outcome) (relay.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.relays.Get(ctx, id)
	if err != nil {
		return relay.Request{}, err
	}
	if caller == "" || (caller != rec.Counterparty && caller != s.gate.Owner()) {
		return relay.Request{}, fmt.Errorf("%w: %s is not a party to relay %s", ErrUnauthorized, caller, id)
	}
	if caller != s.gate.Owner() {
		if err := s.gate.Require(ctx, caller); err != nil {
			return relay.Request{}, err
		}
	}
	if rec.Status != relay.StatusPending {
		return rec, relay.ErrAlreadyResolved
	}

	if outcome.Success {
		resolved, err := s.relays.Resolve(ctx, id, relay.StatusCompleted, outcome.Reason)
		if err != nil {
			return resolved, err
		}
		s.emit(ctx, notification.Message{
			Kind:         notification.KindRelayCompleted,
			Counterparty: resolved.Counterparty,
			Account:      resolved.Account,
			Amount:       resolved.Amount.String(),
			Reference:    resolved.ID,
		})
		return resolved, nil
	}

	key := ledger.Key{Counterparty: rec.Counterparty, Account: rec.Account}
	if _, err := s.balances.Credit(ctx, key, rec.Amount); err != nil {
		return relay.Request{}, fmt.Errorf("compensate relay %s: %w", id, err)
	}
	resolved, err := s.relays.Resolve(ctx, id, relay.StatusCompensated, outcome.Reason)
	if err != nil {
		// Undo the compensation so a retry cannot credit twice.
		if _, debitErr := s.balances.Debit(ctx, key, rec.Amount); debitErr != nil {
			s.logger.Error("compensation rollback failed", slog.String("relay_id", id), slog.Any("error", debitErr))
		}
		return resolved, err
	}

	s.logger.Warn("relay compensated",
		slog.String("relay_id", id),
		slog.String("account", rec.Account),
		slog.String("reason", outcome.Reason),
	)
	s.emit(ctx, notification.Message{
		Kind:         notification.KindRelayCompensated,
		Counterparty: resolved.Counterparty,
		Account:      resolved.Account,
		Amount:       resolved.Amount.String(),
		Reference:    resolved.ID,
	})
	return resolved, nil
}

// Relay returns a relay record.
func (s *Service) Relay(ctx context.Context, id string) (relay.Request, error) {
	return s.relays.Get(ctx, id)
}

// restore undoes a debit made earlier in the same call.
func (s *Service) restore(ctx context.Context, key ledger.Key, value amount.Amount, relayID string) {
	if _, err := s.balances.Credit(ctx, key, value); err != nil {
		s.logger.Error("relay debit rollback failed",
			slog.String("relay_id", relayID),
			slog.String("account", key.String()),
			slog.Any("error", err),
		)
	}
}

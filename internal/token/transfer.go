package token

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/congo-pay/bankledger/internal/amount"
	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/notification"
	"github.com/congo-pay/bankledger/internal/relay"
)

const (
	kindDeposit    = "deposit"
	kindWithdrawal = "withdrawal"
)

func intent(kind string) string {
	out, _ := json.Marshal(map[string]string{"kind": kind})
	return string(out)
}

// Transfer moves value from caller to receiver. Both accounts must be registered.
func (s *Service) Transfer(ctx context.Context, caller, receiver string, value amount.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireRegistered(ctx, caller); err != nil {
		return err
	}
	if err := s.requireRegistered(ctx, receiver); err != nil {
		return err
	}
	return s.move(ctx, caller, receiver, value)
}

// move debits from and credits to. A failed credit puts the debit back.
func (s *Service) move(ctx context.Context, from, to string, value amount.Amount) error {
	if value.IsZero() {
		return ErrInvalidAmount
	}
	if _, err := s.balances.Debit(ctx, key(from), value); err != nil {
		return err
	}
	if _, err := s.balances.Credit(ctx, key(to), value); err != nil {
		if _, undoErr := s.balances.Credit(ctx, key(from), value); undoErr != nil {
			s.logger.Error("transfer rollback failed", slog.String("account", from), slog.Any("error", undoErr))
		}
		return err
	}
	s.emit(ctx, notification.KindTokenTransfer, to, value, from)
	return nil
}

// TransferCall moves value from caller into a registered receiver and
// notifies it with msg. The refused part is returned to caller; when the
// receiver fails the whole amount is returned and the receiver's error is
// reported. It returns the amount the receiver kept.
func (s *Service) TransferCall(ctx context.Context, caller, receiver string, value amount.Amount, msg string) (amount.Amount, error) {
	r, err := s.prepareCall(ctx, caller, receiver, value)
	if err != nil {
		return amount.Amount{}, err
	}

	refused, callErr := r.OnTransfer(ctx, s.id, caller, value, msg)
	if callErr != nil {
		refused = value
	} else if value.Less(refused) {
		refused = value
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !refused.IsZero() {
		if err := s.refund(ctx, receiver, caller, refused); err != nil {
			return amount.Amount{}, err
		}
	}
	if callErr != nil {
		return amount.Zero(), callErr
	}
	kept, _ := value.Sub(refused)
	return kept, nil
}

func (s *Service) prepareCall(ctx context.Context, caller, receiver string, value amount.Amount) (Receiver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receivers[receiver]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReceiver, receiver)
	}
	if err := s.requireRegistered(ctx, caller); err != nil {
		return nil, err
	}
	if err := s.move(ctx, caller, receiver, value); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) refund(ctx context.Context, receiver, caller string, value amount.Amount) error {
	if err := s.move(ctx, receiver, caller, value); err != nil {
		s.logger.Error("refund failed",
			slog.String("receiver", receiver),
			slog.String("account", caller),
			slog.String("amount", value.String()),
			slog.Any("error", err),
		)
		return fmt.Errorf("refund %s to %s: %w", value, caller, err)
	}
	return nil
}

// Deposit sends value into receiver as a deposit for caller.
func (s *Service) Deposit(ctx context.Context, caller, receiver string, value amount.Amount) (amount.Amount, error) {
	return s.TransferCall(ctx, caller, receiver, value, intent(kindDeposit))
}

// Withdraw asks receiver to release value it holds for caller. The receiver
// is notified first without any token movement; once it accepts, value
// moves from the receiver's token account back to caller. If that move
// fails the receiver is sent a deposit for the same value so its books
// match the tokens it still holds.
func (s *Service) Withdraw(ctx context.Context, caller, receiver string, value amount.Amount) error {
	s.mu.Lock()
	r, ok := s.receivers[receiver]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownReceiver, receiver)
	}
	if err := s.requireRegistered(ctx, caller); err != nil {
		s.mu.Unlock()
		return err
	}
	if value.IsZero() {
		s.mu.Unlock()
		return ErrInvalidAmount
	}
	held, err := s.balances.Balance(ctx, key(receiver))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if held.Less(value) {
		s.mu.Unlock()
		return &ledger.InsufficientBalanceError{Key: key(receiver), Balance: held, Requested: value}
	}
	s.mu.Unlock()

	refused, err := r.OnTransfer(ctx, s.id, caller, value, intent(kindWithdrawal))
	if err != nil {
		return err
	}
	if !refused.IsZero() {
		return fmt.Errorf("%w: %s of %s", ErrRefused, refused, value)
	}

	s.mu.Lock()
	err = s.move(ctx, receiver, caller, value)
	s.mu.Unlock()
	if err == nil {
		return nil
	}

	// The receiver already released value for caller; hand it back as a
	// deposit since no tokens moved.
	s.logger.Error("withdrawal settlement failed",
		slog.String("receiver", receiver),
		slog.String("account", caller),
		slog.String("amount", value.String()),
		slog.Any("error", err),
	)
	if _, compErr := r.OnTransfer(ctx, s.id, caller, value, intent(kindDeposit)); compErr != nil {
		s.logger.Error("withdrawal compensation failed",
			slog.String("receiver", receiver),
			slog.String("account", caller),
			slog.String("amount", value.String()),
			slog.Any("error", compErr),
		)
		return fmt.Errorf("settle withdrawal: %w (compensation failed: %v)", err, compErr)
	}
	return err
}

// Execute settles a relay published by a receiving ledger: the amount moves
// from the origin ledger's token account to the destination account.
func (s *Service) Execute(ctx context.Context, req relay.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.receivers[req.Origin]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReceiver, req.Origin)
	}
	if err := s.requireRegistered(ctx, req.Account); err != nil {
		return err
	}
	if err := s.move(ctx, req.Origin, req.Account, req.Amount); err != nil {
		return err
	}
	s.logger.Info("relay settled",
		slog.String("relay_id", req.ID),
		slog.String("origin", req.Origin),
		slog.String("account", req.Account),
		slog.String("amount", req.Amount.String()),
	)
	return nil
}

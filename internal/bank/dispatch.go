package bank

import (
	"context"
	"log/slog"

	"github.com/congo-pay/bankledger/internal/amount"
	"github.com/congo-pay/bankledger/internal/ledger"
	"github.com/congo-pay/bankledger/internal/notification"
)

// Outcome is the terminal state of one notification.
type Outcome string

const (
	OutcomeDepositApplied    Outcome = "deposit_applied"
	OutcomeWithdrawalApplied Outcome = "withdrawal_applied"
	OutcomeRejected          Outcome = "rejected"
)

// Notification is an inbound transfer report: the counterparty moved
// Amount on behalf of Source and attached Message.
type Notification struct {
	Source  string        `json:"sender_id"`
	Amount  amount.Amount `json:"amount"`
	Message string        `json:"msg"`
}

// Receipt describes how a notification was applied. Refused is the part of
// the amount the counterparty must give back: zero or the full amount.
type Receipt struct {
	Outcome Outcome       `json:"outcome"`
	Kind    Kind          `json:"kind"`
	Refused amount.Amount `json:"refused"`
	Balance amount.Amount `json:"balance"`
}

// HandleNotification decodes the payload, checks the immediate caller
// against the whitelist and routes to the deposit or withdrawal handler.
// Unknown kinds change nothing and refuse the full amount. Every error
// aborts the call with no state change.
func (s *Service) HandleNotification(ctx context.Context, caller string, n Notification) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := ParseMessage(n.Message)
	if err != nil {
		return Receipt{}, err
	}
	if err := s.gate.Require(ctx, caller); err != nil {
		return Receipt{}, err
	}
	if n.Source == "" {
		return Receipt{}, ErrInvalidAccount
	}

	key := ledger.Key{Counterparty: caller, Account: n.Source}
	switch msg.Kind {
	case KindDeposit:
		if n.Amount.IsZero() {
			return Receipt{}, ErrInvalidAmount
		}
		return s.deposit(ctx, key, n.Amount)
	case KindWithdrawal:
		if n.Amount.IsZero() {
			return Receipt{}, ErrInvalidAmount
		}
		return s.withdraw(ctx, key, n.Amount)
	default:
		return s.reject(ctx, key, msg.Kind, n.Amount)
	}
}

// OnTransfer is the transfer-protocol receiver hook. It returns the amount
// the caller must refund.
func (s *Service) OnTransfer(ctx context.Context, caller, source string, value amount.Amount, msg string) (amount.Amount, error) {
	receipt, err := s.HandleNotification(ctx, caller, Notification{Source: source, Amount: value, Message: msg})
	if err != nil {
		return amount.Amount{}, err
	}
	return receipt.Refused, nil
}

func (s *Service) deposit(ctx context.Context, key ledger.Key, value amount.Amount) (Receipt, error) {
	balance, err := s.balances.Credit(ctx, key, value)
	if err != nil {
		return Receipt{}, err
	}
	s.logger.Info("deposit applied",
		slog.String("counterparty", key.Counterparty),
		slog.String("account", key.Account),
		slog.String("amount", value.String()),
	)
	s.emit(ctx, notification.Message{
		Kind:         notification.KindDepositApplied,
		Counterparty: key.Counterparty,
		Account:      key.Account,
		Amount:       value.String(),
	})
	return Receipt{Outcome: OutcomeDepositApplied, Kind: KindDeposit, Refused: amount.Zero(), Balance: balance}, nil
}

func (s *Service) withdraw(ctx context.Context, key ledger.Key, value amount.Amount) (Receipt, error) {
	balance, err := s.balances.Debit(ctx, key, value)
	if err != nil {
		return Receipt{}, err
	}
	s.logger.Info("withdrawal applied",
		slog.String("counterparty", key.Counterparty),
		slog.String("account", key.Account),
		slog.String("amount", value.String()),
	)
	s.emit(ctx, notification.Message{
		Kind:         notification.KindWithdrawalApplied,
		Counterparty: key.Counterparty,
		Account:      key.Account,
		Amount:       value.String(),
	})
	return Receipt{Outcome: OutcomeWithdrawalApplied, Kind: KindWithdrawal, Refused: amount.Zero(), Balance: balance}, nil
}

func (s *Service) reject(ctx context.Context, key ledger.Key, kind Kind, value amount.Amount) (Receipt, error) {
	balance, err := s.balances.Balance(ctx, key)
	if err != nil {
		return Receipt{}, err
	}
	s.logger.Info("notification rejected",
		slog.String("counterparty", key.Counterparty),
		slog.String("account", key.Account),
		slog.String("kind", string(kind)),
	)
	s.emit(ctx, notification.Message{
		Kind:         notification.KindTransferRejected,
		Counterparty: key.Counterparty,
		Account:      key.Account,
		Amount:       value.String(),
		Reference:    string(kind),
	})
	return Receipt{Outcome: OutcomeRejected, Kind: kind, Refused: value, Balance: balance}, nil
}

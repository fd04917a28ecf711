package notification

import (
	"context"
	"errors"
	"log/slog"
)

const (
	KindDepositApplied    = "deposit_applied"
	KindWithdrawalApplied = "withdrawal_applied"
	KindTransferRejected  = "transfer_rejected"
	KindRelayRequested    = "relay_requested"
	KindRelayCompleted    = "relay_completed"
	KindRelayCompensated  = "relay_compensated"
	KindTokenTransfer     = "token_transfer"
	KindTokenMinted       = "token_minted"
)

// Message describes a ledger event.
type Message struct {
	Kind         string `json:"kind"`
	Ledger       string `json:"ledger"`
	Counterparty string `json:"counterparty,omitempty"`
	Account      string `json:"account"`
	Amount       string `json:"amount"`
	Reference    string `json:"reference,omitempty"`
}

// Notifier delivers ledger events to downstream systems. Delivery is best
// effort; ledgers never fail a call because an event was lost.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("ledger event",
		slog.String("kind", message.Kind),
		slog.String("ledger", message.Ledger),
		slog.String("counterparty", message.Counterparty),
		slog.String("account", message.Account),
		slog.String("amount", message.Amount),
		slog.String("reference", message.Reference),
	)
	return nil
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

// Send implements Notifier.
func (m Multi) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

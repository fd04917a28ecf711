package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Executor performs the counterparty side of a relay.
type Executor interface {
	Execute(ctx context.Context, req Request) error
}

// Completer is the originating ledger's continuation entry point.
type Completer interface {
	CompleteRelay(ctx context.Context, caller, id string, outcome Outcome) (Request, error)
}

const (
	retryDelay    = 500 * time.Millisecond
	maxRetryDelay = 30 * time.Second
)

// Worker drains one counterparty's outbox for an in-process executor and
// reports every outcome back to the originating ledger.
type Worker struct {
	counterparty string
	queue        Consumer
	executor     Executor
	completer    Completer
	logger       *slog.Logger
	retryDelay   time.Duration
}

// NewWorker wires a worker acting as counterparty.
func NewWorker(counterparty string, queue Consumer, executor Executor, completer Completer, logger *slog.Logger) *Worker {
	return &Worker{
		counterparty: counterparty,
		queue:        queue,
		executor:     executor,
		completer:    completer,
		logger:       logger,
		retryDelay:   retryDelay,
	}
}

// Run processes requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		req, err := w.queue.Consume(ctx, w.counterparty)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("relay dequeue failed", slog.String("counterparty", w.counterparty), slog.Any("error", err))
			select {
			case <-time.After(w.retryDelay):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		w.Handle(ctx, req)
	}
}

// Handle executes a single request and delivers its outcome. Delivery is
// retried with backoff until it succeeds, the relay is found resolved or
// unknown, or ctx ends.
func (w *Worker) Handle(ctx context.Context, req Request) {
	outcome := Outcome{Success: true}
	if err := w.executor.Execute(ctx, req); err != nil {
		outcome = Outcome{Success: false, Reason: err.Error()}
	}

	delay := w.retryDelay
	for attempt := 1; ; attempt++ {
		resolved, err := w.completer.CompleteRelay(ctx, w.counterparty, req.ID, outcome)
		if err == nil {
			w.logger.Info("relay resolved",
				slog.String("relay_id", resolved.ID),
				slog.String("status", string(resolved.Status)),
				slog.String("reason", resolved.Reason),
			)
			return
		}

		attrs := []any{
			slog.String("relay_id", req.ID),
			slog.Bool("success", outcome.Success),
			slog.String("reason", outcome.Reason),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		}
		if errors.Is(err, ErrAlreadyResolved) || errors.Is(err, ErrNotFound) {
			w.logger.Warn("relay continuation rejected", attrs...)
			return
		}
		w.logger.Error("relay continuation failed", attrs...)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			w.logger.Error("relay left pending", attrs...)
			return
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

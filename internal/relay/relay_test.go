package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/bankledger/internal/amount"
	"github.com/congo-pay/bankledger/internal/logging"
)

func newRequest(counterparty string) Request {
	now := time.Now().UTC()
	return Request{
		ID:           uuid.NewString(),
		Origin:       "bank",
		Counterparty: counterparty,
		Account:      "alice",
		Amount:       amount.FromUint64(100),
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestMemoryStoreResolveOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	req := newRequest("token")
	require.NoError(t, store.Create(ctx, req))

	resolved, err := store.Resolve(ctx, req.ID, StatusCompleted, "")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, resolved.Status)

	again, err := store.Resolve(ctx, req.ID, StatusCompensated, "late failure")
	require.ErrorIs(t, err, ErrAlreadyResolved)
	require.Equal(t, StatusCompleted, again.Status)

	_, err = store.Resolve(ctx, uuid.NewString(), StatusCompleted, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryQueueLanes(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	first := newRequest("token")
	other := newRequest("exchange")
	require.NoError(t, q.Publish(ctx, first))
	require.NoError(t, q.Publish(ctx, other))

	got, err := q.Consume(ctx, "token")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = q.Consume(cancelled, "token")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRedisQueueFIFO(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	q := NewRedisQueue(client)
	first, second := newRequest("token"), newRequest("token")
	require.NoError(t, q.Publish(ctx, first))
	require.NoError(t, q.Publish(ctx, second))

	n, err := client.LLen(ctx, OutboxKey("token")).Result()
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	got, err := q.Consume(ctx, "token")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, "100", got.Amount.String())

	got, err = q.Consume(ctx, "token")
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)
}

type fakeExecutor struct{ err error }

func (f fakeExecutor) Execute(context.Context, Request) error { return f.err }

type fakeCompleter struct {
	mu       sync.Mutex
	outcomes map[string]Outcome
	callers  []string
	failures int
	failErr  error
}

func (f *fakeCompleter) CompleteRelay(_ context.Context, caller, id string, outcome Outcome) (Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callers = append(f.callers, caller)
	if f.failures > 0 {
		f.failures--
		return Request{}, f.failErr
	}
	if f.outcomes == nil {
		f.outcomes = map[string]Outcome{}
	}
	f.outcomes[id] = outcome
	return Request{ID: id}, nil
}

func TestWorkerReportsExecutorFailure(t *testing.T) {
	completer := &fakeCompleter{}
	w := NewWorker("token", NewMemoryQueue(), fakeExecutor{err: errors.New("receiver not registered")}, completer, logging.Discard())

	req := newRequest("token")
	w.Handle(context.Background(), req)

	require.Equal(t, Outcome{Success: false, Reason: "receiver not registered"}, completer.outcomes[req.ID])
	require.Equal(t, []string{"token"}, completer.callers)
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	q := NewMemoryQueue()
	completer := &fakeCompleter{}
	w := NewWorker("token", q, fakeExecutor{}, completer, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	req := newRequest("token")
	require.NoError(t, q.Publish(ctx, req))

	require.Eventually(t, func() bool {
		completer.mu.Lock()
		defer completer.mu.Unlock()
		_, ok := completer.outcomes[req.ID]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.True(t, completer.outcomes[req.ID].Success)
}

func TestWorkerRetriesContinuationUntilDelivered(t *testing.T) {
	completer := &fakeCompleter{failures: 3, failErr: errors.New("database unavailable")}
	w := NewWorker("token", NewMemoryQueue(), fakeExecutor{}, completer, logging.Discard())
	w.retryDelay = time.Millisecond

	req := newRequest("token")
	w.Handle(context.Background(), req)

	require.Len(t, completer.callers, 4)
	require.Equal(t, Outcome{Success: true}, completer.outcomes[req.ID])
}

func TestWorkerStopsOnResolvedRelay(t *testing.T) {
	completer := &fakeCompleter{failures: 5, failErr: ErrAlreadyResolved}
	w := NewWorker("token", NewMemoryQueue(), fakeExecutor{}, completer, logging.Discard())
	w.retryDelay = time.Millisecond

	w.Handle(context.Background(), newRequest("token"))
	require.Len(t, completer.callers, 1)
}

func TestWorkerGivesUpWhenContextEnds(t *testing.T) {
	completer := &fakeCompleter{failures: 1 << 30, failErr: errors.New("database unavailable")}
	w := NewWorker("token", NewMemoryQueue(), fakeExecutor{}, completer, logging.Discard())
	w.retryDelay = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Handle(ctx, newRequest("token"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Handle kept retrying after the context ended")
	}
	completer.mu.Lock()
	defer completer.mu.Unlock()
	require.Greater(t, len(completer.callers), 1)
	require.Empty(t, completer.outcomes)
}

package relay

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu     sync.RWMutex
	relays map[string]Request
}

// NewMemoryStore constructs an in-memory relay store for tests and development.
func NewMemoryStore() Store {
	return &memoryStore{relays: make(map[string]Request)}
}

func (s *memoryStore) Create(_ context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relays[req.ID] = req
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.relays[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

func (s *memoryStore) Resolve(_ context.Context, id string, status Status, reason string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.relays[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	if req.Status != StatusPending {
		return req, ErrAlreadyResolved
	}
	req.Status = status
	req.Reason = reason
	req.UpdatedAt = time.Now().UTC()
	s.relays[id] = req
	return req, nil
}

const memoryQueueDepth = 256

// MemoryQueue is a per-counterparty buffered channel outbox.
type MemoryQueue struct {
	mu    sync.Mutex
	lanes map[string]chan Request
}

// NewMemoryQueue builds an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{lanes: make(map[string]chan Request)}
}

func (q *MemoryQueue) lane(counterparty string) chan Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.lanes[counterparty]
	if !ok {
		ch = make(chan Request, memoryQueueDepth)
		q.lanes[counterparty] = ch
	}
	return ch
}

// Publish enqueues req without blocking.
func (q *MemoryQueue) Publish(_ context.Context, req Request) error {
	select {
	case q.lane(req.Counterparty) <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Consume waits for the next request addressed to counterparty.
func (q *MemoryQueue) Consume(ctx context.Context, counterparty string) (Request, error) {
	select {
	case req := <-q.lane(counterparty):
		return req, nil
	case <-ctx.Done():
		return Request{}, ctx.Err()
	}
}

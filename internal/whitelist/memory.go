package whitelist

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type memoryStore struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

// NewMemoryStore builds an in-memory whitelist for tests and development.
func NewMemoryStore() Store {
	return &memoryStore{members: make(map[string]struct{})}
}

func (s *memoryStore) Contains(_ context.Context, identity string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[identity]
	return ok, nil
}

func (s *memoryStore) Add(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[strings.Clone(identity)] = struct{}{}
	return nil
}

func (s *memoryStore) Remove(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, identity)
	return nil
}

func (s *memoryStore) Members(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.members))
	for id := range s.members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

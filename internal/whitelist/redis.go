package whitelist

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "whitelist:"

// RedisStore keeps a ledger's whitelist in a Redis set.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore builds a Redis-backed whitelist for the named ledger.
func NewRedisStore(client *redis.Client, ledgerName string) *RedisStore {
	return &RedisStore{client: client, key: keyPrefix + ledgerName}
}

// Contains checks set membership.
func (s *RedisStore) Contains(ctx context.Context, identity string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key, identity).Result()
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", s.key, err)
	}
	return ok, nil
}

// Add inserts identity into the set.
func (s *RedisStore) Add(ctx context.Context, identity string) error {
	if err := s.client.SAdd(ctx, s.key, identity).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", s.key, err)
	}
	return nil
}

// Remove deletes identity from the set.
func (s *RedisStore) Remove(ctx context.Context, identity string) error {
	if err := s.client.SRem(ctx, s.key, identity).Err(); err != nil {
		return fmt.Errorf("srem %s: %w", s.key, err)
	}
	return nil
}

// Members returns the sorted set contents.
func (s *RedisStore) Members(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", s.key, err)
	}
	sort.Strings(members)
	return members, nil
}

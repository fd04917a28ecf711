package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	outboxPrefix = "relay:outbox:"
	popTimeout   = time.Second
)

// RedisQueue keeps one Redis list per counterparty. External counterparties
// may drain their list directly; in-process ones use Consume.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue builds a Redis-backed relay outbox.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// OutboxKey returns the list key holding requests for counterparty.
func OutboxKey(counterparty string) string {
	return outboxPrefix + counterparty
}

// Publish pushes req onto its counterparty's list.
func (q *RedisQueue) Publish(ctx context.Context, req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode relay %s: %w", req.ID, err)
	}
	if err := q.client.LPush(ctx, OutboxKey(req.Counterparty), payload).Err(); err != nil {
		return fmt.Errorf("enqueue relay %s: %w", req.ID, err)
	}
	return nil
}

// Consume pops the oldest request for counterparty, polling until ctx ends.
func (q *RedisQueue) Consume(ctx context.Context, counterparty string) (Request, error) {
	key := OutboxKey(counterparty)
	for {
		if err := ctx.Err(); err != nil {
			return Request{}, err
		}
		res, err := q.client.BRPop(ctx, popTimeout, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Request{}, ctxErr
			}
			return Request{}, fmt.Errorf("dequeue %s: %w", key, err)
		}
		// BRPOP replies with [key, value].
		var req Request
		if err := json.Unmarshal([]byte(res[1]), &req); err != nil {
			return Request{}, fmt.Errorf("decode relay from %s: %w", key, err)
		}
		return req, nil
	}
}

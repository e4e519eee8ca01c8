package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examhub/internal/model"
)

// RedisPublisher pushes publish events onto a Redis list that the notify
// worker drains with BLPOP.
type RedisPublisher struct {
	rdb   *redis.Client
	queue string
}

// NewRedisPublisher creates a new RedisPublisher for the given queue key.
func NewRedisPublisher(rdb *redis.Client, queue string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, queue: queue}
}

// Publish enqueues one event.
func (p *RedisPublisher) Publish(ctx context.Context, ev model.PublishEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", p.queue, err)
	}
	return nil
}

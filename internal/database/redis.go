package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/config"
)

// NewRedisClient connects to the Redis instance holding the publish queue.
// The read timeout is left to go-redis, which extends it for blocking
// commands such as the notify worker's BLPOP.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opt.DialTimeout = 5 * time.Second

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	queue := config.WorkerKey.PublishNotificationsQueue
	backlog, err := rdb.LLen(ctx, queue).Result()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("inspect %s: %w", queue, err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Str("queue", queue).
		Int64("backlog", backlog).
		Msg("Publish queue connected")

	return rdb, nil
}

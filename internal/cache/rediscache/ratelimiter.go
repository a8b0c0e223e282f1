package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter. With limit 1 it doubles as a
// "once per window" guard (the statement planner uses it that way).
type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return NewRateLimiterWithClient(NewClient(addr))
}

func NewRateLimiterWithClient(c *redis.Client) *RateLimiter {
	return &RateLimiter{c: c}
}

// Allow делает INCR по ключу и продлевает TTL окна при каждом вызове.
// Возвращает (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// Release drops the counter, e.g. when the guarded work failed and may be retried.
func (rl *RateLimiter) Release(ctx context.Context, key string) error {
	if err := rl.c.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "redis ratelimit release")
	}
	return nil
}

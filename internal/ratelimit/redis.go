package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cuterank/internal/cache"
)

// RedisLimiter shares the window across processes. SET NX PX claims the
// window atomically; the key's TTL is the remaining wait.
type RedisLimiter struct {
	client redis.Cmdable
	window time.Duration
}

func NewRedisLimiter(client redis.Cmdable, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, userID int64, now time.Time) (bool, time.Duration, error) {
	key := cache.LimiterKey(userID)
	ok, err := l.client.SetNX(ctx, key, now.UnixMilli(), l.window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit setnx: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit pttl: %w", err)
	}
	if ttl > l.window {
		ttl = l.window
	}
	return false, roundUp(ttl), nil
}

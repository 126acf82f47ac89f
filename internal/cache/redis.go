package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cuterank/internal/config"
)

// NewRedisClient connects and pings. The client is closed again when the
// ping fails.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   "cuterank",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Keys used across packages. Centralised so the worker and API agree.
func LimiterKey(userID int64) string {
	return fmt.Sprintf("ratelimit:%d", userID)
}

func NoticesKey(userID int64) string {
	return fmt.Sprintf("notices:%d", userID)
}

const ReviewStream = "moderation:review"

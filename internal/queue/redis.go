package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cuterank/internal/tasks"
)

// RedisQueue appends tasks to a stream capped near maxLen. Trimming drops
// the oldest entries.
type RedisQueue struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisQueue(client redis.Cmdable, stream string, maxLen int64) *RedisQueue {
	return &RedisQueue{client: client, stream: stream, maxLen: maxLen}
}

func (q *RedisQueue) Push(ctx context.Context, task tasks.Task) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: task.Values(),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", q.stream, err)
	}
	if n, err := q.client.XLen(ctx, q.stream).Result(); err == nil {
		queueDepth.WithLabelValues("redis").Set(float64(n))
	}
	return nil
}

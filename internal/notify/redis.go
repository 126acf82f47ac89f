package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cuterank/internal/cache"
	"cuterank/internal/models"
)

const inboxSize = 50

// RedisNotifier keeps a capped inbox list per user and appends review
// requests to a stream read by the moderation dashboard.
type RedisNotifier struct {
	client redis.Cmdable
}

func NewRedisNotifier(client redis.Cmdable) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) NotifyUser(ctx context.Context, notice models.Notice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	key := cache.NoticesKey(notice.UserID)
	pipe := n.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, inboxSize-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push notice: %w", err)
	}
	return nil
}

func (n *RedisNotifier) RequestReview(ctx context.Context, r models.Review) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	err = n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: cache.ReviewStream,
		Values: map[string]interface{}{"payload": string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("push review: %w", err)
	}
	return nil
}

// Notices returns the newest notices first.
func (n *RedisNotifier) Notices(ctx context.Context, userID int64, limit int) ([]models.Notice, error) {
	raw, err := n.client.LRange(ctx, cache.NoticesKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	out := make([]models.Notice, 0, len(raw))
	for _, item := range raw {
		var notice models.Notice
		if err := json.Unmarshal([]byte(item), &notice); err != nil {
			continue
		}
		out = append(out, notice)
	}
	return out, nil
}

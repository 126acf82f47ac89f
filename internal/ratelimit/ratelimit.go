// Package ratelimit enforces a minimum interval between a user's
// submissions.
package ratelimit

import (
	"context"
	"time"
)

type Limiter interface {
	// Allow records an accepted attempt when ok is true. When ok is false
	// retryAfter is the remaining wait, rounded up to whole seconds.
	Allow(ctx context.Context, userID int64, now time.Time) (ok bool, retryAfter time.Duration, err error)
}

func roundUp(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	s := (d + time.Second - 1) / time.Second
	return s * time.Second
}

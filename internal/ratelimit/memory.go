package ratelimit

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemLimiter keeps the last accepted attempt per user in process memory.
// The read-decide-write sequence for one user runs inside a single
// MapOf.Compute, so concurrent attempts from that user serialize.
type MemLimiter struct {
	window time.Duration
	last   *xsync.MapOf[int64, time.Time]
}

func NewMemLimiter(window time.Duration) *MemLimiter {
	return &MemLimiter{
		window: window,
		last:   xsync.NewMapOf[int64, time.Time](),
	}
}

func (l *MemLimiter) Allow(_ context.Context, userID int64, now time.Time) (bool, time.Duration, error) {
	var (
		ok   bool
		wait time.Duration
	)
	l.last.Compute(userID, func(prev time.Time, loaded bool) (time.Time, bool) {
		if loaded {
			if elapsed := now.Sub(prev); elapsed < l.window {
				wait = roundUp(l.window - elapsed)
				return prev, false
			}
		}
		ok = true
		return now, false
	})
	return ok, wait, nil
}

// Sweep drops users whose last attempt is older than the window. Returns the
// number of evicted entries.
func (l *MemLimiter) Sweep(now time.Time) int {
	evicted := 0
	l.last.Range(func(userID int64, _ time.Time) bool {
		l.last.Compute(userID, func(prev time.Time, loaded bool) (time.Time, bool) {
			if loaded && now.Sub(prev) >= l.window {
				evicted++
				return prev, true
			}
			return prev, !loaded
		})
		return true
	})
	return evicted
}

func (l *MemLimiter) Len() int {
	return l.last.Size()
}

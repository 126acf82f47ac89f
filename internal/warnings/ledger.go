// Package warnings tracks moderation warnings and bans per user.
package warnings

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"cuterank/internal/models"
)

type Store interface {
	Get(ctx context.Context, userID int64) (models.WarningState, error)
	Increment(ctx context.Context, userID int64, threshold int) (models.WarningState, error)
	Ban(ctx context.Context, userID int64, threshold int) (models.WarningState, error)
	Put(ctx context.Context, st models.WarningState) error
}

// Ledger reads through an expiring mirror. The store stays the source of
// truth; the mirror is only written after the store accepted a change.
type Ledger struct {
	store     Store
	threshold int
	mirror    *expirable.LRU[int64, models.WarningState]
}

func NewLedger(store Store, threshold int, mirrorSize int, mirrorTTL time.Duration) *Ledger {
	l := &Ledger{store: store, threshold: threshold}
	if mirrorSize > 0 {
		l.mirror = expirable.NewLRU[int64, models.WarningState](mirrorSize, nil, mirrorTTL)
	}
	return l
}

func (l *Ledger) Threshold() int {
	return l.threshold
}

func (l *Ledger) Get(ctx context.Context, userID int64) (models.WarningState, error) {
	if l.mirror != nil {
		if st, ok := l.mirror.Get(userID); ok {
			return st, nil
		}
	}
	st, err := l.store.Get(ctx, userID)
	if err != nil {
		return models.WarningState{}, fmt.Errorf("warnings get: %w", err)
	}
	l.remember(st)
	return st, nil
}

func (l *Ledger) AddWarning(ctx context.Context, userID int64) (models.WarningState, error) {
	st, err := l.store.Increment(ctx, userID, l.threshold)
	if err != nil {
		l.forget(userID)
		return models.WarningState{}, fmt.Errorf("warnings add: %w", err)
	}
	l.remember(st)
	return st, nil
}

// Reset clears warnings and lifts the ban.
func (l *Ledger) Reset(ctx context.Context, userID int64) (models.WarningState, error) {
	return l.put(ctx, models.WarningState{UserID: userID})
}

// Ban bans a user outright. The count is raised to the threshold so the
// banned flag stays consistent with it.
func (l *Ledger) Ban(ctx context.Context, userID int64) (models.WarningState, error) {
	st, err := l.store.Ban(ctx, userID, l.threshold)
	if err != nil {
		l.forget(userID)
		return models.WarningState{}, fmt.Errorf("warnings ban: %w", err)
	}
	l.remember(st)
	return st, nil
}

func (l *Ledger) put(ctx context.Context, st models.WarningState) (models.WarningState, error) {
	if err := l.store.Put(ctx, st); err != nil {
		l.forget(st.UserID)
		return models.WarningState{}, fmt.Errorf("warnings put: %w", err)
	}
	l.remember(st)
	return st, nil
}

func (l *Ledger) remember(st models.WarningState) {
	if l.mirror != nil {
		l.mirror.Add(st.UserID, st)
	}
}

func (l *Ledger) forget(userID int64) {
	if l.mirror != nil {
		l.mirror.Remove(userID)
	}
}

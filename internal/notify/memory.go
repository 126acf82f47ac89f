package notify

import (
	"context"
	"slices"
	"sync"

	"cuterank/internal/models"
)

// MemNotifier records everything in memory. Used by the memory store driver.
type MemNotifier struct {
	mu      sync.Mutex
	notices map[int64][]models.Notice
	reviews []models.Review
}

func NewMemNotifier() *MemNotifier {
	return &MemNotifier{notices: make(map[int64][]models.Notice)}
}

func (m *MemNotifier) NotifyUser(_ context.Context, n models.Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inbox := append([]models.Notice{n}, m.notices[n.UserID]...)
	if len(inbox) > inboxSize {
		inbox = inbox[:inboxSize]
	}
	m.notices[n.UserID] = inbox
	return nil
}

func (m *MemNotifier) RequestReview(_ context.Context, r models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append(m.reviews, r)
	return nil
}

func (m *MemNotifier) Notices(_ context.Context, userID int64, limit int) ([]models.Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inbox := m.notices[userID]
	if len(inbox) > limit {
		inbox = inbox[:limit]
	}
	return slices.Clone(inbox), nil
}

func (m *MemNotifier) Reviews() []models.Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.reviews)
}

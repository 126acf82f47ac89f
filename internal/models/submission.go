package models

import "time"

type ModerationStatus string

const (
	StatusPending  ModerationStatus = "pending"
	StatusApproved ModerationStatus = "approved"
	StatusRejected ModerationStatus = "rejected"
)

// Submission is one scored image. Its leaderboard position is never
// persisted; see ranking.Ranker.
type Submission struct {
	ID           int64
	UserID       int64
	Username     *string
	TransportRef string
	ImageHash    string
	RawScore     float64
	NSFW         bool
	Status       ModerationStatus
	Flagged      bool
	Filename     *string
	CreatedAt    time.Time
}

func (s Submission) Approved() bool {
	return s.Status == StatusApproved
}

func (s Submission) CachedFile() string {
	if s.Filename == nil {
		return ""
	}
	return *s.Filename
}

func (s Submission) DisplayName() string {
	if s.Username == nil || *s.Username == "" {
		return ""
	}
	return *s.Username
}

// FingerprintEntry indexes one unique piece of content. Insertion order is
// ascending ID.
type FingerprintEntry struct {
	ID         int64
	UserID     int64
	ImageHash  string
	Perceptual *uint64
	CreatedAt  time.Time
}

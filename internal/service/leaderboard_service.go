package service

import (
	"context"
	"errors"
	"fmt"

	"cuterank/internal/models"
	"cuterank/internal/ranking"
)

var ErrRankOutOfRange = errors.New("rank out of range")

type NoticeReader interface {
	Notices(ctx context.Context, userID int64, limit int) ([]models.Notice, error)
}

type LeaderboardEntry struct {
	Place        int    `json:"place"`
	SubmissionID int64  `json:"submissionId"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
}

type LeaderboardService struct {
	ranker  Ranker
	cache   ImageCache
	notices NoticeReader
	scores  ranking.ScorePolicy
	size    int
}

func NewLeaderboardService(ranker Ranker, cache ImageCache, notices NoticeReader, scores ranking.ScorePolicy, size int) *LeaderboardService {
	return &LeaderboardService{ranker: ranker, cache: cache, notices: notices, scores: scores, size: size}
}

func (l *LeaderboardService) Size() int {
	return l.size
}

// Top lists approved submissions by place. Unnamed users are returned with
// an empty Name.
func (l *LeaderboardService) Top(ctx context.Context) ([]LeaderboardEntry, error) {
	subs, err := l.ranker.Collect(ctx, l.size)
	if err != nil {
		return nil, storeErr("leaderboard", err)
	}
	out := make([]LeaderboardEntry, 0, len(subs))
	for i, s := range subs {
		out = append(out, LeaderboardEntry{
			Place:        i + 1,
			SubmissionID: s.ID,
			Name:         s.DisplayName(),
			Score:        l.scores.Display(s.RawScore),
		})
	}
	return out, nil
}

// ImageAt returns the cached image at the 1-based place.
func (l *LeaderboardService) ImageAt(ctx context.Context, place int) ([]byte, error) {
	if place < 1 || place > l.size {
		return nil, ErrRankOutOfRange
	}
	subs, err := l.ranker.Collect(ctx, place)
	if err != nil {
		return nil, storeErr("leaderboard", err)
	}
	if len(subs) < place {
		return nil, fmt.Errorf("place %d: %w", place, ErrNotFound)
	}
	name := subs[place-1].CachedFile()
	if name == "" {
		return nil, fmt.Errorf("place %d has no cached image: %w", place, ErrNotFound)
	}
	data, err := l.cache.Read(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, ErrNotFound)
	}
	return data, nil
}

func (l *LeaderboardService) Notices(ctx context.Context, userID int64, limit int) ([]models.Notice, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	out, err := l.notices.Notices(ctx, userID, limit)
	if err != nil {
		return nil, storeErr("notices", err)
	}
	return out, nil
}

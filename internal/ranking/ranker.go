// Package ranking derives leaderboard positions from stored scores.
package ranking

import (
	"context"
	"fmt"
	"iter"
	"math"

	"cuterank/internal/models"
)

type Store interface {
	CountHigherScore(ctx context.Context, score float64) (int, error)
	Top(ctx context.Context, n int) iter.Seq2[models.Submission, error]
}

type Ranker struct {
	store Store
}

func NewRanker(store Store) *Ranker {
	return &Ranker{store: store}
}

// Rank is 1 plus the number of stored submissions scoring strictly higher,
// regardless of approval. Ties share a rank.
func (r *Ranker) Rank(ctx context.Context, score float64) (int, error) {
	n, err := r.store.CountHigherScore(ctx, score)
	if err != nil {
		return 0, fmt.Errorf("rank: %w", err)
	}
	return n + 1, nil
}

// TopN lists approved, non-NSFW submissions by descending score. The
// sequence is re-evaluated on every range.
func (r *Ranker) TopN(ctx context.Context, n int) iter.Seq2[models.Submission, error] {
	return r.store.Top(ctx, n)
}

// Collect drains TopN into a slice.
func (r *Ranker) Collect(ctx context.Context, n int) ([]models.Submission, error) {
	out := make([]models.Submission, 0, n)
	for s, err := range r.TopN(ctx, n) {
		if err != nil {
			return nil, fmt.Errorf("top %d: %w", n, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ScorePolicy maps raw model output onto the displayed 0..100 scale.
type ScorePolicy struct {
	Min float64
	Max float64
}

func (p ScorePolicy) Display(raw float64) int {
	clamped := math.Min(math.Max(raw, p.Min), p.Max)
	return int(math.Round((clamped - p.Min) / (p.Max - p.Min) * 100))
}

package ranking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuterank/internal/models"
	"cuterank/internal/repository/memstore"
)

func seed(t *testing.T, subs *memstore.Submissions, scores ...float64) []models.Submission {
	t.Helper()
	var out []models.Submission
	for _, s := range scores {
		sub, err := subs.Create(context.Background(), models.Submission{UserID: 1, RawScore: s, Status: models.StatusApproved})
		require.NoError(t, err)
		out = append(out, sub)
	}
	return out
}

func TestRank_CountsStrictlyHigher(t *testing.T) {
	subs := memstore.New().Submissions()
	r := NewRanker(subs)
	ctx := context.Background()

	rank, err := r.Rank(ctx, 72.4)
	require.NoError(t, err)
	assert.Equal(t, 1, rank)

	seed(t, subs, 90, 72.4, 72.4, 10)

	tests := []struct {
		score float64
		want  int
	}{
		{score: 95, want: 1},
		{score: 90, want: 1},
		{score: 72.4, want: 2},
		{score: 50, want: 4},
		{score: 0, want: 5},
	}
	for _, tt := range tests {
		got, err := r.Rank(ctx, tt.score)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "score %v", tt.score)
	}
}

func TestRank_IncludesPendingSubmissions(t *testing.T) {
	subs := memstore.New().Submissions()
	_, err := subs.Create(context.Background(), models.Submission{RawScore: 80})
	require.NoError(t, err)

	rank, err := NewRanker(subs).Rank(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 2, rank)
}

func TestTopN_IsRestartable(t *testing.T) {
	subs := memstore.New().Submissions()
	r := NewRanker(subs)
	ctx := context.Background()
	seeded := seed(t, subs, 10, 30)

	first, err := r.Collect(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{seeded[1].ID, seeded[0].ID}, ids(first))

	more := seed(t, subs, 20)
	second, err := r.Collect(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{seeded[1].ID, more[0].ID, seeded[0].ID}, ids(second))
}

func ids(subs []models.Submission) []int64 {
	var out []int64
	for _, s := range subs {
		out = append(out, s.ID)
	}
	return out
}

func TestScorePolicy_Display(t *testing.T) {
	p := ScorePolicy{Min: 0, Max: 100}
	assert.Equal(t, 100, p.Display(142.0))
	assert.Equal(t, 0, p.Display(-5.0))
	assert.Equal(t, 72, p.Display(72.4))

	wide := ScorePolicy{Min: 0, Max: 10}
	assert.Equal(t, 50, wide.Display(5))
}

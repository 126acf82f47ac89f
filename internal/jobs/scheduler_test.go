package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuterank/internal/config"
	"cuterank/internal/tasks"
)

type recordingQueue struct {
	pushed []tasks.Task
}

func (q *recordingQueue) Push(_ context.Context, t tasks.Task) error {
	q.pushed = append(q.pushed, t)
	return nil
}

type countingSweeper struct{ calls int }

func (s *countingSweeper) Sweep(time.Time) int {
	s.calls++
	return 3
}

type fakeScratch struct {
	maxAge time.Duration
	err    error
}

func (f *fakeScratch) CleanupScratch(_ context.Context, maxAge time.Duration) (int, error) {
	f.maxAge = maxAge
	return 2, f.err
}

func TestScheduler_Jobs(t *testing.T) {
	q := &recordingQueue{}
	sw := &countingSweeper{}
	sc := &fakeScratch{}
	s := NewScheduler(config.JobsConfig{}, q, sw, sc, zerolog.Nop())

	s.enqueueRepair()
	require.Len(t, q.pushed, 1)
	assert.Equal(t, tasks.TypeRepair, q.pushed[0].Type)

	s.sweep()
	assert.Equal(t, 1, sw.calls)
	assert.Equal(t, time.Hour, sc.maxAge)

	sc.err = errors.New("minio down")
	assert.NotPanics(t, s.sweep)
}

func TestScheduler_NilCollaborators(t *testing.T) {
	s := NewScheduler(config.JobsConfig{}, &recordingQueue{}, nil, nil, zerolog.Nop())
	assert.NotPanics(t, s.sweep)
}

func TestScheduler_StartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(config.JobsConfig{RepairSchedule: "every tuesday", SweepSchedule: "0 0 * * * *"}, &recordingQueue{}, nil, nil, zerolog.Nop())
	assert.Error(t, s.Start())

	s = NewScheduler(config.JobsConfig{RepairSchedule: "0 */10 * * * *", SweepSchedule: "0 0 * * * *"}, &recordingQueue{}, nil, nil, zerolog.Nop())
	require.NoError(t, s.Start())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

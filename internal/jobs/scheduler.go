// Package jobs runs the periodic maintenance of the api process.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"cuterank/internal/config"
	"cuterank/internal/queue"
	"cuterank/internal/tasks"
)

// Sweeper drops rate limiter entries whose window has passed.
type Sweeper interface {
	Sweep(now time.Time) int
}

type ScratchCleaner interface {
	CleanupScratch(ctx context.Context, maxAge time.Duration) (int, error)
}

type Scheduler struct {
	cron          *cron.Cron
	cfg           config.JobsConfig
	queue         queue.Queue
	sweeper       Sweeper
	scratch       ScratchCleaner
	scratchMaxAge time.Duration
	log           zerolog.Logger
}

// NewScheduler builds the scheduler. sweeper and scratch may be nil.
func NewScheduler(cfg config.JobsConfig, q queue.Queue, sweeper Sweeper, scratch ScratchCleaner, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:          cron.New(cron.WithSeconds()),
		cfg:           cfg,
		queue:         q,
		sweeper:       sweeper,
		scratch:       scratch,
		scratchMaxAge: time.Hour,
		log:           log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.RepairSchedule, s.enqueueRepair); err != nil {
		return fmt.Errorf("schedule repair: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.sweep); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduled jobs still running at shutdown")
	}
}

func (s *Scheduler) enqueueRepair() {
	if err := s.queue.Push(context.Background(), tasks.Repair()); err != nil {
		s.log.Error().Err(err).Msg("enqueue repair failed")
	}
}

func (s *Scheduler) sweep() {
	if s.sweeper != nil {
		if n := s.sweeper.Sweep(time.Now()); n > 0 {
			s.log.Debug().Int("entries", n).Msg("rate limiter swept")
		}
	}
	if s.scratch == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := s.scratch.CleanupScratch(ctx, s.scratchMaxAge)
	if err != nil {
		s.log.Error().Err(err).Msg("scratch cleanup failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("objects", n).Msg("stale scratch objects removed")
	}
}

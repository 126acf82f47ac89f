package tasks

import (
	"context"

	"github.com/rs/zerolog"
)

type Archiver interface {
	Archive(ctx context.Context, data []byte) error
}

type Repairer interface {
	Repair(ctx context.Context) (int, error)
}

// Processor runs one task at a time. Failures are logged and counted by the
// archive package; they never surface to the queue.
type Processor struct {
	archiver Archiver
	repairer Repairer
	logger   zerolog.Logger
}

func NewProcessor(archiver Archiver, repairer Repairer, logger zerolog.Logger) *Processor {
	return &Processor{
		archiver: archiver,
		repairer: repairer,
		logger:   logger.With().Str("component", "processor").Logger(),
	}
}

func (p *Processor) Handle(ctx context.Context, task Task) error {
	switch task.Type {
	case TypeArchive:
		p.handleArchive(ctx, task)
	case TypeRepair:
		p.handleRepair(ctx)
	default:
		p.logger.Warn().Str("type", string(task.Type)).Msg("unknown task type")
	}
	return nil
}

func (p *Processor) handleArchive(ctx context.Context, task Task) {
	if err := p.archiver.Archive(ctx, task.Data); err != nil {
		p.logger.Warn().Err(err).Int("bytes", len(task.Data)).Msg("archive failed")
	}
}

func (p *Processor) handleRepair(ctx context.Context) {
	repaired, err := p.repairer.Repair(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("cache repair aborted")
		return
	}
	if repaired > 0 {
		p.logger.Info().Int("repaired", repaired).Msg("cache repaired")
	}
}

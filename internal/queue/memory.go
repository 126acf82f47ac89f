package queue

import (
	"context"

	"github.com/rs/zerolog"

	"cuterank/internal/tasks"
)

// MemQueue is a bounded FIFO drained by Run. When full, new tasks are
// dropped and counted.
type MemQueue struct {
	ch     chan tasks.Task
	logger zerolog.Logger
}

func NewMemQueue(capacity int, logger zerolog.Logger) *MemQueue {
	return &MemQueue{
		ch:     make(chan tasks.Task, capacity),
		logger: logger.With().Str("component", "mem-queue").Logger(),
	}
}

func (q *MemQueue) Push(_ context.Context, task tasks.Task) error {
	select {
	case q.ch <- task:
		queueDepth.WithLabelValues("memory").Set(float64(len(q.ch)))
		return nil
	default:
		droppedTotal.WithLabelValues("memory", string(task.Type)).Inc()
		q.logger.Warn().Str("type", string(task.Type)).Msg("queue full, task dropped")
		return ErrFull
	}
}

func (q *MemQueue) Len() int {
	return len(q.ch)
}

// Run handles tasks one at a time until ctx is cancelled.
func (q *MemQueue) Run(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-q.ch:
			queueDepth.WithLabelValues("memory").Set(float64(len(q.ch)))
			if err := h.Handle(ctx, task); err != nil {
				q.logger.Error().Err(err).Str("type", string(task.Type)).Msg("handle task failed")
			}
		}
	}
}

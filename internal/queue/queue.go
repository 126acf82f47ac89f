// Package queue carries background tasks from request handlers to the single
// worker that runs them.
package queue

import (
	"context"
	"errors"

	"cuterank/internal/tasks"
)

var ErrFull = errors.New("queue full")

type Queue interface {
	// Push enqueues without blocking. ErrFull means the task was dropped.
	Push(ctx context.Context, task tasks.Task) error
}

type Handler interface {
	Handle(ctx context.Context, task tasks.Task) error
}

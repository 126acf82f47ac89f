// Package archive mirrors accepted images to long-term storage and repairs
// the local leaderboard image cache.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

type scratchWriter interface {
	Scratch(prefix string, data []byte) (string, error)
}

type Archiver struct {
	uploader Uploader
	scratch  scratchWriter
	logger   zerolog.Logger
}

func NewArchiver(uploader Uploader, scratch scratchWriter, logger zerolog.Logger) *Archiver {
	return &Archiver{
		uploader: uploader,
		scratch:  scratch,
		logger:   logger.With().Str("component", "archiver").Logger(),
	}
}

// Archive writes data to a scratch file, uploads it and removes the file
// whatever the upload outcome.
func (a *Archiver) Archive(ctx context.Context, data []byte) error {
	path, err := a.scratch.Scratch("storage", data)
	if err != nil {
		archiveTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("write scratch: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			a.logger.Warn().Err(err).Str("path", path).Msg("remove scratch")
		}
	}()

	key := time.Now().UTC().Format("2006/01/02/") + filepath.Base(path)
	if err := a.uploader.Upload(ctx, key, path); err != nil {
		archiveTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("upload %s: %w", key, err)
	}
	archiveTotal.WithLabelValues("ok").Inc()
	return nil
}

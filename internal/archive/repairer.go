package archive

import (
	"context"
	"fmt"
	"iter"

	"github.com/rs/zerolog"

	"cuterank/internal/imagecache"
	"cuterank/internal/models"
)

type Store interface {
	Top(ctx context.Context, n int) iter.Seq2[models.Submission, error]
	SetFilename(ctx context.Context, id int64, filename string) error
}

type Fetcher interface {
	FetchOriginal(ctx context.Context, ref string) ([]byte, string, error)
	DiscardScratch(ctx context.Context, scratchRef string) error
}

type Cache interface {
	Exists(name string) bool
	Write(name string, data []byte) error
}

// Repairer makes sure every leaderboard entry has a local image.
type Repairer struct {
	store   Store
	fetcher Fetcher
	cache   Cache
	topN    int
	logger  zerolog.Logger
}

func NewRepairer(store Store, fetcher Fetcher, cache Cache, topN int, logger zerolog.Logger) *Repairer {
	return &Repairer{
		store:   store,
		fetcher: fetcher,
		cache:   cache,
		topN:    topN,
		logger:  logger.With().Str("component", "repairer").Logger(),
	}
}

// Repair refetches missing images for the current top list. A failing item
// is logged and skipped. The returned error only reports a failed listing.
func (r *Repairer) Repair(ctx context.Context) (int, error) {
	var missing []models.Submission
	for s, err := range r.store.Top(ctx, r.topN) {
		if err != nil {
			return 0, fmt.Errorf("list top: %w", err)
		}
		if name := s.CachedFile(); name != "" && r.cache.Exists(name) {
			continue
		}
		missing = append(missing, s)
	}

	repaired := 0
	for _, s := range missing {
		if err := r.repairOne(ctx, s); err != nil {
			repairTotal.WithLabelValues("error").Inc()
			r.logger.Warn().Err(err).Int64("submission_id", s.ID).Msg("repair item failed")
			continue
		}
		repairTotal.WithLabelValues("ok").Inc()
		repaired++
	}
	return repaired, nil
}

func (r *Repairer) repairOne(ctx context.Context, s models.Submission) error {
	data, scratchRef, err := r.fetcher.FetchOriginal(ctx, s.TransportRef)
	if err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}
	defer func() {
		if err := r.fetcher.DiscardScratch(ctx, scratchRef); err != nil {
			r.logger.Debug().Err(err).Str("scratch", scratchRef).Msg("discard scratch")
		}
	}()

	name := s.CachedFile()
	if name == "" {
		name = imagecache.NewName()
	}
	if err := r.cache.Write(name, data); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if s.Filename == nil {
		if err := r.store.SetFilename(ctx, s.ID, name); err != nil {
			return fmt.Errorf("record filename: %w", err)
		}
	}
	return nil
}

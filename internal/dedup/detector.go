// Package dedup matches incoming images against every previously indexed
// image, exactly and perceptually.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"cuterank/internal/fingerprint"
	"cuterank/internal/models"
	"cuterank/internal/repository"
)

type Store interface {
	Reserve(ctx context.Context, e models.FingerprintEntry) (models.FingerprintEntry, bool, error)
	GetByExactHash(ctx context.Context, hash string) (models.FingerprintEntry, error)
	Candidates(ctx context.Context, bands *[fingerprint.BandCount]int32) ([]models.FingerprintEntry, error)
	Delete(ctx context.Context, id int64) error
}

type MatchKind string

const (
	MatchNone  MatchKind = ""
	MatchExact MatchKind = "exact"
	MatchNear  MatchKind = "near"
)

type Result struct {
	Duplicate bool
	OwnerID   int64
	Kind      MatchKind
	// MatchedHash is the exact hash of the indexed entry that matched.
	MatchedHash string
	// EntryID is the entry reserved for novel content.
	EntryID int64
	Hash    string
}

type Detector struct {
	store     Store
	threshold int
	maxPixels int64
}

func NewDetector(store Store, threshold int, maxPixels int64) *Detector {
	return &Detector{store: store, threshold: threshold, maxPixels: maxPixels}
}

// Check reports whether data duplicates indexed content. Novel content is
// indexed before Check returns.
func (d *Detector) Check(ctx context.Context, userID int64, data []byte) (Result, error) {
	exact := fingerprint.Exact(data)

	hit, err := d.store.GetByExactHash(ctx, exact)
	switch {
	case err == nil:
		checksTotal.WithLabelValues(string(MatchExact)).Inc()
		return exactHit(hit, exact), nil
	case !errors.Is(err, repository.ErrFingerprintNotFound):
		return Result{}, fmt.Errorf("exact lookup: %w", err)
	}

	entry := models.FingerprintEntry{UserID: userID, ImageHash: exact}
	if phash, ok := fingerprint.Perceptual(data, d.maxPixels); ok {
		entry.Perceptual = &phash

		match, found, err := d.nearest(ctx, phash)
		if err != nil {
			return Result{}, err
		}
		if found {
			checksTotal.WithLabelValues(string(MatchNear)).Inc()
			return Result{
				Duplicate:   true,
				OwnerID:     match.UserID,
				Kind:        MatchNear,
				MatchedHash: match.ImageHash,
				Hash:        exact,
			}, nil
		}
	}

	saved, inserted, err := d.store.Reserve(ctx, entry)
	if err != nil {
		return Result{}, fmt.Errorf("reserve: %w", err)
	}
	if !inserted {
		// lost a race against identical content
		checksTotal.WithLabelValues(string(MatchExact)).Inc()
		return exactHit(saved, exact), nil
	}

	checksTotal.WithLabelValues("novel").Inc()
	return Result{EntryID: saved.ID, Hash: exact}, nil
}

// nearest returns the earliest indexed entry within the Hamming threshold.
// Below BandCount the lookup is narrowed to entries sharing a band, which
// cannot miss a match within threshold.
func (d *Detector) nearest(ctx context.Context, phash uint64) (models.FingerprintEntry, bool, error) {
	var bands *[fingerprint.BandCount]int32
	if d.threshold < fingerprint.BandCount {
		b := fingerprint.Bands(phash)
		bands = &b
	}

	candidates, err := d.store.Candidates(ctx, bands)
	if err != nil {
		return models.FingerprintEntry{}, false, fmt.Errorf("near lookup: %w", err)
	}
	candidatesScanned.Observe(float64(len(candidates)))

	for _, c := range candidates {
		if c.Perceptual == nil {
			continue
		}
		if fingerprint.Distance(phash, *c.Perceptual) <= d.threshold {
			return c, true, nil
		}
	}
	return models.FingerprintEntry{}, false, nil
}

// Release drops a reservation made by Check for a submission that was
// abandoned before anything was persisted.
func (d *Detector) Release(ctx context.Context, entryID int64) error {
	if entryID == 0 {
		return nil
	}
	if err := d.store.Delete(ctx, entryID); err != nil && !errors.Is(err, repository.ErrFingerprintNotFound) {
		return fmt.Errorf("release fingerprint: %w", err)
	}
	return nil
}

func exactHit(e models.FingerprintEntry, hash string) Result {
	return Result{
		Duplicate:   true,
		OwnerID:     e.UserID,
		Kind:        MatchExact,
		MatchedHash: e.ImageHash,
		Hash:        hash,
	}
}

// Package transport keeps the original bytes of every accepted submission so
// they can be refetched later by opaque reference.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

type Objects interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	Remove(ctx context.Context, bucket, key string) error
	ListOlder(ctx context.Context, bucket, prefix string, cutoff time.Time) ([]string, error)
}

const scratchPrefix = "fetch/"

// Transport stores originals in one bucket. Fetches go through a scratch
// copy in a second bucket, which callers discard when done.
type Transport struct {
	objects   Objects
	originals string
	scratch   string
	logger    zerolog.Logger
}

func New(objects Objects, originalsBucket, scratchBucket string, logger zerolog.Logger) *Transport {
	return &Transport{
		objects:   objects,
		originals: originalsBucket,
		scratch:   scratchBucket,
		logger:    logger.With().Str("component", "transport").Logger(),
	}
}

func (t *Transport) StoreOriginal(ctx context.Context, userID int64, data []byte, contentType string) (string, error) {
	ref := fmt.Sprintf("%d/%s", userID, ksuid.New().String())
	if err := t.objects.Put(ctx, t.originals, ref, data, contentType); err != nil {
		return "", err
	}
	return ref, nil
}

// FetchOriginal returns the bytes behind ref along with the scratch
// reference that must be passed to DiscardScratch.
func (t *Transport) FetchOriginal(ctx context.Context, ref string) ([]byte, string, error) {
	scratchRef := scratchPrefix + ksuid.New().String()
	if err := t.objects.Copy(ctx, t.originals, ref, t.scratch, scratchRef); err != nil {
		return nil, "", err
	}
	data, err := t.objects.Get(ctx, t.scratch, scratchRef)
	if err != nil {
		if rerr := t.objects.Remove(ctx, t.scratch, scratchRef); rerr != nil {
			t.logger.Warn().Err(rerr).Str("scratch", scratchRef).Msg("discard after failed fetch")
		}
		return nil, "", err
	}
	return data, scratchRef, nil
}

func (t *Transport) DiscardScratch(ctx context.Context, scratchRef string) error {
	return t.objects.Remove(ctx, t.scratch, scratchRef)
}

func (t *Transport) DeleteOriginal(ctx context.Context, ref string) error {
	return t.objects.Remove(ctx, t.originals, ref)
}

// CleanupScratch removes scratch copies older than maxAge that a failed
// repair left behind.
func (t *Transport) CleanupScratch(ctx context.Context, maxAge time.Duration) (int, error) {
	keys, err := t.objects.ListOlder(ctx, t.scratch, scratchPrefix, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range keys {
		if err := t.objects.Remove(ctx, t.scratch, key); err != nil {
			t.logger.Warn().Err(err).Str("scratch", key).Msg("cleanup scratch")
			continue
		}
		removed++
	}
	return removed, nil
}

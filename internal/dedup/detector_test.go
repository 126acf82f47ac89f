package dedup

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuterank/internal/fingerprint"
	"cuterank/internal/models"
	"cuterank/internal/repository/memstore"
)

const base = uint64(0x00000000FFFFFFFF)

// imageFor renders an 8x8 image whose perceptual hash is exactly hash. The
// hash must have between 1 and 63 bits set.
func imageFor(t *testing.T, hash uint64) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := color.RGBA{A: 255}
			if hash&(1<<(63-(y*8+x))) != 0 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	data := buf.Bytes()

	got, ok := fingerprint.Perceptual(data, 0)
	require.True(t, ok)
	require.Equal(t, hash, got)
	return data
}

func flip(h uint64, bits ...int) uint64 {
	for _, b := range bits {
		h ^= 1 << b
	}
	return h
}

func newDetector(threshold int) (*Detector, *memstore.Fingerprints) {
	fps := memstore.New().Fingerprints()
	return NewDetector(fps, threshold, 0), fps
}

func TestCheck_ExactDuplicateReportsOriginalOwner(t *testing.T) {
	d, _ := newDetector(5)
	ctx := context.Background()
	data := imageFor(t, base)

	res, err := d.Check(ctx, 1, data)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.NotZero(t, res.EntryID)

	for range 3 {
		res, err = d.Check(ctx, 2, data)
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Equal(t, int64(1), res.OwnerID)
		assert.Equal(t, MatchExact, res.Kind)
	}
}

func TestCheck_NearDuplicateBoundary(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		flips     []int
		want      bool
	}{
		{name: "distance 5 matches", threshold: 5, flips: []int{40, 45, 50, 55, 60}, want: true},
		{name: "distance 6 never matches", threshold: 5, flips: []int{35, 40, 45, 50, 55, 60}},
		{name: "one bit", threshold: 5, flips: []int{63}, want: true},
		{name: "full scan at threshold 6", threshold: 6, flips: []int{35, 40, 45, 50, 55, 60}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newDetector(tt.threshold)
			ctx := context.Background()

			_, err := d.Check(ctx, 1, imageFor(t, base))
			require.NoError(t, err)

			res, err := d.Check(ctx, 2, imageFor(t, flip(base, tt.flips...)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Duplicate)
			if tt.want {
				assert.Equal(t, MatchNear, res.Kind)
				assert.Equal(t, int64(1), res.OwnerID)
			}
		})
	}
}

func TestCheck_NearMatchPrefersEarliestEntry(t *testing.T) {
	d, fps := newDetector(5)
	ctx := context.Background()

	far := flip(base, 0, 1, 2, 3)
	exact := base
	_, _, err := fps.Reserve(ctx, models.FingerprintEntry{UserID: 10, ImageHash: "first", Perceptual: &far})
	require.NoError(t, err)
	_, _, err = fps.Reserve(ctx, models.FingerprintEntry{UserID: 20, ImageHash: "second", Perceptual: &exact})
	require.NoError(t, err)

	res, err := d.Check(ctx, 3, imageFor(t, base))
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, int64(10), res.OwnerID)
	assert.Equal(t, "first", res.MatchedHash)
}

func TestCheck_UndecodableUsesExactOnly(t *testing.T) {
	d, _ := newDetector(5)
	ctx := context.Background()

	res, err := d.Check(ctx, 1, []byte("plain bytes"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	res, err = d.Check(ctx, 2, []byte("plain bytes"))
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, int64(1), res.OwnerID)
}

func TestRelease(t *testing.T) {
	d, _ := newDetector(5)
	ctx := context.Background()
	data := imageFor(t, base)

	res, err := d.Check(ctx, 1, data)
	require.NoError(t, err)
	require.NoError(t, d.Release(ctx, res.EntryID))
	require.NoError(t, d.Release(ctx, res.EntryID))

	res, err = d.Check(ctx, 2, data)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
}

// Package fingerprint derives the exact and perceptual fingerprints used for
// duplicate detection.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	gridSize = 8
	Bits     = gridSize * gridSize
)

// Exact returns the hex SHA-256 of the raw bytes.
func Exact(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DefaultMaxPixels bounds decoding when no budget is configured.
const DefaultMaxPixels int64 = 40_000_000

var ErrTooLarge = errors.New("image exceeds pixel budget")

// CheckPixels reads only the image header and returns ErrTooLarge when the
// decoded image would hold more than maxPixels pixels. Headers that cannot be
// parsed are left to the decoder. maxPixels <= 0 selects DefaultMaxPixels.
func CheckPixels(data []byte, maxPixels int64) error {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return ErrTooLarge
	}
	return nil
}

// Perceptual computes an average hash over an 8x8 downscale. Each cell is
// one bit, set when its brightness exceeds the mean brightness of the grid.
// Cells are taken row-major with the first cell in the most significant bit.
// ok is false when the bytes cannot be decoded as an image or the image holds
// more than maxPixels pixels.
func Perceptual(data []byte, maxPixels int64) (hash uint64, ok bool) {
	if CheckPixels(data, maxPixels) != nil {
		return 0, false
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, false
	}
	return FromImage(src), true
}

func FromImage(src image.Image) uint64 {
	dst := image.NewRGBA(image.Rect(0, 0, gridSize, gridSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var cells [Bits]float64
	var total float64
	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			off := dst.PixOffset(x, y)
			r, g, b := dst.Pix[off], dst.Pix[off+1], dst.Pix[off+2]
			v := (float64(r) + float64(g) + float64(b)) / 3
			cells[y*gridSize+x] = v
			total += v
		}
	}
	mean := total / Bits

	var hash uint64
	for i, v := range cells {
		if v > mean {
			hash |= 1 << (Bits - 1 - i)
		}
	}
	return hash
}

func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// BandCount is the number of disjoint bit ranges a hash is split into for
// candidate lookup. Two hashes within distance BandCount-1 agree exactly on
// at least one band.
const BandCount = 6

var bandWidths = [BandCount]uint{11, 11, 11, 11, 10, 10}

// Bands splits a hash into BandCount values, most significant bits first.
func Bands(hash uint64) [BandCount]int32 {
	var out [BandCount]int32
	shift := uint(Bits)
	for i, w := range bandWidths {
		shift -= w
		out[i] = int32((hash >> shift) & (1<<w - 1))
	}
	return out
}

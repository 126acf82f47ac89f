package sniffer

import (
	"bytes"
	"errors"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
)

var ErrUnsupported = errors.New("unsupported image type")

type Result struct {
	Type MediaType
	MIME string
}

// Detect identifies a submission by its magic bytes. Only formats the
// fingerprinting decoders understand are accepted.
func Detect(data []byte) (Result, error) {
	switch {
	case isJPEG(data):
		return Result{Type: TypeJPEG, MIME: "image/jpeg"}, nil
	case isPNG(data):
		return Result{Type: TypePNG, MIME: "image/png"}, nil
	case isGIF(data):
		return Result{Type: TypeGIF, MIME: "image/gif"}, nil
	case isWEBP(data):
		return Result{Type: TypeWEBP, MIME: "image/webp"}, nil
	}
	return Result{}, ErrUnsupported
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func isPNG(head []byte) bool {
	return bytes.HasPrefix(head, pngMagic)
}

func isGIF(head []byte) bool {
	return bytes.HasPrefix(head, []byte("GIF87a")) || bytes.HasPrefix(head, []byte("GIF89a"))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}

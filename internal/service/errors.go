package service

import "errors"

var (
	ErrInvalidImage          = errors.New("invalid image")
	ErrScoringUnavailable    = errors.New("scoring unavailable")
	ErrClassifierUnavailable = errors.New("nsfw classifier unavailable")
	ErrStoreUnavailable      = errors.New("store unavailable")
	ErrTransportUnavailable  = errors.New("transport unavailable")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("not found")
)

package brassbook

import "errors"

// Upload is one file received for comparison.
type Upload struct {
	Name    string
	TrackID string
	Data    []byte
}

var (
	ErrEmptyUpload    = errors.New("uploaded file is empty")
	ErrUploadTooLarge = errors.New("uploaded file is too large")
	ErrNotAudio       = errors.New("uploaded file is not audio")
	ErrTrackNotFound  = errors.New("track not found")
)

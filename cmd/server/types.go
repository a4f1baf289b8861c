package main

import (
	"time"

	"github.com/brassbook/brassbook/pkg/models"
)

// Multipart field names of POST /api/v1/compare_melodies.
const (
	ReferenceField = "file1"
	RecordingField = "file2"
	TrackIDField   = "track_id"
)

// DefaultComparisonLimit caps GET /api/v1/comparisons without ?limit.
const DefaultComparisonLimit = 50

// TrackDTO represents a catalog track in API responses
type TrackDTO struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	AudioURL     string `json:"audio_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

func newTrackDTO(t models.Track) TrackDTO {
	return TrackDTO{
		ID:           t.ID,
		Title:        t.Title,
		Artist:       t.Artist,
		AudioURL:     t.AudioURL,
		ThumbnailURL: t.ThumbnailURL,
	}
}

// ListTracksResponse is the response for GET /api/v1/tracks
type ListTracksResponse struct {
	Tracks []TrackDTO `json:"tracks"`
	Count  int        `json:"count"`
}

type ComparisonDTO struct {
	ID            string    `json:"id"`
	TrackID       string    `json:"track_id,omitempty"`
	ReferenceName string    `json:"reference_name"`
	RecordingName string    `json:"recording_name"`
	Integral      float64   `json:"integral"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListComparisonsResponse is the response for GET /api/v1/comparisons
type ListComparisonsResponse struct {
	Comparisons []ComparisonDTO `json:"comparisons"`
	Count       int             `json:"count"`
}

// MetricsResponse provides server health and database metrics
type MetricsResponse struct {
	Status        string `json:"status"`
	DatabasePath  string `json:"database_path"`
	TrackCount    int    `json:"track_count"`
	SampleRate    int    `json:"sample_rate"`
	MaxUploadSize int64  `json:"max_upload_size"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

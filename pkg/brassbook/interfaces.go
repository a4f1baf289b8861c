package brassbook

import (
	"context"

	"github.com/brassbook/brassbook/pkg/brassbook/melody"
	"github.com/brassbook/brassbook/pkg/models"
)

type Service interface {
	// CompareMelodies scores recording against reference.
	CompareMelodies(ctx context.Context, reference, recording Upload) (melody.Result, error)
	// CompareFiles is CompareMelodies for files already on disk.
	CompareFiles(ctx context.Context, referencePath, recordingPath string) (melody.Result, error)
	ImportTracks(tracks []models.Track) error
	ListTracks() ([]models.Track, error)
	GetTrack(id string) (*models.Track, error)
	ListComparisons(limit int) ([]models.Comparison, error)
	Close() error
}

type Storage interface {
	ReplaceTracks(tracks []models.Track) error
	ListTracks() ([]models.Track, error)
	GetTrack(id string) (*models.Track, error)
	RecordComparison(c models.Comparison) (string, error)
	ListComparisons(limit int) ([]models.Comparison, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

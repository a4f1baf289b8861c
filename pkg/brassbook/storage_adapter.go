package brassbook

import (
	"errors"

	"github.com/brassbook/brassbook/pkg/brassbook/storage"
	"github.com/brassbook/brassbook/pkg/models"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) ReplaceTracks(tracks []models.Track) error {
	rows := make([]storage.Track, len(tracks))
	for i, t := range tracks {
		rows[i] = storage.Track{
			ID:           t.ID,
			Title:        t.Title,
			Artist:       t.Artist,
			AudioURL:     t.AudioURL,
			ThumbnailURL: t.ThumbnailURL,
		}
	}
	return s.db.ReplaceTracks(rows)
}

func (s *storageAdapter) ListTracks() ([]models.Track, error) {
	rows, err := s.db.ListTracks()
	if err != nil {
		return nil, err
	}
	tracks := make([]models.Track, len(rows))
	for i, r := range rows {
		tracks[i] = trackFromRow(r)
	}
	return tracks, nil
}

func (s *storageAdapter) GetTrack(id string) (*models.Track, error) {
	row, err := s.db.GetTrack(id)
	if errors.Is(err, storage.ErrTrackNotFound) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, err
	}
	t := trackFromRow(*row)
	return &t, nil
}

func (s *storageAdapter) RecordComparison(c models.Comparison) (string, error) {
	return s.db.RecordComparison(storage.Comparison{
		ID:            c.ID,
		TrackID:       c.TrackID,
		ReferenceName: c.ReferenceName,
		RecordingName: c.RecordingName,
		Integral:      c.Integral,
		CreatedAt:     c.CreatedAt,
	})
}

func (s *storageAdapter) ListComparisons(limit int) ([]models.Comparison, error) {
	rows, err := s.db.ListComparisons(limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Comparison, len(rows))
	for i, r := range rows {
		out[i] = models.Comparison{
			ID:            r.ID,
			TrackID:       r.TrackID,
			ReferenceName: r.ReferenceName,
			RecordingName: r.RecordingName,
			Integral:      r.Integral,
			CreatedAt:     r.CreatedAt,
		}
	}
	return out, nil
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

func trackFromRow(r storage.Track) models.Track {
	return models.Track{
		ID:           r.ID,
		Title:        r.Title,
		Artist:       r.Artist,
		AudioURL:     r.AudioURL,
		ThumbnailURL: r.ThumbnailURL,
	}
}

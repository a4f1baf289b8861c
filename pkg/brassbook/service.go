package brassbook

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brassbook/brassbook/pkg/brassbook/audio"
	"github.com/brassbook/brassbook/pkg/brassbook/melody"
	"github.com/brassbook/brassbook/pkg/logger"
	"github.com/brassbook/brassbook/pkg/models"
	"github.com/brassbook/brassbook/pkg/utils"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

// brassbookService is the default implementation of the Service interface.
type brassbookService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &brassbookService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// CompareMelodies validates both uploads, stores them in the temp dir for
// the duration of the comparison and records the outcome in the history.
func (s *brassbookService) CompareMelodies(ctx context.Context, reference, recording Upload) (melody.Result, error) {
	if err := s.validate("file1", reference); err != nil {
		return melody.Result{}, err
	}
	if err := s.validate("file2", recording); err != nil {
		return melody.Result{}, err
	}

	refPath, err := utils.WriteTempFile(s.config.TempDir, reference.Name, reference.Data)
	if err != nil {
		return melody.Result{}, fmt.Errorf("saving reference: %w", err)
	}
	defer os.Remove(refPath)

	recPath, err := utils.WriteTempFile(s.config.TempDir, recording.Name, recording.Data)
	if err != nil {
		return melody.Result{}, fmt.Errorf("saving recording: %w", err)
	}
	defer os.Remove(recPath)

	res, err := s.compare(ctx, refPath, recPath)
	if err != nil {
		return melody.Result{}, err
	}
	s.record(reference.TrackID, reference.Name, recording.Name, res)
	return res, nil
}

func (s *brassbookService) CompareFiles(ctx context.Context, referencePath, recordingPath string) (melody.Result, error) {
	res, err := s.compare(ctx, referencePath, recordingPath)
	if err != nil {
		return melody.Result{}, err
	}
	s.record("", filepath.Base(referencePath), filepath.Base(recordingPath), res)
	return res, nil
}

func (s *brassbookService) compare(ctx context.Context, refPath, recPath string) (melody.Result, error) {
	start := time.Now()

	var (
		ref, rec         []float64
		refRate, recRate int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ref, refRate, err = s.loadSamples(gctx, refPath)
		if err != nil {
			return fmt.Errorf("loading reference: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		rec, recRate, err = s.loadSamples(gctx, recPath)
		if err != nil {
			return fmt.Errorf("loading recording: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return melody.Result{}, err
	}

	res, err := melody.CompareSamples(ref, refRate, rec, recRate, s.config.Melody)
	if err != nil {
		return melody.Result{}, fmt.Errorf("comparing melodies: %w", err)
	}

	s.log.Infof("Compared %s with %s: integral=%.2f (%s)",
		filepath.Base(refPath), filepath.Base(recPath), res.Integral, time.Since(start).Round(time.Millisecond))
	return res, nil
}

// loadSamples decodes path to mono samples at the file's own rate, or at the
// configured rate when one is set. WAV files that need no resampling are read
// directly; everything else goes through ffmpeg.
func (s *brassbookService) loadSamples(ctx context.Context, path string) ([]float64, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	if mimetype.Detect(data).Is("audio/wav") {
		samples, rate, err := audio.DecodeWAV(bytes.NewReader(data))
		if err == nil && (s.config.SampleRate <= 0 || rate == s.config.SampleRate) {
			return samples, rate, nil
		}
		if err != nil {
			s.log.Debugf("Falling back to ffmpeg for %s: %v", filepath.Base(path), err)
		}
	}

	wavPath, err := audio.ConvertToMonoWAV(ctx, path, s.config.TempDir, audio.ConvertWAVConfig{
		SampleRate: s.config.SampleRate,
		FFmpegPath: s.config.FFmpegPath,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("audio conversion failed: %w", err)
	}
	defer os.Remove(wavPath)

	return audio.ReadWavAsFloat64(wavPath)
}

func (s *brassbookService) validate(field string, u Upload) error {
	if len(u.Data) == 0 {
		return fmt.Errorf("%s: %w", field, ErrEmptyUpload)
	}
	if s.config.MaxUploadSize > 0 && int64(len(u.Data)) > s.config.MaxUploadSize {
		return fmt.Errorf("%s is %d bytes, limit %d: %w", field, len(u.Data), s.config.MaxUploadSize, ErrUploadTooLarge)
	}
	if mt := mimetype.Detect(u.Data); !isAudio(mt) {
		return fmt.Errorf("%s has type %s: %w", field, mt.String(), ErrNotAudio)
	}
	return nil
}

// isAudio accepts audio types and the containers browsers record into.
func isAudio(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		t := m.String()
		if strings.HasPrefix(t, "audio/") || strings.HasPrefix(t, "video/webm") || strings.HasPrefix(t, "application/ogg") {
			return true
		}
	}
	return false
}

func (s *brassbookService) record(trackID, refName, recName string, res melody.Result) {
	_, err := s.storage.RecordComparison(models.Comparison{
		TrackID:       trackID,
		ReferenceName: refName,
		RecordingName: recName,
		Integral:      res.Integral,
	})
	if err != nil {
		s.log.Warnf("Failed to record comparison: %v", err)
	}
}

// ImportTracks replaces the stored catalog with tracks, keeping their order.
func (s *brassbookService) ImportTracks(tracks []models.Track) error {
	if err := s.storage.ReplaceTracks(tracks); err != nil {
		return fmt.Errorf("failed to import tracks: %w", err)
	}
	s.log.Infof("Imported %d tracks", len(tracks))
	return nil
}

func (s *brassbookService) ListTracks() ([]models.Track, error) {
	return s.storage.ListTracks()
}

func (s *brassbookService) GetTrack(id string) (*models.Track, error) {
	return s.storage.GetTrack(id)
}

func (s *brassbookService) ListComparisons(limit int) ([]models.Comparison, error) {
	return s.storage.ListComparisons(limit)
}

// Close releases all resources held by the service.
func (s *brassbookService) Close() error {
	return s.storage.Close()
}

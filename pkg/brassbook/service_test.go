package brassbook

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/brassbook/brassbook/pkg/brassbook/audio"
	"github.com/brassbook/brassbook/pkg/brassbook/melody"
	"github.com/brassbook/brassbook/pkg/logger"
	"github.com/brassbook/brassbook/pkg/models"
)

// setupTestService creates a test service with a temporary database
func setupTestService(t *testing.T, opts ...Option) Service {
	t.Helper()

	tmpDir := t.TempDir()
	opts = append([]Option{
		WithDBPath(filepath.Join(tmpDir, "test_service.sqlite3")),
		WithTempDir(filepath.Join(tmpDir, "uploads")),
		WithLogger(logger.Discard()),
	}, opts...)

	service, err := NewService(opts...)
	if err != nil {
		t.Fatalf("Failed to create test service: %v", err)
	}
	t.Cleanup(func() {
		service.Close()
	})
	return service
}

// toneWAV renders one second per tone as a 16-bit mono WAV at the default rate.
func toneWAV(t *testing.T, freqs ...float64) []byte {
	t.Helper()
	return toneWAVAt(t, audio.DefaultSampleRate, freqs...)
}

func toneWAVAt(t *testing.T, rate int, freqs ...float64) []byte {
	t.Helper()

	var pcm []byte
	for _, f := range freqs {
		for i := 0; i < rate; i++ {
			v := int16(0.6 * math.MaxInt16 * math.Sin(2*math.Pi*f*float64(i)/float64(rate)))
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(v))
		}
	}
	data, err := audio.EncodePCM16(pcm, rate, 1)
	if err != nil {
		t.Fatalf("EncodePCM16 failed: %v", err)
	}
	return data
}

func TestNewService(t *testing.T) {
	service := setupTestService(t)

	s, ok := service.(*brassbookService)
	if !ok {
		t.Fatalf("unexpected service type %T", service)
	}
	if s.storage == nil || s.log == nil {
		t.Fatal("Expected storage and logger to be set")
	}
	if s.config.MaxUploadSize != DefaultMaxUploadSize {
		t.Errorf("Expected default upload limit, got %d", s.config.MaxUploadSize)
	}
}

func TestCompareMelodiesIdentical(t *testing.T) {
	service := setupTestService(t)
	wav := toneWAV(t, 300, 900, 300)

	res, err := service.CompareMelodies(context.Background(),
		Upload{Name: "ref.wav", TrackID: "scale", Data: wav},
		Upload{Name: "take.wav", Data: wav},
	)
	if err != nil {
		t.Fatalf("CompareMelodies failed: %v", err)
	}
	if res.Integral != 1 {
		t.Errorf("Expected integral 1 for identical audio, got %v", res.Integral)
	}

	history, err := service.ListComparisons(10)
	if err != nil {
		t.Fatalf("ListComparisons failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 comparison in history, got %d", len(history))
	}
	if history[0].TrackID != "scale" || history[0].RecordingName != "take.wav" {
		t.Errorf("Unexpected history entry %+v", history[0])
	}
}

func TestCompareMelodiesKeepsNativeRate(t *testing.T) {
	service := setupTestService(t)
	ref := toneWAVAt(t, 44100, 400, 800, 400)
	take := toneWAVAt(t, 44100, 400, 600, 600)

	got, err := service.CompareMelodies(context.Background(),
		Upload{Name: "ref.wav", Data: ref},
		Upload{Name: "take.wav", Data: take},
	)
	if err != nil {
		t.Fatalf("CompareMelodies failed: %v", err)
	}

	refSamples, refRate, err := audio.DecodeWAV(bytes.NewReader(ref))
	if err != nil {
		t.Fatalf("DecodeWAV(ref) failed: %v", err)
	}
	takeSamples, takeRate, err := audio.DecodeWAV(bytes.NewReader(take))
	if err != nil {
		t.Fatalf("DecodeWAV(take) failed: %v", err)
	}
	if refRate != 44100 || takeRate != 44100 {
		t.Fatalf("Expected 44100 Hz fixtures, got %d and %d", refRate, takeRate)
	}

	want, err := melody.CompareSamples(refSamples, refRate, takeSamples, takeRate, melody.DefaultConfig())
	if err != nil {
		t.Fatalf("CompareSamples failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected analysis at 44100 Hz %+v, got %+v", want, got)
	}
}

func TestCompareMelodiesValidation(t *testing.T) {
	service := setupTestService(t, WithMaxUploadSize(64<<10))
	wav := toneWAV(t, 440, 440)
	small := toneWAV(t, 440)

	tests := []struct {
		name      string
		reference []byte
		recording []byte
		want      error
	}{
		{"empty reference", nil, small, ErrEmptyUpload},
		{"empty recording", small, []byte{}, ErrEmptyUpload},
		{"oversize", wav, small, ErrUploadTooLarge},
		{"text upload", small, []byte("definitely not audio, just some words"), ErrNotAudio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CompareMelodies(context.Background(),
				Upload{Name: "a", Data: tt.reference},
				Upload{Name: "b", Data: tt.recording},
			)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTrackCatalog(t *testing.T) {
	service := setupTestService(t)

	tracks := []models.Track{
		{ID: "2", Title: "Second", AudioURL: "/music/2.mp3"},
		{ID: "1", Title: "First", AudioURL: "/music/1.mp3"},
	}
	if err := service.ImportTracks(tracks); err != nil {
		t.Fatalf("ImportTracks failed: %v", err)
	}

	got, err := service.ListTracks()
	if err != nil {
		t.Fatalf("ListTracks failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "1" {
		t.Errorf("Expected catalog order preserved, got %+v", got)
	}

	track, err := service.GetTrack("1")
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if track.Title != "First" {
		t.Errorf("Expected 'First', got %q", track.Title)
	}

	if _, err := service.GetTrack("404"); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Expected ErrTrackNotFound, got %v", err)
	}
}

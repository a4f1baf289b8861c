// Package melody scores how closely a recorded performance follows a
// reference melody. Both signals are reduced to a per-frame dominant band in
// the low mel range, the frames are folded into notes, and the notes are
// compared for rhythm, pitch and loudness.
package melody

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptyAudio = errors.New("audio contains no samples")
	ErrSilent     = errors.New("audio is silent after trimming")
)

type Config struct {
	NMels int
	// Mel bands [BandLow, BandHigh) carry the melody.
	BandLow, BandHigh int
	// TimeFactor is the number of characteristic values per second.
	TimeFactor float64
	TrimDB     float64

	LoudnessThreshold float64
	RhythmThreshold   float64

	// WindowSeconds is the span each reported characteristic covers.
	WindowSeconds float64
}

func DefaultConfig() Config {
	return Config{
		NMels:             64,
		BandLow:           4,
		BandHigh:          9,
		TimeFactor:        4,
		TrimDB:            14,
		LoudnessThreshold: 0.25,
		RhythmThreshold:   0.25,
		WindowSeconds:     2,
	}
}

// Melody is the frame-wise reduction of one signal. Each frame holds
// band + round(peak dB)/100, or 0 when the frame is below 0 dB in every band.
type Melody struct {
	Frames []float64
	// MinNoteFrames is the shortest run that counts as a note.
	MinNoteFrames float64
}

// Result is the outcome of a comparison. It travels as the JSON array
// [integral, rhythm, height, volume, average].
type Result struct {
	Integral float64
	Rhythm   []int
	Height   []int
	Volume   []int
	Average  []float64
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{
		r.Integral,
		nonNil(r.Rhythm),
		nonNil(r.Height),
		nonNil(r.Volume),
		nonNil(r.Average),
	})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("comparison result: %w", err)
	}
	if len(parts) != 5 {
		return fmt.Errorf("comparison result: expected 5 elements, got %d", len(parts))
	}
	var out Result
	targets := []any{&out.Integral, &out.Rhythm, &out.Height, &out.Volume, &out.Average}
	for i, target := range targets {
		if err := json.Unmarshal(parts[i], target); err != nil {
			return fmt.Errorf("comparison result element %d: %w", i, err)
		}
	}
	*r = out
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Extract reduces mono samples to a Melody.
func Extract(samples []float64, sampleRate int, cfg Config) (Melody, error) {
	if len(samples) == 0 {
		return Melody{}, ErrEmptyAudio
	}
	if sampleRate <= 0 {
		return Melody{}, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if cfg.BandLow < 0 || cfg.BandHigh > cfg.NMels || cfg.BandLow >= cfg.BandHigh {
		return Melody{}, fmt.Errorf("invalid band range [%d, %d) for %d mels", cfg.BandLow, cfg.BandHigh, cfg.NMels)
	}

	trimmed := trimSilence(samples, cfg.TrimDB)
	if len(trimmed) == 0 {
		return Melody{}, ErrSilent
	}

	spec := melDB(trimmed, sampleRate, cfg.NMels)
	duration := float64(len(trimmed)) / float64(sampleRate)

	frames := make([]float64, len(spec))
	for t, row := range spec {
		bands := row[cfg.BandLow:cfg.BandHigh]
		best, peak := 0, bands[0]
		quiet := true
		for i, v := range bands {
			if v >= 0 {
				quiet = false
			}
			if v > peak {
				best, peak = i, v
			}
		}
		if quiet {
			continue
		}
		frames[t] = float64(best) + math.RoundToEven(peak)/100
	}

	return Melody{
		Frames:        frames,
		MinNoteFrames: float64(len(spec)) / (duration * cfg.TimeFactor),
	}, nil
}

// Compare scores perf against ref. Degenerate note tables yield a zero
// Result rather than an error.
func Compare(ref, perf Melody, cfg Config) Result {
	refNotes := extractNotes(ref.Frames, ref.MinNoteFrames)
	perfNotes := extractNotes(perf.Frames, perf.MinNoteFrames)

	refFrames := append([]float64(nil), ref.Frames...)
	perfFrames := append([]float64(nil), perf.Frames...)
	refFrames, perfFrames = alignNotes(&refNotes, &perfNotes, refFrames, perfFrames)

	res, err := score(refNotes, perfNotes, refFrames, perfFrames, cfg)
	if err != nil {
		return Result{Rhythm: []int{}, Height: []int{}, Volume: []int{}, Average: []float64{}}
	}
	return res
}

func score(ref, perf notes, refFrames, perfFrames []float64, cfg Config) (Result, error) {
	refLevels := levels(refFrames)
	perfLevels := levels(perfFrames)

	loud, err := loudnessErrors(ref.lengths, perf.lengths, refLevels, perfLevels, cfg.LoudnessThreshold)
	if err != nil {
		return Result{}, err
	}
	rhythm, err := rhythmErrors(ref.lengths, perf.lengths, cfg.RhythmThreshold)
	if err != nil {
		return Result{}, err
	}
	pitch := pitchErrors(ref.bands, perf.bands, perf.lengths)

	total := make([]int, 0, len(rhythm)+len(pitch))
	total = append(total, rhythm...)
	total = append(total, pitch...)

	return Result{
		Integral: integralScore(total),
		Rhythm:   windowed(rhythm, cfg.WindowSeconds, cfg.TimeFactor),
		Height:   windowed(pitch, cfg.WindowSeconds, cfg.TimeFactor),
		Volume:   windowed(loud, cfg.WindowSeconds, cfg.TimeFactor),
		Average:  relativeVolume(perfLevels),
	}, nil
}

// CompareSamples runs Extract on both signals and then Compare.
func CompareSamples(ref []float64, refRate int, perf []float64, perfRate int, cfg Config) (Result, error) {
	refMelody, err := Extract(ref, refRate, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("reference melody: %w", err)
	}
	perfMelody, err := Extract(perf, perfRate, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("performance melody: %w", err)
	}
	return Compare(refMelody, perfMelody, cfg), nil
}

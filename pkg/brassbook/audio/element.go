package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	beepwav "github.com/faiface/beep/wav"
	"github.com/gabriel-vasile/mimetype"
)

const resampleQuality = 4

var ErrNoMedia = errors.New("no media loaded")

// SourceFetcher resolves a track's audio source into its encoded bytes.
type SourceFetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// Output is where decoded audio ends up: the speaker in the CLI, a fake in
// tests.
type Output interface {
	SampleRate() beep.SampleRate
	Play(s beep.Streamer)
	Lock()
	Unlock()
}

// SpeakerOutput drives the default sound card through beep/speaker.
type SpeakerOutput struct {
	rate beep.SampleRate
}

// NewSpeakerOutput initializes the speaker once for the process.
func NewSpeakerOutput(rate beep.SampleRate, latency time.Duration) (*SpeakerOutput, error) {
	if err := speaker.Init(rate, rate.N(latency)); err != nil {
		return nil, fmt.Errorf("initializing speaker: %w", err)
	}
	return &SpeakerOutput{rate: rate}, nil
}

func (s *SpeakerOutput) SampleRate() beep.SampleRate { return s.rate }
func (s *SpeakerOutput) Play(st beep.Streamer)       { speaker.Play(st) }
func (s *SpeakerOutput) Lock()                       { speaker.Lock() }
func (s *SpeakerOutput) Unlock()                     { speaker.Unlock() }

// Element is a media element backed by beep: one loaded source, a pause
// control and a resampler that carries both the playback rate and the pitch
// offset.
type Element struct {
	mu    sync.Mutex
	out   Output
	fetch SourceFetcher

	stream    beep.StreamSeekCloser
	format    beep.Format
	ctrl      *beep.Ctrl
	resampler *beep.Resampler
	sink      *holdStreamer
	attached  bool

	rate  float64
	pitch float64
}

func NewElement(out Output, fetch SourceFetcher) *Element {
	return &Element{
		out:   out,
		fetch: fetch,
		rate:  1,
		sink:  &holdStreamer{},
	}
}

// Load fetches and decodes src. The new media starts paused at zero.
func (e *Element) Load(ctx context.Context, src string) error {
	data, err := e.fetch.Fetch(ctx, src)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", src, err)
	}

	stream, format, err := decode(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", src, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.out.Lock()
	old := e.stream
	e.stream = stream
	e.format = format
	e.ctrl = &beep.Ctrl{Streamer: stream, Paused: true}
	e.resampler = beep.ResampleRatio(resampleQuality, e.ratio(), e.ctrl)
	e.sink.s = e.resampler
	e.out.Unlock()

	if old != nil {
		old.Close()
	}
	if !e.attached {
		e.out.Play(e.sink)
		e.attached = true
	}
	return nil
}

func (e *Element) Play() error  { return e.setPaused(false) }
func (e *Element) Pause() error { return e.setPaused(true) }

func (e *Element) setPaused(paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctrl == nil {
		return ErrNoMedia
	}
	e.out.Lock()
	e.ctrl.Paused = paused
	e.out.Unlock()
	return nil
}

// Paused reports whether the media is paused. No media counts as paused.
func (e *Element) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctrl == nil {
		return true
	}
	e.out.Lock()
	defer e.out.Unlock()
	return e.ctrl.Paused
}

func (e *Element) Seek(pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return ErrNoMedia
	}

	n := e.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	if last := e.stream.Len(); n > last {
		n = last
	}

	e.out.Lock()
	defer e.out.Unlock()
	if err := e.stream.Seek(n); err != nil {
		return fmt.Errorf("seeking: %w", err)
	}
	// The resampler buffers ahead; rebuild it so playback resumes at n.
	e.resampler = beep.ResampleRatio(resampleQuality, e.ratio(), e.ctrl)
	e.sink.s = e.resampler
	return nil
}

func (e *Element) SetPlaybackRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("invalid playback rate %v", rate)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = rate
	e.applyRatio()
	return nil
}

// SetPitch shifts the pitch by semitones. beep has no time-stretcher, so the
// shift is applied varispeed style on top of the playback rate.
func (e *Element) SetPitch(semitones float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pitch = semitones
	e.applyRatio()
	return nil
}

func (e *Element) PlaybackRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

func (e *Element) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return 0
	}
	e.out.Lock()
	defer e.out.Unlock()
	return e.format.SampleRate.D(e.stream.Position())
}

func (e *Element) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return 0
	}
	return e.format.SampleRate.D(e.stream.Len())
}

// Close releases the decoded stream and silences the sink.
func (e *Element) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return nil
	}
	e.out.Lock()
	e.sink.s = nil
	stream := e.stream
	e.stream, e.ctrl, e.resampler = nil, nil, nil
	e.out.Unlock()
	return stream.Close()
}

func (e *Element) ratio() float64 {
	r := e.rate * math.Pow(2, e.pitch/12)
	if e.format.SampleRate != 0 && e.out.SampleRate() != 0 {
		r *= float64(e.format.SampleRate) / float64(e.out.SampleRate())
	}
	return r
}

func (e *Element) applyRatio() {
	if e.resampler == nil {
		return
	}
	e.out.Lock()
	e.resampler.SetRatio(e.ratio())
	e.out.Unlock()
}

// holdStreamer keeps its slot in the speaker mixer across track changes and
// pads with silence once the current media runs out.
type holdStreamer struct {
	s beep.Streamer
}

func (h *holdStreamer) Stream(samples [][2]float64) (int, bool) {
	n := 0
	if h.s != nil {
		n, _ = h.s.Stream(samples)
	}
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

func (h *holdStreamer) Err() error {
	if h.s == nil {
		return nil
	}
	return h.s.Err()
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

func decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	rc := readSeekNopCloser{bytes.NewReader(data)}
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("audio/wav"):
		return beepwav.Decode(rc)
	case mt.Is("audio/mpeg"):
		return mp3.Decode(rc)
	}
	return nil, beep.Format{}, fmt.Errorf("unsupported media type %s: expected WAV or MP3", mt.String())
}

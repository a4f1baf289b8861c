package audio

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"
)

type fakeOutput struct {
	mu      sync.Mutex
	rate    beep.SampleRate
	playing []beep.Streamer
}

func (f *fakeOutput) SampleRate() beep.SampleRate { return f.rate }
func (f *fakeOutput) Play(s beep.Streamer)        { f.playing = append(f.playing, s) }
func (f *fakeOutput) Lock()                       { f.mu.Lock() }
func (f *fakeOutput) Unlock()                     { f.mu.Unlock() }

// pull drains n frames through everything registered with the output, the
// way the speaker goroutine would.
func (f *fakeOutput) pull(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([][2]float64, n)
	for _, s := range f.playing {
		s.Stream(buf)
	}
}

type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(_ context.Context, src string) ([]byte, error) {
	data, ok := m[src]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func newTestElement(t *testing.T) (*Element, *fakeOutput) {
	t.Helper()
	out := &fakeOutput{rate: 8000}
	el := NewElement(out, mapFetcher{
		"one.wav": sineWAV(t, 8000, 2, 440),
		"two.wav": sineWAV(t, 8000, 1, 220),
	})
	if err := el.Load(context.Background(), "one.wav"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Cleanup(func() { el.Close() })
	return el, out
}

func TestElementLoadStartsPaused(t *testing.T) {
	el, out := newTestElement(t)

	if got := el.Duration(); got != 2*time.Second {
		t.Errorf("Duration = %v, want 2s", got)
	}
	if !el.Paused() {
		t.Error("Freshly loaded media should be paused")
	}

	out.pull(800)
	if got := el.Position(); got != 0 {
		t.Errorf("Paused media advanced to %v", got)
	}
	if len(out.playing) != 1 {
		t.Errorf("Expected one sink registered, got %d", len(out.playing))
	}
}

func TestElementPlayAdvancesPosition(t *testing.T) {
	el, out := newTestElement(t)

	if err := el.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	out.pull(4000)

	if got := el.Position(); got < 400*time.Millisecond {
		t.Errorf("Position after 0.5s of output = %v", got)
	}
}

func TestElementSeekClampsToLength(t *testing.T) {
	el, _ := newTestElement(t)

	if err := el.Seek(time.Second); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if got := el.Position(); got != time.Second {
		t.Errorf("Position = %v, want 1s", got)
	}

	if err := el.Seek(time.Minute); err != nil {
		t.Fatalf("Seek past end failed: %v", err)
	}
	if got := el.Position(); got != 2*time.Second {
		t.Errorf("Position = %v, want clamp to 2s", got)
	}
}

func TestElementReloadKeepsSingleSink(t *testing.T) {
	el, out := newTestElement(t)

	if err := el.Load(context.Background(), "two.wav"); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if got := el.Duration(); got != time.Second {
		t.Errorf("Duration = %v, want 1s", got)
	}
	if len(out.playing) != 1 {
		t.Errorf("Reload registered %d sinks, want 1", len(out.playing))
	}
}

func TestElementRateAndPitch(t *testing.T) {
	el, _ := newTestElement(t)

	if err := el.SetPlaybackRate(1.5); err != nil {
		t.Fatalf("SetPlaybackRate failed: %v", err)
	}
	if got := el.PlaybackRate(); got != 1.5 {
		t.Errorf("PlaybackRate = %v, want 1.5", got)
	}
	if err := el.SetPlaybackRate(0); err == nil {
		t.Error("Expected error for zero rate")
	}

	el.SetPitch(12)
	if got := el.ratio(); math.Abs(got-3.0) > 1e-9 {
		t.Errorf("ratio with rate 1.5 and +12 semitones = %v, want 3", got)
	}
}

func TestElementWithoutMedia(t *testing.T) {
	el := NewElement(&fakeOutput{rate: 8000}, mapFetcher{})

	if err := el.Play(); !errors.Is(err, ErrNoMedia) {
		t.Errorf("Play without media: got %v, want ErrNoMedia", err)
	}
	if err := el.Load(context.Background(), "missing.wav"); err == nil {
		t.Error("Expected fetch error")
	}
	if err := el.Close(); err != nil {
		t.Errorf("Close without media: %v", err)
	}
}

func TestDecodeSniffsContainer(t *testing.T) {
	stream, format, err := decode(sineWAV(t, 8000, 1, 440))
	if err != nil {
		t.Fatalf("decode WAV: %v", err)
	}
	defer stream.Close()
	if format.SampleRate != 8000 || stream.Len() != 8000 {
		t.Errorf("Unexpected WAV stream: rate %d, %d frames", format.SampleRate, stream.Len())
	}

	if _, _, err := decode([]byte("plain text, not a recording")); err == nil {
		t.Error("Expected error for text input")
	}
}

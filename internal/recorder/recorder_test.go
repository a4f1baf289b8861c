package recorder

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/brassbook/brassbook/pkg/brassbook/audio"
	"github.com/brassbook/brassbook/pkg/logger"
)

type fakeStream struct {
	chunks chan []byte
	closed atomic.Bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{chunks: make(chan []byte)}
}

func (f *fakeStream) Format() Format { return Format{SampleRate: 8000, Channels: 1} }

func (f *fakeStream) Read(ctx context.Context) ([]byte, error) {
	select {
	case c := <-f.chunks:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeStream) Close() error {
	f.closed.Store(true)
	return nil
}

type fakeSource struct {
	stream *fakeStream
	err    error
	opens  int
}

func (f *fakeSource) Open(context.Context) (Stream, error) {
	f.opens++
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func newTestRecorder() (*Recorder, *fakeSource) {
	src := &fakeSource{stream: newFakeStream()}
	return New(src, logger.Discard()), src
}

func TestStopWithoutChunks(t *testing.T) {
	r, src := newTestRecorder()

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !r.IsRecording() {
		t.Fatal("Expected recording state")
	}

	blob, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !blob.Empty() {
		t.Errorf("Expected empty blob, got %d bytes", len(blob.Data))
	}
	if r.IsRecording() {
		t.Error("Expected idle after Stop")
	}
	if !src.stream.closed.Load() {
		t.Error("Expected stream to be released")
	}
}

func TestStopConcatenatesChunks(t *testing.T) {
	r, src := newTestRecorder()
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	src.stream.chunks <- []byte{0x00, 0x40, 0x00, 0x40}
	src.stream.chunks <- []byte{0x00, 0xC0}

	blob, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if blob.MIMEType != "audio/wav" {
		t.Errorf("Unexpected MIME type %q", blob.MIMEType)
	}

	samples, rate, err := audio.DecodeWAV(bytes.NewReader(blob.Data))
	if err != nil {
		t.Fatalf("Blob is not a valid WAV: %v", err)
	}
	if rate != 8000 {
		t.Errorf("Expected 8000 Hz, got %d", rate)
	}
	want := []float64{0.5, 0.5, -0.5}
	if len(samples) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(samples))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, samples[i], want[i])
		}
	}
}

func TestStartPermissionDenied(t *testing.T) {
	src := &fakeSource{err: ErrPermissionDenied}
	r := New(src, logger.Discard())

	err := r.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied, got %v", err)
	}
	if r.IsRecording() {
		t.Error("Recorder must stay idle after denial")
	}
	if src.opens != 1 {
		t.Errorf("Expected a single open attempt, got %d", src.opens)
	}
}

func TestStateErrors(t *testing.T) {
	r, _ := newTestRecorder()

	if _, err := r.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop while idle: expected ErrNotRecording, got %v", err)
	}
	if err := r.Abort(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Abort while idle: expected ErrNotRecording, got %v", err)
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("Expected ErrAlreadyRecording, got %v", err)
	}
	r.Abort()
}

func TestAbortReleasesStream(t *testing.T) {
	r, src := newTestRecorder()
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.stream.chunks <- []byte{1, 2}

	if err := r.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if !src.stream.closed.Load() || r.IsRecording() {
		t.Error("Expected stream closed and recorder idle")
	}

	// A fresh recording starts from nothing.
	src.stream = newFakeStream()
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	blob, err := r.Stop()
	if err != nil || !blob.Empty() {
		t.Errorf("Expected empty blob after abort, got %d bytes, err %v", len(blob.Data), err)
	}
}

func TestStartContextCancelDoesNotStopRecording(t *testing.T) {
	r, src := newTestRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	src.stream.chunks <- []byte{0, 0}
	blob, err := r.Stop()
	if err != nil || blob.Empty() {
		t.Errorf("Expected captured audio, got %d bytes, err %v", len(blob.Data), err)
	}
}

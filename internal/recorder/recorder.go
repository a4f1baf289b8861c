// Package recorder captures microphone audio into a single WAV blob.
//
// A Recorder is either idle or recording. Start opens a Source and reads its
// stream on a background goroutine; Stop joins the reader, releases the
// stream and returns everything captured as one Blob.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/brassbook/brassbook/pkg/brassbook"
	"github.com/brassbook/brassbook/pkg/brassbook/audio"
	"github.com/brassbook/brassbook/pkg/logger"
)

const MIMEType = "audio/wav"

var (
	ErrPermissionDenied = errors.New("microphone access denied")
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

// Format describes the 16-bit little-endian PCM a stream delivers.
type Format struct {
	SampleRate int
	Channels   int
}

type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream delivers PCM chunks until it is closed. Read returns io.EOF once
// the stream has ended on its own.
type Stream interface {
	Format() Format
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

type Blob struct {
	MIMEType string
	Data     []byte
}

func (b Blob) Empty() bool { return len(b.Data) == 0 }

type Recorder struct {
	src Source
	log brassbook.Logger

	mu      sync.Mutex
	stream  Stream
	chunks  [][]byte
	cancel  context.CancelFunc
	done    chan struct{}
	readErr error
}

func New(src Source, log brassbook.Logger) *Recorder {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Recorder{src: src, log: log}
}

func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream != nil
}

// Start opens the source and begins collecting chunks. A refused microphone
// leaves the recorder idle and returns an error wrapping ErrPermissionDenied.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream != nil {
		return ErrAlreadyRecording
	}

	stream, err := r.src.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("opening microphone: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.stream = stream
	r.chunks = nil
	r.readErr = nil
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.readLoop(loopCtx, stream, r.done)
	r.log.Debugf("Recording started (%d Hz, %d ch)", stream.Format().SampleRate, stream.Format().Channels)
	return nil
}

func (r *Recorder) readLoop(ctx context.Context, stream Stream, done chan struct{}) {
	defer close(done)
	for {
		chunk, err := stream.Read(ctx)
		if len(chunk) > 0 {
			buf := make([]byte, len(chunk))
			copy(buf, chunk)
			r.mu.Lock()
			r.chunks = append(r.chunks, buf)
			r.mu.Unlock()
		}
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				r.mu.Lock()
				r.readErr = err
				r.mu.Unlock()
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// finish stops the reader, releases the stream and returns the captured
// chunks. The recorder is idle afterwards.
func (r *Recorder) finish() (Format, [][]byte, error) {
	r.mu.Lock()
	if r.stream == nil {
		r.mu.Unlock()
		return Format{}, nil, ErrNotRecording
	}
	stream, cancel, done := r.stream, r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
	closeErr := stream.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	chunks, readErr := r.chunks, r.readErr
	r.stream, r.chunks, r.readErr, r.cancel, r.done = nil, nil, nil, nil, nil

	if closeErr != nil {
		r.log.Warnf("Closing microphone stream: %v", closeErr)
	}
	return stream.Format(), chunks, readErr
}

// Stop ends the recording and returns it as a WAV blob. With no captured
// chunks the blob is empty and the error nil.
func (r *Recorder) Stop() (Blob, error) {
	format, chunks, readErr := r.finish()
	if errors.Is(readErr, ErrNotRecording) {
		return Blob{}, readErr
	}
	if readErr != nil {
		r.log.Warnf("Microphone stream failed mid-recording: %v", readErr)
	}

	blob := Blob{MIMEType: MIMEType}
	if len(chunks) == 0 {
		return blob, readErr
	}

	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	pcm := make([]byte, 0, size)
	for _, c := range chunks {
		pcm = append(pcm, c...)
	}
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}

	data, err := audio.EncodePCM16(pcm, format.SampleRate, format.Channels)
	if err != nil {
		return Blob{}, fmt.Errorf("encoding recording: %w", err)
	}
	blob.Data = data
	r.log.Debugf("Recording stopped: %d chunks, %d bytes", len(chunks), len(data))
	return blob, readErr
}

// Abort releases the microphone and discards what was captured.
func (r *Recorder) Abort() error {
	_, _, err := r.finish()
	if errors.Is(err, ErrNotRecording) {
		return err
	}
	return nil
}

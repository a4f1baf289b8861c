package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const (
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 4096
)

// PortAudioSource records 16-bit mono PCM from the default input device.
type PortAudioSource struct {
	SampleRate      int
	FramesPerBuffer int
}

func NewPortAudioSource() *PortAudioSource {
	return &PortAudioSource{SampleRate: DefaultSampleRate, FramesPerBuffer: DefaultFramesPerBuffer}
}

func (s *PortAudioSource) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	buf := make([]int16, s.FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.SampleRate), len(buf), buf)
	if err != nil {
		portaudio.Terminate()
		if isDenied(err) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		if isDenied(err) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}

	return &portAudioStream{
		stream: stream,
		buf:    buf,
		format: Format{SampleRate: s.SampleRate, Channels: 1},
	}, nil
}

// isDenied reports errors PortAudio raises when the OS withholds the input
// device.
func isDenied(err error) bool {
	return errors.Is(err, portaudio.DeviceUnavailable) ||
		errors.Is(err, portaudio.InvalidDevice) ||
		errors.Is(err, portaudio.InvalidChannelCount)
}

type portAudioStream struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
	format Format
	closed bool
}

func (p *portAudioStream) Format() Format { return p.format }

// Read blocks for one buffer of audio.
func (p *portAudioStream) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("stream closed")
	}

	if err := p.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, err
	}
	out := make([]byte, 2*len(p.buf))
	for i, v := range p.buf {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out, nil
}

func (p *portAudioStream) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	stopErr := p.stream.Stop()
	closeErr := p.stream.Close()
	termErr := portaudio.Terminate()
	return errors.Join(stopErr, closeErr, termErr)
}

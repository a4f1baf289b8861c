package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const pcmFormat = 1

var ErrNotWAV = errors.New("not a WAV/RIFF file")

// ReadWavAsFloat64 reads a PCM WAV file and returns mono samples normalized
// to [-1, 1] together with the sample rate. Multi-channel input is averaged.
func ReadWavAsFloat64(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	return DecodeWAV(f)
}

// DecodeWAV is ReadWavAsFloat64 over an in-memory or already open source.
func DecodeWAV(r io.ReadSeeker) ([]float64, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, ErrNotWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding PCM samples: %w", err)
	}
	if dec.WavAudioFormat != pcmFormat {
		return nil, 0, fmt.Errorf("unsupported WAV audio format %d: only PCM supported", dec.WavAudioFormat)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		return nil, 0, errors.New("WAV header reports zero channels")
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}

	return toMonoFloat64(buf.Data, channels, bitDepth), int(dec.SampleRate), nil
}

// toMonoFloat64 averages interleaved integer frames into one normalized
// channel.
func toMonoFloat64(data []int, channels, bitDepth int) []float64 {
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	frames := len(data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(data[i*channels+c])
		}
		out[i] = sum / float64(channels) * scale
	}
	return out
}

// EncodePCM16 wraps raw little-endian 16-bit PCM into a WAV container.
func EncodePCM16(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid PCM format: %d Hz, %d channels", sampleRate, channels)
	}
	if len(pcm)%2 != 0 {
		return nil, errors.New("PCM16 payload has an odd number of bytes")
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}

	ws := &writeSeekBuffer{}
	enc := wav.NewEncoder(ws, sampleRate, 16, channels, pcmFormat)
	err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing WAV: %w", err)
	}
	return ws.Bytes(), nil
}

// writeSeekBuffer is the in-memory io.WriteSeeker the WAV encoder needs to
// patch chunk sizes after writing samples.
type writeSeekBuffer struct {
	buf []byte
	pos int
}

func (w *writeSeekBuffer) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	w.pos = int(abs)
	return abs, nil
}

func (w *writeSeekBuffer) Bytes() []byte {
	return bytes.Clone(w.buf)
}

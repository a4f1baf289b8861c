package audio

import (
	"reflect"
	"testing"
)

func TestFFmpegArgsKeepsSourceRate(t *testing.T) {
	got := ffmpegArgs("in.mp3", "out.wav", 0)
	want := []string{"-y", "-v", "quiet", "-i", "in.mp3", "-ac", "1", "-c:a", "pcm_s16le", "out.wav"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ffmpegArgs = %v, want %v", got, want)
	}
}

func TestFFmpegArgsResamplesWhenAsked(t *testing.T) {
	got := ffmpegArgs("in.mp3", "out.wav", 16000)
	want := []string{"-y", "-v", "quiet", "-i", "in.mp3", "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le", "out.wav"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ffmpegArgs = %v, want %v", got, want)
	}
}

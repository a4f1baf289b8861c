package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/brassbook/brassbook/pkg/utils"
)

// DefaultSampleRate is the rate generated and recorded PCM is written at.
// Conversion keeps the source rate unless ConvertWAVConfig.SampleRate is set.
const DefaultSampleRate = 22050

type ConvertWAVConfig struct {
	// SampleRate resamples the output when positive; zero keeps the source rate.
	SampleRate int
	// FFmpegPath overrides the ffmpeg binary looked up in PATH.
	FFmpegPath string
	Timeout    time.Duration
}

// ConvertToMonoWAV decodes any container ffmpeg understands (mp3, webm/opus,
// ogg, wav) into a 16-bit mono PCM WAV inside outputDir.
func ConvertToMonoWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ConvertWAVConfig,
) (string, error) {

	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	baseName := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, baseName+"."+utils.GenerateUUID()[:8]+".mono.wav")

	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, cfg.FFmpegPath, ffmpegArgs(inputPath, tmpPath, cfg.SampleRate)...)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}

// ffmpegArgs downmixes to 16-bit mono, resampling only when rate is positive.
func ffmpegArgs(inputPath, outputPath string, rate int) []string {
	args := []string{
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ac", "1",
	}
	if rate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", rate))
	}
	return append(args, "-c:a", "pcm_s16le", outputPath)
}

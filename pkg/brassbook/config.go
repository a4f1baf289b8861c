package brassbook

import (
	"github.com/brassbook/brassbook/pkg/brassbook/melody"
)

// DefaultMaxUploadSize caps each uploaded file at 10 MiB.
const DefaultMaxUploadSize = 10 << 20

type Config struct {
	DBPath        string
	TempDir       string
	SampleRate    int
	FFmpegPath    string
	MaxUploadSize int64
	Melody        melody.Config
	Logger        Logger
	Storage       Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

// WithSampleRate fixes the analysis rate. The default of zero analyses every
// file at its own sample rate.
func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithFFmpegPath(path string) Option {
	return func(c *Config) {
		c.FFmpegPath = path
	}
}

func WithMaxUploadSize(n int64) Option {
	return func(c *Config) {
		c.MaxUploadSize = n
	}
}

func WithMelodyConfig(cfg melody.Config) Option {
	return func(c *Config) {
		c.Melody = cfg
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:        "brassbook.sqlite3",
		TempDir:       "/tmp/brassbook",
		MaxUploadSize: DefaultMaxUploadSize,
		Melody:        melody.DefaultConfig(),
	}
}

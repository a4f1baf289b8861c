package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brassbook/brassbook/internal/catalog"
	"github.com/brassbook/brassbook/pkg/brassbook"
	"github.com/brassbook/brassbook/pkg/logger"
)

var (
	port           int
	dbPath         string
	tempDir        string
	sampleRate     int
	ffmpegPath     string
	allowedOrigins string
	apiTokens      string
	catalogPath    string
	maxUploadSize  int64
	compareTimeout time.Duration
	logLevel       string
	logRequests    bool
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("BRASSBOOK_DB_PATH", "brassbook.sqlite3"), "Path to SQLite database")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("BRASSBOOK_TEMP_DIR", "/tmp/brassbook"), "Temporary directory")
	flag.IntVar(&sampleRate, "rate", 0, "Fixed analysis sample rate in Hz (0 keeps each file's own rate)")
	flag.StringVar(&ffmpegPath, "ffmpeg", getEnvOrDefault("BRASSBOOK_FFMPEG", "ffmpeg"), "Path to the ffmpeg binary")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	flag.StringVar(&apiTokens, "tokens", os.Getenv("BRASSBOOK_API_TOKENS"), "Comma-separated accepted bearer tokens or bcrypt hashes")
	flag.StringVar(&catalogPath, "catalog", os.Getenv("BRASSBOOK_CATALOG"), "JSON track catalog imported at startup")
	flag.Int64Var(&maxUploadSize, "max-upload", brassbook.DefaultMaxUploadSize, "Maximum size of each uploaded file in bytes")
	flag.DurationVar(&compareTimeout, "compare-timeout", 2*time.Minute, "Time limit for a single comparison")
	flag.StringVar(&logLevel, "log-level", getEnvOrDefault("BRASSBOOK_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	flag.BoolVar(&logRequests, "log-requests", false, "Log every HTTP request")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	flag.Parse()

	if level, ok := logger.ParseLevel(logLevel); ok {
		logger.SetLevel(level)
	} else {
		log.Fatalf("Unknown log level %q", logLevel)
	}

	// Parse allowed origins
	origins := []string{"*"}
	if allowedOrigins != "*" {
		origins = splitList(allowedOrigins)
	}

	service, err := brassbook.NewService(
		brassbook.WithDBPath(dbPath),
		brassbook.WithTempDir(tempDir),
		brassbook.WithSampleRate(sampleRate),
		brassbook.WithFFmpegPath(ffmpegPath),
		brassbook.WithMaxUploadSize(maxUploadSize),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	if catalogPath != "" {
		cat, err := catalog.Load(catalogPath)
		if err != nil {
			log.Fatalf("Failed to load catalog: %v", err)
		}
		if err := service.ImportTracks(cat.Tracks()); err != nil {
			log.Fatalf("Failed to import catalog: %v", err)
		}
	}

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		TempDir:        tempDir,
		SampleRate:     sampleRate,
		AllowedOrigins: origins,
		Tokens:         splitList(apiTokens),
		MaxUploadSize:  maxUploadSize,
		CompareTimeout: compareTimeout,
		LogRequests:    logRequests,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(service, config)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

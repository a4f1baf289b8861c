package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brassbook/brassbook/internal/assets"
	"github.com/brassbook/brassbook/internal/catalog"
	"github.com/brassbook/brassbook/internal/credentials"
	"github.com/brassbook/brassbook/internal/submit"
	"github.com/brassbook/brassbook/pkg/brassbook"
	"github.com/brassbook/brassbook/pkg/logger"
)

// Global flags
var (
	serverURL   string
	catalogPath string
	token       string
	legacyPath  bool
	dbPath      string
	tempDir     string
	sampleRate  int
	logLevel    string
)

func init() {
	// Global flags that can be used with any command
	flag.StringVar(&serverURL, "server", getEnvOrDefault("BRASSBOOK_SERVER", "http://localhost:8080"), "Base URL of the comparison server")
	flag.StringVar(&catalogPath, "catalog", os.Getenv("BRASSBOOK_CATALOG"), "Local JSON track catalog (default: fetch from the server)")
	flag.StringVar(&token, "token", "", "Access token (default: $BRASSBOOK_TOKEN or the stored token)")
	flag.BoolVar(&legacyPath, "legacy", false, "Post comparisons to /v1/compare_melodies")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("BRASSBOOK_DB_PATH", "brassbook.sqlite3"), "Path to the SQLite database file")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("BRASSBOOK_TEMP_DIR", "/tmp/brassbook"), "Directory for temporary audio conversion files")
	flag.IntVar(&sampleRate, "rate", 0, "Fixed sample rate for local comparisons (0 keeps each file's own rate)")
	flag.StringVar(&logLevel, "log-level", getEnvOrDefault("BRASSBOOK_LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// createService creates a local comparison service with configured options
func createService() (brassbook.Service, error) {
	return brassbook.NewService(
		brassbook.WithDBPath(dbPath),
		brassbook.WithTempDir(tempDir),
		brassbook.WithSampleRate(sampleRate),
	)
}

// loadCatalog reads the catalog file when one is given and asks the server
// otherwise.
func loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	if catalogPath != "" {
		return catalog.Load(catalogPath)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	return catalog.Fetch(ctx, client, serverURL)
}

// newFetcher resolves relative track sources against wherever the catalog
// came from. s3:// sources use MinIO when MINIO_ENDPOINT is set.
func newFetcher() (*assets.Fetcher, error) {
	f := &assets.Fetcher{HTTP: &http.Client{Timeout: 30 * time.Second}}
	if catalogPath != "" {
		f.Root = filepath.Dir(catalogPath)
	} else {
		f.BaseURL = serverURL
	}

	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		store, err := assets.NewMinioStore(assets.MinioConfig{
			Endpoint:  endpoint,
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Region:    os.Getenv("MINIO_REGION"),
			UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		})
		if err != nil {
			return nil, err
		}
		f.Objects = store
	}
	return f, nil
}

func tokenSource() submit.TokenSource {
	if token != "" {
		return credentials.Static(token)
	}
	return credentials.NewStore()
}

func newSubmitClient(fetch submit.Fetcher) *submit.Client {
	opts := []submit.Option{submit.WithLogger(logger.GetLogger())}
	if legacyPath {
		opts = append(opts, submit.WithEndpoint(submit.LegacyEndpoint))
	}
	return submit.New(serverURL, tokenSource(), fetch, opts...)
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if level, ok := logger.ParseLevel(logLevel); ok {
		logger.SetLevel(level)
	}
	log := logger.GetLogger()

	// Print banner
	printBanner()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command, args := flag.Arg(0), flag.Args()[1:]
	log.Infof("Executing command: %s", command)

	switch command {
	case "play":
		handlePlay(args)
	case "tracks":
		handleTracks(args)
	case "record":
		handleRecord(args)
	case "compare":
		handleCompare(args)
	case "history":
		handleHistory(args)
	case "import":
		handleImport(args)
	case "login":
		handleLogin(args)
	case "logout":
		handleLogout(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
 ____                    _                 _
| __ ) _ __ __ _ ___ ___| |__   ___   ___ | | __
|  _ \| '__/ _' / __/ __| '_ \ / _ \ / _ \| |/ /
| |_) | | | (_| \__ \__ \ |_) | (_) | (_) |   <
|____/|_|  \__,_|___/___/_.__/ \___/ \___/|_|\_\

        Play along, record, get scored
`
	fmt.Println(banner)
}

func fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("❌ %s\n", msg)
	logger.GetLogger().Errorf("%s", msg)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Brassbook - play along with a track and get your take scored")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --server <url>     Comparison server (env: BRASSBOOK_SERVER, default: http://localhost:8080)")
	fmt.Println("  --catalog <file>   Local catalog JSON instead of the server's track list (env: BRASSBOOK_CATALOG)")
	fmt.Println("  --token <token>    Access token (env: BRASSBOOK_TOKEN, or saved with 'login')")
	fmt.Println("  --legacy           Use the /v1/compare_melodies endpoint")
	fmt.Println("  --db <path>        SQLite database for local comparisons (env: BRASSBOOK_DB_PATH)")
	fmt.Println("  --temp <dir>       Temporary directory for audio conversion (env: BRASSBOOK_TEMP_DIR)")
	fmt.Println("  --rate <hz>        Resample local comparisons to a fixed rate (default: each file's own)")
	fmt.Println("\nUsage:")
	fmt.Println("  brassbook [global-options] play [--track <id>]")
	fmt.Println("  brassbook [global-options] tracks")
	fmt.Println("  brassbook [global-options] record --track <id> [--duration 30s]")
	fmt.Println("  brassbook [global-options] compare <reference_file> <recording_file>")
	fmt.Println("  brassbook [global-options] history [--limit <n>]")
	fmt.Println("  brassbook [global-options] import <catalog.json>")
	fmt.Println("  brassbook login [token]")
	fmt.Println("  brassbook logout")
	fmt.Println("\nExamples:")
	fmt.Println("  # Interactive player with the server's catalog")
	fmt.Println("  brassbook --server https://brassbook.example.com play")
	fmt.Println()
	fmt.Println("  # Record 20 seconds over track 3 and submit")
	fmt.Println("  brassbook record --track 3 --duration 20s")
	fmt.Println()
	fmt.Println("  # Score two local files without a server")
	fmt.Println("  brassbook compare ode.mp3 my-take.webm")
}

// splitArgs separates leading positional arguments from trailing flags.
func splitArgs(args []string) (positional, flags []string) {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return positional, args[i:]
		}
		positional = append(positional, arg)
	}
	return positional, nil
}

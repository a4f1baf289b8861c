package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"

	"github.com/brassbook/brassbook/internal/catalog"
	"github.com/brassbook/brassbook/internal/credentials"
	"github.com/brassbook/brassbook/internal/notify"
	"github.com/brassbook/brassbook/internal/recorder"
	"github.com/brassbook/brassbook/internal/session"
	"github.com/brassbook/brassbook/pkg/brassbook/melody"
	"github.com/brassbook/brassbook/pkg/logger"
	"github.com/brassbook/brassbook/pkg/models"
)

func handleTracks(args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cat, err := loadCatalog(ctx)
	if err != nil {
		fail("Failed to load catalog: %v", err)
	}
	if cat.Len() == 0 {
		fmt.Println("\n📭 The catalog is empty")
		return
	}

	fmt.Printf("\n📚 %d track(s):\n\n", cat.Len())
	for i, t := range cat.Tracks() {
		fmt.Printf("%d. \"%s\" by %s (ID: %s)\n", i+1, t.Title, t.Artist, t.ID)
		fmt.Printf("   Source: %s\n", t.AudioURL)
	}
	fmt.Println()
}

// fixedTrack lets a session record over one track without a player.
type fixedTrack models.Track

func (f fixedTrack) Current() models.Track { return models.Track(f) }
func (f fixedTrack) Close() error          { return nil }

func handleRecord(args []string) {
	log := logger.GetLogger()

	recordCmd := flag.NewFlagSet("record", flag.ExitOnError)
	trackID := recordCmd.String("track", "", "ID of the track to perform (required)")
	duration := recordCmd.Duration("duration", 30*time.Second, "How long to record; Ctrl-C stops early")
	recordCmd.Parse(args)

	if *trackID == "" {
		fmt.Println("Error: --track is required")
		fmt.Println("Usage: brassbook record --track <id> [--duration 30s]")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cat, err := loadCatalog(ctx)
	if err != nil {
		fail("Failed to load catalog: %v", err)
	}
	track, err := cat.Get(*trackID)
	if err != nil {
		fail("Track %s: %v", *trackID, err)
	}

	fetcher, err := newFetcher()
	if err != nil {
		fail("Failed to set up asset fetcher: %v", err)
	}

	rec := recorder.New(recorder.NewPortAudioSource(), log)
	ctrl := session.New(fixedTrack(track), rec, newSubmitClient(fetcher), notify.NewConsole(nil), log)
	defer ctrl.Close()

	if err := ctrl.StartRecording(context.Background()); err != nil {
		os.Exit(1)
	}
	fmt.Printf("\n🎙️  Recording over \"%s\" for %s (Ctrl-C to stop early)...\n", track.Title, *duration)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	timer := time.NewTimer(*duration)
	select {
	case <-timer.C:
	case <-sigCtx.Done():
		timer.Stop()
	}
	stop()

	fmt.Println("⏳ Submitting...")
	submitCtx, cancelSubmit := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelSubmit()
	res, err := ctrl.StopRecording(submitCtx)
	if err != nil {
		os.Exit(1)
	}
	printResult(res)
}

func handleCompare(args []string) {
	positional, _ := splitArgs(args)
	if len(positional) != 2 {
		fmt.Println("Error: two audio files are required")
		fmt.Println("Usage: brassbook compare <reference_file> <recording_file>")
		os.Exit(1)
	}
	for _, p := range positional {
		info, err := os.Stat(p)
		if err != nil {
			fail("Cannot read %s: %v", p, err)
		}
		fmt.Printf("   %s (%s)\n", p, humanize.Bytes(uint64(info.Size())))
	}

	fmt.Println("\n🔧 Initializing service...")
	svc, err := createService()
	if err != nil {
		fail("Failed to create service: %v", err)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Println("🎼 Comparing melodies...")
	start := time.Now()
	res, err := svc.CompareFiles(ctx, positional[0], positional[1])
	if err != nil {
		fail("Comparison failed: %v", err)
	}
	fmt.Printf("   Done in %s\n", time.Since(start).Round(time.Millisecond))
	printResult(&res)
}

func handleHistory(args []string) {
	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)
	limit := historyCmd.Int("limit", 20, "Number of comparisons to show (0 for all)")
	historyCmd.Parse(args)

	svc, err := createService()
	if err != nil {
		fail("Failed to create service: %v", err)
	}
	defer svc.Close()

	history, err := svc.ListComparisons(*limit)
	if err != nil {
		fail("Failed to list comparisons: %v", err)
	}
	if len(history) == 0 {
		fmt.Println("\n📭 No comparisons yet")
		return
	}

	fmt.Printf("\n🕘 %d comparison(s):\n\n", len(history))
	for _, c := range history {
		fmt.Printf("%5.0f%%  %s vs %s  (%s)\n", c.Integral*100, c.ReferenceName, c.RecordingName, humanize.Time(c.CreatedAt))
	}
	fmt.Println()
}

func handleImport(args []string) {
	positional, _ := splitArgs(args)
	if len(positional) != 1 {
		fmt.Println("Usage: brassbook import <catalog.json>")
		os.Exit(1)
	}

	cat, err := catalog.Load(positional[0])
	if err != nil {
		fail("Failed to load catalog: %v", err)
	}

	svc, err := createService()
	if err != nil {
		fail("Failed to create service: %v", err)
	}
	defer svc.Close()

	if err := svc.ImportTracks(cat.Tracks()); err != nil {
		fail("Import failed: %v", err)
	}
	fmt.Printf("\n✅ Imported %d track(s) into %s\n", cat.Len(), dbPath)
}

func handleLogin(args []string) {
	store := credentials.NewStore()

	var tok string
	if positional, _ := splitArgs(args); len(positional) > 0 {
		tok = positional[0]
	} else {
		rl, err := readline.New("")
		if err != nil {
			fail("Failed to open terminal: %v", err)
		}
		secret, err := rl.ReadPassword("Access token: ")
		rl.Close()
		if err != nil {
			fail("Failed to read token: %v", err)
		}
		tok = string(secret)
	}

	tok = strings.TrimSpace(tok)
	if tok == "" {
		fail("Token cannot be empty")
	}
	if err := store.Save(tok); err != nil {
		fail("Failed to save token: %v", err)
	}
	fmt.Printf("✅ Token saved to %s\n", store.Path)
}

func handleLogout(args []string) {
	store := credentials.NewStore()
	if err := store.Clear(); err != nil {
		fail("Failed to remove token: %v", err)
	}
	fmt.Println("👋 Stored token removed")
}

// printResult renders each window as ✔ (on target) or ✘ (off).
func printResult(res *melody.Result) {
	if res == nil {
		fmt.Println("\n⚠️  The server did not return a score")
		return
	}

	fmt.Printf("\n🎯 Score: %.0f%%\n", res.Integral*100)
	fmt.Printf("   Rhythm: %s\n", marks(res.Rhythm))
	fmt.Printf("   Pitch:  %s\n", marks(res.Height))
	fmt.Printf("   Volume: %s\n", marks(res.Volume))
	fmt.Println()
}

func marks(flags []int) string {
	if len(flags) == 0 {
		return "-"
	}
	var b strings.Builder
	for _, f := range flags {
		if f == 0 {
			b.WriteString("✔")
		} else {
			b.WriteString("✘")
		}
	}
	return b.String()
}

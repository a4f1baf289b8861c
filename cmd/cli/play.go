package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/faiface/beep"

	"github.com/brassbook/brassbook/internal/notify"
	"github.com/brassbook/brassbook/internal/player"
	"github.com/brassbook/brassbook/internal/recorder"
	"github.com/brassbook/brassbook/internal/session"
	"github.com/brassbook/brassbook/pkg/brassbook/audio"
	"github.com/brassbook/brassbook/pkg/logger"
)

const speakerRate = beep.SampleRate(44100)

var replCommands = []string{
	"play", "pause", "toggle", "next", "prev", "seek", "rate", "pitch",
	"status", "record", "stop", "help", "quit",
}

func handlePlay(args []string) {
	log := logger.GetLogger()

	playCmd := flag.NewFlagSet("play", flag.ExitOnError)
	startID := playCmd.String("track", "", "ID of the track to start on")
	playCmd.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	cat, err := loadCatalog(ctx)
	cancel()
	if err != nil {
		fail("Failed to load catalog: %v", err)
	}

	fetcher, err := newFetcher()
	if err != nil {
		fail("Failed to set up asset fetcher: %v", err)
	}

	out, err := audio.NewSpeakerOutput(speakerRate, 100*time.Millisecond)
	if err != nil {
		fail("Failed to open audio output: %v", err)
	}

	fmt.Println("🔧 Loading first track...")
	p, err := player.New(context.Background(), cat, audio.NewElement(out, fetcher))
	if err != nil {
		fail("Failed to start player: %v", err)
	}
	if *startID != "" {
		i := cat.Index(*startID)
		if i < 0 {
			fail("No track with ID %s", *startID)
		}
		if err := p.Skip(context.Background(), i); err != nil {
			fail("Failed to load track %s: %v", *startID, err)
		}
	}

	console := notify.NewConsole(nil)
	rec := recorder.New(recorder.NewPortAudioSource(), log)
	ctrl := session.New(p, rec, newSubmitClient(fetcher), console, log)
	defer ctrl.Close()

	items := make([]readline.PrefixCompleterInterface, len(replCommands))
	for i, c := range replCommands {
		items[i] = readline.PcItem(c)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "🎺 > ",
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		fail("Failed to open terminal: %v", err)
	}
	defer rl.Close()

	printStatus(p)
	printREPLHelp()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if ctrl.IsRecording() {
				fmt.Println("Recording still running; type 'stop' to submit or 'quit' to discard")
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			fail("Reading input: %v", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		if err := runREPLCommand(p, ctrl, fields); err != nil {
			fmt.Printf("❌ %v\n", err)
		}
	}
}

func runREPLCommand(p *player.Player, ctrl *session.Controller, fields []string) error {
	cmd, arg := fields[0], ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch cmd {
	case "play":
		return p.Play()
	case "pause":
		return p.Pause()
	case "toggle", "t":
		return p.TogglePlay()
	case "next", "n":
		if err := p.Skip(context.Background(), 1); err != nil {
			return err
		}
		printStatus(p)
	case "prev", "p":
		if err := p.Skip(context.Background(), -1); err != nil {
			return err
		}
		printStatus(p)
	case "seek":
		secs, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("usage: seek <seconds>")
		}
		return p.Seek(time.Duration(secs * float64(time.Second)))
	case "rate":
		rate, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("usage: rate <0-4>")
		}
		return p.SetPlaybackRate(rate)
	case "pitch":
		semis, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("usage: pitch <-12..12>")
		}
		return p.SetPitchOffset(semis)
	case "status", "s":
		printStatus(p)
	case "record", "r":
		if err := ctrl.StartRecording(context.Background()); err != nil {
			return nil
		}
		fmt.Println("🎙️  Recording... type 'stop' when done")
	case "stop":
		fmt.Println("⏳ Submitting...")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		res, err := ctrl.StopRecording(ctx)
		if err != nil {
			return nil
		}
		printResult(res)
	case "help", "h", "?":
		printREPLHelp()
	default:
		return fmt.Errorf("unknown command %q (type 'help')", cmd)
	}
	return nil
}

func printStatus(p *player.Player) {
	st := p.Refresh()
	t := p.Current()
	state := "⏸"
	if st.IsPlaying {
		state = "▶"
	}
	fmt.Printf("%s \"%s\" by %s  %s / %s  rate %.2gx  pitch %+.1f\n",
		state, t.Title, t.Artist, clock(st.CurrentTime), clock(st.Duration), st.PlaybackRate, st.PitchOffset)
}

func clock(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func printREPLHelp() {
	fmt.Println("Commands:")
	fmt.Println("  play | pause | toggle    Control playback")
	fmt.Println("  next | prev              Switch track (wraps around)")
	fmt.Println("  seek <sec>               Jump within the track")
	fmt.Println("  rate <x>                 Playback speed, 0 < x <= 4")
	fmt.Println("  pitch <semitones>        Shift pitch, -12..12")
	fmt.Println("  record | stop            Record your take and submit it for scoring")
	fmt.Println("  status                   Show the current track")
	fmt.Println("  quit                     Leave")
}

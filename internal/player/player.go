// Package player owns the playback state for a track list and drives a media
// element to match it.
package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/brassbook/brassbook/pkg/models"
)

const (
	MaxPlaybackRate = 4.0
	MaxPitchOffset  = 12.0
)

var (
	ErrEmptyCatalog = errors.New("catalog has no tracks")
	ErrInvalidRate  = errors.New("playback rate must be in (0, 4]")
	ErrInvalidPitch = errors.New("pitch offset must be within ±12 semitones")
)

// Element is the media output the player controls.
type Element interface {
	Load(ctx context.Context, src string) error
	Play() error
	Pause() error
	Seek(pos time.Duration) error
	SetPlaybackRate(rate float64) error
	SetPitch(semitones float64) error
	Position() time.Duration
	Duration() time.Duration
	Close() error
}

// Tracks is the read-only list the player walks through.
type Tracks interface {
	Len() int
	At(i int) models.Track
}

type State struct {
	CurrentIndex int
	IsPlaying    bool
	CurrentTime  time.Duration
	Duration     time.Duration
	PlaybackRate float64
	PitchOffset  float64
}

type Player struct {
	mu     sync.Mutex
	tracks Tracks
	el     Element
	state  State
}

// New loads the first track into el. The player starts paused at rate 1.
func New(ctx context.Context, tracks Tracks, el Element) (*Player, error) {
	if tracks == nil || tracks.Len() == 0 {
		return nil, ErrEmptyCatalog
	}
	p := &Player{
		tracks: tracks,
		el:     el,
		state:  State{PlaybackRate: 1},
	}
	if err := p.load(ctx, 0); err != nil {
		return nil, err
	}
	return p, nil
}

// load switches to index i. Rate and pitch carry over to the new media.
func (p *Player) load(ctx context.Context, i int) error {
	track := p.tracks.At(i)
	if err := p.el.Load(ctx, track.AudioURL); err != nil {
		return fmt.Errorf("loading track %s: %w", track.ID, err)
	}
	if err := p.el.SetPlaybackRate(p.state.PlaybackRate); err != nil {
		return err
	}
	if err := p.el.SetPitch(p.state.PitchOffset); err != nil {
		return err
	}
	p.state.CurrentIndex = i
	p.state.IsPlaying = false
	p.state.CurrentTime = 0
	p.state.Duration = p.el.Duration()
	return nil
}

// Skip moves offset tracks forward or backward, wrapping at both ends.
func (p *Player) Skip(ctx context.Context, offset int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.tracks.Len()
	next := ((p.state.CurrentIndex+offset)%n + n) % n
	return p.load(ctx, next)
}

func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setPlaying(true)
}

func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setPlaying(false)
}

func (p *Player) TogglePlay() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setPlaying(!p.state.IsPlaying)
}

func (p *Player) setPlaying(playing bool) error {
	var err error
	if playing {
		err = p.el.Play()
	} else {
		err = p.el.Pause()
	}
	if err != nil {
		return err
	}
	p.state.IsPlaying = playing
	return nil
}

// Seek moves to t, clamped to [0, Duration].
func (p *Player) Seek(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	t = max(t, 0)
	if d := p.el.Duration(); d > 0 {
		p.state.Duration = d
		t = min(t, d)
	}
	if err := p.el.Seek(t); err != nil {
		return err
	}
	p.state.CurrentTime = t
	return nil
}

func (p *Player) SetPlaybackRate(rate float64) error {
	if math.IsNaN(rate) || rate <= 0 || rate > MaxPlaybackRate {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.el.SetPlaybackRate(rate); err != nil {
		return err
	}
	p.state.PlaybackRate = rate
	return nil
}

func (p *Player) SetPitchOffset(semitones float64) error {
	if math.IsNaN(semitones) || math.Abs(semitones) > MaxPitchOffset {
		return fmt.Errorf("%w: %v", ErrInvalidPitch, semitones)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.el.SetPitch(semitones); err != nil {
		return err
	}
	p.state.PitchOffset = semitones
	return nil
}

// Refresh pulls position and duration from the element.
func (p *Player) Refresh() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.CurrentTime = p.el.Position()
	p.state.Duration = p.el.Duration()
	return p.state
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) Current() models.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracks.At(p.state.CurrentIndex)
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.IsPlaying = false
	return p.el.Close()
}

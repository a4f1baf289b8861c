// Package session ties the player, the recorder and the submission client
// together the way the practice screen uses them: record over the current
// track, submit on stop, release the microphone when the screen goes away.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/brassbook/brassbook/internal/notify"
	"github.com/brassbook/brassbook/internal/recorder"
	"github.com/brassbook/brassbook/pkg/brassbook"
	"github.com/brassbook/brassbook/pkg/brassbook/melody"
	"github.com/brassbook/brassbook/pkg/logger"
	"github.com/brassbook/brassbook/pkg/models"
)

type Player interface {
	Current() models.Track
	Close() error
}

type Recorder interface {
	Start(ctx context.Context) error
	Stop() (recorder.Blob, error)
	Abort() error
	IsRecording() bool
}

type Submitter interface {
	Submit(ctx context.Context, track models.Track, blob recorder.Blob) (*melody.Result, error)
}

type Controller struct {
	mu       sync.Mutex
	player   Player
	rec      Recorder
	submit   Submitter
	notifier notify.Notifier
	log      brassbook.Logger
	closed   bool
}

func New(p Player, rec Recorder, submit Submitter, n notify.Notifier, log brassbook.Logger) *Controller {
	if log == nil {
		log = logger.GetLogger()
	}
	if n == nil {
		n = notify.NewConsole(nil)
	}
	return &Controller{player: p, rec: rec, submit: submit, notifier: n, log: log}
}

var ErrClosed = errors.New("session closed")

// StartRecording opens the microphone. Failures are logged and alerted once.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if err := c.rec.Start(ctx); err != nil {
		c.log.Errorf("Could not start recording: %v", err)
		switch {
		case errors.Is(err, recorder.ErrPermissionDenied):
			c.notifier.Notify(notify.Failure, "Microphone access was denied")
		case errors.Is(err, recorder.ErrAlreadyRecording):
			c.notifier.Notify(notify.Failure, "A recording is already running")
		default:
			c.notifier.Notify(notify.Failure, "Could not start recording")
		}
		return err
	}
	c.log.Infof("Recording over %q", c.player.Current().Title)
	return nil
}

// StopRecording ends the recording and submits it with the current track.
func (c *Controller) StopRecording(ctx context.Context) (*melody.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	blob, err := c.rec.Stop()
	if err != nil && blob.Empty() {
		c.log.Errorf("Could not stop recording: %v", err)
		c.notifier.Notify(notify.Failure, "Recording failed")
		return nil, err
	}
	if err != nil {
		c.log.Warnf("Recording ended with an error, submitting what was captured: %v", err)
	}
	return c.submit.Submit(ctx, c.player.Current(), blob)
}

func (c *Controller) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.rec.IsRecording()
}

// Close aborts any running recording and closes the player. It is safe to
// call more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.rec.IsRecording() {
		if err := c.rec.Abort(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.player.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

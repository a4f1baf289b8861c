// Package notify delivers the user-facing outcome of an action, the
// terminal counterpart of a browser alert.
package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

type Kind int

const (
	Success Kind = iota
	Failure
)

func (k Kind) String() string {
	if k == Success {
		return "success"
	}
	return "failure"
}

type Notifier interface {
	Notify(kind Kind, message string)
}

// Func adapts a plain function to Notifier.
type Func func(kind Kind, message string)

func (f Func) Notify(kind Kind, message string) { f(kind, message) }

// Console prints alerts to a terminal, green for success and red for failure.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

var (
	successColor = color.New(color.FgGreen, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
)

func (c *Console) Notify(kind Kind, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tag := successColor.Sprint("✔")
	if kind == Failure {
		tag = failureColor.Sprint("✘")
	}
	fmt.Fprintf(c.out, "%s %s\n", tag, message)
}

type Alert struct {
	Kind    Kind
	Message string
}

// Recorder keeps every alert it receives.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *Recorder) Notify(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, Alert{Kind: kind, Message: message})
}

func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

// Count returns how many alerts of kind were received.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.alerts {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

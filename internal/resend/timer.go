package resend

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultSeconds is the countdown applied after a resend.
const DefaultSeconds = 30

// ErrCoolingDown is returned when a resend is requested before the countdown ends.
var ErrCoolingDown = errors.New("resend is cooling down")

// Action performs the resend, e.g. re-issuing an OTP challenge.
type Action func(ctx context.Context) error

// State is a snapshot of the timer. Countdown is zero while enabled.
type State struct {
	Enabled   bool
	Countdown int
}

// Option customises a Timer.
type Option func(*Timer)

// WithInterval sets the tick interval used by Run.
func WithInterval(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithOnChange registers a callback invoked after every state change.
func WithOnChange(fn func(State)) Option {
	return func(t *Timer) { t.onChange = fn }
}

// Timer gates a resend action behind a countdown. State is kept in memory only.
type Timer struct {
	mu        sync.Mutex
	initial   int
	remaining int
	action    Action
	interval  time.Duration
	onChange  func(State)
}

// New builds an armed timer. initialSeconds <= 0 selects DefaultSeconds.
func New(initialSeconds int, action Action, opts ...Option) *Timer {
	if initialSeconds <= 0 {
		initialSeconds = DefaultSeconds
	}
	t := &Timer{initial: initialSeconds, action: action, interval: time.Second}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current snapshot.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// HandleResend disables the timer for the full countdown and runs the action.
// If the action fails the timer is re-armed immediately.
func (t *Timer) HandleResend(ctx context.Context) error {
	t.mu.Lock()
	if t.remaining > 0 {
		t.mu.Unlock()
		return ErrCoolingDown
	}
	t.remaining = t.initial
	t.notifyLocked()
	t.mu.Unlock()

	if t.action == nil {
		return nil
	}
	if err := t.action(ctx); err != nil {
		t.mu.Lock()
		t.remaining = 0
		t.notifyLocked()
		t.mu.Unlock()
		return err
	}
	return nil
}

// Tick advances the countdown by one second.
func (t *Timer) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.remaining == 0 {
		return
	}
	t.remaining--
	t.notifyLocked()
}

// Run ticks at the configured interval until ctx is done.
func (t *Timer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}

func (t *Timer) stateLocked() State {
	if t.remaining == 0 {
		return State{Enabled: true}
	}
	return State{Countdown: t.remaining}
}

func (t *Timer) notifyLocked() {
	if t.onChange != nil {
		t.onChange(t.stateLocked())
	}
}

// Package deadline tracks the hard wall-clock deadline of a quiz attempt.
// The end instant is fixed once at construction; remaining time is always
// recomputed from the clock, so suspending the process never extends it.
package deadline

import (
	"context"
	"sync"
	"time"

	"github.com/Ryan-RCNR/proveit-proctor/internal/clock"
	"github.com/Ryan-RCNR/proveit-proctor/internal/countdown"
)

// DefaultPollInterval is the tick cadence for deadline checks. The tracker
// tolerates coarser or jittery cadence without double-firing warnings.
const DefaultPollInterval = time.Second

// Warning is a threshold-crossing notification fired exactly once when the
// remaining time reaches Seconds.
type Warning struct {
	Seconds int    `yaml:"seconds" json:"seconds"`
	Message string `yaml:"message" json:"message"`
}

// DefaultWarnings are the five-minute and one-minute marks.
func DefaultWarnings() []Warning {
	return []Warning{
		{Seconds: 300, Message: "5 minutes remaining"},
		{Seconds: 60, Message: "1 minute remaining"},
	}
}

// Tracker fires each configured warning at most once and the expiry
// callback exactly once when remaining time reaches zero.
type Tracker struct {
	clk      clock.Clock
	startAt  time.Time
	duration time.Duration
	warnings []Warning

	onWarning func(Warning)
	onExpire  func()

	mu      sync.Mutex
	fired   map[int]bool
	expired bool
}

// New creates a tracker for a quiz started at startAt running for the given
// number of minutes. Warnings whose threshold is already at or below the
// remaining time at construction never fire: a quiz started with 45 seconds
// left never "crosses" the five-minute mark.
func New(clk clock.Clock, startAt time.Time, minutes int, warnings []Warning, onWarning func(Warning), onExpire func()) *Tracker {
	if warnings == nil {
		warnings = DefaultWarnings()
	}
	t := &Tracker{
		clk:       clk,
		startAt:   startAt,
		duration:  time.Duration(minutes) * time.Minute,
		warnings:  warnings,
		onWarning: onWarning,
		onExpire:  onExpire,
		fired:     make(map[int]bool),
	}
	initial := countdown.Seconds(startAt, t.duration, clk.Now())
	for _, w := range warnings {
		if initial <= w.Seconds {
			t.fired[w.Seconds] = true
		}
	}
	return t
}

// EndAt returns the immutable end instant of the attempt.
func (t *Tracker) EndAt() time.Time {
	return t.startAt.Add(t.duration)
}

// Remaining returns the whole seconds left, clamped at zero.
func (t *Tracker) Remaining() int {
	return countdown.Seconds(t.startAt, t.duration, t.clk.Now())
}

// Tick recomputes remaining time, fires any threshold warnings crossed
// since the last tick, and fires expiry once at or after zero. Returns the
// remaining seconds.
func (t *Tracker) Tick() int {
	remaining := t.Remaining()

	var due []Warning
	fireExpire := false

	t.mu.Lock()
	if t.expired {
		t.mu.Unlock()
		return remaining
	}
	for _, w := range t.warnings {
		if remaining <= w.Seconds && !t.fired[w.Seconds] {
			t.fired[w.Seconds] = true
			due = append(due, w)
		}
	}
	if remaining == 0 {
		t.expired = true
		fireExpire = true
	}
	t.mu.Unlock()

	if t.onWarning != nil {
		for _, w := range due {
			t.onWarning(w)
		}
	}
	if fireExpire && t.onExpire != nil {
		t.onExpire()
	}
	return remaining
}

// Expired reports whether the expiry callback has fired.
func (t *Tracker) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Run polls the deadline until expiry or ctx cancellation.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick()
			if t.Expired() {
				return
			}
		}
	}
}

// Package countdown implements the shared wall-clock countdown primitive.
// Both the quiz deadline and the fullscreen re-entry window need the same
// thing: an absolute anchor, a fixed duration, remaining time recomputed
// from scratch on every check, and an expiry callback that fires exactly
// once at or after zero.
package countdown

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Ryan-RCNR/proveit-proctor/internal/clock"
)

// Seconds returns the whole seconds remaining on a countdown anchored at
// anchor with the given duration, observed at now. The value is rounded up
// (a displayed "1" means up to one full second left) and clamped at zero.
func Seconds(anchor time.Time, duration time.Duration, now time.Time) int {
	left := duration - now.Sub(anchor)
	secs := int(math.Ceil(left.Seconds()))
	if secs < 0 {
		return 0
	}
	return secs
}

// Countdown is a cancellable one-shot countdown. Remaining time is derived
// from the clock on every call, so a stalled caller resumes with the value
// a non-stalled run would have shown at the same wall-clock instant.
type Countdown struct {
	clk      clock.Clock
	anchor   time.Time
	duration time.Duration
	onExpire func()

	mu        sync.Mutex
	fired     bool
	cancelled bool
}

// New creates a countdown anchored at anchor. onExpire may be nil.
func New(clk clock.Clock, anchor time.Time, duration time.Duration, onExpire func()) *Countdown {
	return &Countdown{
		clk:      clk,
		anchor:   anchor,
		duration: duration,
		onExpire: onExpire,
	}
}

// Remaining returns the seconds left at the current clock reading.
func (c *Countdown) Remaining() int {
	return Seconds(c.anchor, c.duration, c.clk.Now())
}

// Tick recomputes the remaining seconds and fires the expiry callback the
// first time zero is reached. A missed or late tick still fires, just once.
// Returns the remaining seconds (zero once expired or cancelled).
func (c *Countdown) Tick() int {
	remaining := c.Remaining()

	c.mu.Lock()
	if c.cancelled || c.fired {
		c.mu.Unlock()
		return 0
	}
	if remaining > 0 {
		c.mu.Unlock()
		return remaining
	}
	c.fired = true
	c.mu.Unlock()

	if c.onExpire != nil {
		c.onExpire()
	}
	return 0
}

// Cancel stops the countdown; the expiry callback will never fire after
// Cancel returns. Cancelling an already-fired countdown is a no-op.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
}

// Expired reports whether the expiry callback has fired.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

// Cancelled reports whether Cancel was called before expiry.
func (c *Countdown) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled && !c.fired
}

// Run polls the countdown at the given interval until it expires, is
// cancelled, or ctx is done. Blocks the calling goroutine.
func (c *Countdown) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Tick() == 0 {
				return
			}
		}
	}
}

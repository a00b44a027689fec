package ratelimit

import "time"

// Tracker holds per-session event counts for the current window.
// Callers serialize access; the session mutex already covers event
// delivery.
type Tracker struct {
	counts      map[string]int
	windowStart time.Time
}

// NewTracker returns an empty tracker whose first window opens at now.
func NewTracker(now time.Time) *Tracker {
	return &Tracker{counts: make(map[string]int), windowStart: now}
}

// Snapshot reads the current count for a kind. If the window has
// expired, all counters and the window start are reset.
func (t *Tracker) Snapshot(kind string, window time.Duration, now time.Time) int {
	if now.Sub(t.windowStart) >= window {
		t.counts = make(map[string]int)
		t.windowStart = now
	}
	return t.counts[kind]
}

// Increment records one event of the given kind.
func (t *Tracker) Increment(kind string) {
	t.counts[kind]++
}

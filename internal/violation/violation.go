package violation

import (
	"sync"
	"time"
)

// Violation is one immutable entry in the session's audit trail.
type Violation struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	// OccurrenceIndex is the 1-based count of this kind so far in the
	// session.
	OccurrenceIndex int `json:"occurrence_index"`
}

// Trail is the ordered, append-only sequence of violations for one session.
// It is retained, and forwarded to the submission collaborator, even after
// a forced submission.
type Trail struct {
	mu      sync.Mutex
	entries []Violation
	byKind  map[Kind]int
}

// NewTrail creates an empty trail.
func NewTrail() *Trail {
	return &Trail{byKind: make(map[Kind]int)}
}

// Append records a violation of the given kind at ts and returns the new
// entry with its occurrence index filled in.
func (t *Trail) Append(kind Kind, ts time.Time) Violation {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byKind[kind]++
	v := Violation{
		Kind:            kind,
		Timestamp:       ts,
		OccurrenceIndex: t.byKind[kind],
	}
	t.entries = append(t.entries, v)
	return v
}

// Snapshot returns a stable copy of the trail in arrival order.
func (t *Trail) Snapshot() []Violation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Violation, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of recorded violations.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// CountOf returns how many violations of the given kind were recorded.
func (t *Trail) CountOf(kind Kind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byKind[kind]
}

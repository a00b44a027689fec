// Package audit records every observable step of a proctored session in an
// append-only, hash-chained JSONL log: the raw host events and how the
// monitor disposed of them, warnings, countdown activity, and the terminal
// signal. The chain makes post-hoc tampering with a session's record
// evident.
package audit

// Entry types.
const (
	TypeSessionStart     = "session_start"
	TypeGateResult       = "gate_result"
	TypeHostEvent        = "host_event"
	TypeFullscreenEnter  = "fullscreen_enter"
	TypeFullscreenDenied = "fullscreen_denied"
	TypeWarning          = "warning"
	TypeCountdownStart   = "countdown_start"
	TypeCountdownCancel  = "countdown_cancel"
	TypeForced           = "forced_submission"
	TypeTimeExpired      = "time_expired"
	TypeSubmitted        = "submitted"
)

// Entry is one line in the hash-chained JSONL audit log.
// All fields are scalars (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp  string `json:"ts"`
	SessionID  string `json:"session_id"`
	Type       string `json:"type"`
	Kind       string `json:"kind,omitempty"`       // raw host event kind
	Class      string `json:"class,omitempty"`      // instant / environmental
	Decision   string `json:"decision,omitempty"`   // monitor disposition of a host event
	Occurrence int    `json:"occurrence,omitempty"` // per-kind occurrence index
	Strikes    int    `json:"strikes,omitempty"`
	Remaining  int    `json:"remaining,omitempty"` // seconds left when relevant
	Message    string `json:"message,omitempty"`
	Cause      string `json:"cause,omitempty"` // "timeout" or "lockdown" on terminal entries
	PolicyHash string `json:"policy_hash,omitempty"`
	PrevHash   string `json:"prev_hash"`
}

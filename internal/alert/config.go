// Package alert fans proctoring events out to instructor-facing webhooks.
// Sends are best-effort and never block or fail the enforcement path.
package alert

// Config defines a webhook alert destination.
type Config struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["violation", "forced_submission", "time_expired", "warning"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event is the payload sent to webhook endpoints.
type Event struct {
	Timestamp  string `json:"timestamp"`
	SessionID  string `json:"session_id"`
	Type       string `json:"type"`                 // "violation", "forced_submission", "time_expired", "warning"
	Kind       string `json:"kind,omitempty"`       // violation kind, when Type is "violation"
	Class      string `json:"class,omitempty"`      // "instant" or "environmental"
	Occurrence int    `json:"occurrence,omitempty"` // per-kind occurrence index
	Strikes    int    `json:"strikes,omitempty"`    // environmental strike count after this event
	Message    string `json:"message,omitempty"`
	Cause      string `json:"cause,omitempty"` // "timeout" or "lockdown" on terminal events
	PolicyHash string `json:"policy_hash,omitempty"`
}

// Alert event types.
const (
	EventViolation        = "violation"
	EventForcedSubmission = "forced_submission"
	EventTimeExpired      = "time_expired"
	EventWarning          = "warning"
)

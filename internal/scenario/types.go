package scenario

import "github.com/Ryan-RCNR/proveit-proctor/internal/policy"

// Step is one timed action in a scripted session. Exactly one of Event or
// Action is set.
type Step struct {
	// At is the offset from session start ("45s", "2m10s").
	At policy.Duration `yaml:"at"`
	// Event is a raw host event kind delivered to the monitor.
	Event string `yaml:"event,omitempty"`
	// Action is a host lifecycle action: "fullscreen_reenter",
	// "fullscreen_denied" or "submit".
	Action string `yaml:"action,omitempty"`
}

// Expect is the asserted end state of a scripted session.
type Expect struct {
	Outcome    string `yaml:"outcome"`
	Cause      string `yaml:"cause,omitempty"`
	Strikes    *int   `yaml:"strikes,omitempty"`
	Violations *int   `yaml:"violations,omitempty"`
}

// Scenario is one scripted session with its expected end state.
type Scenario struct {
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes,omitempty"`
	// RunFor bounds the simulated time after the last step. Defaults to
	// 30 seconds past the last step, or to just past the deadline when
	// the expected outcome is time_expired.
	RunFor policy.Duration `yaml:"run_for,omitempty"`
	Steps  []Step          `yaml:"steps"`
	Expect Expect          `yaml:"expect"`
}

// Mismatch is one expectation the scripted session did not meet.
type Mismatch struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// RunResult is the outcome of running one scenario file.
type RunResult struct {
	File       string     `json:"file"`
	Name       string     `json:"name"`
	Passed     bool       `json:"passed"`
	Outcome    string     `json:"outcome"`
	Cause      string     `json:"cause,omitempty"`
	Strikes    int        `json:"strikes"`
	Violations int        `json:"violations"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

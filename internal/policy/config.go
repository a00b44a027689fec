// Package policy holds every tunable of the enforcement core in one YAML
// document: quiz duration, strike limit, grace and suppression windows, the
// re-entry countdown, warning thresholds, gate heuristics, and the alert
// and archive wiring around them.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Ryan-RCNR/proveit-proctor/internal/alert"
	"github.com/Ryan-RCNR/proveit-proctor/internal/deadline"
)

// Duration is a time.Duration that unmarshals from YAML strings like "10s".
type Duration time.Duration

// UnmarshalYAML parses either a duration string or a bare number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration: %s", value.Value)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalYAML renders the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Enforcement tunes the violation monitor.
type Enforcement struct {
	// StrikeLimit is the number of tolerated environmental violations.
	// The default of 1 means the second environmental event of any kind
	// escalates to forced submission.
	StrikeLimit int `yaml:"strike_limit"`
	// GracePeriod is the window after (re-)entering fullscreen during
	// which nothing is recorded, absorbing the churn the fullscreen
	// dialog itself causes.
	GracePeriod Duration `yaml:"grace_period"`
	// ReentryCountdown is how long the candidate has to return to
	// fullscreen after leaving it.
	ReentryCountdown Duration `yaml:"reentry_countdown"`
	// BlurSuppression suppresses window_blur events that immediately
	// follow a fullscreen_exit, so one physical action is not counted
	// twice.
	BlurSuppression Duration `yaml:"blur_suppression"`
	// WarningDisplay is the recommended on-screen lifetime of transient
	// warning banners.
	WarningDisplay Duration `yaml:"warning_display"`
	// CountdownPoll is the re-entry countdown tick cadence.
	CountdownPoll Duration `yaml:"countdown_poll"`
	// EventRateLimit caps host events per kind inside a fixed window.
	// Events beyond the cap are dropped before they reach the monitor.
	EventRateLimit EventLimit `yaml:"event_rate_limit"`
}

// EventLimit caps events of one kind inside a fixed window. A zero
// MaxEvents disables the limiter.
type EventLimit struct {
	MaxEvents int      `yaml:"max_events"`
	Window    Duration `yaml:"window"`
}

// Quiz tunes the deadline tracker.
type Quiz struct {
	DurationMinutes int                `yaml:"duration_minutes"`
	Warnings        []deadline.Warning `yaml:"warnings"`
	DeadlinePoll    Duration           `yaml:"deadline_poll"`
}

// Gate tunes the device entry gate.
type Gate struct {
	// MinWidth/MinHeight are the smallest viewport (CSS pixels) accepted
	// for a touch-capable device.
	MinWidth  int `yaml:"min_width"`
	MinHeight int `yaml:"min_height"`
	// MobileSignatures are platform substrings that classify a device as
	// mobile regardless of viewport.
	MobileSignatures []string `yaml:"mobile_signatures"`
}

// Config is the full proctoring policy.
type Config struct {
	Quiz        Quiz           `yaml:"quiz"`
	Enforcement Enforcement    `yaml:"enforcement"`
	Gate        Gate           `yaml:"gate"`
	Alerts      []alert.Config `yaml:"alerts"`
	Archive     string         `yaml:"archive_path"`
	SubmitURL   string         `yaml:"submit_url"`
}

// Default returns the built-in policy.
func Default() *Config {
	return &Config{
		Quiz: Quiz{
			DurationMinutes: 30,
			Warnings:        deadline.DefaultWarnings(),
			DeadlinePoll:    Duration(time.Second),
		},
		Enforcement: Enforcement{
			StrikeLimit:      1,
			GracePeriod:      Duration(2 * time.Second),
			ReentryCountdown: Duration(10 * time.Second),
			BlurSuppression:  Duration(time.Second),
			WarningDisplay:   Duration(4 * time.Second),
			CountdownPoll:    Duration(500 * time.Millisecond),
			EventRateLimit: EventLimit{
				MaxEvents: 30,
				Window:    Duration(10 * time.Second),
			},
		},
		Gate: Gate{
			MinWidth:  1024,
			MinHeight: 600,
			MobileSignatures: []string{
				"Android", "iPhone", "iPad", "iPod", "Mobile", "webOS",
			},
		},
	}
}

// Load reads a policy file. Empty path falls back to
// ~/.proveit-proctor/policy.yaml. A missing file returns defaults; invalid
// YAML is an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads a policy file and returns the SHA-256 of the raw YAML
// bytes, used to stamp audit entries with the policy in force. When no file
// exists the hash is the SHA-256 of empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Default(), emptyHash(), nil
		}
		path = filepath.Join(home, ".proveit-proctor", "policy.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), emptyHash(), nil
		}
		return nil, "", fmt.Errorf("failed to read policy: %w", err)
	}

	// Start from defaults; YAML overwrites only the fields it names.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse policy: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	h := sha256.Sum256(data)
	return cfg, "sha256:" + hex.EncodeToString(h[:]), nil
}

// Validate rejects configurations the enforcement core cannot honor.
func (c *Config) Validate() error {
	if c.Quiz.DurationMinutes <= 0 {
		return fmt.Errorf("policy: quiz.duration_minutes must be positive, got %d", c.Quiz.DurationMinutes)
	}
	if c.Enforcement.StrikeLimit < 0 {
		return fmt.Errorf("policy: enforcement.strike_limit must not be negative, got %d", c.Enforcement.StrikeLimit)
	}
	if c.Enforcement.ReentryCountdown.Std() <= 0 {
		return fmt.Errorf("policy: enforcement.reentry_countdown must be positive")
	}
	for _, w := range c.Quiz.Warnings {
		if w.Seconds <= 0 {
			return fmt.Errorf("policy: warning threshold must be positive, got %d", w.Seconds)
		}
	}
	if rl := c.Enforcement.EventRateLimit; rl.MaxEvents > 0 && rl.Window.Std() <= 0 {
		return fmt.Errorf("policy: enforcement.event_rate_limit.window must be positive when max_events is set")
	}
	return nil
}

// Save writes the policy as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal policy: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create policy directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write policy: %w", err)
	}
	return nil
}

func emptyHash() string {
	h := sha256.Sum256(nil)
	return "sha256:" + hex.EncodeToString(h[:])
}

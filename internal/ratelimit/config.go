// Package ratelimit throttles host event delivery per session. A buggy
// or hostile quiz host can emit focus events far faster than a human can
// produce them; the limiter caps what reaches the violation monitor.
package ratelimit

import "time"

// Limit caps events of one kind inside a fixed window.
// Zero values mean no limit for that kind.
type Limit struct {
	MaxEvents int           `yaml:"max_events"`
	Window    time.Duration `yaml:"window"`
}

// Config maps event kinds to their limits. The "*" key applies to any
// kind without its own entry.
type Config map[string]*Limit

// HasLimits returns true if any kind has a configured limit.
func (c Config) HasLimits() bool {
	for _, l := range c {
		if l != nil && l.MaxEvents > 0 && l.Window > 0 {
			return true
		}
	}
	return false
}

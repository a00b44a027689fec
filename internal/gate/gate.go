// Package gate implements the one-shot device capability check that runs
// before enforcement begins. Devices classified unsupported never engage
// fullscreen or start tracking; the hosting view shows a blocking screen
// instead of the assessment.
package gate

import "strings"

// Probe is the host-reported device capability snapshot.
type Probe struct {
	TouchCapable   bool   `json:"touch_capable"`
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
	Platform       string `json:"platform"` // navigator platform / user agent string
}

// Config tunes the gate heuristics.
type Config struct {
	// MinWidth/MinHeight are the smallest viewport accepted for a
	// touch-capable device. Keyboard-only devices are not size-gated.
	MinWidth  int
	MinHeight int
	// MobileSignatures classify a device as mobile by platform substring
	// regardless of viewport.
	MobileSignatures []string
}

// DefaultConfig returns the built-in gate heuristics.
func DefaultConfig() Config {
	return Config{
		MinWidth:  1024,
		MinHeight: 600,
		MobileSignatures: []string{
			"Android", "iPhone", "iPad", "iPod", "Mobile", "webOS",
		},
	}
}

// Result is the gate decision. Evaluated once at mount, never re-checked.
type Result struct {
	Supported bool   `json:"supported"`
	Reason    string `json:"reason,omitempty"`
}

// Check classifies the device using the signature and size heuristics.
func Check(probe Probe, cfg Config) Result {
	for _, sig := range cfg.MobileSignatures {
		if sig != "" && strings.Contains(probe.Platform, sig) {
			return Result{
				Supported: false,
				Reason:    "mobile platform detected: lockdown mode requires a desktop browser",
			}
		}
	}

	if probe.TouchCapable && (probe.ViewportWidth < cfg.MinWidth || probe.ViewportHeight < cfg.MinHeight) {
		return Result{
			Supported: false,
			Reason:    "touch device with a small display: lockdown mode requires a desktop browser",
		}
	}

	return Result{Supported: true}
}

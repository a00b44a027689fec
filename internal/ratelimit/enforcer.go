package ratelimit

import (
	"fmt"
	"time"
)

// CheckResult is the outcome of a rate limit check.
type CheckResult struct {
	Exceeded bool
	Kind     string
	Current  int
	Limit    int
	Reason   string
}

// Check compares the current count against the limit.
func Check(count int, limit *Limit) CheckResult {
	if limit == nil || limit.MaxEvents <= 0 || limit.Window <= 0 {
		return CheckResult{}
	}
	if count >= limit.MaxEvents {
		return CheckResult{
			Exceeded: true,
			Current:  count,
			Limit:    limit.MaxEvents,
			Reason: fmt.Sprintf("event rate limit exceeded: %d/%d events in %s window",
				count, limit.MaxEvents, limit.Window),
		}
	}
	return CheckResult{}
}

// Evaluate looks up the limit for the event kind and checks whether it
// is exceeded. Returns (result, true) when the event must be dropped.
// Returns (zero, false) when within limit or no limit is configured.
//
// Lookup order: limits[kind], then limits["*"], then skip.
// When the check passes, the counter is incremented.
func Evaluate(tr *Tracker, kind string, limits Config, now time.Time) (CheckResult, bool) {
	if !limits.HasLimits() {
		return CheckResult{}, false
	}

	limit := limits[kind]
	if limit == nil {
		limit = limits["*"]
	}
	if limit == nil || limit.MaxEvents <= 0 {
		return CheckResult{}, false
	}

	count := tr.Snapshot(kind, limit.Window, now)
	result := Check(count, limit)
	if !result.Exceeded {
		tr.Increment(kind)
		return CheckResult{}, false
	}

	result.Kind = kind
	return result, true
}

// Package policydiff compares two proctoring policies and annotates each
// change as stricter or looser, so an instructor can see what a policy
// edit does to candidates before it ships.
package policydiff

import (
	"fmt"
	"sort"
	"time"

	"github.com/Ryan-RCNR/proveit-proctor/internal/deadline"
	"github.com/Ryan-RCNR/proveit-proctor/internal/policy"
)

// Change represents a scalar field change.
type Change struct {
	Field   string `json:"field"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Comment string `json:"comment,omitempty"`
}

// WarningChange represents a deadline warning addition, removal, or rewording.
type WarningChange struct {
	Type    string `json:"type"` // "added", "removed", "changed"
	Warning string `json:"warning"`
}

// DiffResult holds the comparison of two policies.
type DiffResult struct {
	OldPath        string          `json:"old_path"`
	NewPath        string          `json:"new_path"`
	Changes        []Change        `json:"changes"`
	WarningChanges []WarningChange `json:"warning_changes"`
	HasChanges     bool            `json:"has_changes"`
}

// Diff compares two policies and returns the differences.
func Diff(old, new *policy.Config) *DiffResult {
	r := &DiffResult{}

	diffInt(r, "quiz.duration_minutes",
		old.Quiz.DurationMinutes, new.Quiz.DurationMinutes, false)
	diffDuration(r, "quiz.deadline_poll",
		old.Quiz.DeadlinePoll.Std(), new.Quiz.DeadlinePoll.Std(), "")

	diffInt(r, "enforcement.strike_limit",
		old.Enforcement.StrikeLimit, new.Enforcement.StrikeLimit, false)
	diffDuration(r, "enforcement.grace_period",
		old.Enforcement.GracePeriod.Std(), new.Enforcement.GracePeriod.Std(), "shorter-is-stricter")
	diffDuration(r, "enforcement.reentry_countdown",
		old.Enforcement.ReentryCountdown.Std(), new.Enforcement.ReentryCountdown.Std(), "shorter-is-stricter")
	diffDuration(r, "enforcement.blur_suppression",
		old.Enforcement.BlurSuppression.Std(), new.Enforcement.BlurSuppression.Std(), "shorter-is-stricter")
	diffDuration(r, "enforcement.warning_display",
		old.Enforcement.WarningDisplay.Std(), new.Enforcement.WarningDisplay.Std(), "")
	diffDuration(r, "enforcement.countdown_poll",
		old.Enforcement.CountdownPoll.Std(), new.Enforcement.CountdownPoll.Std(), "")

	diffInt(r, "gate.min_width",
		old.Gate.MinWidth, new.Gate.MinWidth, true)
	diffInt(r, "gate.min_height",
		old.Gate.MinHeight, new.Gate.MinHeight, true)

	diffWarnings(r, old.Quiz.Warnings, new.Quiz.Warnings)

	diffStringSet(r, "gate.mobile_signatures", old.Gate.MobileSignatures, new.Gate.MobileSignatures)
	diffStringSet(r, "alerts", alertKeys(old), alertKeys(new))

	if old.SubmitURL != new.SubmitURL {
		r.Changes = append(r.Changes, Change{
			Field: "submit_url",
			Old:   old.SubmitURL,
			New:   new.SubmitURL,
		})
	}
	if old.Archive != new.Archive {
		r.Changes = append(r.Changes, Change{
			Field: "archive_path",
			Old:   old.Archive,
			New:   new.Archive,
		})
	}

	r.HasChanges = len(r.Changes) > 0 || len(r.WarningChanges) > 0
	return r
}

func diffInt(r *DiffResult, field string, old, new int, higherIsStricter bool) {
	if old != new {
		r.Changes = append(r.Changes, Change{
			Field:   field,
			Old:     fmt.Sprintf("%d", old),
			New:     fmt.Sprintf("%d", new),
			Comment: intComment(old, new, higherIsStricter),
		})
	}
}

func intComment(old, new int, higherIsStricter bool) string {
	if higherIsStricter {
		if new > old {
			return "stricter"
		}
		return "looser"
	}
	// Lower is stricter (e.g. strike_limit: fewer tolerated violations)
	if new < old {
		return "stricter"
	}
	return "looser"
}

func diffDuration(r *DiffResult, field string, old, new time.Duration, strictness string) {
	if old == new {
		return
	}
	var comment string
	if strictness == "shorter-is-stricter" {
		if new < old {
			comment = "stricter"
		} else {
			comment = "looser"
		}
	}
	r.Changes = append(r.Changes, Change{
		Field:   field,
		Old:     old.String(),
		New:     new.String(),
		Comment: comment,
	})
}

func warningLabel(w deadline.Warning) string {
	return fmt.Sprintf("at %ds: %q", w.Seconds, w.Message)
}

func diffWarnings(r *DiffResult, oldWarnings, newWarnings []deadline.Warning) {
	oldMap := make(map[int]deadline.Warning)
	for _, w := range oldWarnings {
		oldMap[w.Seconds] = w
	}
	newMap := make(map[int]deadline.Warning)
	for _, w := range newWarnings {
		newMap[w.Seconds] = w
	}

	// Check for added and reworded
	for _, w := range newWarnings {
		if oldW, exists := oldMap[w.Seconds]; exists {
			if oldW.Message != w.Message {
				r.WarningChanges = append(r.WarningChanges, WarningChange{
					Type:    "changed",
					Warning: fmt.Sprintf("%s (was: %q)", warningLabel(w), oldW.Message),
				})
			}
		} else {
			r.WarningChanges = append(r.WarningChanges, WarningChange{
				Type:    "added",
				Warning: warningLabel(w),
			})
		}
	}

	// Check for removed
	for _, w := range oldWarnings {
		if _, exists := newMap[w.Seconds]; !exists {
			r.WarningChanges = append(r.WarningChanges, WarningChange{
				Type:    "removed",
				Warning: warningLabel(w),
			})
		}
	}
}

func diffStringSet(r *DiffResult, section string, oldKeys, newKeys []string) {
	oldSet := make(map[string]bool)
	for _, k := range oldKeys {
		oldSet[k] = true
	}
	newSet := make(map[string]bool)
	for _, k := range newKeys {
		newSet[k] = true
	}

	for _, k := range newKeys {
		if !oldSet[k] {
			r.Changes = append(r.Changes, Change{
				Field:   section,
				Old:     "",
				New:     k,
				Comment: "added",
			})
		}
	}
	for _, k := range oldKeys {
		if !newSet[k] {
			r.Changes = append(r.Changes, Change{
				Field:   section,
				Old:     k,
				New:     "",
				Comment: "removed",
			})
		}
	}
}

func alertKeys(cfg *policy.Config) []string {
	keys := make([]string, 0, len(cfg.Alerts))
	for _, a := range cfg.Alerts {
		keys = append(keys, a.URL)
	}
	sort.Strings(keys)
	return keys
}

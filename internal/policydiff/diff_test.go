package policydiff

import (
	"strings"
	"testing"
	"time"

	"github.com/Ryan-RCNR/proveit-proctor/internal/deadline"
	"github.com/Ryan-RCNR/proveit-proctor/internal/policy"
)

func TestIdenticalPoliciesNoChanges(t *testing.T) {
	a := policy.Default()
	b := policy.Default()

	r := Diff(a, b)
	if r.HasChanges {
		t.Errorf("expected no changes, got %d changes + %d warning changes",
			len(r.Changes), len(r.WarningChanges))
	}
}

func TestLoweredStrikeLimitIsStricter(t *testing.T) {
	a := policy.Default()
	b := policy.Default()
	a.Enforcement.StrikeLimit = 3
	b.Enforcement.StrikeLimit = 1

	r := Diff(a, b)
	if !r.HasChanges {
		t.Fatal("expected changes")
	}

	found := false
	for _, c := range r.Changes {
		if c.Field == "enforcement.strike_limit" {
			found = true
			if c.Old != "3" || c.New != "1" {
				t.Errorf("expected 3 -> 1, got %s -> %s", c.Old, c.New)
			}
			if c.Comment != "stricter" {
				t.Errorf("expected 'stricter', got %q", c.Comment)
			}
		}
	}
	if !found {
		t.Error("expected enforcement.strike_limit change")
	}
}

func TestShortenedCountdownIsStricter(t *testing.T) {
	a := policy.Default()
	b := policy.Default()
	b.Enforcement.ReentryCountdown = policy.Duration(5 * time.Second)

	r := Diff(a, b)
	found := false
	for _, c := range r.Changes {
		if c.Field == "enforcement.reentry_countdown" {
			found = true
			if c.Comment != "stricter" {
				t.Errorf("expected 'stricter', got %q", c.Comment)
			}
		}
	}
	if !found {
		t.Error("expected enforcement.reentry_countdown change")
	}
}

func TestLongerDurationIsLooser(t *testing.T) {
	a := policy.Default()
	b := policy.Default()
	b.Quiz.DurationMinutes = 60

	r := Diff(a, b)
	for _, c := range r.Changes {
		if c.Field == "quiz.duration_minutes" {
			if c.Comment != "looser" {
				t.Errorf("expected 'looser', got %q", c.Comment)
			}
			return
		}
	}
	t.Error("expected quiz.duration_minutes change")
}

func TestWarningAddedAndRemoved(t *testing.T) {
	a := policy.Default()
	b := policy.Default()
	b.Quiz.Warnings = []deadline.Warning{
		{Seconds: 600, Message: "10 minutes remaining"},
		{Seconds: 60, Message: "1 minute remaining"},
	}

	r := Diff(a, b)
	var added, removed bool
	for _, wc := range r.WarningChanges {
		switch wc.Type {
		case "added":
			if strings.Contains(wc.Warning, "600s") {
				added = true
			}
		case "removed":
			if strings.Contains(wc.Warning, "300s") {
				removed = true
			}
		}
	}
	if !added {
		t.Error("expected 600s warning to be reported as added")
	}
	if !removed {
		t.Error("expected 300s warning to be reported as removed")
	}
}

func TestWarningReworded(t *testing.T) {
	a := policy.Default()
	b := policy.Default()
	b.Quiz.Warnings = []deadline.Warning{
		{Seconds: 300, Message: "five minutes left"},
		{Seconds: 60, Message: "1 minute remaining"},
	}

	r := Diff(a, b)
	for _, wc := range r.WarningChanges {
		if wc.Type == "changed" && strings.Contains(wc.Warning, "five minutes left") {
			return
		}
	}
	t.Error("expected reworded 300s warning to be reported as changed")
}

func TestMobileSignatureRemoved(t *testing.T) {
	a := policy.Default()
	b := policy.Default()
	var kept []string
	for _, s := range b.Gate.MobileSignatures {
		if s != "iPad" {
			kept = append(kept, s)
		}
	}
	b.Gate.MobileSignatures = kept

	r := Diff(a, b)
	for _, c := range r.Changes {
		if c.Field == "gate.mobile_signatures" && c.Comment == "removed" && c.Old == "iPad" {
			return
		}
	}
	t.Error("expected iPad signature removal to be reported")
}

func TestSubmitURLChange(t *testing.T) {
	a := policy.Default()
	b := policy.Default()
	b.SubmitURL = "https://lms.example.com/submit"

	r := Diff(a, b)
	for _, c := range r.Changes {
		if c.Field == "submit_url" && c.New == "https://lms.example.com/submit" {
			return
		}
	}
	t.Error("expected submit_url change")
}

func TestFormatTextNoChanges(t *testing.T) {
	r := Diff(policy.Default(), policy.Default())
	r.OldPath = "old.yaml"
	r.NewPath = "new.yaml"
	out := FormatText(r)
	if !strings.Contains(out, "No changes detected") {
		t.Errorf("expected no-changes message, got:\n%s", out)
	}
}

func TestFormatTextSections(t *testing.T) {
	a := policy.Default()
	b := policy.Default()
	b.Enforcement.StrikeLimit = 0
	b.Quiz.DurationMinutes = 45

	r := Diff(a, b)
	r.OldPath = "old.yaml"
	r.NewPath = "new.yaml"
	out := FormatText(r)

	if !strings.Contains(out, "Enforcement:") {
		t.Errorf("expected Enforcement section, got:\n%s", out)
	}
	if !strings.Contains(out, "Quiz:") {
		t.Errorf("expected Quiz section, got:\n%s", out)
	}
	if !strings.Contains(out, "strike_limit:") {
		t.Errorf("expected strike_limit line, got:\n%s", out)
	}
}

func TestFormatJSONRoundTrip(t *testing.T) {
	a := policy.Default()
	b := policy.Default()
	b.Enforcement.StrikeLimit = 2

	out, err := FormatJSON(Diff(a, b))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "enforcement.strike_limit") {
		t.Errorf("expected field in JSON, got:\n%s", out)
	}
}

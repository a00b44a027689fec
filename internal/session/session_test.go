package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Ryan-RCNR/proveit-proctor/internal/audit"
	"github.com/Ryan-RCNR/proveit-proctor/internal/clock"
	"github.com/Ryan-RCNR/proveit-proctor/internal/gate"
	"github.com/Ryan-RCNR/proveit-proctor/internal/policy"
	"github.com/Ryan-RCNR/proveit-proctor/internal/violation"
)

var t0 = time.Date(2026, 3, 9, 13, 0, 0, 0, time.UTC)

var desktopProbe = gate.Probe{
	TouchCapable:   false,
	ViewportWidth:  1920,
	ViewportHeight: 1080,
	Platform:       "Win32",
}

type captureSubmitter struct {
	mu    sync.Mutex
	calls []Submission
}

func (c *captureSubmitter) Submit(_ context.Context, sub Submission) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, sub)
	return nil
}

func (c *captureSubmitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *captureSubmitter) last(t *testing.T) Submission {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		t.Fatal("submitter was never invoked")
	}
	return c.calls[len(c.calls)-1]
}

// newStarted begins a session against a fake clock and advances past the
// initial grace period.
func newStarted(t *testing.T, clk *clock.Fake, sub Submitter) *Session {
	t.Helper()
	s := New(Options{Clock: clk, Submitter: sub})
	if _, err := s.Begin(context.Background(), desktopProbe); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	t.Cleanup(s.Teardown)
	clk.Advance(3 * time.Second)
	return s
}

func TestUnsupportedDeviceNeverStartsEnforcement(t *testing.T) {
	probes := []gate.Probe{
		{Platform: "iPhone", ViewportWidth: 390, ViewportHeight: 844, TouchCapable: true},
		{Platform: "Linux armv8l Android", ViewportWidth: 1920, ViewportHeight: 1080},
		{Platform: "Win32", TouchCapable: true, ViewportWidth: 800, ViewportHeight: 500},
	}
	for _, probe := range probes {
		s := New(Options{Clock: clock.NewFake(t0)})
		res, err := s.Begin(context.Background(), probe)
		if err != ErrUnsupportedDevice {
			t.Errorf("probe %+v: expected ErrUnsupportedDevice, got %v", probe, err)
		}
		if res.Supported {
			t.Errorf("probe %+v: expected unsupported", probe)
		}
		if s.Trail() != nil {
			t.Error("unsupported device must not start tracking")
		}
		if outcome, _ := s.Outcome(); outcome != OutcomeOpen {
			t.Errorf("expected open outcome, got %s", outcome)
		}
	}
}

func TestInstantViolationForcesSubmission(t *testing.T) {
	clk := clock.NewFake(t0)
	sub := &captureSubmitter{}
	s := newStarted(t, clk, sub)

	res, err := s.HandleEvent("copy_attempt")
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != violation.DecisionForced {
		t.Fatalf("expected forced, got %s", res.Decision)
	}

	got := sub.last(t)
	if !got.ForcedByLockdown || got.ForcedByTimeout {
		t.Errorf("expected lockdown flags, got timeout=%v lockdown=%v", got.ForcedByTimeout, got.ForcedByLockdown)
	}
	if got.Cause != CauseLockdown {
		t.Errorf("expected cause %q, got %q", CauseLockdown, got.Cause)
	}
	if len(got.Trail) != 1 || got.Trail[0].Kind != violation.KindCopyAttempt {
		t.Errorf("expected one copy_attempt in trail, got %+v", got.Trail)
	}

	if outcome, cause := s.Outcome(); outcome != OutcomeForced || cause != CauseLockdown {
		t.Errorf("expected forced/lockdown, got %s/%s", outcome, cause)
	}
}

func TestTimeExpiryForcesTimeoutSubmission(t *testing.T) {
	clk := clock.NewFake(t0)
	sub := &captureSubmitter{}
	s := newStarted(t, clk, sub)

	clk.Set(t0.Add(30 * time.Minute))
	s.tracker.Tick()

	got := sub.last(t)
	if !got.ForcedByTimeout || got.ForcedByLockdown {
		t.Errorf("expected timeout flags, got timeout=%v lockdown=%v", got.ForcedByTimeout, got.ForcedByLockdown)
	}
	if outcome, cause := s.Outcome(); outcome != OutcomeTimeExpired || cause != CauseTimeout {
		t.Errorf("expected time_expired/timeout, got %s/%s", outcome, cause)
	}
}

func TestNormalSubmission(t *testing.T) {
	clk := clock.NewFake(t0)
	sub := &captureSubmitter{}
	s := newStarted(t, clk, sub)

	s.SetAnswer("q1", "42")
	if err := s.SubmitAnswers(context.Background(), map[string]string{"q2": "yes"}); err != nil {
		t.Fatal(err)
	}

	got := sub.last(t)
	if got.ForcedByTimeout || got.ForcedByLockdown {
		t.Error("normal submission must not carry forced flags")
	}
	if got.Answers["q1"] != "42" || got.Answers["q2"] != "yes" {
		t.Errorf("answers not carried: %v", got.Answers)
	}
	if outcome, _ := s.Outcome(); outcome != OutcomeSubmitted {
		t.Errorf("expected submitted, got %s", outcome)
	}
}

func TestTerminalSignalFiresExactlyOnce(t *testing.T) {
	clk := clock.NewFake(t0)
	sub := &captureSubmitter{}
	s := newStarted(t, clk, sub)

	if _, err := s.HandleEvent("devtools_attempt"); err != nil {
		t.Fatal(err)
	}

	// A deadline expiry after the lockdown must not submit again.
	clk.Set(t0.Add(31 * time.Minute))
	s.tracker.Tick()
	if err := s.SubmitAnswers(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	if sub.count() != 1 {
		t.Fatalf("expected exactly one submission, got %d", sub.count())
	}
	if outcome, _ := s.Outcome(); outcome != OutcomeForced {
		t.Errorf("outcome must stay forced, got %s", outcome)
	}
}

func TestForcedSubmissionCarriesAnswerSnapshot(t *testing.T) {
	clk := clock.NewFake(t0)
	sub := &captureSubmitter{}
	s := newStarted(t, clk, sub)

	s.SetAnswer("q1", "draft answer")
	clk.Advance(time.Minute)
	if _, err := s.HandleEvent("paste_attempt"); err != nil {
		t.Fatal(err)
	}

	got := sub.last(t)
	if got.Answers["q1"] != "draft answer" {
		t.Errorf("expected in-progress answer in forced submission, got %v", got.Answers)
	}
}

func TestSecondEnvironmentalForcesThroughSession(t *testing.T) {
	clk := clock.NewFake(t0)
	sub := &captureSubmitter{}
	s := newStarted(t, clk, sub)

	res, err := s.HandleEvent("tab_switch")
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != violation.DecisionWarned {
		t.Fatalf("first strike: expected warned, got %s", res.Decision)
	}
	if sub.count() != 0 {
		t.Fatal("first strike must not submit")
	}

	clk.Advance(30 * time.Second)
	res, err = s.HandleEvent("window_blur")
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != violation.DecisionForced {
		t.Fatalf("second strike: expected forced, got %s", res.Decision)
	}
	got := sub.last(t)
	if !got.ForcedByLockdown {
		t.Error("expected lockdown submission")
	}
	if len(got.Trail) != 2 {
		t.Errorf("expected both violations in trail, got %d", len(got.Trail))
	}
}

func TestAuditTrailRecordsPostSubmissionEvents(t *testing.T) {
	clk := clock.NewFake(t0)
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	alog, err := audit.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	s := New(Options{Clock: clk, Log: alog})
	if _, err := s.Begin(context.Background(), desktopProbe); err != nil {
		t.Fatal(err)
	}
	clk.Advance(3 * time.Second)

	if _, err := s.HandleEvent("copy_attempt"); err != nil {
		t.Fatal(err)
	}
	// Delivered after the latch flipped but before teardown; still logged.
	res, err := s.HandleEvent("tab_switch")
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != violation.DecisionDiscardedSubmitted {
		t.Fatalf("expected discarded_submitted, got %s", res.Decision)
	}
	s.Teardown()
	alog.Close()

	if v := audit.Verify(path); !v.Valid {
		t.Fatalf("audit chain invalid: %s", v.Error)
	}
	result, err := audit.Replay(path, audit.ReplayFilter{SessionID: s.ID()})
	if err != nil {
		t.Fatal(err)
	}
	var sawPostSubmit bool
	for _, e := range result.Entries {
		if e.Type == audit.TypeHostEvent && e.Decision == "discarded_submitted" {
			sawPostSubmit = true
		}
	}
	if !sawPostSubmit {
		t.Error("expected the post-submission event in the audit log")
	}
	if result.Summary.Outcome != audit.TypeForced {
		t.Errorf("expected forced outcome in replay, got %s", result.Summary.Outcome)
	}
}

func TestTeardownStopsEventDelivery(t *testing.T) {
	clk := clock.NewFake(t0)
	s := newStarted(t, clk, nil)
	s.Teardown()

	if _, err := s.HandleEvent("tab_switch"); err != ErrNotRunning {
		t.Errorf("expected ErrNotRunning after teardown, got %v", err)
	}
}

func TestNotificationsForwarded(t *testing.T) {
	clk := clock.NewFake(t0)
	var (
		mu       sync.Mutex
		warnings []string
		terminal []string
	)
	s := New(Options{
		Clock: clk,
		Notify: Notifications{
			OnWarning: func(w violation.Warning) {
				mu.Lock()
				warnings = append(warnings, w.Message)
				mu.Unlock()
			},
			OnTerminal: func(outcome, cause string) {
				mu.Lock()
				terminal = append(terminal, outcome+"/"+cause)
				mu.Unlock()
			},
		},
	})
	if _, err := s.Begin(context.Background(), desktopProbe); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Teardown)
	clk.Advance(3 * time.Second)

	if _, err := s.HandleEvent("tab_switch"); err != nil {
		t.Fatal(err)
	}
	clk.Advance(10 * time.Second)
	if _, err := s.HandleEvent("cut_attempt"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(warnings) != 1 {
		t.Errorf("expected one warning, got %v", warnings)
	}
	if len(terminal) != 1 || terminal[0] != OutcomeForced+"/"+CauseLockdown {
		t.Errorf("expected one forced terminal, got %v", terminal)
	}
}

func TestPolicyStrikeLimitRespected(t *testing.T) {
	clk := clock.NewFake(t0)
	sub := &captureSubmitter{}
	pol := policy.Default()
	pol.Enforcement.StrikeLimit = 3

	s := New(Options{Clock: clk, Policy: pol, Submitter: sub})
	if _, err := s.Begin(context.Background(), desktopProbe); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Teardown)
	clk.Advance(3 * time.Second)

	for i := 0; i < 3; i++ {
		res, err := s.HandleEvent("tab_switch")
		if err != nil {
			t.Fatal(err)
		}
		if res.Decision != violation.DecisionWarned {
			t.Fatalf("strike %d: expected warned, got %s", i+1, res.Decision)
		}
		clk.Advance(20 * time.Second)
	}
	res, err := s.HandleEvent("tab_switch")
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != violation.DecisionForced {
		t.Fatalf("fourth strike: expected forced, got %s", res.Decision)
	}
	if sub.count() != 1 {
		t.Errorf("expected one submission, got %d", sub.count())
	}
}

func TestPolicyZeroStrikeLimitForcesFirstEnvironmental(t *testing.T) {
	clk := clock.NewFake(t0)
	sub := &captureSubmitter{}
	pol := policy.Default()
	pol.Enforcement.StrikeLimit = 0
	if err := pol.Validate(); err != nil {
		t.Fatalf("zero tolerance policy must validate: %v", err)
	}

	s := New(Options{Clock: clk, Policy: pol, Submitter: sub})
	if _, err := s.Begin(context.Background(), desktopProbe); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Teardown)
	clk.Advance(3 * time.Second)

	res, err := s.HandleEvent("tab_switch")
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != violation.DecisionForced {
		t.Fatalf("zero tolerance: expected forced on first environmental event, got %s", res.Decision)
	}
	got := sub.last(t)
	if !got.ForcedByLockdown {
		t.Error("expected lockdown-forced submission")
	}
}

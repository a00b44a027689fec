// Package scenario runs scripted sessions against the enforcement core on
// a fake clock: timed host events in, asserted terminal state out. Used to
// vet policy changes before they reach live quizzes.
package scenario

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Ryan-RCNR/proveit-proctor/internal/clock"
	"github.com/Ryan-RCNR/proveit-proctor/internal/gate"
	"github.com/Ryan-RCNR/proveit-proctor/internal/policy"
	"github.com/Ryan-RCNR/proveit-proctor/internal/session"
)

// pollStep is the simulated tick granularity.
const pollStep = 500 * time.Millisecond

var scriptProbe = gate.Probe{
	ViewportWidth:  1920,
	ViewportHeight: 1080,
	Platform:       "Win32",
}

// Run executes one scripted session under the given policy and compares
// the end state against the scenario's expectations.
func Run(s *Scenario, pol *policy.Config) (*RunResult, error) {
	cfg := *pol
	if s.DurationMinutes > 0 {
		cfg.Quiz.DurationMinutes = s.DurationMinutes
	}

	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)

	sess := session.New(session.Options{
		Clock:      clk,
		Policy:     &cfg,
		ManualPoll: true,
	})
	defer sess.Teardown()

	if _, err := sess.Begin(context.Background(), scriptProbe); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}

	steps := make([]Step, len(s.Steps))
	copy(steps, s.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].At.Std() < steps[j].At.Std()
	})

	end := runHorizon(s, &cfg, steps)

	next := 0
	for offset := time.Duration(0); offset <= end; offset += pollStep {
		clk.Set(start.Add(offset))
		for next < len(steps) && steps[next].At.Std() <= offset {
			if err := apply(sess, steps[next]); err != nil {
				return nil, fmt.Errorf("scenario %q step %d: %w", s.Name, next+1, err)
			}
			next++
		}
		sess.Poll()
	}

	outcome, cause := sess.Outcome()
	result := &RunResult{
		Name:       s.Name,
		Outcome:    outcome,
		Cause:      cause,
		Strikes:    sess.Snapshot().Strikes,
		Violations: len(sess.Trail()),
	}
	check(result, s.Expect)
	return result, nil
}

func apply(sess *session.Session, step Step) error {
	switch {
	case step.Event != "":
		_, err := sess.HandleEvent(step.Event)
		return err
	case step.Action == "fullscreen_reenter":
		return sess.FullscreenEntered()
	case step.Action == "fullscreen_denied":
		return sess.FullscreenDenied()
	case step.Action == "submit":
		return sess.SubmitAnswers(context.Background(), nil)
	default:
		return fmt.Errorf("step has neither event nor recognized action (got action %q)", step.Action)
	}
}

// runHorizon decides how long to keep the simulated clock running.
func runHorizon(s *Scenario, cfg *policy.Config, steps []Step) time.Duration {
	if s.RunFor.Std() > 0 {
		return s.RunFor.Std()
	}
	if s.Expect.Outcome == session.OutcomeTimeExpired {
		return time.Duration(cfg.Quiz.DurationMinutes)*time.Minute + time.Second
	}
	end := 30 * time.Second
	if len(steps) > 0 {
		end += steps[len(steps)-1].At.Std()
	}
	return end
}

func check(r *RunResult, e Expect) {
	r.Passed = true
	expect := func(field, want, got string) {
		if want != "" && want != got {
			r.Passed = false
			r.Mismatches = append(r.Mismatches, Mismatch{Field: field, Expected: want, Actual: got})
		}
	}
	expect("outcome", e.Outcome, r.Outcome)
	expect("cause", e.Cause, r.Cause)
	if e.Strikes != nil && *e.Strikes != r.Strikes {
		r.Passed = false
		r.Mismatches = append(r.Mismatches, Mismatch{
			Field:    "strikes",
			Expected: fmt.Sprintf("%d", *e.Strikes),
			Actual:   fmt.Sprintf("%d", r.Strikes),
		})
	}
	if e.Violations != nil && *e.Violations != r.Violations {
		r.Passed = false
		r.Mismatches = append(r.Mismatches, Mismatch{
			Field:    "violations",
			Expected: fmt.Sprintf("%d", *e.Violations),
			Actual:   fmt.Sprintf("%d", r.Violations),
		})
	}
}

// Load parses a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return &s, nil
}

// LoadAndRun loads a scenario file, loads the policy, and runs the script.
func LoadAndRun(path, policyPath string) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	pol, err := policy.Load(policyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	result, err := Run(s, pol)
	if err != nil {
		return nil, err
	}
	result.File = path
	return result, nil
}

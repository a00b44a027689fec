// Package sim replays recorded audit logs against a candidate policy and
// reports which host events would have been handled differently. Lets an
// instructor see the blast radius of a strike-limit or grace-period change
// before rolling it out.
package sim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Ryan-RCNR/proveit-proctor/internal/audit"
	"github.com/Ryan-RCNR/proveit-proctor/internal/clock"
	"github.com/Ryan-RCNR/proveit-proctor/internal/policy"
	"github.com/Ryan-RCNR/proveit-proctor/internal/violation"
)

// countdownStep is the granularity at which the replayed clock advances
// between events, so re-entry countdown expiry lands where it would live.
const countdownStep = 500 * time.Millisecond

// Simulate replays an audit log under the policy at policyPath and returns
// per-event decision diffs. Entries are grouped by session ID and replayed
// in order against a fresh monitor on a fake clock pinned to the recorded
// timestamps.
func Simulate(logPath, policyPath string) (*SimResult, error) {
	cfg, err := policy.Load(policyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	return SimulateWithPolicy(logPath, cfg)
}

// SimulateWithPolicy is Simulate with an already loaded policy.
func SimulateWithPolicy(logPath string, cfg *policy.Config) (*SimResult, error) {
	order, sessions, err := readAndGroup(logPath)
	if err != nil {
		return nil, err
	}

	result := &SimResult{}

	for _, id := range order {
		entries := sessions[id]
		diffs, total := replaySession(id, entries, cfg)
		result.TotalEvents += total
		for _, d := range diffs {
			result.Changes = append(result.Changes, d)
			result.ChangedEvents++
			if d.OldDecision != string(violation.DecisionForced) && d.NewDecision == string(violation.DecisionForced) {
				result.NewlyForced++
			}
			if d.OldDecision == string(violation.DecisionForced) && d.NewDecision != string(violation.DecisionForced) {
				result.NewlyTolerated++
			}
		}
	}

	return result, nil
}

// replaySession feeds one session's recorded host events through a fresh
// monitor under the candidate policy.
func replaySession(id string, entries []audit.Entry, cfg *policy.Config) ([]DiffEntry, int) {
	start, ok := firstTimestamp(entries)
	if !ok {
		return nil, 0
	}
	clk := clock.NewFake(start)

	strikeLimit := cfg.Enforcement.StrikeLimit
	mcfg := violation.Config{
		StrikeLimit:      &strikeLimit,
		GracePeriod:      cfg.Enforcement.GracePeriod.Std(),
		ReentryCountdown: cfg.Enforcement.ReentryCountdown.Std(),
		BlurSuppression:  cfg.Enforcement.BlurSuppression.Std(),
		WarningDisplay:   cfg.Enforcement.WarningDisplay.Std(),
	}
	m := violation.NewMonitor(clk, mcfg, violation.Callbacks{})
	m.Start()
	defer m.Teardown()

	var diffs []DiffEntry
	total := 0

	for _, e := range entries {
		ts, err := time.Parse(audit.TimestampFormat, e.Timestamp)
		if err != nil {
			continue
		}
		advanceTo(clk, m, ts)

		switch e.Type {
		case audit.TypeFullscreenEnter:
			m.FullscreenReentered()
		case audit.TypeFullscreenDenied:
			m.FullscreenDenied()
		case audit.TypeHostEvent:
			total++
			res := m.HandleEvent(e.Kind)
			newDecision := string(res.Decision)
			if newDecision != e.Decision {
				diffs = append(diffs, DiffEntry{
					Timestamp:   e.Timestamp,
					SessionID:   id,
					Kind:        e.Kind,
					OldDecision: e.Decision,
					NewDecision: newDecision,
					OldStrikes:  e.Strikes,
					NewStrikes:  res.Strikes,
				})
			}
		}
	}

	return diffs, total
}

// advanceTo walks the fake clock forward in countdown-poll steps so a
// re-entry window that expired between recorded events still fires.
func advanceTo(clk *clock.Fake, m *violation.Monitor, target time.Time) {
	for clk.Now().Add(countdownStep).Before(target) {
		clk.Advance(countdownStep)
		m.TickCountdown()
	}
	if clk.Now().Before(target) {
		clk.Set(target)
		m.TickCountdown()
	}
}

// readAndGroup reads the audit log and groups entries by session ID,
// preserving order of first appearance. Malformed lines are skipped.
func readAndGroup(logPath string) ([]string, map[string][]audit.Entry, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var order []string
	sessions := make(map[string][]audit.Entry)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry audit.Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry.SessionID == "" {
			continue
		}
		if _, seen := sessions[entry.SessionID]; !seen {
			order = append(order, entry.SessionID)
		}
		sessions[entry.SessionID] = append(sessions[entry.SessionID], entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read audit log: %w", err)
	}

	return order, sessions, nil
}

func firstTimestamp(entries []audit.Entry) (time.Time, bool) {
	for _, e := range entries {
		if ts, err := time.Parse(audit.TimestampFormat, e.Timestamp); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

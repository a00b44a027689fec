package audit

import (
	"path/filepath"
	"testing"
	"time"
)

// writeTestLog creates a temp audit log with a known session for testing.
func writeTestLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-audit.jsonl")
	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	base := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)

	entries := []Entry{
		{Timestamp: base.Format(TimestampFormat), SessionID: "s-aaa", Type: TypeSessionStart},
		{Timestamp: base.Add(2 * time.Second).Format(TimestampFormat), SessionID: "s-aaa", Type: TypeHostEvent, Kind: "window_blur", Class: "environmental", Decision: "discarded_grace"},
		{Timestamp: base.Add(4 * time.Second).Format(TimestampFormat), SessionID: "s-bbb", Type: TypeSessionStart},
		{Timestamp: base.Add(60 * time.Second).Format(TimestampFormat), SessionID: "s-aaa", Type: TypeHostEvent, Kind: "tab_switch", Class: "environmental", Decision: "warned", Occurrence: 1, Strikes: 1},
		{Timestamp: base.Add(61 * time.Second).Format(TimestampFormat), SessionID: "s-aaa", Type: TypeWarning, Message: "tab or window switch detected"},
		{Timestamp: base.Add(90 * time.Second).Format(TimestampFormat), SessionID: "s-aaa", Type: TypeHostEvent, Kind: "window_blur", Class: "environmental", Decision: "forced", Occurrence: 1, Strikes: 2},
		{Timestamp: base.Add(90 * time.Second).Format(TimestampFormat), SessionID: "s-aaa", Type: TypeForced, Cause: "lockdown", Message: "environmental strike limit exceeded"},
	}

	for _, e := range entries {
		if err := log.Record(e); err != nil {
			t.Fatal(err)
		}
	}

	return path
}

func TestReplayFiltersBySessionID(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{SessionID: "s-aaa"})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Entries) != 6 {
		t.Errorf("expected 6 entries for s-aaa, got %d", len(result.Entries))
	}
	for _, e := range result.Entries {
		if e.SessionID != "s-aaa" {
			t.Errorf("unexpected session ID: %s", e.SessionID)
		}
	}
}

func TestReplayTimeRange(t *testing.T) {
	path := writeTestLog(t)

	from := time.Date(2026, 3, 9, 14, 0, 30, 0, time.UTC)
	to := time.Date(2026, 3, 9, 14, 1, 5, 0, time.UTC)
	result, err := Replay(path, ReplayFilter{SessionID: "s-aaa", From: from, To: to})
	if err != nil {
		t.Fatal(err)
	}

	// Only the tab_switch event and its warning fall in the window.
	if len(result.Entries) != 2 {
		t.Errorf("expected 2 entries in time window, got %d", len(result.Entries))
	}
}

func TestReplayEmptyResult(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{SessionID: "s-nonexistent"})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Entries) != 0 {
		t.Errorf("expected 0 entries for unknown session, got %d", len(result.Entries))
	}
	if result.Summary.Total != 0 {
		t.Errorf("expected 0 total, got %d", result.Summary.Total)
	}
	if result.Summary.Outcome != "open" {
		t.Errorf("expected open outcome, got %s", result.Summary.Outcome)
	}
}

func TestReplaySummaryReconstructsSession(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{SessionID: "s-aaa"})
	if err != nil {
		t.Fatal(err)
	}

	s := result.Summary
	if s.Total != 6 {
		t.Errorf("total: expected 6, got %d", s.Total)
	}
	if s.Violations != 2 {
		t.Errorf("violations: expected 2, got %d", s.Violations)
	}
	if s.Discarded != 1 {
		t.Errorf("discarded: expected 1, got %d", s.Discarded)
	}
	if s.Strikes != 2 {
		t.Errorf("strikes: expected 2, got %d", s.Strikes)
	}
	if s.Outcome != TypeForced {
		t.Errorf("outcome: expected %s, got %s", TypeForced, s.Outcome)
	}
	if s.Cause != "lockdown" {
		t.Errorf("cause: expected lockdown, got %s", s.Cause)
	}
	if s.ByKind["tab_switch"] != 1 || s.ByKind["window_blur"] != 1 {
		t.Errorf("by-kind counts wrong: %v", s.ByKind)
	}
}

func TestReplayOpenSessionStaysOpen(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{SessionID: "s-bbb"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.Outcome != "open" {
		t.Errorf("expected open outcome for s-bbb, got %s", result.Summary.Outcome)
	}
}

package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ReplayFilter holds filtering criteria for session replay.
type ReplayFilter struct {
	SessionID string
	From      time.Time // zero value = no lower bound
	To        time.Time // zero value = no upper bound
}

// ReplaySummary is the reconstructed view of one session, rebuilt purely
// from the log. It lets an instructor confirm what the monitor decided and
// why, without trusting anything but the chained entries.
type ReplaySummary struct {
	Total          int            `json:"total"`
	Violations     int            `json:"violations"`
	ByKind         map[string]int `json:"by_kind,omitempty"`
	Strikes        int            `json:"strikes"`
	Discarded      int            `json:"discarded"`
	Warnings       int            `json:"warnings"`
	Outcome        string         `json:"outcome"` // "forced_submission", "time_expired", "submitted", or "open"
	Cause          string         `json:"cause,omitempty"`
	FirstTimestamp string         `json:"first_timestamp"`
	LastTimestamp  string         `json:"last_timestamp"`
}

// ReplayResult holds filtered entries and summary for a session replay.
type ReplayResult struct {
	SessionID string        `json:"session_id"`
	Entries   []Entry       `json:"entries"`
	Summary   ReplaySummary `json:"summary"`
}

// Replay reads the audit log and reconstructs the session matching the
// filter. Malformed lines are skipped, not fatal.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{
		SessionID: filter.SessionID,
		Summary:   ReplaySummary{Outcome: "open", ByKind: make(map[string]int)},
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}

		if entry.SessionID != filter.SessionID {
			continue
		}

		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, err := time.Parse(TimestampFormat, entry.Timestamp)
			if err != nil {
				continue // skip unparseable timestamps
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				continue
			}
		}

		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	if len(result.Summary.ByKind) == 0 {
		result.Summary.ByKind = nil
	}
	return result, nil
}

func updateSummary(s *ReplaySummary, entry Entry) {
	s.Total++

	switch entry.Type {
	case TypeHostEvent:
		switch entry.Decision {
		case "warned", "forced":
			s.Violations++
			s.ByKind[entry.Kind]++
			if entry.Strikes > s.Strikes {
				s.Strikes = entry.Strikes
			}
		default:
			s.Discarded++
		}
	case TypeWarning:
		s.Warnings++
	case TypeForced:
		s.Outcome = TypeForced
		s.Cause = entry.Cause
	case TypeTimeExpired:
		s.Outcome = TypeTimeExpired
		s.Cause = entry.Cause
	case TypeSubmitted:
		// A clean submission only counts when nothing forced it first.
		if s.Outcome == "open" {
			s.Outcome = TypeSubmitted
		}
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}

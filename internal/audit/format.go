package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Session: %s | No entries found.\n", result.SessionID)
	}

	var b strings.Builder

	first := formatDateTime(result.Summary.FirstTimestamp)
	last := formatTimeOnly(result.Summary.LastTimestamp)
	b.WriteString(fmt.Sprintf("Session: %s | %s–%s UTC\n", result.SessionID, first, last))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		ts := formatTimeOnly(e.Timestamp)
		label := strings.ToUpper(e.Type)
		detail := e.Message

		if e.Type == TypeHostEvent {
			label = strings.ToUpper(e.Decision)
			detail = e.Kind
			if e.Occurrence > 0 {
				detail = fmt.Sprintf("%s #%d", e.Kind, e.Occurrence)
			}
			if e.Class != "" {
				detail += " (" + e.Class + ")"
			}
		}
		if e.Cause != "" {
			detail += "  cause=" + e.Cause
		}

		b.WriteString(fmt.Sprintf("%-10s %-22s %s\n", ts, label, detail))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatDateTime(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s ReplaySummary) string {
	parts := []string{
		fmt.Sprintf("%d violations", s.Violations),
		fmt.Sprintf("%d strikes", s.Strikes),
	}
	if s.Discarded > 0 {
		parts = append(parts, fmt.Sprintf("%d discarded", s.Discarded))
	}
	if len(s.ByKind) > 0 {
		kinds := make([]string, 0, len(s.ByKind))
		for k, n := range s.ByKind {
			kinds = append(kinds, fmt.Sprintf("%s×%d", k, n))
		}
		sort.Strings(kinds)
		parts = append(parts, strings.Join(kinds, " "))
	}

	outcome := s.Outcome
	if s.Cause != "" {
		outcome += " (" + s.Cause + ")"
	}
	return fmt.Sprintf("Summary: %s | Outcome: %s\n", strings.Join(parts, ", "), outcome)
}

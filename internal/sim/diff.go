package sim

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DiffEntry represents one host event whose disposition changed under the
// candidate policy.
type DiffEntry struct {
	Timestamp   string `json:"ts"`
	SessionID   string `json:"session_id"`
	Kind        string `json:"kind"`
	OldDecision string `json:"old_decision"`
	NewDecision string `json:"new_decision"`
	OldStrikes  int    `json:"old_strikes"`
	NewStrikes  int    `json:"new_strikes"`
}

// SimResult holds the complete simulation output.
type SimResult struct {
	TotalEvents    int         `json:"total_events"`
	ChangedEvents  int         `json:"changed_events"`
	NewlyForced    int         `json:"newly_forced"`
	NewlyTolerated int         `json:"newly_tolerated"`
	Changes        []DiffEntry `json:"changes"`
}

// FormatText renders the simulation result as human-readable text.
func FormatText(r *SimResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Replayed %d recorded host events under the candidate policy.\n", r.TotalEvents)

	if len(r.Changes) == 0 {
		b.WriteString("\nNo changes detected.\n")
		return b.String()
	}

	b.WriteString("\n")
	for _, d := range r.Changes {
		ts := d.Timestamp
		if len(ts) > 19 {
			ts = ts[11:19]
		}
		fmt.Fprintf(&b, "  CHANGED  %s  %-10s %-16s %s -> %s\n",
			ts, shortID(d.SessionID), d.Kind, d.OldDecision, d.NewDecision)
	}

	fmt.Fprintf(&b, "\n%d of %d events changed.", r.ChangedEvents, r.TotalEvents)
	if r.NewlyForced > 0 || r.NewlyTolerated > 0 {
		fmt.Fprintf(&b, " %d newly forced, %d newly tolerated.", r.NewlyForced, r.NewlyTolerated)
	}
	b.WriteString("\n")

	return b.String()
}

// FormatJSON renders the simulation result as JSON.
func FormatJSON(r *SimResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sim result: %w", err)
	}
	return string(data), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders a list of run results as human-readable text.
func FormatText(results []*RunResult) string {
	var b strings.Builder

	totalFiles := len(results)
	fmt.Fprintf(&b, "Running %d scenario file", totalFiles)
	if totalFiles != 1 {
		b.WriteString("s")
	}
	b.WriteString("...\n\n")

	failed := 0
	for _, r := range results {
		if r.Passed {
			fmt.Fprintf(&b, "  PASS  %s (outcome %s", r.Name, r.Outcome)
			if r.Cause != "" {
				fmt.Fprintf(&b, ", cause %s", r.Cause)
			}
			b.WriteString(")\n")
			continue
		}
		failed++
		fmt.Fprintf(&b, "  FAIL  %s\n", r.Name)
		for _, m := range r.Mismatches {
			fmt.Fprintf(&b, "    FAIL  %-12s expected %s, got %s\n", m.Field, m.Expected, m.Actual)
		}
	}

	fmt.Fprintf(&b, "\n%d of %d scenarios passed.\n", totalFiles-failed, totalFiles)
	return b.String()
}

// FormatJSON renders run results as JSON.
func FormatJSON(results []*RunResult) (string, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	return string(data), nil
}

package policydiff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders the diff result as human-readable text.
func FormatText(r *DiffResult) string {
	if !r.HasChanges {
		return fmt.Sprintf("Policy diff: %s vs %s\n\nNo changes detected.\n", r.OldPath, r.NewPath)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Policy diff: %s vs %s\n", r.OldPath, r.NewPath)

	// Group scalar changes by section
	quiz := filterChanges(r.Changes, "quiz.")
	enforcement := filterChanges(r.Changes, "enforcement.")
	gateChanges := filterChanges(r.Changes, "gate.min_width", "gate.min_height")
	setChanges := filterChanges(r.Changes, "gate.mobile_signatures", "alerts")
	topLevel := filterChanges(r.Changes, "submit_url", "archive_path")

	writeSection(&b, "Quiz", "quiz.", quiz)
	writeSection(&b, "Enforcement", "enforcement.", enforcement)
	writeSection(&b, "Gate", "gate.", gateChanges)

	if len(r.WarningChanges) > 0 {
		b.WriteString("\n  Deadline Warnings:\n")
		for _, wc := range r.WarningChanges {
			switch wc.Type {
			case "added":
				fmt.Fprintf(&b, "    + %s\n", wc.Warning)
			case "removed":
				fmt.Fprintf(&b, "    - %s\n", wc.Warning)
			case "changed":
				fmt.Fprintf(&b, "    ~ %s\n", wc.Warning)
			}
		}
	}

	if len(setChanges) > 0 {
		b.WriteString("\n")
		for _, c := range setChanges {
			switch c.Comment {
			case "added":
				fmt.Fprintf(&b, "  %s: + %s\n", c.Field, c.New)
			case "removed":
				fmt.Fprintf(&b, "  %s: - %s\n", c.Field, c.Old)
			}
		}
	}

	if len(topLevel) > 0 {
		b.WriteString("\n")
		for _, c := range topLevel {
			fmt.Fprintf(&b, "  %-16s %q -> %q\n", c.Field+":", c.Old, c.New)
		}
	}

	return b.String()
}

// FormatJSON renders the diff result as JSON.
func FormatJSON(r *DiffResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal diff result: %w", err)
	}
	return string(data), nil
}

func writeSection(b *strings.Builder, title, prefix string, changes []Change) {
	if len(changes) == 0 {
		return
	}
	fmt.Fprintf(b, "\n  %s:\n", title)
	for _, c := range changes {
		name := strings.TrimPrefix(c.Field, prefix)
		fmt.Fprintf(b, "    %-20s %s -> %s", name+":", c.Old, c.New)
		if c.Comment != "" {
			fmt.Fprintf(b, "  (%s)", c.Comment)
		}
		b.WriteString("\n")
	}
}

func filterChanges(changes []Change, prefixes ...string) []Change {
	var out []Change
	for _, c := range changes {
		for _, p := range prefixes {
			if strings.HasPrefix(c.Field, p) || c.Field == p {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event Event) ([]byte, error) {
	return json.Marshal(event)
}

func formatSlack(event Event) ([]byte, error) {
	fields := []any{
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Session:* %s", event.SessionID)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Message:* %s", event.Message)},
	}
	if event.Kind != "" {
		fields = append(fields,
			map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Kind:* %s (#%d)", event.Kind, event.Occurrence)},
			map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Class:* %s", event.Class)},
		)
	}
	if event.Cause != "" {
		fields = append(fields,
			map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Cause:* %s", event.Cause)})
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("proctor: %s", event.Type),
				},
			},
			map[string]any{
				"type":   "section",
				"fields": fields,
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event Event) ([]byte, error) {
	severity := "info"
	switch event.Type {
	case EventForcedSubmission:
		severity = "critical"
	case EventViolation:
		severity = "error"
	case EventWarning:
		severity = "warning"
	}

	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("proctor %s: session %s", event.Type, event.SessionID),
			"severity": severity,
			"source":   "proveit-proctor",
			"custom_details": map[string]any{
				"session_id": event.SessionID,
				"kind":       event.Kind,
				"class":      event.Class,
				"occurrence": event.Occurrence,
				"strikes":    event.Strikes,
				"cause":      event.Cause,
				"message":    event.Message,
			},
		},
	}
	return json.Marshal(payload)
}

// Package payload provides payload builders for the notification channels.
package payload

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/channel"
)

// kindTitles maps trigger kinds to human-readable headlines.
var kindTitles = map[string]string{
	"PROLONGED_INACTIVITY": "No activity detected",
	"VITAL_OUT_OF_RANGE":   "Health reading out of range",
	"MANUAL_REPORT":        "Help requested",
	"DISTRESS_SIGNAL":      "Distress signal",
}

// Headline returns the short human-readable summary line for a message.
func Headline(msg *channel.Message) string {
	title, ok := kindTitles[msg.Kind]
	if !ok {
		title = "Safety alert"
	}
	if msg.PatientName != "" {
		return fmt.Sprintf("%s: %s", title, msg.PatientName)
	}
	return title
}

// EmailPayload represents email message content.
type EmailPayload struct {
	Subject string
	Body    string
}

// BuildEmailPayload builds email subject and body from a message.
func BuildEmailPayload(msg *channel.Message) EmailPayload {
	subject := fmt.Sprintf("[%s] %s", msg.Severity, Headline(msg))
	return EmailPayload{
		Subject: subject,
		Body:    buildEmailBody(msg),
	}
}

func buildEmailBody(msg *channel.Message) string {
	var sb strings.Builder
	sb.WriteString("Safety Alert\n")
	sb.WriteString("============\n\n")
	sb.WriteString(fmt.Sprintf("%s\n\n", Headline(msg)))
	sb.WriteString(fmt.Sprintf("Severity: %s\n", msg.Severity))
	sb.WriteString(fmt.Sprintf("Triggered: %s\n", msg.CreatedAt.Format("Mon, 2 Jan 2006 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Alert ID: %s\n", msg.AlertID))
	if msg.Round > 0 {
		sb.WriteString(fmt.Sprintf("Escalation round: %d (earlier notifications went unanswered)\n", msg.Round))
	}

	if len(msg.Context) > 0 {
		sb.WriteString("\nDetails:\n")
		for _, k := range sortedKeys(msg.Context) {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, msg.Context[k]))
		}
	}

	sb.WriteString("\nPlease check in and acknowledge this alert.\n")
	return sb.String()
}

// BuildText builds the single-line text used by the bot and gateway channels.
func BuildText(msg *channel.Message) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⚠ [%s] %s", msg.Severity, Headline(msg)))
	if msg.Round > 0 {
		sb.WriteString(fmt.Sprintf(" (escalation round %d)", msg.Round))
	}
	if len(msg.Context) > 0 {
		parts := make([]string, 0, len(msg.Context))
		for _, k := range sortedKeys(msg.Context) {
			parts = append(parts, fmt.Sprintf("%s: %s", k, msg.Context[k]))
		}
		sb.WriteString(" - " + strings.Join(parts, ", "))
	}
	sb.WriteString(". Please check in and acknowledge.")
	return sb.String()
}

// PushPayload represents a push notification payload.
type PushPayload struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Priority string            `json:"priority"`
	AlertID  string            `json:"alert_id"`
	Data     map[string]string `json:"data,omitempty"`
}

// BuildPushPayload builds the push notification payload from a message.
func BuildPushPayload(msg *channel.Message) PushPayload {
	priority := "normal"
	if msg.Severity == "HIGH" || msg.Severity == "CRITICAL" {
		priority = "high"
	}
	return PushPayload{
		Title:    Headline(msg),
		Body:     fmt.Sprintf("Severity %s. Tap to acknowledge.", msg.Severity),
		Priority: priority,
		AlertID:  msg.AlertID,
		Data:     msg.Context,
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

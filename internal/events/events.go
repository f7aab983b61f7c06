// Package events defines the event structures exchanged over Kafka.
package events

import "time"

// Lifecycle event types published to the alerts.lifecycle topic.
const (
	TypeAlertCreated      = "alert.created"
	TypeAlertEscalated    = "alert.escalated"
	TypeAlertAcknowledged = "alert.acknowledged"
	TypeAlertResolved     = "alert.resolved"
	TypeAlertFalseAlarm   = "alert.false_alarm"
)

// SchemaVersion is the current lifecycle/trigger event schema version.
const SchemaVersion = 1

// AlertTrigger is a trigger event consumed from the alerts.trigger topic.
// The sensor-inactivity and health-metric pipelines publish these; the event
// carries a patient identifier (contact address), not an internal patient id.
type AlertTrigger struct {
	EventID           string            `json:"event_id"`
	PatientIdentifier string            `json:"patient_identifier"`
	Kind              string            `json:"kind"`
	Context           map[string]string `json:"context,omitempty"`
	SeverityHint      string            `json:"severity_hint,omitempty"`
	SchemaVersion     int               `json:"schema_version"`
}

// AlertLifecycle is a lifecycle event published to the alerts.lifecycle topic
// whenever an alert changes state. Downstream dashboards and the chat
// subsystem consume these.
type AlertLifecycle struct {
	EventType       string    `json:"event_type"`
	AlertID         string    `json:"alert_id"`
	PatientID       string    `json:"patient_id"`
	Kind            string    `json:"kind"`
	Severity        string    `json:"severity"`
	Status          string    `json:"status"`
	EscalationLevel int       `json:"escalation_level"`
	ActorID         string    `json:"actor_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
	SchemaVersion   int       `json:"schema_version"`
}

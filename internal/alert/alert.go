// Package alert defines the alert domain model and the state machine that
// owns an alert's lifecycle: creation, acknowledgment, resolution, and
// escalation.
package alert

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the trigger category of an alert.
type Kind string

const (
	KindProlongedInactivity Kind = "PROLONGED_INACTIVITY"
	KindVitalOutOfRange     Kind = "VITAL_OUT_OF_RANGE"
	KindManualReport        Kind = "MANUAL_REPORT"
	KindDistressSignal      Kind = "DISTRESS_SIGNAL"
)

// ParseKind validates a trigger kind string and returns the closed enum value.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case KindProlongedInactivity, KindVitalOutOfRange, KindManualReport, KindDistressSignal:
		return k, nil
	}
	return "", fmt.Errorf("unknown alert kind: %q", s)
}

// Severity is the urgency level of an alert. Severity is monotonically
// non-decreasing over an alert's lifetime.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordering value of the severity (higher is more urgent).
// Unknown severities rank below LOW.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Max returns the more urgent of the two severities.
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// ParseSeverity validates a severity string and returns the closed enum value.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("unknown severity: %q", s)
	}
	return sev, nil
}

// defaultSeverity maps each trigger kind to the severity an alert starts at.
var defaultSeverity = map[Kind]Severity{
	KindProlongedInactivity: SeverityMedium,
	KindVitalOutOfRange:     SeverityHigh,
	KindManualReport:        SeverityMedium,
	KindDistressSignal:      SeverityCritical,
}

// DefaultSeverity returns the starting severity for a trigger kind.
func DefaultSeverity(k Kind) Severity {
	if sev, ok := defaultSeverity[k]; ok {
		return sev
	}
	return SeverityMedium
}

// Status is the lifecycle state of an alert.
type Status string

const (
	StatusActive       Status = "ACTIVE"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusResolved     Status = "RESOLVED"
	StatusFalseAlarm   Status = "FALSE_ALARM"
)

// ParseStatus validates a status string and returns the closed enum value.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusActive, StatusAcknowledged, StatusResolved, StatusFalseAlarm:
		return st, nil
	}
	return "", fmt.Errorf("unknown alert status: %q", s)
}

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusFalseAlarm
}

// String returns the status as a string.
func (s Status) String() string {
	return string(s)
}

// Alert is a tracked safety event. It is never deleted: terminal transitions
// leave the record in place as the permanent audit trail.
type Alert struct {
	AlertID   string            `json:"alert_id"`
	PatientID string            `json:"patient_id"`
	Kind      Kind              `json:"kind"`
	Severity  Severity          `json:"severity"`
	Status    Status            `json:"status"`
	Context   map[string]string `json:"context"`

	// EscalationLevel is the number of escalation steps already applied.
	// It doubles as the index of the next policy step to run.
	EscalationLevel int `json:"escalation_level"`

	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastEscalatedAt *time.Time `json:"last_escalated_at,omitempty"`
	AcknowledgedBy  *string    `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolutionNote  string     `json:"resolution_note,omitempty"`
}

// AttemptOutcome is the recorded result of one notification attempt.
type AttemptOutcome string

const (
	OutcomeSent    AttemptOutcome = "SENT"
	OutcomeFailed  AttemptOutcome = "FAILED"
	OutcomeSkipped AttemptOutcome = "SKIPPED"
)

// NotificationAttempt is one entry in an alert's append-only audit log:
// a single (recipient, channel) delivery attempt in one dispatch round.
type NotificationAttempt struct {
	AttemptID   string         `json:"attempt_id"`
	AlertID     string         `json:"alert_id"`
	RecipientID string         `json:"recipient_id"`
	Channel     string         `json:"channel"`
	Round       int            `json:"round"`
	Outcome     AttemptOutcome `json:"outcome"`
	Reason      string         `json:"reason,omitempty"`
	AttemptedAt time.Time      `json:"attempted_at"`
}

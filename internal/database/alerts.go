package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/alert"
)

const alertColumns = `alert_id, patient_id, kind, severity, status, context, escalation_level,
		acknowledged_by, acknowledged_at, resolved_at, resolution_note, last_escalated_at, created_at, updated_at`

// InsertAlert persists a newly created alert.
func (db *DB) InsertAlert(ctx context.Context, a *alert.Alert) error {
	contextJSON, err := json.Marshal(a.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal alert context: %w", err)
	}

	query := `
		INSERT INTO alerts (alert_id, patient_id, kind, severity, status, context, escalation_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = db.conn.ExecContext(ctx, query,
		a.AlertID,
		a.PatientID,
		string(a.Kind),
		string(a.Severity),
		string(a.Status),
		string(contextJSON),
		a.EscalationLevel,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	slog.Debug("Inserted alert",
		"alert_id", a.AlertID,
		"patient_id", a.PatientID,
		"kind", string(a.Kind),
		"severity", string(a.Severity),
	)

	return nil
}

// GetAlert retrieves an alert by ID.
func (db *DB) GetAlert(ctx context.Context, alertID string) (*alert.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE alert_id = $1
	`
	a, err := scanAlert(db.conn.QueryRowContext(ctx, query, alertID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert %s: %w", alertID, alert.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// ListActiveAlerts returns all alerts still in the active state, oldest
// first. Used at startup to re-arm escalation timers.
func (db *DB) ListActiveAlerts(ctx context.Context) ([]*alert.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE status = $1
		ORDER BY created_at ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, string(alert.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}

// AcknowledgeAlert transitions an alert from active to acknowledged. The
// transition is a compare-and-set on the current status: of two concurrent
// acknowledgements exactly one succeeds and the other gets
// alert.ErrInvalidTransition.
func (db *DB) AcknowledgeAlert(ctx context.Context, alertID, actorID string) error {
	query := `
		UPDATE alerts
		SET status = $2, acknowledged_by = $3, acknowledged_at = NOW(), updated_at = NOW()
		WHERE alert_id = $1 AND status = $4
	`
	result, err := db.conn.ExecContext(ctx, query,
		alertID,
		string(alert.StatusAcknowledged),
		actorID,
		string(alert.StatusActive),
	)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return db.transitionConflict(ctx, alertID, alert.StatusAcknowledged)
	}

	slog.Debug("Acknowledged alert", "alert_id", alertID, "actor_id", actorID)
	return nil
}

// ResolveAlert transitions an alert from active or acknowledged to resolved,
// or to false_alarm when falseAlarm is set. Same compare-and-set discipline
// as AcknowledgeAlert.
func (db *DB) ResolveAlert(ctx context.Context, alertID, actorID, note string, falseAlarm bool) error {
	target := alert.StatusResolved
	if falseAlarm {
		target = alert.StatusFalseAlarm
	}

	query := `
		UPDATE alerts
		SET status = $2, resolved_at = NOW(), resolution_note = $3, updated_at = NOW(),
			acknowledged_by = COALESCE(acknowledged_by, $4)
		WHERE alert_id = $1 AND status = ANY($5)
	`
	result, err := db.conn.ExecContext(ctx, query,
		alertID,
		string(target),
		note,
		actorID,
		fromStates(alert.StatusActive, alert.StatusAcknowledged),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return db.transitionConflict(ctx, alertID, target)
	}

	slog.Debug("Resolved alert", "alert_id", alertID, "actor_id", actorID, "status", string(target))
	return nil
}

// RecordEscalation bumps an alert's escalation level and severity. The WHERE
// clause pins both the status and the expected current level, so a timer
// firing against an already-escalated or closed alert is a silent no-op.
// Returns true if the escalation was applied.
func (db *DB) RecordEscalation(ctx context.Context, alertID string, fromLevel int, severity alert.Severity) (bool, error) {
	query := `
		UPDATE alerts
		SET escalation_level = escalation_level + 1, severity = $2, last_escalated_at = NOW(), updated_at = NOW()
		WHERE alert_id = $1 AND status = $3 AND escalation_level = $4
	`
	result, err := db.conn.ExecContext(ctx, query,
		alertID,
		string(severity),
		string(alert.StatusActive),
		fromLevel,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record escalation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func fromStates(states ...alert.Status) any {
	vals := make([]string, len(states))
	for i, s := range states {
		vals[i] = string(s)
	}
	return pq.Array(vals)
}

// transitionConflict distinguishes a missing alert from a state conflict
// after a zero-row compare-and-set update.
func (db *DB) transitionConflict(ctx context.Context, alertID string, target alert.Status) error {
	var current string
	err := db.conn.QueryRowContext(ctx, `SELECT status FROM alerts WHERE alert_id = $1`, alertID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("alert %s: %w", alertID, alert.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check alert status: %w", err)
	}
	return fmt.Errorf("alert %s is %s, cannot transition to %s: %w",
		alertID, current, string(target), alert.ErrInvalidTransition)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(row scanner) (*alert.Alert, error) {
	var a alert.Alert
	var kind, severity, status string
	var contextJSON sql.NullString
	var acknowledgedBy, resolutionNote sql.NullString
	var acknowledgedAt, resolvedAt, lastEscalatedAt sql.NullTime

	err := row.Scan(
		&a.AlertID,
		&a.PatientID,
		&kind,
		&severity,
		&status,
		&contextJSON,
		&a.EscalationLevel,
		&acknowledgedBy,
		&acknowledgedAt,
		&resolvedAt,
		&resolutionNote,
		&lastEscalatedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Kind = alert.Kind(kind)
	a.Severity = alert.Severity(severity)
	a.Status = alert.Status(status)

	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &a.Context); err != nil {
			slog.Warn("Failed to unmarshal alert context JSON", "error", err, "alert_id", a.AlertID)
			a.Context = make(map[string]string)
		}
	} else {
		a.Context = make(map[string]string)
	}

	if acknowledgedBy.Valid {
		a.AcknowledgedBy = &acknowledgedBy.String
	}
	if resolutionNote.Valid {
		a.ResolutionNote = resolutionNote.String
	}
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		a.AcknowledgedAt = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	if lastEscalatedAt.Valid {
		t := lastEscalatedAt.Time
		a.LastEscalatedAt = &t
	}

	return &a, nil
}

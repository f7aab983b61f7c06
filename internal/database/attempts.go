package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/alert"
)

// AppendAttempt records one notification attempt in the audit log. The log
// is append-only: attempts are never updated or deleted.
func (db *DB) AppendAttempt(ctx context.Context, att *alert.NotificationAttempt) error {
	query := `
		INSERT INTO notification_attempts (attempt_id, alert_id, recipient_id, channel, round, outcome, reason, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.conn.ExecContext(ctx, query,
		att.AttemptID,
		att.AlertID,
		att.RecipientID,
		att.Channel,
		att.Round,
		string(att.Outcome),
		att.Reason,
		att.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append notification attempt: %w", err)
	}

	slog.Debug("Recorded notification attempt",
		"alert_id", att.AlertID,
		"recipient_id", att.RecipientID,
		"channel", att.Channel,
		"outcome", string(att.Outcome),
	)

	return nil
}

// ListAttempts returns the full attempt history for an alert in the order
// the attempts were made.
func (db *DB) ListAttempts(ctx context.Context, alertID string) ([]*alert.NotificationAttempt, error) {
	query := `
		SELECT attempt_id, alert_id, recipient_id, channel, round, outcome, reason, attempted_at
		FROM notification_attempts
		WHERE alert_id = $1
		ORDER BY attempted_at ASC, attempt_id ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*alert.NotificationAttempt
	for rows.Next() {
		var att alert.NotificationAttempt
		var outcome string
		if err := rows.Scan(
			&att.AttemptID,
			&att.AlertID,
			&att.RecipientID,
			&att.Channel,
			&att.Round,
			&outcome,
			&att.Reason,
			&att.AttemptedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification attempt: %w", err)
		}
		att.Outcome = alert.AttemptOutcome(outcome)
		attempts = append(attempts, &att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification attempts: %w", err)
	}
	return attempts, nil
}

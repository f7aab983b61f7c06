package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/alert"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/permissions"
)

// AlertEligibleCaregivers returns the active care relationships for a
// patient whose caregivers are allowed to receive alerts, joined with the
// caregivers' contact methods. A query failure is reported as
// alert.ErrDirectoryUnavailable so callers can fail closed.
func (db *DB) AlertEligibleCaregivers(ctx context.Context, patientID string) ([]permissions.CareEdge, error) {
	query := `
		SELECT c.caregiver_id, c.name, r.priority, r.created_at,
			COALESCE(c.email, ''), COALESCE(c.phone, ''), COALESCE(c.bot_chat_id, '')
		FROM care_relationships r
		JOIN caregivers c ON c.caregiver_id = r.caregiver_id
		WHERE r.patient_id = $1 AND r.status = 'active' AND r.can_receive_alerts = TRUE
		ORDER BY r.priority ASC, r.created_at ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query care relationships: %w: %w", err, alert.ErrDirectoryUnavailable)
	}
	defer rows.Close()

	var edges []permissions.CareEdge
	for rows.Next() {
		var edge permissions.CareEdge
		if err := rows.Scan(
			&edge.CaregiverID,
			&edge.Name,
			&edge.Priority,
			&edge.CreatedAt,
			&edge.Email,
			&edge.Phone,
			&edge.BotChatID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan care relationship: %w: %w", err, alert.ErrDirectoryUnavailable)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating care relationships: %w: %w", err, alert.ErrDirectoryUnavailable)
	}

	return edges, nil
}

// PatientName returns a patient's display name, or an empty string for an
// unknown patient.
func (db *DB) PatientName(ctx context.Context, patientID string) (string, error) {
	var name string
	err := db.conn.QueryRowContext(ctx, `SELECT name FROM patients WHERE patient_id = $1`, patientID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query patient name: %w", err)
	}
	return name, nil
}

// FindPatientByIdentifier resolves a trigger's patient identifier to a
// patient ID. The identifier may be the patient ID itself, or a registered
// email or phone. An unknown identifier yields alert.ErrSubjectNotFound.
func (db *DB) FindPatientByIdentifier(ctx context.Context, identifier string) (string, error) {
	query := `
		SELECT patient_id
		FROM patients
		WHERE patient_id = $1 OR email = $1 OR phone = $1
		LIMIT 1
	`
	var patientID string
	err := db.conn.QueryRowContext(ctx, query, identifier).Scan(&patientID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("patient identifier %q: %w", identifier, alert.ErrSubjectNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve patient identifier: %w", err)
	}
	return patientID, nil
}

// Package database provides tests for database operations.
// These tests use sqlmock to mock database interactions.
package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/alert"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewDBWithConn(conn), mock
}

func alertColumnRows(a *alert.Alert) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"alert_id", "patient_id", "kind", "severity", "status", "context", "escalation_level",
		"acknowledged_by", "acknowledged_at", "resolved_at", "resolution_note", "last_escalated_at",
		"created_at", "updated_at",
	}).AddRow(
		a.AlertID, a.PatientID, string(a.Kind), string(a.Severity), string(a.Status),
		`{"room":"bedroom"}`, a.EscalationLevel,
		nil, nil, nil, nil, nil,
		a.CreatedAt, a.UpdatedAt,
	)
}

func TestGetAlert(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	want := &alert.Alert{
		AlertID:   "alert-1",
		PatientID: "pat-1",
		Kind:      alert.KindVitalOutOfRange,
		Severity:  alert.SeverityHigh,
		Status:    alert.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectQuery("SELECT (.+) FROM alerts").
		WithArgs("alert-1").
		WillReturnRows(alertColumnRows(want))

	got, err := db.GetAlert(context.Background(), "alert-1")
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if got.AlertID != want.AlertID || got.Status != alert.StatusActive {
		t.Errorf("got = %+v", got)
	}
	if got.Context["room"] != "bedroom" {
		t.Errorf("context = %v, want room=bedroom", got.Context)
	}
}

func TestGetAlertNotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT (.+) FROM alerts").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := db.GetAlert(context.Background(), "missing")
	if !errors.Is(err, alert.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("UPDATE alerts").
		WithArgs("alert-1", string(alert.StatusAcknowledged), "cg-1", string(alert.StatusActive)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := db.AcknowledgeAlert(context.Background(), "alert-1", "cg-1"); err != nil {
		t.Fatalf("AcknowledgeAlert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAcknowledgeAlertConflict(t *testing.T) {
	db, mock := newMockDB(t)

	// Compare-and-set matches no row; the follow-up status read classifies it.
	mock.ExpectExec("UPDATE alerts").
		WithArgs("alert-1", string(alert.StatusAcknowledged), "cg-1", string(alert.StatusActive)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM alerts").
		WithArgs("alert-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("RESOLVED"))

	err := db.AcknowledgeAlert(context.Background(), "alert-1", "cg-1")
	if !errors.Is(err, alert.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestAcknowledgeAlertMissing(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("UPDATE alerts").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM alerts").
		WithArgs("alert-1").
		WillReturnError(sql.ErrNoRows)

	err := db.AcknowledgeAlert(context.Background(), "alert-1", "cg-1")
	if !errors.Is(err, alert.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveAlertFalseAlarm(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("UPDATE alerts").
		WithArgs("alert-1", string(alert.StatusFalseAlarm), "sensor glitch", "cg-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := db.ResolveAlert(context.Background(), "alert-1", "cg-1", "sensor glitch", true); err != nil {
		t.Fatalf("ResolveAlert: %v", err)
	}
}

func TestRecordEscalation(t *testing.T) {
	db, mock := newMockDB(t)

	tests := []struct {
		name         string
		rowsAffected int64
		want         bool
	}{
		{name: "applied", rowsAffected: 1, want: true},
		{name: "lost race", rowsAffected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectExec("UPDATE alerts").
				WithArgs("alert-1", string(alert.SeverityHigh), string(alert.StatusActive), 0).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			applied, err := db.RecordEscalation(context.Background(), "alert-1", 0, alert.SeverityHigh)
			if err != nil {
				t.Fatalf("RecordEscalation: %v", err)
			}
			if applied != tt.want {
				t.Errorf("applied = %v, want %v", applied, tt.want)
			}
		})
	}
}

func TestInsertAlert(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	a := &alert.Alert{
		AlertID:   "alert-1",
		PatientID: "pat-1",
		Kind:      alert.KindManualReport,
		Severity:  alert.SeverityMedium,
		Status:    alert.StatusActive,
		Context:   map[string]string{"note": "reported by neighbor"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO alerts").
		WithArgs("alert-1", "pat-1", "MANUAL_REPORT", "MEDIUM", "ACTIVE",
			`{"note":"reported by neighbor"}`, 0, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := db.InsertAlert(context.Background(), a); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
}

func TestAppendAndListAttempts(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	att := &alert.NotificationAttempt{
		AttemptID:   "att-1",
		AlertID:     "alert-1",
		RecipientID: "cg-1",
		Channel:     "email",
		Round:       0,
		Outcome:     alert.OutcomeSent,
		AttemptedAt: now,
	}

	mock.ExpectExec("INSERT INTO notification_attempts").
		WithArgs("att-1", "alert-1", "cg-1", "email", 0, "SENT", "", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := db.AppendAttempt(context.Background(), att); err != nil {
		t.Fatalf("AppendAttempt: %v", err)
	}

	mock.ExpectQuery("SELECT (.+) FROM notification_attempts").
		WithArgs("alert-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"attempt_id", "alert_id", "recipient_id", "channel", "round", "outcome", "reason", "attempted_at",
		}).AddRow("att-1", "alert-1", "cg-1", "email", 0, "SENT", "", now))

	attempts, err := db.ListAttempts(context.Background(), "alert-1")
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Outcome != alert.OutcomeSent {
		t.Errorf("attempts = %+v", attempts)
	}
}

func TestFindPatientByIdentifier(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT patient_id").
		WithArgs("maria@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"patient_id"}).AddRow("pat-1"))

	patientID, err := db.FindPatientByIdentifier(context.Background(), "maria@example.com")
	if err != nil {
		t.Fatalf("FindPatientByIdentifier: %v", err)
	}
	if patientID != "pat-1" {
		t.Errorf("patient id = %s, want pat-1", patientID)
	}
}

func TestFindPatientByIdentifierUnknown(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT patient_id").
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	_, err := db.FindPatientByIdentifier(context.Background(), "nobody")
	if !errors.Is(err, alert.ErrSubjectNotFound) {
		t.Fatalf("err = %v, want ErrSubjectNotFound", err)
	}
}

func TestAlertEligibleCaregiversUnavailable(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT (.+) FROM care_relationships").
		WithArgs("pat-1").
		WillReturnError(errors.New("connection refused"))

	_, err := db.AlertEligibleCaregivers(context.Background(), "pat-1")
	if !errors.Is(err, alert.ErrDirectoryUnavailable) {
		t.Fatalf("err = %v, want ErrDirectoryUnavailable", err)
	}
}

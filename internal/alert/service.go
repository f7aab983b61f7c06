package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/events"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/metrics"
)

// initialRecipientTier limits the first notification round to primary
// caregivers; escalation steps widen the audience.
const initialRecipientTier = 1

// Store is the alert persistence the service needs.
type Store interface {
	InsertAlert(ctx context.Context, a *Alert) error
	GetAlert(ctx context.Context, alertID string) (*Alert, error)
	AcknowledgeAlert(ctx context.Context, alertID, actorID string) error
	ResolveAlert(ctx context.Context, alertID, actorID, note string, falseAlarm bool) error
	ListAttempts(ctx context.Context, alertID string) ([]*NotificationAttempt, error)
}

// Authorizer checks whether an actor holds an active care relationship with
// a patient.
type Authorizer interface {
	IsEligible(ctx context.Context, patientID, recipientID string) (bool, error)
}

// Dispatcher starts a notification round for an alert.
type Dispatcher interface {
	Dispatch(ctx context.Context, a *Alert, maxTier int) error
}

// Timers is the escalation scheduler surface the service drives.
type Timers interface {
	Arm(a *Alert)
	Cancel(alertID string)
}

// Publisher publishes lifecycle events off the request path. Lifecycle
// events are informational and must never fail or slow a state transition.
type Publisher interface {
	PublishLifecycleAsync(event *events.AlertLifecycle)
}

// Service implements the alert lifecycle: creation, acknowledgement,
// resolution and false-alarm marking. All state transitions go through the
// store's compare-and-set updates, so concurrent actors cannot double-apply
// a transition.
type Service struct {
	store      Store
	authorizer Authorizer
	dispatcher Dispatcher
	timers     Timers
	publisher  Publisher
	metrics    metrics.Recorder
}

// NewService wires the alert service.
func NewService(store Store, authorizer Authorizer, dispatcher Dispatcher, timers Timers, publisher Publisher, rec metrics.Recorder) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{
		store:      store,
		authorizer: authorizer,
		dispatcher: dispatcher,
		timers:     timers,
		publisher:  publisher,
		metrics:    rec,
	}
}

// CreateParams are the inputs for creating an alert from a validated trigger.
// PatientID is the already-resolved internal id, not the raw identifier from
// the trigger.
type CreateParams struct {
	PatientID    string
	Kind         Kind
	Context      map[string]string
	SeverityHint string
}

// Create persists a new active alert, arms its first escalation timer and
// initiates the initial notification round. The severity starts at the
// kind's default; a severity hint can only raise it, never lower it.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Alert, error) {
	severity := DefaultSeverity(params.Kind)
	if params.SeverityHint != "" {
		hint, err := ParseSeverity(params.SeverityHint)
		if err != nil {
			slog.Warn("Ignoring invalid severity hint",
				"patient_id", params.PatientID,
				"severity_hint", params.SeverityHint,
			)
		} else {
			severity = severity.Max(hint)
		}
	}

	now := time.Now().UTC()
	a := &Alert{
		AlertID:   uuid.New().String(),
		PatientID: params.PatientID,
		Kind:      params.Kind,
		Severity:  severity,
		Status:    StatusActive,
		Context:   params.Context,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if a.Context == nil {
		a.Context = make(map[string]string)
	}

	if err := s.store.InsertAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("creating alert for patient %s: %w", params.PatientID, err)
	}

	slog.Info("Alert created",
		"alert_id", a.AlertID,
		"patient_id", a.PatientID,
		"kind", string(a.Kind),
		"severity", string(a.Severity),
	)
	s.metrics.RecordAlertCreated()

	s.publish(events.TypeAlertCreated, a, "")
	s.timers.Arm(a)

	if err := s.dispatcher.Dispatch(ctx, a, initialRecipientTier); err != nil {
		// The alert exists and will escalate; a failed initial round is
		// reported but does not undo creation.
		slog.Error("Failed to initiate notification round",
			"alert_id", a.AlertID,
			"error", err,
		)
	}

	return a, nil
}

// Get returns an alert with its full notification attempt history.
func (s *Service) Get(ctx context.Context, alertID string) (*Alert, []*NotificationAttempt, error) {
	a, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, nil, err
	}
	attempts, err := s.store.ListAttempts(ctx, alertID)
	if err != nil {
		return nil, nil, err
	}
	return a, attempts, nil
}

// Acknowledge transitions an active alert to acknowledged on behalf of a
// caregiver and stops its escalation clock.
func (s *Service) Acknowledge(ctx context.Context, alertID, actorID string) (*Alert, error) {
	a, err := s.authorize(ctx, alertID, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.store.AcknowledgeAlert(ctx, alertID, actorID); err != nil {
		return nil, err
	}
	s.timers.Cancel(alertID)

	slog.Info("Alert acknowledged", "alert_id", alertID, "actor_id", actorID)
	a.Status = StatusAcknowledged
	a.AcknowledgedBy = &actorID
	s.publish(events.TypeAlertAcknowledged, a, actorID)

	return a, nil
}

// Resolve transitions an active or acknowledged alert to resolved.
func (s *Service) Resolve(ctx context.Context, alertID, actorID, note string) (*Alert, error) {
	return s.close(ctx, alertID, actorID, note, false)
}

// MarkFalseAlarm closes an active or acknowledged alert as a false alarm.
// The alert and its attempt history remain in the audit log.
func (s *Service) MarkFalseAlarm(ctx context.Context, alertID, actorID, note string) (*Alert, error) {
	return s.close(ctx, alertID, actorID, note, true)
}

func (s *Service) close(ctx context.Context, alertID, actorID, note string, falseAlarm bool) (*Alert, error) {
	a, err := s.authorize(ctx, alertID, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.store.ResolveAlert(ctx, alertID, actorID, note, falseAlarm); err != nil {
		return nil, err
	}
	s.timers.Cancel(alertID)

	eventType := events.TypeAlertResolved
	a.Status = StatusResolved
	if falseAlarm {
		eventType = events.TypeAlertFalseAlarm
		a.Status = StatusFalseAlarm
	}
	a.ResolutionNote = note

	slog.Info("Alert closed",
		"alert_id", alertID,
		"actor_id", actorID,
		"status", string(a.Status),
	)
	s.publish(eventType, a, actorID)

	return a, nil
}

// authorize loads the alert and verifies the actor holds an active care
// relationship with its patient. An actor outside the patient's care circle
// gets ErrUnauthorized regardless of the alert's state.
func (s *Service) authorize(ctx context.Context, alertID, actorID string) (*Alert, error) {
	a, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	eligible, err := s.authorizer.IsEligible(ctx, a.PatientID, actorID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, fmt.Errorf("actor %s has no active care relationship with patient %s: %w",
			actorID, a.PatientID, ErrUnauthorized)
	}
	return a, nil
}

func (s *Service) publish(eventType string, a *Alert, actorID string) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishLifecycleAsync(&events.AlertLifecycle{
		EventType:       eventType,
		AlertID:         a.AlertID,
		PatientID:       a.PatientID,
		Kind:            string(a.Kind),
		Severity:        string(a.Severity),
		Status:          string(a.Status),
		EscalationLevel: a.EscalationLevel,
		ActorID:         actorID,
		OccurredAt:      time.Now().UTC(),
		SchemaVersion:   events.SchemaVersion,
	})
}

package escalation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/alert"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/events"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/metrics"
)

// fireTimeout bounds the database and dispatch work done when a timer fires.
const fireTimeout = 30 * time.Second

// Store is the alert persistence the scheduler needs.
type Store interface {
	GetAlert(ctx context.Context, alertID string) (*alert.Alert, error)
	ListActiveAlerts(ctx context.Context) ([]*alert.Alert, error)
	RecordEscalation(ctx context.Context, alertID string, fromLevel int, severity alert.Severity) (bool, error)
}

// Dispatcher starts a notification round for an escalated alert.
type Dispatcher interface {
	Dispatch(ctx context.Context, a *alert.Alert, maxTier int) error
}

// Publisher publishes lifecycle events.
type Publisher interface {
	PublishLifecycle(ctx context.Context, event *events.AlertLifecycle) error
}

// Scheduler owns one pending timer per active alert. Timers are volatile;
// durability comes from the alerts table, which Recover scans at startup to
// re-arm timers for alerts that were active when the process last stopped.
type Scheduler struct {
	store      Store
	dispatcher Dispatcher
	publisher  Publisher
	policies   *Holder
	metrics    metrics.Recorder

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewScheduler creates a scheduler over the given store, dispatcher and
// policy holder.
func NewScheduler(store Store, dispatcher Dispatcher, publisher Publisher, policies *Holder, rec metrics.Recorder) *Scheduler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		publisher:  publisher,
		policies:   policies,
		metrics:    rec,
		timers:     make(map[string]*time.Timer),
	}
}

// Arm schedules the alert's next escalation step. Arming replaces any timer
// already pending for the alert, so an alert never carries more than one.
// Past the last policy step the alert simply stays active with no timer.
func (s *Scheduler) Arm(a *alert.Alert) {
	s.armAfter(a, s.stepDelay(a, time.Now()))
}

// armAfter schedules the fire for the alert's current level after delay.
func (s *Scheduler) armAfter(a *alert.Alert, delay time.Duration) {
	step, ok := s.policies.Current().StepAt(a.EscalationLevel)
	if !ok {
		slog.Debug("Escalation policy exhausted, no timer armed",
			"alert_id", a.AlertID,
			"escalation_level", a.EscalationLevel,
		)
		return
	}

	alertID := a.AlertID
	level := a.EscalationLevel

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if prev, ok := s.timers[alertID]; ok {
		prev.Stop()
	}
	s.timers[alertID] = time.AfterFunc(delay, func() {
		s.fire(alertID, level)
	})

	slog.Debug("Armed escalation timer",
		"alert_id", alertID,
		"escalation_level", level,
		"delay", delay,
		"severity_floor", string(step.SeverityFloor),
	)
}

// stepDelay returns how long from now the alert's next step is due, anchored
// on the last escalation (or creation for the first step). Overdue steps
// fire immediately.
func (s *Scheduler) stepDelay(a *alert.Alert, now time.Time) time.Duration {
	step, ok := s.policies.Current().StepAt(a.EscalationLevel)
	if !ok {
		return 0
	}
	anchor := a.CreatedAt
	if a.LastEscalatedAt != nil {
		anchor = *a.LastEscalatedAt
	}
	delay := anchor.Add(step.Delay.Value()).Sub(now)
	if delay < 0 {
		return 0
	}
	return delay
}

// Cancel drops the alert's pending timer, if any. Called on acknowledge,
// resolve and false-alarm transitions.
func (s *Scheduler) Cancel(alertID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[alertID]; ok {
		timer.Stop()
		delete(s.timers, alertID)
		slog.Debug("Cancelled escalation timer", "alert_id", alertID)
	}
}

// Recover re-arms timers for every alert that is still active, honoring the
// time already elapsed since its last escalation. Called once at startup.
func (s *Scheduler) Recover(ctx context.Context) error {
	alerts, err := s.store.ListActiveAlerts(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	armed := 0
	for _, a := range alerts {
		if _, ok := s.policies.Current().StepAt(a.EscalationLevel); !ok {
			continue
		}
		s.armAfter(a, s.stepDelay(a, now))
		armed++
	}

	slog.Info("Recovered escalation timers",
		"active_alerts", len(alerts),
		"timers_armed", armed,
	)
	return nil
}

// Stop cancels all pending timers. Fires already in flight run to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for alertID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, alertID)
	}
	slog.Info("Escalation scheduler stopped")
}

// fire applies one escalation step. The alert is re-read first and the
// level bump is a compare-and-set on (status, escalation_level), so a timer
// racing an acknowledge or a duplicate timer is a harmless no-op.
func (s *Scheduler) fire(alertID string, fromLevel int) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	s.mu.Lock()
	delete(s.timers, alertID)
	s.mu.Unlock()

	a, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		slog.Error("Escalation fire: failed to load alert", "alert_id", alertID, "error", err)
		return
	}
	if a.Status != alert.StatusActive {
		slog.Debug("Escalation fire skipped, alert no longer active",
			"alert_id", alertID,
			"status", string(a.Status),
		)
		return
	}

	step, ok := s.policies.Current().StepAt(fromLevel)
	if !ok {
		return
	}

	newSeverity := a.Severity.Max(step.SeverityFloor)
	applied, err := s.store.RecordEscalation(ctx, alertID, fromLevel, newSeverity)
	if err != nil {
		slog.Error("Escalation fire: failed to record escalation", "alert_id", alertID, "error", err)
		return
	}
	if !applied {
		slog.Debug("Escalation fire lost the race, skipping",
			"alert_id", alertID,
			"escalation_level", fromLevel,
		)
		return
	}

	a.EscalationLevel = fromLevel + 1
	a.Severity = newSeverity
	now := time.Now().UTC()
	a.LastEscalatedAt = &now

	slog.Info("Alert escalated",
		"alert_id", alertID,
		"patient_id", a.PatientID,
		"escalation_level", a.EscalationLevel,
		"severity", string(a.Severity),
		"recipient_tier", step.RecipientTier,
	)
	s.metrics.RecordEscalation()

	if s.publisher != nil {
		event := &events.AlertLifecycle{
			EventType:       events.TypeAlertEscalated,
			AlertID:         a.AlertID,
			PatientID:       a.PatientID,
			Kind:            string(a.Kind),
			Severity:        string(a.Severity),
			Status:          string(a.Status),
			EscalationLevel: a.EscalationLevel,
			OccurredAt:      now,
			SchemaVersion:   events.SchemaVersion,
		}
		if err := s.publisher.PublishLifecycle(ctx, event); err != nil {
			slog.Error("Failed to publish escalation event", "alert_id", alertID, "error", err)
		}
	}

	if err := s.dispatcher.Dispatch(ctx, a, step.RecipientTier); err != nil {
		slog.Error("Failed to dispatch escalation round", "alert_id", alertID, "error", err)
	}

	// An acknowledge can land while the round dispatches. Re-read before
	// re-arming so a closed alert is not left holding a pending timer.
	current, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		slog.Error("Escalation fire: failed to reload alert before re-arm",
			"alert_id", alertID, "error", err)
		s.Arm(a)
		return
	}
	if current.Status != alert.StatusActive {
		slog.Debug("Skipping re-arm, alert no longer active",
			"alert_id", alertID,
			"status", string(current.Status),
		)
		return
	}
	s.Arm(current)
}

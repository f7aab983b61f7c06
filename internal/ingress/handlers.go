// Package ingress provides the HTTP API for alert triggers and caregiver
// actions.
package ingress

import (
	"context"
	"net/http"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/alert"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/metrics"
	pkgmetrics "github.com/MatthewSnow2/kind-connect-alerts/pkg/metrics"
)

// AlertService is the alert lifecycle surface the HTTP layer exposes.
type AlertService interface {
	Create(ctx context.Context, params alert.CreateParams) (*alert.Alert, error)
	Get(ctx context.Context, alertID string) (*alert.Alert, []*alert.NotificationAttempt, error)
	Acknowledge(ctx context.Context, alertID, actorID string) (*alert.Alert, error)
	Resolve(ctx context.Context, alertID, actorID, note string) (*alert.Alert, error)
	MarkFalseAlarm(ctx context.Context, alertID, actorID, note string) (*alert.Alert, error)
}

// PatientResolver resolves a trigger's patient identifier to an internal
// patient id.
type PatientResolver interface {
	FindPatientByIdentifier(ctx context.Context, identifier string) (string, error)
}

// MetricsReader reads a service's last reported metrics snapshot.
type MetricsReader interface {
	GetServiceMetrics(ctx context.Context, serviceName string) (*pkgmetrics.ServiceMetrics, error)
}

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	service     AlertService
	patients    PatientResolver
	metrics     metrics.Recorder
	reader      MetricsReader
	serviceName string
}

// NewHandlers creates a new handlers instance. If rec is nil, a no-op
// recorder is used; a nil reader disables the metrics endpoint.
func NewHandlers(service AlertService, patients PatientResolver, reader MetricsReader, serviceName string, rec metrics.Recorder) *Handlers {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Handlers{
		service:     service,
		patients:    patients,
		metrics:     rec,
		reader:      reader,
		serviceName: serviceName,
	}
}

type triggerRequest struct {
	PatientIdentifier string            `json:"patient_identifier"`
	Kind              string            `json:"kind"`
	Context           map[string]string `json:"context,omitempty"`
	SeverityHint      string            `json:"severity_hint,omitempty"`
}

type actionRequest struct {
	AlertID string `json:"alert_id"`
	ActorID string `json:"actor_id"`
	Note    string `json:"note,omitempty"`
}

type alertResponse struct {
	Alert    *alert.Alert                 `json:"alert"`
	Attempts []*alert.NotificationAttempt `json:"attempts,omitempty"`
}

// TriggerAlert accepts an alert trigger, resolves the patient identifier
// and creates a new active alert. The response is sent once the alert is
// persisted and its notification round initiated.
func (h *Handlers) TriggerAlert(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PatientIdentifier == "" {
		http.Error(w, "patient_identifier is required", http.StatusBadRequest)
		return
	}
	kind, err := alert.ParseKind(req.Kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	h.metrics.RecordReceived()

	patientID, err := h.patients.FindPatientByIdentifier(ctx, req.PatientIdentifier)
	if err != nil {
		respondError(w, err)
		return
	}

	a, err := h.service.Create(ctx, alert.CreateParams{
		PatientID:    patientID,
		Kind:         kind,
		Context:      req.Context,
		SeverityHint: req.SeverityHint,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, alertResponse{Alert: a})
}

// GetAlert returns an alert with its notification attempt history.
func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	alertID, ok := requireQueryParam(w, r, "alert_id")
	if !ok {
		return
	}

	a, attempts, err := h.service.Get(r.Context(), alertID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, alertResponse{Alert: a, Attempts: attempts})
}

// AcknowledgeAlert acknowledges an active alert on behalf of a caregiver.
func (h *Handlers) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(ctx context.Context, req actionRequest) (*alert.Alert, error) {
		return h.service.Acknowledge(ctx, req.AlertID, req.ActorID)
	})
}

// ResolveAlert resolves an active or acknowledged alert.
func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(ctx context.Context, req actionRequest) (*alert.Alert, error) {
		return h.service.Resolve(ctx, req.AlertID, req.ActorID, req.Note)
	})
}

// MarkFalseAlarm closes an alert as a false alarm.
func (h *Handlers) MarkFalseAlarm(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(ctx context.Context, req actionRequest) (*alert.Alert, error) {
		return h.service.MarkFalseAlarm(ctx, req.AlertID, req.ActorID, req.Note)
	})
}

func (h *Handlers) action(w http.ResponseWriter, r *http.Request, fn func(context.Context, actionRequest) (*alert.Alert, error)) {
	var req actionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AlertID == "" {
		http.Error(w, "alert_id is required", http.StatusBadRequest)
		return
	}
	if req.ActorID == "" {
		http.Error(w, "actor_id is required", http.StatusBadRequest)
		return
	}

	a, err := fn(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, alertResponse{Alert: a})
}

// Health reports process liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ServiceMetrics returns the service's last reported metrics snapshot.
func (h *Handlers) ServiceMetrics(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		http.Error(w, "Metrics not configured", http.StatusNotFound)
		return
	}
	m, err := h.reader.GetServiceMetrics(r.Context(), h.serviceName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

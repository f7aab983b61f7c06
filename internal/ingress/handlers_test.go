package ingress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/alert"
	pkgmetrics "github.com/MatthewSnow2/kind-connect-alerts/pkg/metrics"
)

type fakeService struct {
	createErr  error
	actionErr  error
	getErr     error
	lastParams alert.CreateParams
}

func (f *fakeService) Create(ctx context.Context, params alert.CreateParams) (*alert.Alert, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.lastParams = params
	return &alert.Alert{
		AlertID:   "alert-1",
		PatientID: params.PatientID,
		Kind:      params.Kind,
		Severity:  alert.DefaultSeverity(params.Kind),
		Status:    alert.StatusActive,
	}, nil
}

func (f *fakeService) Get(ctx context.Context, alertID string) (*alert.Alert, []*alert.NotificationAttempt, error) {
	if f.getErr != nil {
		return nil, nil, f.getErr
	}
	return &alert.Alert{AlertID: alertID, Status: alert.StatusActive},
		[]*alert.NotificationAttempt{{AlertID: alertID, Channel: "email", Outcome: alert.OutcomeSent}},
		nil
}

func (f *fakeService) Acknowledge(ctx context.Context, alertID, actorID string) (*alert.Alert, error) {
	if f.actionErr != nil {
		return nil, f.actionErr
	}
	return &alert.Alert{AlertID: alertID, Status: alert.StatusAcknowledged}, nil
}

func (f *fakeService) Resolve(ctx context.Context, alertID, actorID, note string) (*alert.Alert, error) {
	if f.actionErr != nil {
		return nil, f.actionErr
	}
	return &alert.Alert{AlertID: alertID, Status: alert.StatusResolved}, nil
}

func (f *fakeService) MarkFalseAlarm(ctx context.Context, alertID, actorID, note string) (*alert.Alert, error) {
	if f.actionErr != nil {
		return nil, f.actionErr
	}
	return &alert.Alert{AlertID: alertID, Status: alert.StatusFalseAlarm}, nil
}

type fakePatients struct {
	err error
}

func (f *fakePatients) FindPatientByIdentifier(ctx context.Context, identifier string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "pat-1", nil
}

type fakeMetricsReader struct {
	snapshot *pkgmetrics.ServiceMetrics
	err      error
}

func (f *fakeMetricsReader) GetServiceMetrics(ctx context.Context, serviceName string) (*pkgmetrics.ServiceMetrics, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func newTestRouter(service *fakeService, patients *fakePatients, authToken string) http.Handler {
	h := NewHandlers(service, patients, nil, "alert-core", nil)
	return NewRouter(h, authToken).Handler()
}

func TestTriggerAlert(t *testing.T) {
	service := &fakeService{}
	router := newTestRouter(service, &fakePatients{}, "")

	body := `{"patient_identifier":"maria@example.com","kind":"DISTRESS_SIGNAL","severity_hint":"CRITICAL","context":{"source":"wearable"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/trigger", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if service.lastParams.PatientID != "pat-1" {
		t.Errorf("patient id = %s, want pat-1", service.lastParams.PatientID)
	}
	if service.lastParams.Kind != alert.KindDistressSignal {
		t.Errorf("kind = %s, want DISTRESS_SIGNAL", service.lastParams.Kind)
	}

	var resp alertResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Alert == nil || resp.Alert.AlertID == "" {
		t.Error("response missing alert")
	}
}

func TestTriggerAlertValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "missing identifier", body: `{"kind":"MANUAL_REPORT"}`, want: http.StatusBadRequest},
		{name: "unknown kind", body: `{"patient_identifier":"x","kind":"NOPE"}`, want: http.StatusBadRequest},
		{name: "malformed json", body: `{`, want: http.StatusBadRequest},
	}

	router := newTestRouter(&fakeService{}, &fakePatients{}, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/trigger", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestTriggerAlertUnknownPatient(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakePatients{err: alert.ErrSubjectNotFound}, "")

	body := `{"patient_identifier":"nobody@example.com","kind":"MANUAL_REPORT"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/trigger", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid transition", err: alert.ErrInvalidTransition, want: http.StatusConflict},
		{name: "unauthorized", err: alert.ErrUnauthorized, want: http.StatusForbidden},
		{name: "not found", err: alert.ErrNotFound, want: http.StatusNotFound},
		{name: "directory unavailable", err: alert.ErrDirectoryUnavailable, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeService{actionErr: tt.err}, &fakePatients{}, "")
			body := `{"alert_id":"alert-1","actor_id":"cg-1"}`
			req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/acknowledge", strings.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestActionValidation(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakePatients{}, "")

	for _, body := range []string{`{"actor_id":"cg-1"}`, `{"alert_id":"alert-1"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/resolve", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestGetAlert(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakePatients{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts?alert_id=alert-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp alertResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(resp.Attempts))
	}
}

func TestGetAlertRequiresID(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakePatients{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakePatients{}, "")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/alerts/trigger", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestServiceMetrics(t *testing.T) {
	reader := &fakeMetricsReader{snapshot: &pkgmetrics.ServiceMetrics{
		ServiceName:       "alert-core",
		Status:            "healthy",
		MessagesProcessed: 42,
	}}
	h := NewHandlers(&fakeService{}, &fakePatients{}, reader, "alert-core", nil)
	router := NewRouter(h, "").Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var got pkgmetrics.ServiceMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if got.MessagesProcessed != 42 || got.Status != "healthy" {
		t.Errorf("snapshot = %+v", got)
	}
}

func TestServiceMetricsUnconfigured(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakePatients{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no reader is wired", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakePatients{}, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts?alert_id=alert-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/alerts?alert_id=alert-1", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}

	// Health stays open without a token.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health: status = %d, want 200", rec.Code)
	}
}

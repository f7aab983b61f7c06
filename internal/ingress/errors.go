package ingress

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/alert"
)

// respondError maps a service error to its HTTP status. The sentinel chain
// is checked with errors.Is so wrapped context survives into the logs while
// the client sees a stable status code.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, alert.ErrSubjectNotFound):
		http.Error(w, "Patient not found", http.StatusNotFound)
	case errors.Is(err, alert.ErrNotFound):
		http.Error(w, "Alert not found", http.StatusNotFound)
	case errors.Is(err, alert.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, alert.ErrUnauthorized):
		http.Error(w, "Actor is not authorized for this patient", http.StatusForbidden)
	case errors.Is(err, alert.ErrDirectoryUnavailable):
		slog.Error("Directory unavailable", "error", err)
		http.Error(w, "Care directory unavailable, try again later", http.StatusServiceUnavailable)
	default:
		slog.Error("Request failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

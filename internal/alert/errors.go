package alert

import "errors"

// Caller-visible errors from the top-level alert API. Everything else is
// contained and reported via the audit log.
var (
	// ErrNotFound means the alert id does not exist.
	ErrNotFound = errors.New("alert not found")

	// ErrInvalidTransition means the attempted state-machine move is not
	// permitted from the alert's current status. Concurrent losers of an
	// acknowledge/resolve race see this error.
	ErrInvalidTransition = errors.New("invalid alert status transition")

	// ErrUnauthorized means the acting recipient has no active,
	// alert-eligible care relationship with the alert's patient.
	ErrUnauthorized = errors.New("recipient not authorized for this patient")

	// ErrSubjectNotFound means a trigger referenced an unknown or
	// unresolvable patient identifier.
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrDirectoryUnavailable means the care-relationship directory could
	// not be reached. The dispatch round is retried rather than run against
	// a partial recipient list.
	ErrDirectoryUnavailable = errors.New("care relationship directory unavailable")
)

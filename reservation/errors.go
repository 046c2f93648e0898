/*
errors.go - Centralized error taxonomy for the reservation engine

PURPOSE:
  All error kinds in one place. Callers branch with errors.Is; the API
  layer maps each kind to an HTTP status.

ERROR CATEGORIES:
  1. Validation     - malformed input, inverted or past-dated windows
  2. CapacityExceeded - availability check failed at create or approve time
  3. InvalidTransition - illegal state-machine move (incl. re-applying one)
  4. NotAuthorized  - actor lacks rights for the requested transition
  5. NotFound       - unknown resource or reservation
  6. TransientFailure - storage conflict that survived bounded retries

CONFLICT vs CAPACITY:
  A lock or storage conflict is NOT evidence of over-capacity. Conflicts
  are retried internally; only after retries are exhausted do they surface,
  and then as ErrTransientFailure, never as ErrCapacityExceeded.

SEE ALSO:
  - admission.go: Retry policy around ErrStoreConflict
  - api/handlers.go: Error kind to HTTP status mapping
*/
package reservation

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCapacityExceeded is returned when an availability check fails.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidTransition is returned for illegal state-machine moves,
	// including re-applying a transition to a reservation already in the
	// target state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotAuthorized is returned when the actor may not perform the
	// requested operation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotFound is returned for unknown resource or reservation ids.
	ErrNotFound = errors.New("not found")

	// ErrValidation is the base of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrStoreConflict is returned by stores when a write lost a race
	// (e.g. SQLITE_BUSY). The admission controller retries these; they
	// should not normally escape to callers.
	ErrStoreConflict = errors.New("storage conflict")

	// ErrTransientFailure is surfaced when a storage conflict survived the
	// bounded retry budget. Safe to retry from the outside.
	ErrTransientFailure = errors.New("transient failure, retry later")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CapacityError reports how much capacity remained when a request was
// refused, so callers can adjust quantity or window instead of blind retry.
type CapacityError struct {
	ResourceID ResourceID
	Window     Window
	Requested  int
	Remaining  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded for %s over %s: requested %d, remaining %d",
		e.ResourceID, e.Window, e.Requested, e.Remaining)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// TransitionError reports an illegal lifecycle move.
type TransitionError struct {
	ReservationID ReservationID
	From          Status
	To            Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("reservation %s: cannot transition %s -> %s", e.ReservationID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError reports a malformed or missing field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports an unknown id.
type NotFoundError struct {
	Kind string // "resource" or "reservation"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable reports whether the operation might succeed if repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreConflict) || errors.Is(err, ErrTransientFailure)
}

// IsClientError reports whether the error is the caller's fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, ErrNotFound)
}

/*
lifecycle.go - Reservation status state machine

PURPOSE:
  Governs which status transitions are legal and who may perform them.
  Status is mutated ONLY through Transition; there are no arbitrary field
  edits, so the audit trail of decisions stays coherent.

STATE DIAGRAM:

              approve           markReturned
    pending ───────────▶ confirmed ───────────▶ returned
       │  │                  │
       │  │ reject           │ cancel (admin)
       │  ▼                  ▼
       │ rejected         canceled
       │                     ▲
       └─────────────────────┘
          cancel (owner or admin)

GUARDS:
  approve/reject/markReturned  administrator only
  cancel from pending          owner or administrator
  cancel from confirmed        administrator only

IDEMPOTENCY:
  Re-applying a transition (approve an already-confirmed reservation,
  cancel an already-canceled one) fails with ErrInvalidTransition rather
  than silently succeeding. A second actor racing on the same reservation
  gets a clear conflict instead of corrupted history.

SEE ALSO:
  - admission.go: Runs transitions inside per-resource critical sections
*/
package reservation

import "time"

// =============================================================================
// TRANSITION TABLE
// =============================================================================

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusRejected, StatusCanceled},
	StatusConfirmed: {StatusCanceled, StatusReturned},
	// Terminal states have no outgoing edges.
	StatusCanceled: {},
	StatusRejected: {},
	StatusReturned: {},
}

// CanTransition reports whether from -> to is a legal move, ignoring
// authorization.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// =============================================================================
// TRANSITION - The only way status changes
// =============================================================================

// Transition applies from -> to on r after checking the table and the
// actor's rights, stamping the decision audit fields. It does not persist;
// the admission controller commits the mutated reservation.
func Transition(r *Reservation, to Status, actor ActorRef, at time.Time) error {
	if !CanTransition(r.Status, to) {
		return &TransitionError{ReservationID: r.ID, From: r.Status, To: to}
	}

	switch to {
	case StatusConfirmed, StatusRejected, StatusReturned:
		if !actor.IsAdmin {
			return ErrNotAuthorized
		}
	case StatusCanceled:
		if !actor.IsAdmin {
			// Owners may only cancel while still pending; a confirmed
			// reservation is a commitment an admin has to unwind.
			if !r.OwnedBy(actor) || r.Status != StatusPending {
				return ErrNotAuthorized
			}
		}
	}

	r.Status = to
	r.UpdatedAt = at
	if actor.IsAdmin {
		r.DecidedBy = actor.ID
		decidedAt := at
		r.DecidedAt = &decidedAt
	}
	return nil
}

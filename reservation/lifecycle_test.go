package reservation_test

import (
	"errors"
	"testing"
	"time"

	"github.com/atelier/reservation-engine/reservation"
)

var (
	adminActor = reservation.ActorRef{ID: "admin-1", IsAdmin: true}
	ownerActor = reservation.ActorRef{ID: "user-1"}
	otherActor = reservation.ActorRef{ID: "user-2"}
)

func pendingReservation() *reservation.Reservation {
	return &reservation.Reservation{
		ID:          "res-1",
		ResourceID:  "kayak",
		Window:      window(10, 15),
		Quantity:    1,
		Status:      reservation.StatusPending,
		RequesterID: ownerActor.ID,
	}
}

// =============================================================================
// TRANSITION TABLE TESTS
// =============================================================================

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to reservation.Status
		want     bool
	}{
		{reservation.StatusPending, reservation.StatusConfirmed, true},
		{reservation.StatusPending, reservation.StatusRejected, true},
		{reservation.StatusPending, reservation.StatusCanceled, true},
		{reservation.StatusPending, reservation.StatusReturned, false},
		{reservation.StatusConfirmed, reservation.StatusCanceled, true},
		{reservation.StatusConfirmed, reservation.StatusReturned, true},
		{reservation.StatusConfirmed, reservation.StatusConfirmed, false},
		{reservation.StatusConfirmed, reservation.StatusPending, false},
		{reservation.StatusCanceled, reservation.StatusConfirmed, false},
		{reservation.StatusRejected, reservation.StatusPending, false},
		{reservation.StatusReturned, reservation.StatusCanceled, false},
	}

	for _, tt := range tests {
		if got := reservation.CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

// =============================================================================
// GUARD TESTS
// =============================================================================

func TestTransition_ApproveRequiresAdmin(t *testing.T) {
	// GIVEN: A pending reservation
	// WHEN: The owner tries to approve their own reservation
	// THEN: Not authorized; the status does not move

	r := pendingReservation()
	err := reservation.Transition(r, reservation.StatusConfirmed, ownerActor, jan(1))

	if !errors.Is(err, reservation.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if r.Status != reservation.StatusPending {
		t.Errorf("status moved to %s on a refused transition", r.Status)
	}
}

func TestTransition_OwnerCancelsPending(t *testing.T) {
	// GIVEN: A pending reservation
	// WHEN: Its owner cancels it
	// THEN: It becomes canceled without decision audit fields

	r := pendingReservation()
	if err := reservation.Transition(r, reservation.StatusCanceled, ownerActor, jan(1)); err != nil {
		t.Fatalf("owner cancel of pending should succeed: %v", err)
	}
	if r.Status != reservation.StatusCanceled {
		t.Errorf("status = %s, want canceled", r.Status)
	}
	if r.DecidedBy != "" || r.DecidedAt != nil {
		t.Error("owner cancellation must not stamp admin decision fields")
	}
}

func TestTransition_OwnerCannotCancelConfirmed(t *testing.T) {
	// GIVEN: A confirmed reservation
	// WHEN: The owner tries to cancel
	// THEN: Not authorized; only an admin can unwind a commitment

	r := pendingReservation()
	r.Status = reservation.StatusConfirmed

	err := reservation.Transition(r, reservation.StatusCanceled, ownerActor, jan(1))
	if !errors.Is(err, reservation.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestTransition_StrangerCannotCancel(t *testing.T) {
	r := pendingReservation()

	err := reservation.Transition(r, reservation.StatusCanceled, otherActor, jan(1))
	if !errors.Is(err, reservation.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestTransition_AdminDecisionStampsAudit(t *testing.T) {
	// GIVEN: A pending reservation
	// WHEN: An admin approves it
	// THEN: Confirmed, with DecidedBy/DecidedAt recorded

	r := pendingReservation()
	at := jan(2).Add(9 * time.Hour)

	if err := reservation.Transition(r, reservation.StatusConfirmed, adminActor, at); err != nil {
		t.Fatalf("admin approve should succeed: %v", err)
	}
	if r.Status != reservation.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", r.Status)
	}
	if r.DecidedBy != adminActor.ID {
		t.Errorf("DecidedBy = %q, want %q", r.DecidedBy, adminActor.ID)
	}
	if r.DecidedAt == nil || !r.DecidedAt.Equal(at) {
		t.Errorf("DecidedAt = %v, want %v", r.DecidedAt, at)
	}
}

// =============================================================================
// IDEMPOTENCY TESTS - Re-applying a transition is a conflict
// =============================================================================

func TestTransition_ReapplyFails(t *testing.T) {
	tests := []struct {
		name string
		from reservation.Status
		to   reservation.Status
	}{
		{"approve a confirmed reservation", reservation.StatusConfirmed, reservation.StatusConfirmed},
		{"cancel a canceled reservation", reservation.StatusCanceled, reservation.StatusCanceled},
		{"reject a rejected reservation", reservation.StatusRejected, reservation.StatusRejected},
		{"return a returned reservation", reservation.StatusReturned, reservation.StatusReturned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := pendingReservation()
			r.Status = tt.from

			err := reservation.Transition(r, tt.to, adminActor, jan(1))
			if !errors.Is(err, reservation.ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}

			var trErr *reservation.TransitionError
			if !errors.As(err, &trErr) {
				t.Fatalf("expected *TransitionError, got %T", err)
			}
			if trErr.From != tt.from || trErr.To != tt.to {
				t.Errorf("TransitionError %s -> %s, want %s -> %s", trErr.From, trErr.To, tt.from, tt.to)
			}
		})
	}
}

func TestTransition_ReturnRequiresConfirmed(t *testing.T) {
	r := pendingReservation()

	err := reservation.Transition(r, reservation.StatusReturned, adminActor, jan(1))
	if !errors.Is(err, reservation.ErrInvalidTransition) {
		t.Fatalf("pending -> returned must be illegal, got %v", err)
	}
}

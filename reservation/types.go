/*
Package reservation implements temporal capacity reservation for
fixed-capacity resources.

PURPOSE:
  Given a resource with N physical units (or a single-slot venue, N = 1),
  decide whether a requested time window can be granted without exceeding
  capacity, and make that decision race-free when overlapping requests
  arrive concurrently.

KEY CONCEPTS IN THIS FILE (types.go):
  - Resource:    A rentable entity with a capacity and a day rate
  - Reservation: A time-windowed claim of some quantity against a resource
  - Status:      The reservation lifecycle state
  - ActorRef:    Opaque identity handed in by the auth layer

UNIFIED MODEL:
  Multi-unit rental orders and exclusive venue bookings share one model:
  a venue is simply a resource with Capacity = 1. There is no separate
  booking conflict algorithm; the capacity calculator covers both.

REQUESTER vs WALK-IN:
  A reservation belongs to exactly one requester: either an authenticated
  principal (RequesterID) or a named walk-in recorded by an administrator
  (WalkInName). Never both.

SEE ALSO:
  - lifecycle.go: Valid status transitions and their guards
  - ledger.go:    Storage interfaces and availability math
  - admission.go: The controller that commits reservations
*/
package reservation

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ResourceID string
type ReservationID string
type BundleID string

// ActorRef identifies who is acting. Authentication and token formats are
// the transport layer's concern; the engine only sees an opaque id plus an
// admin capability flag.
type ActorRef struct {
	ID      string
	IsAdmin bool
}

// =============================================================================
// RESOURCE - Capacity-bounded rentable entity
// =============================================================================

type ResourceKind string

const (
	KindRental ResourceKind = "rental" // multi-unit equipment
	KindVenue  ResourceKind = "venue"  // exclusive slot, capacity 1
)

type Resource struct {
	ID          ResourceID
	Name        string
	Kind        ResourceKind
	Capacity    int // positive; 1 models an exclusive-slot resource
	PricePerDay decimal.Decimal
	Active      bool // inactive resources accept no new reservations
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// RESERVATION STATUS
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCanceled  Status = "canceled"
	StatusRejected  Status = "rejected"
	StatusReturned  Status = "returned"
)

// ActiveStatuses are the statuses that still consume capacity.
// Canceled, rejected and returned reservations release capacity permanently.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusConfirmed}
}

// IsTerminal reports whether a status releases capacity and ends the
// lifecycle. Terminal reservations are retained for audit, never deleted.
func (s Status) IsTerminal() bool {
	return s == StatusCanceled || s == StatusRejected || s == StatusReturned
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCanceled, StatusRejected, StatusReturned:
		return true
	}
	return false
}

// =============================================================================
// RESERVATION - A claim against a resource's capacity
// =============================================================================

type Reservation struct {
	ID         ReservationID
	BundleID   BundleID // groups reservations created by one admission request
	ResourceID ResourceID
	Window     Window
	Quantity   int // 1 for exclusive bookings, >= 1 for multi-unit orders
	Status     Status

	// Requester: exactly one of the two is set.
	RequesterID string
	WalkInName  string

	PhoneNumber string
	TotalPrice  decimal.Decimal

	// Decision audit (approve/reject/cancel-by-admin/return)
	DecidedBy string
	DecidedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnedBy reports whether the actor is the authenticated requester.
// Walk-in reservations have no owner; only admins manage them.
func (r *Reservation) OwnedBy(actor ActorRef) bool {
	return r.RequesterID != "" && r.RequesterID == actor.ID
}

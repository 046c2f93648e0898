/*
ledger.go - Reservation ledger interfaces and availability math

PURPOSE:
  The reservation ledger is the set of all reservations for a resource.
  This file defines the storage interfaces the engine needs and the
  availability calculator that turns ledger rows into a yes/no admission
  decision.

EXACTNESS CONTRACT:
  Overlapping must apply the exact half-open overlap predicate. A store
  may use an index on (resource_id, status) to narrow candidates, but the
  final overlap decision is always Window.Overlaps - a coarse pre-filter
  is never the answer.

SELF-EXCLUSION:
  AvailableCapacity takes an optional exclude id. When re-validating a
  reservation that already sits in the ledger (at approval time), its own
  pending quantity must not count against itself. The exclusion is applied
  row-by-row, so the math is right whether or not the store's read
  happens to include the row.

NEGATIVE AVAILABILITY:
  Capacity is mutable. If an administrator reduced it below committed
  demand, the calculator reports a negative remainder. Callers treat any
  remainder below the requested quantity as "cannot grant"; they never
  crash on a negative number.

SEE ALSO:
  - store/sqlite: Production implementation
  - store/memory.go (package store): In-memory implementation for tests
*/
package reservation

import "context"

// =============================================================================
// STORAGE INTERFACES
// =============================================================================

// LedgerStore persists reservations. Reservations are never deleted;
// terminal states are retained for audit, so there is no Delete.
type LedgerStore interface {
	// Insert persists a new reservation.
	Insert(ctx context.Context, r Reservation) error

	// InsertBatch persists several reservations atomically.
	// Either all rows commit or none do.
	InsertBatch(ctx context.Context, rs []Reservation) error

	// Get returns a reservation by id, or NotFoundError.
	Get(ctx context.Context, id ReservationID) (*Reservation, error)

	// UpdateStatus persists the status and decision fields of r.
	// Status is the only mutable part of a reservation.
	UpdateStatus(ctx context.Context, r Reservation) error

	// Overlapping returns every reservation for resourceID whose status is
	// in statuses and whose window overlaps w, per the exact half-open
	// predicate. Reservations for other resources are never included, even
	// when they share a bundle.
	Overlapping(ctx context.Context, resourceID ResourceID, w Window, statuses []Status) ([]Reservation, error)

	// ListByRequester returns all reservations owned by requesterID,
	// newest first.
	ListByRequester(ctx context.Context, requesterID string) ([]Reservation, error)

	// ListByStatus returns all reservations in the given status, oldest
	// first. An empty status returns everything.
	ListByStatus(ctx context.Context, status Status) ([]Reservation, error)
}

// TxLedgerStore adds transaction support. The admission controller uses
// WithTx so a bundle commits all-or-nothing.
type TxLedgerStore interface {
	LedgerStore

	// WithTx executes fn within a storage transaction. If fn returns an
	// error the transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(LedgerStore) error) error
}

// ResourceStore persists resources.
type ResourceStore interface {
	GetResource(ctx context.Context, id ResourceID) (*Resource, error)
	SaveResource(ctx context.Context, r Resource) error
	ListResources(ctx context.Context) ([]Resource, error)
}

// =============================================================================
// AVAILABILITY CALCULATOR
// =============================================================================

// ReservedQuantity sums the quantities of rows overlapping w, skipping the
// excluded reservation. Rows are re-checked against the exact predicate so
// a store returning a coarse candidate set still yields correct math.
func ReservedQuantity(rows []Reservation, w Window, exclude ReservationID) int {
	reserved := 0
	for _, r := range rows {
		if exclude != "" && r.ID == exclude {
			continue
		}
		if r.Window.Overlaps(w) {
			reserved += r.Quantity
		}
	}
	return reserved
}

// AvailableCapacity computes the remaining capacity of res over w,
// counting only reservations whose status is in statuses and excluding
// the reservation with the given id (pass "" to exclude nothing).
//
// The result may be negative; see the file header.
func AvailableCapacity(ctx context.Context, ledger LedgerStore, res *Resource, w Window, statuses []Status, exclude ReservationID) (int, error) {
	rows, err := ledger.Overlapping(ctx, res.ID, w, statuses)
	if err != nil {
		return 0, err
	}
	return res.Capacity - ReservedQuantity(rows, w, exclude), nil
}

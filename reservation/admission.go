/*
admission.go - The admission controller

PURPOSE:
  Orchestrates the reservation lifecycle: create, approve, reject,
  cancel, mark returned. This is the only component allowed to commit
  capacity-consuming state, and it is where the concurrency discipline
  lives.

ADMISSION FLOW (create):
  1. Validate the request (windows, quantities, requester, phone)
  2. Acquire the per-resource locks for the whole bundle (sorted order)
  3. For each item: load resource, compute available capacity
  4. Only if EVERY item clears its check, persist all pending rows in
     one storage transaction - an all-or-nothing bundle
  5. Release the locks

  Two concurrent requests for overlapping windows on the same resource
  serialize at step 2, so the second one recomputes availability with the
  first one's rows already visible. The check-then-act gap is closed.

APPROVAL:
  Capacity is first checked at creation, but other reservations may have
  been accepted since for overlapping windows. Approval is the
  authoritative gate: it re-runs the calculator under the same resource
  lock, excluding the reservation's own pending contribution, and only
  then transitions to confirmed. On a failed re-check the reservation
  stays pending; the caller may retry later or cancel.

RETRIES:
  Storage conflicts (ErrStoreConflict) are retried a bounded number of
  times with linear backoff. A conflict is not evidence of over-capacity;
  exhausted retries surface as ErrTransientFailure, never as
  ErrCapacityExceeded.

SEE ALSO:
  - lock.go:      Per-resource mutual exclusion
  - ledger.go:    Availability math
  - lifecycle.go: Transition guards
  - sweep.go:     Optional expiry of stale pending holds
*/
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller decides whether reservations may be committed.
type Controller struct {
	Resources ResourceStore
	Ledger    TxLedgerStore
	Clock     Clock

	// Statuses that consume capacity. Defaults to ActiveStatuses().
	Active []Status

	// Retry budget for storage conflicts.
	MaxRetries   int
	RetryBackoff time.Duration

	locks *resourceLocks
}

func NewController(resources ResourceStore, ledger TxLedgerStore, clock Clock) *Controller {
	return &Controller{
		Resources:    resources,
		Ledger:       ledger,
		Clock:        clock,
		Active:       ActiveStatuses(),
		MaxRetries:   3,
		RetryBackoff: 25 * time.Millisecond,
		locks:        newResourceLocks(),
	}
}

// BundleItem is one resource claim within an admission request.
type BundleItem struct {
	ResourceID ResourceID
	Quantity   int
	Window     Window
}

// Availability is the result of an advisory availability check.
type Availability struct {
	Available bool
	Remaining int
}

// =============================================================================
// CHECK AVAILABILITY - Advisory read
// =============================================================================

// CheckAvailability reports whether quantity units of the resource are free
// over w. The answer is advisory: the authoritative decision happens under
// the resource lock at create/approve time.
func (c *Controller) CheckAvailability(ctx context.Context, resourceID ResourceID, w Window, quantity int) (*Availability, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, &ValidationError{Field: "quantity", Message: "must be at least 1"}
	}

	res, err := c.getResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	remaining, err := AvailableCapacity(ctx, c.Ledger, res, w, c.Active, "")
	if err != nil {
		return nil, err
	}

	return &Availability{
		Available: res.Active && remaining >= quantity,
		Remaining: remaining,
	}, nil
}

// =============================================================================
// CREATE - All-or-nothing bundle admission
// =============================================================================

// CreateReservations admits a bundle of per-resource claims for one
// requester. If any item lacks capacity, nothing is created.
//
// Requester rules (walk-ins and principals are mutually exclusive):
//   - an authenticated actor reserves for itself
//   - an administrator may record a walk-in by name instead
//   - a phone number is required for non-admin requests
func (c *Controller) CreateReservations(ctx context.Context, actor ActorRef, items []BundleItem, phoneNumber, walkInName string) ([]Reservation, error) {
	if len(items) == 0 {
		return nil, &ValidationError{Field: "items", Message: "at least one item is required"}
	}
	if walkInName != "" && !actor.IsAdmin {
		return nil, ErrNotAuthorized
	}
	walkIn := actor.IsAdmin && walkInName != ""
	if !walkIn && actor.ID == "" {
		return nil, &ValidationError{Field: "requester", Message: "authenticated requester or admin walk-in required"}
	}
	if phoneNumber == "" && !actor.IsAdmin {
		return nil, &ValidationError{Field: "phoneNumber", Message: "phone number is required"}
	}

	now := c.Clock.Now()
	ids := make([]ResourceID, 0, len(items))
	for i, item := range items {
		if item.ResourceID == "" {
			return nil, &ValidationError{Field: "items", Message: fmt.Sprintf("item %d: resource id is required", i)}
		}
		if item.Quantity < 1 {
			return nil, &ValidationError{Field: "items", Message: fmt.Sprintf("item %d: quantity must be at least 1", i)}
		}
		if err := item.Window.Validate(); err != nil {
			return nil, err
		}
		if item.Window.Start.Before(now) {
			return nil, &ValidationError{Field: "window", Message: "start must not be in the past"}
		}
		ids = append(ids, item.ResourceID)
	}

	// One critical section covering every resource in the bundle.
	unlock := c.locks.Lock(ids...)
	defer unlock()

	bundleID := BundleID(uuid.NewString())
	rows := make([]Reservation, 0, len(items))

	for _, item := range items {
		res, err := c.getResource(ctx, item.ResourceID)
		if err != nil {
			return nil, err
		}
		if !res.Active {
			return nil, &ValidationError{Field: "resource", Message: fmt.Sprintf("resource %s is inactive", res.ID)}
		}

		remaining, err := AvailableCapacity(ctx, c.Ledger, res, item.Window, c.Active, "")
		if err != nil {
			return nil, err
		}
		// Earlier items of this bundle are not in the ledger yet, but they
		// consume capacity all the same. A bundle naming the same resource
		// twice with overlapping windows must not pass both checks.
		for _, prev := range rows {
			if prev.ResourceID == item.ResourceID && prev.Window.Overlaps(item.Window) {
				remaining -= prev.Quantity
			}
		}
		if remaining < item.Quantity {
			return nil, &CapacityError{
				ResourceID: res.ID,
				Window:     item.Window,
				Requested:  item.Quantity,
				Remaining:  remaining,
			}
		}

		r := Reservation{
			ID:          ReservationID(uuid.NewString()),
			BundleID:    bundleID,
			ResourceID:  res.ID,
			Window:      item.Window,
			Quantity:    item.Quantity,
			Status:      StatusPending,
			PhoneNumber: phoneNumber,
			TotalPrice:  TotalPrice(res.PricePerDay, item.Window, item.Quantity),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if walkIn {
			r.WalkInName = walkInName
		} else {
			r.RequesterID = actor.ID
		}
		rows = append(rows, r)
	}

	// Every check passed; commit the bundle atomically.
	err := c.withRetry(ctx, func() error {
		return c.Ledger.WithTx(ctx, func(s LedgerStore) error {
			return s.InsertBatch(ctx, rows)
		})
	})
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// =============================================================================
// LIFECYCLE OPERATIONS
// =============================================================================

// Approve re-validates capacity excluding the reservation's own pending
// contribution and transitions pending -> confirmed. On a failed re-check
// the reservation remains pending and a CapacityError is returned.
func (c *Controller) Approve(ctx context.Context, id ReservationID, actor ActorRef) (*Reservation, error) {
	return c.transitionLocked(ctx, id, actor, StatusConfirmed, true)
}

// Reject transitions pending -> rejected. Administrator action.
func (c *Controller) Reject(ctx context.Context, id ReservationID, actor ActorRef) (*Reservation, error) {
	return c.transitionLocked(ctx, id, actor, StatusRejected, false)
}

// Cancel releases a reservation's capacity. Owners may cancel while
// pending; administrators may also cancel confirmed reservations.
func (c *Controller) Cancel(ctx context.Context, id ReservationID, actor ActorRef) (*Reservation, error) {
	return c.transitionLocked(ctx, id, actor, StatusCanceled, false)
}

// MarkReturned closes out a confirmed reservation once the units are back.
func (c *Controller) MarkReturned(ctx context.Context, id ReservationID, actor ActorRef) (*Reservation, error) {
	return c.transitionLocked(ctx, id, actor, StatusReturned, false)
}

// transitionLocked loads the reservation, serializes on its resource's
// lock, re-reads the fresh state inside the critical section, applies the
// transition and persists it. Cancellation takes the same lock: releasing
// capacity is always safe, but it must not interleave with a concurrent
// capacity check on the same resource.
func (c *Controller) transitionLocked(ctx context.Context, id ReservationID, actor ActorRef, to Status, recheckCapacity bool) (*Reservation, error) {
	// First read is only to learn the resource id for locking.
	r, err := c.Ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(r.ResourceID)
	defer unlock()

	// Re-read under the lock; the status may have moved.
	r, err = c.Ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := Transition(r, to, actor, c.Clock.Now()); err != nil {
		return nil, err
	}

	if recheckCapacity {
		res, err := c.getResource(ctx, r.ResourceID)
		if err != nil {
			return nil, err
		}
		remaining, err := AvailableCapacity(ctx, c.Ledger, res, r.Window, c.Active, r.ID)
		if err != nil {
			return nil, err
		}
		if remaining < r.Quantity {
			// Leave the stored row pending; only the local copy moved.
			return nil, &CapacityError{
				ResourceID: res.ID,
				Window:     r.Window,
				Requested:  r.Quantity,
				Remaining:  remaining,
			}
		}
	}

	err = c.withRetry(ctx, func() error {
		return c.Ledger.UpdateStatus(ctx, *r)
	})
	if err != nil {
		return nil, err
	}

	return r, nil
}

// =============================================================================
// READS
// =============================================================================

// GetReservation returns a reservation to its owner or an administrator.
func (c *Controller) GetReservation(ctx context.Context, id ReservationID, actor ActorRef) (*Reservation, error) {
	r, err := c.Ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && !r.OwnedBy(actor) {
		return nil, ErrNotAuthorized
	}
	return r, nil
}

// ListByRequester returns the actor's own reservations.
func (c *Controller) ListByRequester(ctx context.Context, actor ActorRef) ([]Reservation, error) {
	if actor.ID == "" {
		return nil, ErrNotAuthorized
	}
	return c.Ledger.ListByRequester(ctx, actor.ID)
}

// ListAll returns all reservations, optionally filtered by status.
// Administrator action.
func (c *Controller) ListAll(ctx context.Context, actor ActorRef, status Status) ([]Reservation, error) {
	if !actor.IsAdmin {
		return nil, ErrNotAuthorized
	}
	if status != "" && !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	return c.Ledger.ListByStatus(ctx, status)
}

// =============================================================================
// INTERNALS
// =============================================================================

func (c *Controller) getResource(ctx context.Context, id ResourceID) (*Resource, error) {
	res, err := c.Resources.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &NotFoundError{Kind: "resource", ID: string(id)}
	}
	return res, nil
}

// withRetry runs fn, retrying storage conflicts with linear backoff.
func (c *Controller) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * c.RetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = fn()
		if err == nil || !errors.Is(err, ErrStoreConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrTransientFailure, err)
}

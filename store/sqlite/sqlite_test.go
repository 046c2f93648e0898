package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier/reservation-engine/reservation"
	"github.com/atelier/reservation-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func saveKayak(t *testing.T, store *sqlite.Store, capacity int) {
	t.Helper()
	err := store.SaveResource(context.Background(), reservation.Resource{
		ID:          "kayak",
		Name:        "Kayak",
		Kind:        reservation.KindRental,
		Capacity:    capacity,
		PricePerDay: decimal.NewFromInt(25),
		Active:      true,
		CreatedAt:   time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func marchWindow(startDay, endDay int) reservation.Window {
	return reservation.NewWindow(
		time.Date(2026, time.March, startDay, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, endDay, 0, 0, 0, 0, time.UTC),
	)
}

func marchReservation(id string, startDay, endDay int, status reservation.Status) reservation.Reservation {
	now := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	return reservation.Reservation{
		ID:          reservation.ReservationID(id),
		BundleID:    reservation.BundleID("bundle-" + id),
		ResourceID:  "kayak",
		Window:      marchWindow(startDay, endDay),
		Quantity:    1,
		Status:      status,
		RequesterID: "user-1",
		PhoneNumber: "555-0101",
		TotalPrice:  decimal.NewFromInt(50),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// =============================================================================
// RESOURCE TESTS
// =============================================================================

func TestResource_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveKayak(t, store, 5)

	res, err := store.GetResource(ctx, "kayak")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "Kayak", res.Name)
	assert.Equal(t, reservation.KindRental, res.Kind)
	assert.Equal(t, 5, res.Capacity)
	assert.True(t, res.PricePerDay.Equal(decimal.NewFromInt(25)))
	assert.True(t, res.Active)
}

func TestResource_GetMissing_ReturnsNil(t *testing.T) {
	store := newTestStore(t)

	res, err := store.GetResource(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResource_SaveUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveKayak(t, store, 5)

	updated := reservation.Resource{
		ID:          "kayak",
		Name:        "Kayak",
		Kind:        reservation.KindRental,
		Capacity:    3,
		PricePerDay: decimal.NewFromInt(30),
		Active:      false,
	}
	require.NoError(t, store.SaveResource(ctx, updated))

	res, err := store.GetResource(ctx, "kayak")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Capacity)
	assert.False(t, res.Active)
}

// =============================================================================
// RESERVATION ROUND-TRIP TESTS
// =============================================================================

func TestReservation_InsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveKayak(t, store, 5)

	decidedAt := time.Date(2026, time.February, 2, 9, 0, 0, 0, time.UTC)
	r := marchReservation("res-1", 10, 15, reservation.StatusConfirmed)
	r.DecidedBy = "admin-1"
	r.DecidedAt = &decidedAt
	require.NoError(t, store.Insert(ctx, r))

	got, err := store.Get(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.BundleID, got.BundleID)
	assert.True(t, got.Window.Start.Equal(r.Window.Start))
	assert.True(t, got.Window.End.Equal(r.Window.End))
	assert.Equal(t, reservation.StatusConfirmed, got.Status)
	assert.Equal(t, "user-1", got.RequesterID)
	assert.Empty(t, got.WalkInName)
	assert.True(t, got.TotalPrice.Equal(r.TotalPrice))
	assert.Equal(t, "admin-1", got.DecidedBy)
	require.NotNil(t, got.DecidedAt)
	assert.True(t, got.DecidedAt.Equal(decidedAt))
}

func TestReservation_GetMissing_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestReservation_UpdateStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveKayak(t, store, 5)

	r := marchReservation("res-1", 10, 15, reservation.StatusPending)
	require.NoError(t, store.Insert(ctx, r))

	decidedAt := time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC)
	r.Status = reservation.StatusConfirmed
	r.DecidedBy = "admin-1"
	r.DecidedAt = &decidedAt
	r.UpdatedAt = decidedAt
	require.NoError(t, store.UpdateStatus(ctx, r))

	got, err := store.Get(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, got.Status)
	assert.Equal(t, "admin-1", got.DecidedBy)
}

func TestReservation_UpdateStatus_MissingRow(t *testing.T) {
	store := newTestStore(t)

	r := marchReservation("ghost", 10, 15, reservation.StatusCanceled)
	err := store.UpdateStatus(context.Background(), r)
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

// =============================================================================
// OVERLAP QUERY TESTS - Exactness of the half-open predicate
// =============================================================================

func TestOverlapping_HalfOpenSemantics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveKayak(t, store, 5)

	require.NoError(t, store.Insert(ctx, marchReservation("overlap", 10, 15, reservation.StatusPending)))
	require.NoError(t, store.Insert(ctx, marchReservation("touching", 15, 20, reservation.StatusPending)))
	require.NoError(t, store.Insert(ctx, marchReservation("disjoint", 25, 28, reservation.StatusPending)))
	require.NoError(t, store.Insert(ctx, marchReservation("canceled", 12, 14, reservation.StatusCanceled)))

	rows, err := store.Overlapping(ctx, "kayak", marchWindow(14, 16), reservation.ActiveStatuses())
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, reservation.ReservationID("overlap"), rows[0].ID)
}

func TestOverlapping_OtherResourceExcluded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveKayak(t, store, 5)
	require.NoError(t, store.SaveResource(ctx, reservation.Resource{
		ID: "tent", Name: "Tent", Kind: reservation.KindRental,
		Capacity: 2, PricePerDay: decimal.NewFromInt(15), Active: true,
	}))

	kayakRow := marchReservation("on-kayak", 10, 15, reservation.StatusPending)
	tentRow := marchReservation("on-tent", 10, 15, reservation.StatusPending)
	tentRow.ResourceID = "tent"
	require.NoError(t, store.Insert(ctx, kayakRow))
	require.NoError(t, store.Insert(ctx, tentRow))

	rows, err := store.Overlapping(ctx, "kayak", marchWindow(10, 15), reservation.ActiveStatuses())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, reservation.ReservationID("on-kayak"), rows[0].ID)
}

func TestOverlapping_EmptyStatuses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveKayak(t, store, 5)
	require.NoError(t, store.Insert(ctx, marchReservation("res-1", 10, 15, reservation.StatusPending)))

	rows, err := store.Overlapping(ctx, "kayak", marchWindow(10, 15), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// =============================================================================
// LIST TESTS
// =============================================================================

func TestListByRequester(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveKayak(t, store, 5)

	mine := marchReservation("mine", 10, 15, reservation.StatusPending)
	theirs := marchReservation("theirs", 20, 25, reservation.StatusPending)
	theirs.RequesterID = "user-2"
	walkIn := marchReservation("walk-in", 1, 3, reservation.StatusPending)
	walkIn.RequesterID = ""
	walkIn.WalkInName = "Jane Walkin"
	require.NoError(t, store.InsertBatch(ctx, []reservation.Reservation{mine, theirs, walkIn}))

	rows, err := store.ListByRequester(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, reservation.ReservationID("mine"), rows[0].ID)
}

func TestListByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveKayak(t, store, 5)

	require.NoError(t, store.Insert(ctx, marchReservation("p1", 10, 15, reservation.StatusPending)))
	require.NoError(t, store.Insert(ctx, marchReservation("c1", 20, 25, reservation.StatusConfirmed)))

	pending, err := store.ListByStatus(ctx, reservation.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, reservation.ReservationID("p1"), pending[0].ID)

	all, err := store.ListByStatus(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	// GIVEN: A transaction that inserts a row and then fails
	// WHEN: The closure returns an error
	// THEN: The insert is rolled back

	store := newTestStore(t)
	ctx := context.Background()
	saveKayak(t, store, 5)

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s reservation.LedgerStore) error {
		if err := s.Insert(ctx, marchReservation("doomed", 10, 15, reservation.StatusPending)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Get(ctx, "doomed")
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestWithTx_CommitVisibleAfter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveKayak(t, store, 5)

	err := store.WithTx(ctx, func(s reservation.LedgerStore) error {
		return s.InsertBatch(ctx, []reservation.Reservation{
			marchReservation("a", 10, 15, reservation.StatusPending),
			marchReservation("b", 20, 25, reservation.StatusPending),
		})
	})
	require.NoError(t, err)

	_, err = store.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "b")
	assert.NoError(t, err)
}

func TestWithTx_ReadsSeeUncommittedWrites(t *testing.T) {
	// The transactional view must include rows written earlier in the
	// same transaction, so a bundle's later items see its earlier ones.

	store := newTestStore(t)
	ctx := context.Background()
	saveKayak(t, store, 5)

	err := store.WithTx(ctx, func(s reservation.LedgerStore) error {
		if err := s.Insert(ctx, marchReservation("first", 10, 15, reservation.StatusPending)); err != nil {
			return err
		}
		rows, err := s.Overlapping(ctx, "kayak", marchWindow(10, 15), reservation.ActiveStatuses())
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			return errors.New("uncommitted insert not visible inside transaction")
		}
		return nil
	})
	require.NoError(t, err)
}

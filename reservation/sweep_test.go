package reservation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier/reservation-engine/reservation"
)

func TestSweepOnce_CancelsStalePendingOnly(t *testing.T) {
	// GIVEN: A stale pending hold, a fresh pending hold, and a confirmed
	//        reservation
	// WHEN: Sweeping with a 48h TTL
	// THEN: Only the stale pending hold is canceled

	c, mem := newTestController(t, rentalResource("kayak", 5))
	ctx := context.Background()

	jan1 := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	// Stale hold, created at Jan 1.
	stale, err := c.CreateReservations(ctx, ownerActor,
		[]reservation.BundleItem{item("kayak", 1, 10, 15)}, "555-0101", "")
	require.NoError(t, err)

	// Confirmed reservation, also created at Jan 1; age never expires it.
	confirmed, err := c.CreateReservations(ctx, otherActor,
		[]reservation.BundleItem{item("kayak", 1, 20, 25)}, "555-0102", "")
	require.NoError(t, err)
	_, err = c.Approve(ctx, confirmed[0].ID, adminActor)
	require.NoError(t, err)

	// Fresh hold, created at Jan 2.
	c.Clock = reservation.FixedClock{At: jan1.Add(24 * time.Hour)}
	fresh, err := c.CreateReservations(ctx, ownerActor,
		[]reservation.BundleItem{item("kayak", 1, 12, 14)}, "555-0101", "")
	require.NoError(t, err)

	sweeper := reservation.NewSweeper(c, mem,
		reservation.FixedClock{At: jan1.Add(60 * time.Hour)}, 48*time.Hour, time.Minute)

	swept, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	r, err := mem.Get(ctx, stale[0].ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCanceled, r.Status)
	assert.Equal(t, "system-sweeper", r.DecidedBy)

	r, err = mem.Get(ctx, fresh[0].ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPending, r.Status)

	r, err = mem.Get(ctx, confirmed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, r.Status)
}

func TestSweepOnce_NothingStale(t *testing.T) {
	c, mem := newTestController(t, rentalResource("kayak", 5))
	ctx := context.Background()

	_, err := c.CreateReservations(ctx, ownerActor,
		[]reservation.BundleItem{item("kayak", 1, 10, 15)}, "555-0101", "")
	require.NoError(t, err)

	sweeper := reservation.NewSweeper(c, mem,
		reservation.FixedClock{At: time.Date(2026, time.January, 1, 1, 0, 0, 0, time.UTC)},
		48*time.Hour, time.Minute)

	swept, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestSweepOnce_SweptCapacityIsReusable(t *testing.T) {
	// GIVEN: Capacity 1 fully held by a stale pending reservation
	// WHEN: The sweeper cancels it
	// THEN: The window can be granted to someone else

	c, mem := newTestController(t, rentalResource("kayak", 1))
	ctx := context.Background()

	_, err := c.CreateReservations(ctx, ownerActor,
		[]reservation.BundleItem{item("kayak", 1, 10, 15)}, "555-0101", "")
	require.NoError(t, err)

	later := time.Date(2026, time.January, 4, 0, 0, 0, 0, time.UTC)
	sweeper := reservation.NewSweeper(c, mem,
		reservation.FixedClock{At: later}, 48*time.Hour, time.Minute)

	swept, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, swept)

	c.Clock = reservation.FixedClock{At: later}
	_, err = c.CreateReservations(ctx, otherActor,
		[]reservation.BundleItem{item("kayak", 1, 10, 15)}, "555-0102", "")
	require.NoError(t, err)
}

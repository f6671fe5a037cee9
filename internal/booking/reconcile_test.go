package booking

import (
	"context"
	"testing"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_RepairsDrift(t *testing.T) {
	ctx := context.Background()
	store, events, bookings := newServices(t)
	event := createEvent(t, events, 2, "10:00", "11:00")

	_, err := bookings.ReserveSlot(ctx, event.ID, bookingRequest("Alice", "alice@x.com", "10:00"))
	require.NoError(t, err)

	// A row written around the admission engine leaves the counter behind.
	q := store.Queries()
	require.NoError(t, q.InsertBooking(ctx, &models.Booking{
		EventID: event.ID, AttendeeName: "Imported", AttendeeEmail: "imported@x.com", Slot: "11:00", BookedAt: time.Now().UTC(),
	}))
	// And a counter lost for another slot.
	ok, err := q.DeleteEmptyCounter(ctx, event.ID, "10:00")
	require.NoError(t, err)
	require.False(t, ok, "10:00 has a booking, its counter must stay")
	require.NoError(t, q.SetCounterBooked(ctx, event.ID, "10:00", 2))

	r := NewReconciler(store, logger.Discard())
	drifts, err := r.Reconcile(ctx)
	require.NoError(t, err)

	assert.ElementsMatch(t, []models.CounterDrift{
		{EventID: event.ID, Slot: "10:00", Stored: 2, Actual: 1},
		{EventID: event.ID, Slot: "11:00", Stored: 0, Actual: 1},
	}, drifts)
	assert.Equal(t, 1, counterFor(t, store, event.ID, "10:00").Booked)
	assert.Equal(t, 1, counterFor(t, store, event.ID, "11:00").Booked)

	drifts, err = r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestReconcile_CreatesMissingCounters(t *testing.T) {
	ctx := context.Background()
	store, _, bookings := newServices(t)

	// Event inserted without counters, as an external import would.
	er := eventRequest(1, "10:00")
	event := er.ToEvent(0)
	require.NoError(t, store.Queries().InsertEvent(ctx, event))

	drifts, err := NewReconciler(store, logger.Discard()).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CounterDrift{{EventID: event.ID, Slot: "10:00", Stored: 0, Actual: 0}}, drifts)

	c := counterFor(t, store, event.ID, "10:00")
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 0, c.Booked)

	_, err = bookings.ReserveSlot(ctx, event.ID, bookingRequest("Alice", "alice@x.com", "10:00"))
	require.NoError(t, err)
	_, err = bookings.ReserveSlot(ctx, event.ID, bookingRequest("Bob", "bob@x.com", "10:00"))
	assert.ErrorIs(t, err, models.ErrSlotFull)
}

func TestReconcile_DropsCountersOfRemovedSlots(t *testing.T) {
	ctx := context.Background()
	store, events, _ := newServices(t)
	event := createEvent(t, events, 1, "10:00", "11:00")

	_, err := events.ReplaceEvent(ctx, event.ID, eventRequest(1, "10:00"))
	require.NoError(t, err)

	// A writer still holding the old slot list puts the counter back.
	require.NoError(t, store.Queries().InsertCounters(ctx, event.ID, []string{"11:00"}, 1))

	drifts, err := NewReconciler(store, logger.Discard()).Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	counters, err := store.Queries().Counters(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, counters, 1)
	assert.Equal(t, "10:00", counters[0].Slot)
}

func TestReconcileEvent_UsesStoredSlotList(t *testing.T) {
	ctx := context.Background()
	store, events, _ := newServices(t)
	event := createEvent(t, events, 1, "10:00", "11:00")
	r := NewReconciler(store, logger.Discard())

	// event still lists both slots; the stored row no longer does.
	_, err := events.ReplaceEvent(ctx, event.ID, eventRequest(1, "10:00"))
	require.NoError(t, err)
	require.Equal(t, []string{"10:00", "11:00"}, event.Slots)

	drifts, err := r.reconcileEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	counters, err := store.Queries().Counters(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, counters, 1)
	assert.Equal(t, "10:00", counters[0].Slot)

	_, err = events.DeleteEvent(ctx, event.ID)
	require.NoError(t, err)
	drifts, err = r.reconcileEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

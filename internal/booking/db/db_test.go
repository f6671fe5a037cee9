package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	bunDB, err := database.Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, URL: ":memory:"}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })
	require.NoError(t, database.CreateSchema(ctx, bunDB))
	return &DB{Bun: bunDB}
}

func seedEvent(t *testing.T, d *DB, capacity int, slots ...string) *models.Event {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	e := &models.Event{Title: "Demo", StartTime: start, EndTime: start.Add(time.Hour), Organizer: "Carol", Slots: slots, MaxBookings: capacity}
	require.NoError(t, d.InTx(ctx, func(ctx context.Context, q *Queries) error {
		if err := q.InsertEvent(ctx, e); err != nil {
			return err
		}
		return q.InsertCounters(ctx, e.ID, e.Slots, capacity)
	}))
	return e
}

func TestClaimAndReleaseSlot(t *testing.T) {
	ctx := context.Background()
	d := setupTestDB(t)
	e := seedEvent(t, d, 2, "10:00")
	q := d.Queries()

	for i := 0; i < 2; i++ {
		ok, err := q.ClaimSlot(ctx, e.ID, "10:00")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := q.ClaimSlot(ctx, e.ID, "10:00")
	require.NoError(t, err)
	assert.False(t, ok, "capacity reached")

	ok, err = q.ClaimSlot(ctx, e.ID, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, q.ReleaseSlot(ctx, e.ID, "10:00"))
	require.NoError(t, q.ReleaseSlot(ctx, e.ID, "10:00"))
	require.NoError(t, q.ReleaseSlot(ctx, e.ID, "10:00"))

	counters, err := q.Counters(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, counters, 1)
	assert.Equal(t, 0, counters[0].Booked, "release never goes negative")
}

func TestInsertBooking_UniqueIndex(t *testing.T) {
	ctx := context.Background()
	d := setupTestDB(t)
	e := seedEvent(t, d, 5, "10:00")
	q := d.Queries()

	b := &models.Booking{EventID: e.ID, AttendeeName: "Alice", AttendeeEmail: "alice@x.com", Slot: "10:00", BookedAt: time.Now().UTC()}
	require.NoError(t, q.InsertBooking(ctx, b))
	assert.NotZero(t, b.ID)

	dup := *b
	dup.ID = 0
	assert.ErrorIs(t, q.InsertBooking(ctx, &dup), models.ErrDuplicateBooking)

	found, err := q.FindBooking(ctx, e.ID, "10:00", "alice@x.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, b.ID, found.ID)

	none, err := q.FindBooking(ctx, e.ID, "10:00", "bob@x.com")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestInTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	d := setupTestDB(t)
	e := seedEvent(t, d, 1, "10:00")

	boom := errors.New("boom")
	err := d.InTx(ctx, func(ctx context.Context, q *Queries) error {
		ok, err := q.ClaimSlot(ctx, e.ID, "10:00")
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	counters, err := d.Queries().Counters(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, counters[0].Booked)
}

func TestCapacityAndEmptyCounterGuards(t *testing.T) {
	ctx := context.Background()
	d := setupTestDB(t)
	e := seedEvent(t, d, 3, "10:00", "11:00")
	q := d.Queries()

	_, err := q.ClaimSlot(ctx, e.ID, "10:00")
	require.NoError(t, err)
	_, err = q.ClaimSlot(ctx, e.ID, "10:00")
	require.NoError(t, err)

	ok, err := q.SetCounterCapacity(ctx, e.ID, "10:00", 1)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = q.SetCounterCapacity(ctx, e.ID, "10:00", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.DeleteEmptyCounter(ctx, e.ID, "10:00")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = q.DeleteEmptyCounter(ctx, e.ID, "11:00")
	require.NoError(t, err)
	assert.True(t, ok)

	exists, err := q.LockCounter(ctx, e.ID, "10:00")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = q.LockCounter(ctx, e.ID, "11:00")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEnsureAndDeleteCounter(t *testing.T) {
	ctx := context.Background()
	d := setupTestDB(t)
	e := seedEvent(t, d, 3, "10:00")
	q := d.Queries()

	require.NoError(t, q.DeleteCounter(ctx, e.ID, "10:00"))
	require.NoError(t, q.InsertBooking(ctx, &models.Booking{
		EventID: e.ID, AttendeeName: "Ann", AttendeeEmail: "ann@x.com", Slot: "10:00", BookedAt: time.Now().UTC(),
	}))

	created, err := q.EnsureCounter(ctx, e.ID, "10:00", 3)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = q.EnsureCounter(ctx, e.ID, "10:00", 3)
	require.NoError(t, err)
	assert.False(t, created, "existing counter is left alone")

	counters, err := q.Counters(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, counters, 1)
	assert.Equal(t, 1, counters[0].Booked, "seeded from existing bookings")

	require.NoError(t, q.DeleteCounter(ctx, e.ID, "10:00"))
	counters, err = q.Counters(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, counters)
}

func TestGetAndDeleteMissingRows(t *testing.T) {
	ctx := context.Background()
	d := setupTestDB(t)
	q := d.Queries()

	_, err := q.GetEvent(ctx, 1)
	assert.ErrorIs(t, err, models.ErrEventNotFound)
	_, err = q.GetBooking(ctx, 1)
	assert.ErrorIs(t, err, models.ErrBookingNotFound)
	assert.ErrorIs(t, q.DeleteEvent(ctx, 1), models.ErrEventNotFound)
	assert.ErrorIs(t, q.DeleteBooking(ctx, 1), models.ErrBookingNotFound)
	assert.ErrorIs(t, q.UpdateEvent(ctx, &models.Event{ID: 1, Slots: []string{}}), models.ErrEventNotFound)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: bookings.event_id (2067)")))
	assert.False(t, IsUniqueViolation(nil))

	assert.True(t, IsRetryable(&pq.Error{Code: "40001"}))
	assert.True(t, IsRetryable(&pq.Error{Code: "40P01"}))
	assert.False(t, IsRetryable(&pq.Error{Code: "23505"}))
	assert.True(t, IsRetryable(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, IsRetryable(errors.New("no such table: events")))
	assert.False(t, IsRetryable(nil))
}

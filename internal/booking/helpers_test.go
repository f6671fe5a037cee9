package booking

import (
	"context"
	"testing"
	"time"

	"ms-booking/internal/booking/db"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/stretchr/testify/require"
)

// setupTestDB opens a private in-memory SQLite database with the schema.
func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	ctx := context.Background()

	bunDB, err := database.Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, URL: ":memory:"}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	require.NoError(t, database.CreateSchema(ctx, bunDB))
	return &db.DB{Bun: bunDB}
}

func newServices(t *testing.T) (*db.DB, *EventService, *BookingService) {
	store := setupTestDB(t)
	log := logger.Discard()
	return store, NewEventService(store, nil, log, 3), NewBookingService(store, nil, nil, log, 3)
}

func eventRequest(maxBookings int, slots ...string) models.EventRequest {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return models.EventRequest{
		Title:       "Office hours",
		Description: "Weekly office hours",
		StartTime:   start,
		EndTime:     start.Add(8 * time.Hour),
		Organizer:   "Carol",
		Slots:       slots,
		MaxBookings: maxBookings,
	}
}

func createEvent(t *testing.T, events *EventService, maxBookings int, slots ...string) *models.Event {
	t.Helper()
	event, err := events.CreateEvent(context.Background(), eventRequest(maxBookings, slots...))
	require.NoError(t, err)
	return event
}

func bookingRequest(name, email, slot string) models.BookingRequest {
	return models.BookingRequest{AttendeeName: name, AttendeeEmail: email, Slot: slot}
}

func counterFor(t *testing.T, store *db.DB, eventID int64, slot string) models.SlotCounter {
	t.Helper()
	counters, err := store.Queries().Counters(context.Background(), eventID)
	require.NoError(t, err)
	for _, c := range counters {
		if c.Slot == slot {
			return c
		}
	}
	t.Fatalf("no counter for event %d slot %q", eventID, slot)
	return models.SlotCounter{}
}

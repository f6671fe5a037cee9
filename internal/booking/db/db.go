package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// Queries runs statements against either the database handle or an open
// transaction, so the same primitives serve reads and the admission
// transaction.
type Queries struct {
	db bun.IDB
}

// InTx runs fn inside a single transaction. Any error returned by fn rolls
// the whole transaction back.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, q *Queries) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Queries{db: tx})
	})
}

// Queries returns non-transactional primitives.
func (d *DB) Queries() *Queries {
	return &Queries{db: d.Bun}
}

func (d *DB) Ping(ctx context.Context) error {
	return d.Bun.PingContext(ctx)
}

// ---------------- EVENTS ----------------

func (q *Queries) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	err := q.db.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return &event, nil
}

func (q *Queries) ListEvents(ctx context.Context, page models.Page) ([]models.Event, error) {
	events := []models.Event{}
	err := q.db.NewSelect().
		Model(&events).
		Order("id ASC").
		Offset(page.Skip).
		Limit(page.Limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (q *Queries) InsertEvent(ctx context.Context, event *models.Event) error {
	if _, err := q.db.NewInsert().Model(event).Exec(ctx); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// UpdateEvent replaces every column of the event row.
func (q *Queries) UpdateEvent(ctx context.Context, event *models.Event) error {
	res, err := q.db.NewUpdate().
		Model(event).
		Column("title", "description", "start_time", "end_time", "organizer", "slots", "max_bookings").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update event %d: %w", event.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrEventNotFound
	}
	return nil
}

func (q *Queries) DeleteEvent(ctx context.Context, id int64) error {
	res, err := q.db.NewDelete().
		Model((*models.Event)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrEventNotFound
	}
	return nil
}

// ---------------- SLOT COUNTERS ----------------

func (q *Queries) InsertCounters(ctx context.Context, eventID int64, slots []string, capacity int) error {
	if len(slots) == 0 {
		return nil
	}
	counters := make([]models.SlotCounter, 0, len(slots))
	for _, s := range slots {
		counters = append(counters, models.SlotCounter{EventID: eventID, Slot: s, Capacity: capacity})
	}
	if _, err := q.db.NewInsert().Model(&counters).Exec(ctx); err != nil {
		return fmt.Errorf("insert slot counters for event %d: %w", eventID, err)
	}
	return nil
}

func (q *Queries) Counters(ctx context.Context, eventID int64) ([]models.SlotCounter, error) {
	counters := []models.SlotCounter{}
	err := q.db.NewSelect().
		Model(&counters).
		Where("event_id = ?", eventID).
		Order("slot ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slot counters for event %d: %w", eventID, err)
	}
	return counters, nil
}

func (q *Queries) AllCounters(ctx context.Context) ([]models.SlotCounter, error) {
	counters := []models.SlotCounter{}
	err := q.db.NewSelect().
		Model(&counters).
		Order("event_id ASC", "slot ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slot counters: %w", err)
	}
	return counters, nil
}

// ClaimSlot takes one place on the slot counter. The predicate is evaluated
// under the row lock, so it reports false once capacity is reached no matter
// how many writers race for the last place. It also reports false when the
// counter row does not exist.
func (q *Queries) ClaimSlot(ctx context.Context, eventID int64, slot string) (bool, error) {
	res, err := q.db.NewUpdate().
		Model((*models.SlotCounter)(nil)).
		Set("booked = booked + 1").
		Where("event_id = ?", eventID).
		Where("slot = ?", slot).
		Where("booked < capacity").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("claim slot %q of event %d: %w", slot, eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim slot rows affected: %w", err)
	}
	return n == 1, nil
}

func (q *Queries) ReleaseSlot(ctx context.Context, eventID int64, slot string) error {
	_, err := q.db.NewUpdate().
		Model((*models.SlotCounter)(nil)).
		Set("booked = booked - 1").
		Where("event_id = ?", eventID).
		Where("slot = ?", slot).
		Where("booked > 0").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("release slot %q of event %d: %w", slot, eventID, err)
	}
	return nil
}

// EnsureCounter creates the slot's counter when it is missing, seeded with
// the bookings already on the slot. It reports whether this call created it;
// a counter created concurrently by another writer is left alone.
func (q *Queries) EnsureCounter(ctx context.Context, eventID int64, slot string, capacity int) (bool, error) {
	booked, err := q.CountBookings(ctx, eventID, slot)
	if err != nil {
		return false, err
	}
	counter := models.SlotCounter{EventID: eventID, Slot: slot, Capacity: capacity, Booked: booked}
	res, err := q.db.NewInsert().
		Model(&counter).
		On("CONFLICT (event_id, slot) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("ensure slot counter %q of event %d: %w", slot, eventID, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// LockCounter takes the counter's row lock without changing it and reports
// whether the row exists. Writers that claim or release the slot wait on
// this lock until the surrounding transaction ends.
func (q *Queries) LockCounter(ctx context.Context, eventID int64, slot string) (bool, error) {
	res, err := q.db.NewUpdate().
		Model((*models.SlotCounter)(nil)).
		Set("booked = booked").
		Where("event_id = ?", eventID).
		Where("slot = ?", slot).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("lock slot counter %q: %w", slot, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// SetCounterCapacity changes a slot's capacity unless it already holds more
// bookings than the new value.
func (q *Queries) SetCounterCapacity(ctx context.Context, eventID int64, slot string, capacity int) (bool, error) {
	res, err := q.db.NewUpdate().
		Model((*models.SlotCounter)(nil)).
		Set("capacity = ?", capacity).
		Where("event_id = ?", eventID).
		Where("slot = ?", slot).
		Where("booked <= ?", capacity).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("set capacity of slot %q: %w", slot, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// DeleteEmptyCounter removes a slot counter only if nothing is booked on it.
func (q *Queries) DeleteEmptyCounter(ctx context.Context, eventID int64, slot string) (bool, error) {
	res, err := q.db.NewDelete().
		Model((*models.SlotCounter)(nil)).
		Where("event_id = ?", eventID).
		Where("slot = ?", slot).
		Where("booked = 0").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete slot counter %q: %w", slot, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// DeleteCounter removes a slot counter whatever it holds.
func (q *Queries) DeleteCounter(ctx context.Context, eventID int64, slot string) error {
	_, err := q.db.NewDelete().
		Model((*models.SlotCounter)(nil)).
		Where("event_id = ?", eventID).
		Where("slot = ?", slot).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete slot counter %q: %w", slot, err)
	}
	return nil
}

func (q *Queries) DeleteEventCounters(ctx context.Context, eventID int64) error {
	_, err := q.db.NewDelete().
		Model((*models.SlotCounter)(nil)).
		Where("event_id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete slot counters for event %d: %w", eventID, err)
	}
	return nil
}

func (q *Queries) SetCounterBooked(ctx context.Context, eventID int64, slot string, booked int) error {
	_, err := q.db.NewUpdate().
		Model((*models.SlotCounter)(nil)).
		Set("booked = ?", booked).
		Where("event_id = ?", eventID).
		Where("slot = ?", slot).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set booked of slot %q: %w", slot, err)
	}
	return nil
}

// ---------------- BOOKINGS ----------------

func (q *Queries) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := q.db.NewSelect().
		Model(&booking).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return &booking, nil
}

// FindBooking returns the attendee's booking for the slot, or nil.
func (q *Queries) FindBooking(ctx context.Context, eventID int64, slot, email string) (*models.Booking, error) {
	var booking models.Booking
	err := q.db.NewSelect().
		Model(&booking).
		Where("event_id = ?", eventID).
		Where("slot = ?", slot).
		Where("attendee_email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return &booking, nil
}

func (q *Queries) ListBookings(ctx context.Context, filter models.BookingFilter, page models.Page) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := q.db.NewSelect().Model(&bookings)
	if filter.EventID != 0 {
		query = query.Where("event_id = ?", filter.EventID)
	}
	if filter.AttendeeEmail != "" {
		query = query.Where("attendee_email = ?", filter.AttendeeEmail)
	}
	err := query.
		Order("id ASC").
		Offset(page.Skip).
		Limit(page.Limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (q *Queries) CountBookings(ctx context.Context, eventID int64, slot string) (int, error) {
	n, err := q.db.NewSelect().
		Model((*models.Booking)(nil)).
		Where("event_id = ?", eventID).
		Where("slot = ?", slot).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return n, nil
}

// InsertBooking stores the booking. A violation of the
// (event_id, slot, attendee_email) unique index is reported as
// models.ErrDuplicateBooking.
func (q *Queries) InsertBooking(ctx context.Context, booking *models.Booking) error {
	if _, err := q.db.NewInsert().Model(booking).Exec(ctx); err != nil {
		if IsUniqueViolation(err) {
			return models.ErrDuplicateBooking
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (q *Queries) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	res, err := q.db.NewUpdate().
		Model(booking).
		Column("event_id", "attendee_name", "attendee_email", "slot", "booked_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if IsUniqueViolation(err) {
			return models.ErrDuplicateBooking
		}
		return fmt.Errorf("update booking %d: %w", booking.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrBookingNotFound
	}
	return nil
}

func (q *Queries) DeleteBooking(ctx context.Context, id int64) error {
	res, err := q.db.NewDelete().
		Model((*models.Booking)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete booking %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrBookingNotFound
	}
	return nil
}

func (q *Queries) DeleteEventBookings(ctx context.Context, eventID int64) (int64, error) {
	res, err := q.db.NewDelete().
		Model((*models.Booking)(nil)).
		Where("event_id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete bookings of event %d: %w", eventID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

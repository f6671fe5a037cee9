package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/booking/db"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/cenkalti/backoff/v4"
)

// SlotLocker serialises reservations for one (event, slot) ahead of the
// database transaction. The returned func releases the lock.
type SlotLocker interface {
	Lock(ctx context.Context, eventID int64, slot string) (func(), error)
}

type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, event models.BookingEvent) error
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, int64, string) (func(), error) { return func() {}, nil }

type noopPublisher struct{}

func (noopPublisher) PublishBookingEvent(context.Context, models.BookingEvent) error { return nil }

// Publishers sends each event to every sink in order. All sinks are tried;
// the first error is returned.
type Publishers []EventPublisher

func (p Publishers) PublishBookingEvent(ctx context.Context, event models.BookingEvent) error {
	var first error
	for _, pub := range p {
		if err := pub.PublishBookingEvent(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

const defaultMaxRetries = 5

type BookingService struct {
	Store      *db.DB
	Locker     SlotLocker
	Publisher  EventPublisher
	Logger     *logger.Logger
	MaxRetries int

	now func() time.Time
}

// NewBookingService wires the admission engine. locker and publisher may be
// nil, in which case reservations run without a distributed lock and no
// events are emitted.
func NewBookingService(store *db.DB, locker SlotLocker, publisher EventPublisher, log *logger.Logger, maxRetries int) *BookingService {
	if locker == nil {
		locker = noopLocker{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	return &BookingService{
		Store:      store,
		Locker:     locker,
		Publisher:  publisher,
		Logger:     log,
		MaxRetries: maxRetries,
		now:        time.Now,
	}
}

// ---------------- ADMISSION ----------------

// ReserveSlot admits a new booking for eventID. Checks run in a fixed order:
// the event must exist, the slot must belong to it, the attendee must not
// already hold it, and only then is capacity claimed. All of it happens in
// one transaction, so a rejected request leaves nothing behind.
func (s *BookingService) ReserveSlot(ctx context.Context, eventID int64, req models.BookingRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := s.lockSlot(ctx, eventID, req.Slot)
	defer unlock()

	var booking *models.Booking
	err := s.withRetry(ctx, "reserve", func() error {
		return s.Store.InTx(ctx, func(ctx context.Context, q *db.Queries) error {
			b, err := s.admit(ctx, q, eventID, req)
			if err != nil {
				return err
			}
			booking = b
			return nil
		})
	})
	if err != nil {
		s.logRejection(eventID, req.Slot, err)
		return nil, err
	}

	s.Logger.LogBooking("RESERVE", eventID, fmt.Sprintf("booking %d created for slot %q", booking.ID, booking.Slot))
	s.publish(ctx, models.NewBookingEvent(models.BookingCreated, booking))
	return booking, nil
}

func (s *BookingService) admit(ctx context.Context, q *db.Queries, eventID int64, req models.BookingRequest) (*models.Booking, error) {
	event, err := q.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.HasSlot(req.Slot) {
		return nil, models.ErrInvalidSlot
	}

	existing, err := q.FindBooking(ctx, eventID, req.Slot, req.AttendeeEmail)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrDuplicateBooking
	}

	if err := s.claim(ctx, q, event, req.Slot, req.AttendeeEmail, 0); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		EventID:       eventID,
		AttendeeName:  req.AttendeeName,
		AttendeeEmail: req.AttendeeEmail,
		Slot:          req.Slot,
		BookedAt:      s.bookedAt(),
	}
	if err := q.InsertBooking(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// claim takes one place on the slot counter. When the counter refuses, the
// reason is re-derived inside the same transaction: a duplicate committed by
// a concurrent request still wins over "full". A slot the event offers but
// that has no counter yet (imported events) gets one, seeded from its
// existing bookings.
func (s *BookingService) claim(ctx context.Context, q *db.Queries, event *models.Event, slot, email string, selfID int64) error {
	ok, err := q.ClaimSlot(ctx, event.ID, slot)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	existing, err := q.FindBooking(ctx, event.ID, slot, email)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return models.ErrDuplicateBooking
	}

	created, err := q.EnsureCounter(ctx, event.ID, slot, event.MaxBookings)
	if err != nil {
		return err
	}
	if !created {
		return models.ErrSlotFull
	}
	ok, err = q.ClaimSlot(ctx, event.ID, slot)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrSlotFull
	}
	return nil
}

// ---------------- BOOKINGS ----------------

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.Store.Queries().GetBooking(ctx, id)
}

func (s *BookingService) ListBookings(ctx context.Context, filter models.BookingFilter, page models.Page) ([]models.Booking, error) {
	filter.AttendeeEmail = models.NormalizeEmail(filter.AttendeeEmail)
	return s.Store.Queries().ListBookings(ctx, filter, page)
}

// UpdateBooking replaces a booking. Moving it to another event or slot goes
// through admission again: the old place is released and a new one claimed
// in the same transaction. A zero EventID in req keeps the current event.
func (s *BookingService) UpdateBooking(ctx context.Context, id int64, req models.BookingRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	current, err := s.Store.Queries().GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.EventID == 0 {
		req.EventID = current.EventID
	}
	if req.EventID != current.EventID || req.Slot != current.Slot {
		unlock := s.lockSlot(ctx, req.EventID, req.Slot)
		defer unlock()
	}

	var (
		updated   *models.Booking
		fromEvent int64
	)
	err = s.withRetry(ctx, "update", func() error {
		return s.Store.InTx(ctx, func(ctx context.Context, q *db.Queries) error {
			b, prev, err := s.replace(ctx, q, id, req)
			if err != nil {
				return err
			}
			updated, fromEvent = b, prev
			return nil
		})
	})
	if err != nil {
		s.logRejection(req.EventID, req.Slot, err)
		return nil, err
	}

	s.Logger.LogBooking("UPDATE", updated.EventID, fmt.Sprintf("booking %d now on slot %q", updated.ID, updated.Slot))
	ev := models.NewBookingEvent(models.BookingUpdated, updated)
	if fromEvent != updated.EventID {
		ev.PreviousEventID = fromEvent
	}
	s.publish(ctx, ev)
	return updated, nil
}

// replace applies req to booking id and also returns the event the booking
// was on before.
func (s *BookingService) replace(ctx context.Context, q *db.Queries, id int64, req models.BookingRequest) (*models.Booking, int64, error) {
	current, err := q.GetBooking(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	moved := req.EventID != current.EventID || req.Slot != current.Slot

	var target *models.Event
	if moved {
		target, err = q.GetEvent(ctx, req.EventID)
		if err != nil {
			return nil, 0, err
		}
		if !target.HasSlot(req.Slot) {
			return nil, 0, models.ErrInvalidSlot
		}
	}

	if moved || req.AttendeeEmail != current.AttendeeEmail {
		existing, err := q.FindBooking(ctx, req.EventID, req.Slot, req.AttendeeEmail)
		if err != nil {
			return nil, 0, err
		}
		if existing != nil && existing.ID != id {
			return nil, 0, models.ErrDuplicateBooking
		}
	}

	updated := *current
	updated.AttendeeName = req.AttendeeName
	updated.AttendeeEmail = req.AttendeeEmail

	if moved {
		if err := q.ReleaseSlot(ctx, current.EventID, current.Slot); err != nil {
			return nil, 0, err
		}
		if err := s.claim(ctx, q, target, req.Slot, req.AttendeeEmail, id); err != nil {
			return nil, 0, err
		}
		updated.EventID = req.EventID
		updated.Slot = req.Slot
		updated.BookedAt = s.bookedAt()
	}

	if err := q.UpdateBooking(ctx, &updated); err != nil {
		return nil, 0, err
	}
	return &updated, current.EventID, nil
}

// DeleteBooking removes the booking and gives its place back to the slot.
func (s *BookingService) DeleteBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var deleted *models.Booking
	err := s.withRetry(ctx, "delete", func() error {
		return s.Store.InTx(ctx, func(ctx context.Context, q *db.Queries) error {
			b, err := q.GetBooking(ctx, id)
			if err != nil {
				return err
			}
			if err := q.DeleteBooking(ctx, id); err != nil {
				return err
			}
			if err := q.ReleaseSlot(ctx, b.EventID, b.Slot); err != nil {
				return err
			}
			deleted = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogBooking("DELETE", deleted.EventID, fmt.Sprintf("booking %d released slot %q", deleted.ID, deleted.Slot))
	s.publish(ctx, models.NewBookingEvent(models.BookingDeleted, deleted))
	return deleted, nil
}

// ---------------- HELPERS ----------------

// bookedAt is the reservation time at the precision the store keeps, so the
// value returned to the caller matches what later reads return.
func (s *BookingService) bookedAt() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *BookingService) lockSlot(ctx context.Context, eventID int64, slot string) func() {
	unlock, err := s.Locker.Lock(ctx, eventID, slot)
	if err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("Slot lock for event %d slot %q unavailable, continuing without it: %v", eventID, slot, err))
		return func() {}
	}
	return unlock
}

func (s *BookingService) publish(ctx context.Context, event models.BookingEvent) {
	if err := s.Publisher.PublishBookingEvent(ctx, event); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Publish %s for event %d failed: %v", event.Type, event.EventID, err))
	}
}

func (s *BookingService) logRejection(eventID int64, slot string, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidSlot), errors.Is(err, models.ErrDuplicateBooking), errors.Is(err, models.ErrSlotFull):
		s.Logger.LogBooking("REJECT", eventID, fmt.Sprintf("slot %q: %v", slot, err))
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrValidation):
	default:
		s.Logger.Error("BOOKING", fmt.Sprintf("Event %d slot %q: %v", eventID, slot, err))
	}
}

func (s *BookingService) withRetry(ctx context.Context, op string, fn func() error) error {
	return runWithRetry(ctx, s.MaxRetries, s.Logger, op, fn)
}

// runWithRetry re-runs fn while the store reports transient contention. When
// the attempts run out the caller gets ErrConflictRetry.
func runWithRetry(ctx context.Context, maxRetries int, log *logger.Logger, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if db.IsRetryable(err) {
			log.Debug("DATABASE", fmt.Sprintf("%s attempt %d hit contention: %v", op, attempt, err))
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx))

	if err != nil && db.IsRetryable(err) {
		return fmt.Errorf("%w: %v", models.ErrConflictRetry, err)
	}
	return err
}

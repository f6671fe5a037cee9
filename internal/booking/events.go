package booking

import (
	"context"
	"fmt"

	"ms-booking/internal/booking/db"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

type EventService struct {
	Store      *db.DB
	Publisher  EventPublisher
	Logger     *logger.Logger
	MaxRetries int
}

func NewEventService(store *db.DB, publisher EventPublisher, log *logger.Logger, maxRetries int) *EventService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	return &EventService{Store: store, Publisher: publisher, Logger: log, MaxRetries: maxRetries}
}

// CreateEvent stores the event together with one capacity counter per slot.
func (s *EventService) CreateEvent(ctx context.Context, req models.EventRequest) (*models.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	event := req.ToEvent(0)

	err := s.Store.InTx(ctx, func(ctx context.Context, q *db.Queries) error {
		if err := q.InsertEvent(ctx, event); err != nil {
			return err
		}
		return q.InsertCounters(ctx, event.ID, event.Slots, event.MaxBookings)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogBooking("EVENT", event.ID, fmt.Sprintf("created %q with %d slots of %d", event.Title, len(event.Slots), event.MaxBookings))
	return event, nil
}

func (s *EventService) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	return s.Store.Queries().GetEvent(ctx, id)
}

func (s *EventService) ListEvents(ctx context.Context, page models.Page) ([]models.Event, error) {
	return s.Store.Queries().ListEvents(ctx, page)
}

// ReplaceEvent overwrites every field of the event and brings the slot
// counters in line with the new slots and capacity. The change is refused
// with ErrCapacityConflict when existing bookings would no longer fit.
func (s *EventService) ReplaceEvent(ctx context.Context, id int64, req models.EventRequest) (*models.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	event := req.ToEvent(id)

	err := runWithRetry(ctx, s.MaxRetries, s.Logger, "replace event", func() error {
		return s.Store.InTx(ctx, func(ctx context.Context, q *db.Queries) error {
			if err := q.UpdateEvent(ctx, event); err != nil {
				return err
			}
			return syncCounters(ctx, q, event)
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogBooking("EVENT", id, "replaced")
	return event, nil
}

func syncCounters(ctx context.Context, q *db.Queries, event *models.Event) error {
	counters, err := q.Counters(ctx, event.ID)
	if err != nil {
		return err
	}
	existing := make(map[string]bool, len(counters))
	for _, c := range counters {
		existing[c.Slot] = true
	}

	var added []string
	for _, slot := range event.Slots {
		if !existing[slot] {
			added = append(added, slot)
			continue
		}
		ok, err := q.SetCounterCapacity(ctx, event.ID, slot, event.MaxBookings)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: slot %q already holds more than %d bookings", models.ErrCapacityConflict, slot, event.MaxBookings)
		}
		delete(existing, slot)
	}

	for slot := range existing {
		ok, err := q.DeleteEmptyCounter(ctx, event.ID, slot)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: slot %q still has bookings", models.ErrCapacityConflict, slot)
		}
	}

	return q.InsertCounters(ctx, event.ID, added, event.MaxBookings)
}

// DeleteEvent removes the event with its bookings and counters, and returns
// the event as it was.
func (s *EventService) DeleteEvent(ctx context.Context, id int64) (*models.Event, error) {
	var (
		deleted  *models.Event
		bookings int64
	)
	err := runWithRetry(ctx, s.MaxRetries, s.Logger, "delete event", func() error {
		return s.Store.InTx(ctx, func(ctx context.Context, q *db.Queries) error {
			event, err := q.GetEvent(ctx, id)
			if err != nil {
				return err
			}
			n, err := q.DeleteEventBookings(ctx, id)
			if err != nil {
				return err
			}
			if err := q.DeleteEventCounters(ctx, id); err != nil {
				return err
			}
			if err := q.DeleteEvent(ctx, id); err != nil {
				return err
			}
			deleted, bookings = event, n
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogBooking("EVENT", id, fmt.Sprintf("deleted with %d bookings", bookings))
	event := models.NewBookingEvent(models.EventDeleted, nil)
	event.EventID = id
	if err := s.Publisher.PublishBookingEvent(ctx, event); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Publish %s for event %d failed: %v", models.EventDeleted, id, err))
	}
	return deleted, nil
}

// Availability reports per-slot usage in the event's slot order.
func (s *EventService) Availability(ctx context.Context, id int64) (*models.EventAvailability, error) {
	q := s.Store.Queries()
	event, err := q.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	counters, err := q.Counters(ctx, id)
	if err != nil {
		return nil, err
	}
	byslot := make(map[string]models.SlotCounter, len(counters))
	for _, c := range counters {
		byslot[c.Slot] = c
	}

	out := &models.EventAvailability{EventID: id, Slots: make([]models.SlotAvailability, 0, len(event.Slots))}
	for _, slot := range event.Slots {
		c, ok := byslot[slot]
		if !ok {
			c = models.SlotCounter{Capacity: event.MaxBookings}
		}
		remaining := c.Capacity - c.Booked
		if remaining < 0 {
			remaining = 0
		}
		out.Slots = append(out.Slots, models.SlotAvailability{
			Slot:      slot,
			Capacity:  c.Capacity,
			Booked:    c.Booked,
			Remaining: remaining,
		})
	}
	return out, nil
}

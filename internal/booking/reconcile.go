package booking

import (
	"context"
	"errors"
	"fmt"

	"ms-booking/internal/booking/db"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

const reconcilePageSize = 100

// Reconciler rebuilds slot counters from the bookings table. Rows written
// around the service (imports, manual fixes) leave counters stale; this
// repairs them and creates counters missing for any event slot.
type Reconciler struct {
	Store  *db.DB
	Logger *logger.Logger
}

func NewReconciler(store *db.DB, log *logger.Logger) *Reconciler {
	return &Reconciler{Store: store, Logger: log}
}

// Reconcile walks every event and returns the counters it corrected.
func (r *Reconciler) Reconcile(ctx context.Context) ([]models.CounterDrift, error) {
	var drifts []models.CounterDrift
	page := models.Page{Skip: 0, Limit: reconcilePageSize}

	for {
		events, err := r.Store.Queries().ListEvents(ctx, page)
		if err != nil {
			return drifts, err
		}
		for i := range events {
			d, err := r.reconcileEvent(ctx, events[i].ID)
			if err != nil {
				return drifts, fmt.Errorf("reconcile event %d: %w", events[i].ID, err)
			}
			drifts = append(drifts, d...)
		}
		if len(events) < page.Limit {
			break
		}
		page.Skip += page.Limit
	}

	for _, d := range drifts {
		r.Logger.Warn("RECONCILE", fmt.Sprintf("Event %d slot %q: counter %d, bookings %d", d.EventID, d.Slot, d.Stored, d.Actual))
	}
	r.Logger.Info("RECONCILE", fmt.Sprintf("Reconciliation finished, %d counters repaired", len(drifts)))
	return drifts, nil
}

// reconcileEvent works from the event as stored inside its own transaction;
// the listing it came from may already be stale. Counters of slots the event
// no longer offers are dropped.
func (r *Reconciler) reconcileEvent(ctx context.Context, eventID int64) ([]models.CounterDrift, error) {
	var (
		drifts   []models.CounterDrift
		orphaned []string
	)
	err := runWithRetry(ctx, defaultMaxRetries, r.Logger, "reconcile", func() error {
		return r.Store.InTx(ctx, func(ctx context.Context, q *db.Queries) error {
			drifts, orphaned = drifts[:0], orphaned[:0]

			event, err := q.GetEvent(ctx, eventID)
			if errors.Is(err, models.ErrEventNotFound) {
				return nil
			}
			if err != nil {
				return err
			}

			// Once a counter's row lock is held every reservation touching
			// that slot has either committed or is waiting behind us, so the
			// counts below are exact.
			created := make(map[string]bool)
			for _, slot := range event.Slots {
				exists, err := q.LockCounter(ctx, event.ID, slot)
				if err != nil {
					return err
				}
				if !exists {
					if err := q.InsertCounters(ctx, event.ID, []string{slot}, event.MaxBookings); err != nil {
						return err
					}
					created[slot] = true
				}
			}

			counters, err := q.Counters(ctx, event.ID)
			if err != nil {
				return err
			}
			stored := make(map[string]int, len(counters))
			for _, c := range counters {
				if !event.HasSlot(c.Slot) {
					if err := q.DeleteCounter(ctx, event.ID, c.Slot); err != nil {
						return err
					}
					orphaned = append(orphaned, c.Slot)
					continue
				}
				stored[c.Slot] = c.Booked
			}

			for _, slot := range event.Slots {
				actual, err := q.CountBookings(ctx, event.ID, slot)
				if err != nil {
					return err
				}
				if actual == stored[slot] && !created[slot] {
					continue
				}
				if actual != stored[slot] {
					if err := q.SetCounterBooked(ctx, event.ID, slot, actual); err != nil {
						return err
					}
				}
				drifts = append(drifts, models.CounterDrift{EventID: event.ID, Slot: slot, Stored: stored[slot], Actual: actual})
			}
			return nil
		})
	})
	for _, slot := range orphaned {
		r.Logger.Warn("RECONCILE", fmt.Sprintf("Event %d: dropped counter of removed slot %q", eventID, slot))
	}
	return drifts, err
}

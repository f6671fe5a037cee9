package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/booking/db"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

func main() {
	drop := flag.Bool("drop", false, "drop the schema before recreating it")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Error("SEED", err.Error())
		os.Exit(1)
	}
	defer bunDB.Close()

	if err := resetSchema(ctx, cfg.Database, bunDB, log, *drop); err != nil {
		log.Error("SEED", err.Error())
		os.Exit(1)
	}

	if err := seedData(ctx, &db.DB{Bun: bunDB}, log, cfg.Booking.MaxRetries); err != nil {
		log.Error("SEED", err.Error())
		os.Exit(1)
	}
	log.Info("SEED", "✅ Done.")
}

func resetSchema(ctx context.Context, cfg config.DatabaseConfig, bunDB *bun.DB, log *logger.Logger, drop bool) error {
	if cfg.Driver == config.DriverSQLite {
		if drop {
			log.Info("SEED", "Dropping tables...")
			if err := database.DropSchema(ctx, bunDB); err != nil {
				return fmt.Errorf("drop schema: %w", err)
			}
		}
		log.Info("SEED", "Creating tables...")
		return database.CreateSchema(ctx, bunDB)
	}

	runner := migrations.NewRunner(cfg.URL, log)
	defer runner.Close()
	if drop {
		log.Info("SEED", "Rolling back migrations...")
		if err := runner.MigrateDown(); err != nil {
			return err
		}
	}
	log.Info("SEED", "Applying migrations...")
	return runner.MigrateUp()
}

func seedData(ctx context.Context, store *db.DB, log *logger.Logger, maxRetries int) error {
	events := booking.NewEventService(store, nil, log, maxRetries)
	bookings := booking.NewBookingService(store, nil, nil, log, maxRetries)

	tomorrow := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	demo := []struct {
		event    models.EventRequest
		bookings []models.BookingRequest
	}{
		{
			event: models.EventRequest{
				Title:       "AI Demo Call",
				Description: "Discuss the future of AI.",
				StartTime:   tomorrow.Add(10 * time.Hour),
				EndTime:     tomorrow.Add(12 * time.Hour),
				Organizer:   "alice@example.com",
				Slots:       []string{"10:00", "11:00"},
				MaxBookings: 2,
			},
			bookings: []models.BookingRequest{
				{AttendeeName: "Charlie", AttendeeEmail: "charlie@example.com", Slot: "10:00"},
			},
		},
		{
			event: models.EventRequest{
				Title:       "Design Brainstorm",
				Description: "UI/UX session.",
				StartTime:   tomorrow.Add(37 * time.Hour),
				EndTime:     tomorrow.Add(38 * time.Hour),
				Organizer:   "bob@example.com",
				Slots:       []string{"13:00"},
				MaxBookings: 1,
			},
			bookings: []models.BookingRequest{
				{AttendeeName: "Dana", AttendeeEmail: "dana@example.com", Slot: "13:00"},
			},
		},
	}

	for _, d := range demo {
		event, err := events.CreateEvent(ctx, d.event)
		if err != nil {
			return fmt.Errorf("create event %q: %w", d.event.Title, err)
		}
		for _, req := range d.bookings {
			b, err := bookings.ReserveSlot(ctx, event.ID, req)
			if errors.Is(err, models.ErrDuplicateBooking) || errors.Is(err, models.ErrSlotFull) {
				log.Warn("SEED", fmt.Sprintf("Skipping booking for %s: %v", req.AttendeeEmail, err))
				continue
			}
			if err != nil {
				return fmt.Errorf("reserve %s on event %d: %w", req.Slot, event.ID, err)
			}
			log.LogBooking("SEED", event.ID, fmt.Sprintf("booking %d for %s at %s", b.ID, b.AttendeeEmail, b.Slot))
		}
	}
	return nil
}

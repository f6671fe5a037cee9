package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"ms-booking/internal/config"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/joho/godotenv"
)

// booking-feed tails the bookings topic and writes each change to the log.
func main() {
	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.Bookings, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	log.Info("APP", fmt.Sprintf("📡 Booking feed listening on %s (group %s)", cfg.Kafka.Topics.Bookings, cfg.Kafka.GroupID))
	if err := consumer.Start(ctx, func(ev models.BookingEvent) {
		log.LogBooking(string(ev.Type), ev.EventID, describe(ev))
	}); err != nil {
		log.Fatal("KAFKA", err.Error())
	}
	log.Info("APP", "✅ Booking feed stopped")
}

func describe(ev models.BookingEvent) string {
	if ev.Booking == nil {
		return fmt.Sprintf("at %s", ev.OccurredAt.Format("2006-01-02 15:04:05"))
	}
	b := ev.Booking
	return fmt.Sprintf("booking %d %s <%s> slot %s at %s",
		b.ID, b.AttendeeName, b.AttendeeEmail, b.Slot, ev.OccurredAt.Format("2006-01-02 15:04:05"))
}

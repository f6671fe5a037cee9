package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/booking/booking_api"
	"ms-booking/internal/booking/db"
	qr "ms-booking/internal/booking/qr_generator"
	slotredis "ms-booking/internal/booking/redis"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/scheduler"
	"ms-booking/internal/sse"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

func prepareSchema(ctx context.Context, cfg config.DatabaseConfig, bunDB *bun.DB, logger *logger.Logger) error {
	if !cfg.AutoMigrate {
		logger.Info("DATABASE", "AUTO_MIGRATE disabled, skipping schema setup")
		return nil
	}
	if cfg.Driver == config.DriverSQLite {
		return database.CreateSchema(ctx, bunDB)
	}

	runner := migrations.NewRunner(cfg.URL, logger)
	defer runner.Close()
	return runner.MigrateUp()
}

// connectRedis returns nil when the slot lock is disabled or Redis cannot be
// reached; reservations then rely on the database alone.
func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) *redis.Client {
	if !cfg.Enabled {
		logger.Info("REDIS", "Slot lock disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("REDIS", fmt.Sprintf("Redis at %s unreachable, continuing without slot lock: %v", cfg.Addr, err))
		client.Close()
		return nil
	}
	logger.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))
	return client
}

// newLogger writes to stdout, plus a daily file when LOG_DIR is set.
func newLogger(cfg config.LogConfig) *logger.Logger {
	l, err := logger.New(logger.Options{Dir: cfg.Dir, Name: "booking-service", MinLevel: logger.ParseLevel(cfg.Level)})
	if err != nil {
		l, _ = logger.New(logger.Options{MinLevel: logger.ParseLevel(cfg.Level)})
		l.Warn("LOGGER", fmt.Sprintf("LOG_DIR %s unusable, file logging disabled: %v", cfg.Dir, err))
	}
	return l
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger := newLogger(cfg.Log)
	defer logger.Close()

	logger.Info("APP", "Starting Booking Service initialization")
	if envErr != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if err := prepareSchema(ctx, cfg.Database, bunDB, logger); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Schema setup failed: %v", err))
	}
	store := &db.DB{Bun: bunDB}

	var locker booking.SlotLocker
	if redisClient := connectRedis(ctx, cfg.Redis, logger); redisClient != nil {
		defer redisClient.Close()
		locker = slotredis.NewSlotLock(redisClient, cfg.Redis.SlotLockTTL, logger)
	}

	feed := sse.NewBookingEmitter()
	publishers := booking.Publishers{feed}
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topics.Bookings}, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.Bookings, logger)
		defer producer.Close()
		publishers = append(publishers, producer)
		logger.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		logger.Info("KAFKA", "Kafka disabled, booking events will not be published")
	}

	bookingService := booking.NewBookingService(store, locker, publishers, logger, cfg.Booking.MaxRetries)
	eventService := booking.NewEventService(store, publishers, logger, cfg.Booking.MaxRetries)

	if cfg.Scheduler.ReconcileInterval > 0 {
		sched, err := scheduler.New(logger)
		if err != nil {
			logger.Fatal("SCHEDULER", err.Error())
		}
		if err := sched.ScheduleReconcile(booking.NewReconciler(store, logger), cfg.Scheduler.ReconcileInterval); err != nil {
			logger.Fatal("SCHEDULER", err.Error())
		}
		sched.Start()
		defer func() {
			if err := sched.Shutdown(); err != nil {
				logger.Error("SCHEDULER", fmt.Sprintf("Shutdown failed: %v", err))
			}
		}()
	}

	handler := &booking_api.Handler{
		BookingService: bookingService,
		EventService:   eventService,
		QR:             qr.NewQRGenerator(cfg.QR.SecretKey),
		Feed:           feed,
		Ping:           store.Ping,
		Logger:         logger,
	}

	logger.Info("HTTP", "Setting up router and middleware")
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      booking_api.NewRouter(handler, booking_api.RouterConfig{AllowedOrigins: cfg.Server.CORSAllowedOrigins}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Booking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP", fmt.Sprintf("HTTP server error: %v", err))
			stop()
		}
	}()

	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Booking Service shutdown complete")
	}
}

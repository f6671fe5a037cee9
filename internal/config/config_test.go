package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_DRIVER", "KAFKA_BROKERS", "CORS_ALLOWED_ORIGINS", "RECONCILE_INTERVAL", "REDIS_ENABLED", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, ":8000", cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, time.Duration(0), cfg.Scheduler.ReconcileInterval)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 5, cfg.Booking.MaxRetries)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RECONCILE_INTERVAL", "30s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("SLOT_LOCK_TTL_SECONDS", "2")
	t.Setenv("RESERVE_MAX_RETRIES", "not-a-number")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.ReconcileInterval)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Redis.SlotLockTTL)
	assert.Equal(t, 5, cfg.Booking.MaxRetries)
	assert.Equal(t, "debug", cfg.Log.Level)
}

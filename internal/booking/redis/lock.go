package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockTimeout is returned when another holder kept the slot lock for the
// whole wait window.
var ErrLockTimeout = errors.New("slot lock not acquired")

// unlockScript deletes the key only while it still holds our token, so an
// expired lock that someone else re-acquired is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SlotLock is a short-lived advisory lock per (event, slot). It only thins
// out contention in front of the database, which stays the authority on
// capacity.
type SlotLock struct {
	Client  *redis.Client
	TTL     time.Duration
	MaxWait time.Duration
	Logger  *logger.Logger
}

func NewSlotLock(client *redis.Client, ttl time.Duration, log *logger.Logger) *SlotLock {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &SlotLock{
		Client:  client,
		TTL:     ttl,
		MaxWait: ttl,
		Logger:  log,
	}
}

func slotKey(eventID int64, slot string) string {
	return fmt.Sprintf("slot_lock:%d:%s", eventID, slot)
}

// TryLock makes a single attempt. On success it returns the owner token
// needed by Unlock.
func (r *SlotLock) TryLock(ctx context.Context, eventID int64, slot string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, slotKey(eventID, slot), token, r.TTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock releases the lock if token still owns it.
func (r *SlotLock) Unlock(ctx context.Context, eventID int64, slot, token string) error {
	if err := unlockScript.Run(ctx, r.Client, []string{slotKey(eventID, slot)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis unlock: %w", err)
	}
	return nil
}

// Lock waits for the slot lock with exponential backoff, up to MaxWait. The
// returned func releases it and is safe to call once the request context is
// gone.
func (r *SlotLock) Lock(ctx context.Context, eventID int64, slot string) (func(), error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = r.MaxWait

	var token string
	err := backoff.Retry(func() error {
		t, ok, err := r.TryLock(ctx, eventID, slot)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return ErrLockTimeout
		}
		token = t
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := r.Unlock(unlockCtx, eventID, slot, token); err != nil && r.Logger != nil {
			r.Logger.Warn("REDIS", fmt.Sprintf("Failed to release %s: %v", slotKey(eventID, slot), err))
		}
	}, nil
}

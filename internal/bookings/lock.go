package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

var errLockNotAcquired = errors.New("bookings: lock not acquired")

// Locker serializes critical sections that share a key across API replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// RedisLocker holds a SET NX key for the duration of fn. When Redis cannot be
// reached fn runs unlocked; the unique indexes still decide the outcome.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisLocker returns a locker whose keys expire after ttl, so a crashed
// holder cannot wedge a patient's bookings.
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("booking lock unavailable, continuing without it",
			"error", err,
			"key", key,
		)
		return fn(ctx)
	}
	if !ok {
		return errLockNotAcquired
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("bookings: release lock: %w", err)
	}
	return nil
}

type noopLocker struct{}

func (noopLocker) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// bookingLockKey scopes the lock to one contact on one tenant-local day.
func bookingLockKey(tenantID string, contact Contact, localDay string) string {
	return fmt.Sprintf("lock:booking:%s:%s:%s", tenantID, contact.Key(), localDay)
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultCounterTTL bounds how long an idle conversation keeps its counter.
const DefaultCounterTTL = 30 * time.Minute

// CounterStore keeps the unclear-attempt counter server side so a caller
// cannot reset its ladder by omitting the value.
type CounterStore interface {
	Load(ctx context.Context, tenantID, conversationID string) (int, error)
	Save(ctx context.Context, tenantID, conversationID string, attempts int) error
}

// RedisCounterStore stores counters under guard:unclear:<tenant>:<conversation>.
type RedisCounterStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisCounterStore panics on a nil client. ttl <= 0 uses DefaultCounterTTL.
func NewRedisCounterStore(client *redis.Client, ttl time.Duration) *RedisCounterStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultCounterTTL
	}
	return &RedisCounterStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("widget.internal.conversation.counter"),
	}
}

// Load returns 0 for an unknown conversation.
func (s *RedisCounterStore) Load(ctx context.Context, tenantID, conversationID string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "guard.load_counter")
	defer span.End()

	raw, err := s.redis.Get(ctx, counterKey(tenantID, conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("conversation: failed to load counter: %w", err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("conversation: failed to decode counter: %w", err)
	}
	return n, nil
}

// Save refreshes the TTL. A zero counter deletes the key.
func (s *RedisCounterStore) Save(ctx context.Context, tenantID, conversationID string, attempts int) error {
	ctx, span := s.tracer.Start(ctx, "guard.save_counter")
	defer span.End()

	key := counterKey(tenantID, conversationID)
	var err error
	if attempts <= 0 {
		err = s.redis.Del(ctx, key).Err()
	} else {
		err = s.redis.Set(ctx, key, attempts, s.ttl).Err()
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist counter: %w", err)
	}
	return nil
}

func counterKey(tenantID, conversationID string) string {
	return fmt.Sprintf("guard:unclear:%s:%s", tenantID, conversationID)
}

// ScreenSession screens turn using the larger of the supplied and stored
// counters, then stores the new value. Store failures are logged and the
// supplied counter is used as is.
func (g *Guard) ScreenSession(ctx context.Context, store CounterStore, tenantID, conversationID string, turn Turn) Result {
	if store == nil || conversationID == "" {
		return g.Screen(ctx, turn)
	}

	stored, err := store.Load(ctx, tenantID, conversationID)
	if err != nil {
		g.logger.Warn("guard counter load failed",
			"error", err,
			"tenant_id", tenantID,
			"conversation_id", conversationID,
		)
	} else if stored > turn.FailedUnclearAttempts {
		turn.FailedUnclearAttempts = stored
	}

	res := g.Screen(ctx, turn)
	if err == nil && res.FailedUnclearAttempts == stored {
		return res
	}
	if err := store.Save(ctx, tenantID, conversationID, res.FailedUnclearAttempts); err != nil {
		g.logger.Warn("guard counter save failed",
			"error", err,
			"tenant_id", tenantID,
			"conversation_id", conversationID,
		)
	}
	return res
}

// Package bootstrap builds the runtime dependencies shared by the binaries
// under cmd/.
package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-booking-widget/internal/bookings"
	"github.com/wolfman30/clinic-booking-widget/internal/clinic"
	appconfig "github.com/wolfman30/clinic-booking-widget/internal/config"
	"github.com/wolfman30/clinic-booking-widget/internal/conversation"
	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool opens and pings the pgx pool named by DATABASE_URL.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("bootstrap: DATABASE_URL is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse database url: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DBMaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping database: %w", err)
	}
	logger.Info("postgres connected", "max_conns", poolCfg.MaxConns)
	return pool, nil
}

// BuildDirectory wraps the Postgres directory in the lookup cache unless the
// cache TTL is disabled.
func BuildDirectory(pool *pgxpool.Pool, cfg *appconfig.Config) clinic.Directory {
	var dir clinic.Directory = clinic.NewPostgresDirectory(pool)
	if cfg != nil && cfg.TenantCacheTTL > 0 {
		dir = clinic.NewCachedDirectory(dir, cfg.TenantCacheTTL)
	}
	return dir
}

// BuildLocker returns the Redis booking lock, or nil so the engine relies on
// the database constraints alone.
func BuildLocker(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) bookings.Locker {
	if redisClient == nil {
		return nil
	}
	var ttl time.Duration
	if cfg != nil {
		ttl = cfg.BookingLockTTL
	}
	return bookings.NewRedisLocker(redisClient, ttl, logger)
}

// BuildCounterStore returns the server-side unclear counter store when it is
// enabled and Redis is reachable.
func BuildCounterStore(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) conversation.CounterStore {
	if cfg == nil || !cfg.GuardServerCounter {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient == nil {
		logger.Warn("guard server counter enabled but redis unavailable; using client counters")
		return nil
	}
	return conversation.NewRedisCounterStore(redisClient, cfg.GuardCounterTTL)
}

// Package bootstrap builds the service's runtime dependencies from config.
package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/edgareichner01-sys/bot-rdv/internal/appointments"
	appconfig "github.com/edgareichner01-sys/bot-rdv/internal/config"
	"github.com/edgareichner01-sys/bot-rdv/internal/session"
	"github.com/edgareichner01-sys/bot-rdv/internal/tenant"
	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
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

// BuildPostgresPool connects to DATABASE_URL. An empty URL returns a nil pool
// and no error; the service then runs on in-memory stores.
func BuildPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse database url: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return pool, nil
}

// BuildSQLDB exposes the pool through database/sql for the transcript store.
func BuildSQLDB(pool *pgxpool.Pool) *sql.DB {
	if pool == nil {
		return nil
	}
	return stdlib.OpenDBFromPool(pool)
}

// TenantStore reads and writes tenant configs.
type TenantStore interface {
	Get(ctx context.Context, tenantID string) (*tenant.Config, error)
	Set(ctx context.Context, cfg *tenant.Config) error
}

// BuildTenantStore uses Redis when available and otherwise serves the
// built-in defaults for every tenant.
func BuildTenantStore(redisClient *redis.Client, logger *logging.Logger) TenantStore {
	if redisClient != nil {
		return tenant.NewStore(redisClient)
	}
	if logger != nil {
		logger.Warn("redis unavailable; tenant configs are in-memory and not persisted")
	}
	return tenant.NewStaticStore()
}

// BuildSessionStore uses Redis when available. The in-memory store only
// serialises turns within this process.
func BuildSessionStore(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) session.Store {
	ttl, lockWait := session.DefaultTTL, time.Duration(0)
	if cfg != nil {
		ttl, lockWait = cfg.SessionTTL, cfg.SessionLockWait
	}
	if redisClient != nil {
		return session.NewRedisStore(redisClient, ttl, lockWait)
	}
	if logger != nil {
		logger.Warn("redis unavailable; sessions are in-memory")
	}
	return session.NewMemoryStore(ttl)
}

// BuildAppointmentService stores appointments in Postgres when a pool is
// given, in memory otherwise.
func BuildAppointmentService(pool *pgxpool.Pool, logger *logging.Logger) *appointments.Service {
	if pool != nil {
		return appointments.NewService(appointments.NewRepository(pool), logger)
	}
	if logger != nil {
		logger.Warn("no database configured; appointments are in-memory")
	}
	return appointments.NewService(appointments.NewMemoryRepository(), logger)
}

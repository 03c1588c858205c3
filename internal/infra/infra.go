package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/eas-pay/eas_wallet/internal/config"
)

const connectTimeout = 10 * time.Second

// Resources are the optional backing stores of the proxy. Either field may be
// nil when its URL is not configured.
type Resources struct {
	DB    *pgxpool.Pool
	Cache *redis.Client
}

// Connect opens the stores configured in cfg and verifies connectivity.
func Connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Resources, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	res := &Resources{}
	if cfg.DatabaseURL != "" {
		db, err := NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
		if err != nil {
			return nil, err
		}
		res.DB = db
		logger.Info("postgres connected", slog.Int("max_conns", int(db.Config().MaxConns)))
	} else {
		logger.Warn("DATABASE_URL not set, intent audit log kept in memory")
	}

	if cfg.RedisURL != "" {
		cache, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			res.Close()
			return nil, err
		}
		res.Cache = cache
		logger.Info("redis connected")
	} else {
		logger.Warn("REDIS_URL not set, sessions and rate limits are local to this instance")
	}
	return res, nil
}

// Close releases every opened store.
func (r *Resources) Close() error {
	var errs []error
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if r.DB != nil {
		r.DB.Close()
	}
	return errors.Join(errs...)
}

// NewPostgresPool configures a PostgreSQL pool. maxConns <= 0 keeps the pgx default.
func NewPostgresPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	pgCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if maxConns > 0 {
		pgCfg.MaxConns = maxConns
	}
	pgCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewRedisClient configures a Redis client from a redis:// URL.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.ReadTimeout = 2 * time.Second
	opt.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

package infra

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/bankledger/internal/config"
)

// Resources holds the shared backends. Either field may be nil in
// development, in which case the ledgers run on in-memory stores.
type Resources struct {
	DB    *pgxpool.Pool
	Cache *redis.Client
}

// Open connects the backends named by cfg and applies migrations.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Resources, error) {
	res := &Resources{}
	if cfg.DatabaseURL != "" {
		db, err := NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		res.DB = db
		if err := Migrate(ctx, db, logger); err != nil {
			res.Close(logger)
			return nil, err
		}
	} else {
		logger.Warn("DATABASE_URL not set, balances are kept in memory")
	}

	if cfg.RedisURL != "" {
		cache, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			res.Close(logger)
			return nil, err
		}
		res.Cache = cache
	} else {
		logger.Warn("REDIS_URL not set, whitelist and relay outbox are kept in memory")
	}
	return res, nil
}

// Close releases every open backend.
func (r *Resources) Close(logger *slog.Logger) {
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}
	if r.DB != nil {
		r.DB.Close()
	}
}

package di

import (
	"context"

	"market_backend/internal/app/config"
	candleadapters "market_backend/internal/feature/candles/adapters"
	"market_backend/internal/platform/cache"
	"market_backend/internal/platform/db"
	infraredis "market_backend/internal/platform/redis"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// NewDB opens the candle store described by cfg.
func NewDB(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	return db.OpenDB(ctx, db.Config{
		Driver:         cfg.Driver,
		DSN:            cfg.DSN,
		Host:           cfg.Host,
		Port:           cfg.Port,
		User:           cfg.User,
		Password:       cfg.Password,
		Name:           cfg.Name,
		SSLMode:        cfg.SSLMode,
		ConnectTimeout: cfg.ConnectTimeout,
		AutoMigrate:    cfg.AutoMigrate,
	})
}

// NewRedis returns nil without error when the cache is not configured.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rc := infraredis.Config{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	if !rc.Enabled() {
		return nil, nil
	}
	return infraredis.NewRedisClient(ctx, rc)
}

// NewCandleStore wraps the gorm candle repository with the Redis cache.
// A nil rdb disables caching.
func NewCandleStore(gdb *gorm.DB, rdb *redis.Client, cfg config.RedisConfig) *cache.CachingCandleRepository {
	return cache.NewCachingCandleRepository(rdb, cfg.TTL, candleadapters.NewCandleRepository(gdb), "candles")
}

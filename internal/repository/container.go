package repository

import (
	"context"
	"fmt"

	"github.com/linskybing/chainjob-cache/internal/config"
	"github.com/linskybing/chainjob-cache/internal/config/db"
	"github.com/linskybing/chainjob-cache/internal/domain/job"
	"github.com/redis/go-redis/v9"
)

// Compile-time checks
var (
	_ job.Store = (*DBJobRepo)(nil)
	_ job.Store = (*RedisJobRepo)(nil)
)

// NewStore opens the record store selected by CACHE_BACKEND. Callers own the
// returned store and must Close it.
func NewStore(ctx context.Context, cfg *config.Config) (job.Store, error) {
	switch cfg.CacheBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return NewRedisJobRepo(client, "chainjobs"), nil
	case "sql", "":
		gdb, err := db.Open(cfg)
		if err != nil {
			return nil, err
		}
		return NewJobRepo(gdb), nil
	default:
		return nil, fmt.Errorf("unsupported CACHE_BACKEND %q", cfg.CacheBackend)
	}
}

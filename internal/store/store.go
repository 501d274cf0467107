// Package store provides the key-value side-store used for task records.
package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/observability"
)

// Config selects and configures the side-store.
type Config struct {
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`
	KeyPrefix     string `env:"REDIS_PREFIX"   envDefault:"uniai:"`
}

// New returns a Redis store when an address is configured, and an in-memory
// store otherwise (DI constructor).
func New(ctx context.Context, cfg *Config) (domain.KeyValueStore, error) {
	if cfg == nil || cfg.RedisAddr == "" {
		observability.FromContext(ctx).Info("using in-memory task store")
		return NewMemory(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	observability.FromContext(ctx).Info("using redis task store",
		observability.String("addr", cfg.RedisAddr),
		observability.Int("db", cfg.RedisDB),
	)
	return NewRedis(client, cfg.KeyPrefix), nil
}

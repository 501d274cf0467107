package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/uniai/internal/observability"
)

// Redis persists items as plain string keys.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client. Every key is stored under prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// GetItem returns the stored value, or nil when the key does not exist.
func (r *Redis) GetItem(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		observability.FromContext(ctx).Error("redis get failed",
			observability.String("key", key),
			observability.Error(err),
		)
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// SetItem stores value without expiry.
func (r *Redis) SetItem(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		observability.FromContext(ctx).Error("redis set failed",
			observability.String("key", key),
			observability.Error(err),
		)
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

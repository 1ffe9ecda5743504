// Package redis implements a dedup filter shared across processes through a
// Redis set.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultKey names the Redis set holding discovered tokens.
const DefaultKey = "socialgraph:tokens"

// Config captures the Redis connection settings.
type Config struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// Filter marks tokens with SADD and checks them with SISMEMBER.
type Filter struct {
	client redis.Cmdable
	key    string
	closer func() error
}

// New connects to Redis and returns a Filter.
func New(cfg Config) (*Filter, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	f := NewWithClient(client, cfg.Key)
	f.closer = client.Close
	return f, nil
}

// NewWithClient wraps an existing client (primarily for testing).
func NewWithClient(client redis.Cmdable, key string) *Filter {
	if key == "" {
		key = DefaultKey
	}
	return &Filter{client: client, key: key}
}

// Mark adds token to the set.
func (f *Filter) Mark(ctx context.Context, token string) error {
	if err := f.client.SAdd(ctx, f.key, token).Err(); err != nil {
		return fmt.Errorf("redis sadd failure: %w", err)
	}
	return nil
}

// Seen reports whether token is in the set.
func (f *Filter) Seen(ctx context.Context, token string) (bool, error) {
	ok, err := f.client.SIsMember(ctx, f.key, token).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember failure: %w", err)
	}
	return ok, nil
}

// Ping verifies the connection.
func (f *Filter) Ping(ctx context.Context) error {
	if err := f.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failure: %w", err)
	}
	return nil
}

// Close releases the connection opened by New.
func (f *Filter) Close() error {
	if f.closer == nil {
		return nil
	}
	if err := f.closer(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sitegen/internal/config"

	"github.com/go-redis/redis/v8"
)

var ErrNotConfigured = errors.New("redis is not configured")

// Open connects to redis and verifies the connection with a PING.
func Open(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, ErrNotConfigured
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/OtmaneTouhami/budget-wise/internal/platform/config"
	goredis "github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Redis wraps a go-redis client configured from the environment
type Redis struct {
	Client *goredis.Client
}

func NewRedisConnection(ctx context.Context, cfg config.Config) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	return &Redis{Client: client}, nil
}

func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

package session

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "budgetwise:session:"

// RedisPersister stores the blob as a plain string value without expiry.
// The refresh token inside outlives any TTL we could pick here.
type RedisPersister struct {
	client goredis.Cmdable
}

var _ Persister = (*RedisPersister)(nil)

func NewRedisPersister(client goredis.Cmdable) *RedisPersister {
	return &RedisPersister{client: client}
}

func (r *RedisPersister) Load(ctx context.Context, key string) ([]byte, error) {
	blob, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session from redis: %w", err)
	}
	return blob, nil
}

func (r *RedisPersister) Save(ctx context.Context, key string, blob []byte) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key, blob, 0).Err(); err != nil {
		return fmt.Errorf("failed to write session to redis: %w", err)
	}
	return nil
}

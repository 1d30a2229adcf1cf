package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/canvas-sync/pkg/errs"
	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix is prepended to every RedisStore location.
const RedisKeyPrefix = "canvas-sync:snapshot:"

// RedisStore stores snapshots in Redis, so that several operators or
// machines can share one fetched collection.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a snapshot store with Redis backend. A zero ttl keeps
// snapshots until they are overwritten or deleted.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Name implements SnapshotStore.
func (s *RedisStore) Name() string { return "redis" }

// Save stores data under location, replacing any previous snapshot.
// A single SET is atomic for readers.
func (s *RedisStore) Save(ctx context.Context, location string, data []byte) error {
	if err := s.redis.Set(ctx, RedisKeyPrefix+location, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load retrieves the snapshot stored under location.
func (s *RedisStore) Load(ctx context.Context, location string) ([]byte, error) {
	data, err := s.redis.Get(ctx, RedisKeyPrefix+location).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: snapshot key %s", errs.ErrNotFound, location)
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Delete removes the snapshot stored under location. A missing key is not
// an error.
func (s *RedisStore) Delete(ctx context.Context, location string) error {
	if err := s.redis.Del(ctx, RedisKeyPrefix+location).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

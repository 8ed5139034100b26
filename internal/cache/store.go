// Package cache implements the cache-aside layer and its tenant-scoped
// invalidation. Redis holds advisory copies only; the SQL stores remain the
// single source of truth and every cached value is reproducible by running
// the compute function again.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Store.Get when a key is absent.
var ErrMiss = errors.New("cache: miss")

// Store is the minimal key-value surface the layer needs. *redis.Client
// satisfies it through NewRedisStore; tests use an in-memory fake.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
	DBSize(ctx context.Context) (int64, error)
}

type redisStore struct{ rdb *redis.Client }

// NewRedisStore wraps a go-redis client in the Store interface.
func NewRedisStore(rdb *redis.Client) Store { return &redisStore{rdb: rdb} }

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *redisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.rdb.Keys(ctx, pattern).Result()
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *redisStore) DBSize(ctx context.Context) (int64, error) {
	return s.rdb.DBSize(ctx).Result()
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/revline/booking-platform/internal/apperr"
	"github.com/revline/booking-platform/internal/config"
)

// Options tunes a single GetOrSet call. Zero TTL means the cache default.
// FallbackToDB is almost always what callers want: a cache transport failure
// degrades to a direct compute instead of failing the request. Every key
// lives under the cache-wide prefix so Invalidate can always reach it.
type Options struct {
	TTL          time.Duration
	FallbackToDB bool
}

// DefaultOptions returns the options used across the tenant read paths.
func DefaultOptions() Options { return Options{FallbackToDB: true} }

// Cache is the cache-aside front over a Store. A nil Store disables caching
// entirely: every read computes directly.
type Cache struct {
	store  Store
	ttl    time.Duration
	prefix string
}

func New(store Store, cfg config.CacheConfig) *Cache {
	if !cfg.Enabled {
		store = nil
	}
	return &Cache{store: store, ttl: cfg.TTL, prefix: cfg.Prefix}
}

// Enabled reports whether a backing store is present.
func (c *Cache) Enabled() bool { return c.store != nil }

func (c *Cache) fullKey(key string) string {
	return c.prefix + ":" + key
}

// GetOrSet looks up the key, deserializing into T on a hit (time.Time fields
// revive through their RFC3339 JSON form). On a miss it runs compute against
// the system of record and, for non-null results, writes the value back with
// the TTL before returning it. Any transport error under FallbackToDB logs
// and computes directly; without fallback it surfaces a cache error.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, compute func(context.Context) (T, error), opts Options) (T, error) {
	var zero T
	if c == nil || c.store == nil {
		return compute(ctx)
	}
	full := c.fullKey(key)

	raw, err := c.store.Get(ctx, full)
	switch {
	case err == nil:
		var v T
		if uerr := json.Unmarshal([]byte(raw), &v); uerr == nil {
			return v, nil
		}
		// undecodable entry: drop it and fall through to compute
		_ = c.store.Del(ctx, full)
	case err != ErrMiss:
		if !opts.FallbackToDB {
			return zero, apperr.Cache(fmt.Sprintf("cache get %s: %v", full, err))
		}
		logrus.WithError(err).WithField("key", full).Warn("cache get failed, falling back to db")
		return compute(ctx)
	}

	v, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	if b, merr := json.Marshal(v); merr == nil && string(b) != "null" {
		ttl := opts.TTL
		if ttl <= 0 {
			ttl = c.ttl
		}
		if serr := c.store.Set(ctx, full, string(b), ttl); serr != nil {
			if !opts.FallbackToDB {
				return zero, apperr.Cache(fmt.Sprintf("cache set %s: %v", full, serr))
			}
			logrus.WithError(serr).WithField("key", full).Warn("cache write-back failed")
		}
	}
	return v, nil
}

// Invalidate deletes every key matching the glob pattern (under the cache
// prefix) and returns how many were removed. A zero-match pattern is not an
// error.
func (c *Cache) Invalidate(ctx context.Context, pattern string) (int, error) {
	if c == nil || c.store == nil {
		return 0, nil
	}
	full := c.fullKey(pattern)
	keys, err := c.store.Keys(ctx, full)
	if err != nil {
		return 0, apperr.Cache(fmt.Sprintf("cache keys %s: %v", full, err))
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		return 0, apperr.Cache(fmt.Sprintf("cache del %s: %v", full, err))
	}
	return len(keys), nil
}

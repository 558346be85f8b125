// Package cache provides the registry lookup cache: an in-process map for
// single-instance deployments and a Redis backend for shared ones.
package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a typed key-value cache with per-entry TTL.
type Cache[T any] interface {
	// Get returns ErrCacheMiss if the key is absent or expired.
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
	Health(ctx context.Context) error
}

// Loader layers cache-aside reads over a Cache. Concurrent misses for the
// same key share one fetch.
type Loader[T any] struct {
	cache Cache[T]
	ttl   time.Duration
	group singleflight.Group
}

// NewLoader wraps c so that fetched values are kept for ttl.
func NewLoader[T any](c Cache[T], ttl time.Duration) *Loader[T] {
	return &Loader[T]{cache: c, ttl: ttl}
}

// Get returns the cached value for key or calls fetch and stores its result.
// Fetch errors are returned and never cached. A failing cache backend
// degrades to calling fetch directly.
func (l *Loader[T]) Get(
	ctx context.Context,
	key string,
	fetch func(ctx context.Context) (T, error),
) (T, error) {
	if value, err := l.cache.Get(ctx, key); err == nil {
		return value, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		value, err := fetch(ctx)
		if err != nil {
			return value, err
		}
		_ = l.cache.Set(ctx, key, value, l.ttl)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops key so the next Get refetches it.
func (l *Loader[T]) Invalidate(ctx context.Context, key string) error {
	l.group.Forget(key)
	return l.cache.Delete(ctx, key)
}

// Cache exposes the underlying cache, mainly for health checks and shutdown.
func (l *Loader[T]) Cache() Cache[T] {
	return l.cache
}

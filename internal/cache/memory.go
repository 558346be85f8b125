package cache

import (
	"context"
	"sync"
	"time"
)

// purgeEvery is the number of Set calls between sweeps of expired entries.
const purgeEvery = 256

type cacheItem[T any] struct {
	value     T
	expiresAt time.Time
}

// Compile-time interface check.
var _ Cache[struct{}] = (*MemoryCache[struct{}])(nil)

// MemoryCache keeps entries in a map guarded by a RWMutex. Expiry is checked
// lazily on Get and swept periodically on Set.
type MemoryCache[T any] struct {
	mu     sync.RWMutex
	items  map[string]cacheItem[T]
	writes int
	now    func() time.Time
}

// NewMemoryCache creates an empty memory cache.
func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{
		items: make(map[string]cacheItem[T]),
		now:   time.Now,
	}
}

func (m *MemoryCache[T]) Get(_ context.Context, key string) (T, error) {
	m.mu.RLock()
	item, exists := m.items[key]
	m.mu.RUnlock()

	if !exists || !m.now().Before(item.expiresAt) {
		var zero T
		return zero, ErrCacheMiss
	}
	return item.value, nil
}

func (m *MemoryCache[T]) Set(_ context.Context, key string, value T, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.items[key] = cacheItem[T]{value: value, expiresAt: now.Add(ttl)}

	m.writes++
	if m.writes%purgeEvery == 0 {
		for k, item := range m.items {
			if !now.Before(item.expiresAt) {
				delete(m.items, k)
			}
		}
	}
	return nil
}

func (m *MemoryCache[T]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Len reports the number of stored entries, expired or not.
func (m *MemoryCache[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryCache[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]cacheItem[T])
	return nil
}

// Health always succeeds for the memory cache.
func (m *MemoryCache[T]) Health(context.Context) error {
	return nil
}

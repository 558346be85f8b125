package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// Compile-time interface check.
var _ Cache[struct{}] = (*RueidisCache[struct{}])(nil)

// RueidisOptions configures a Redis-backed cache.
type RueidisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	// ClientSideTTL enables RESP3 client-side caching of GET replies for the
	// given duration. Zero disables it. Suits values that rarely change.
	ClientSideTTL time.Duration
}

// RueidisCache stores JSON-encoded values in Redis. Multiple instances of
// the server share it.
type RueidisCache[T any] struct {
	client        rueidis.Client
	keyPrefix     string
	clientSideTTL time.Duration
}

// NewRueidisCache connects to Redis and verifies the connection with PING.
func NewRueidisCache[T any](ctx context.Context, opts RueidisOptions) (*RueidisCache[T], error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{opts.Addr},
		Password:     opts.Password,
		SelectDB:     opts.DB,
		DisableCache: opts.ClientSideTTL <= 0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RueidisCache[T]{
		client:        client,
		keyPrefix:     opts.KeyPrefix,
		clientSideTTL: opts.ClientSideTTL,
	}, nil
}

func (r *RueidisCache[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	var resp rueidis.RedisResult
	if r.clientSideTTL > 0 {
		resp = r.client.DoCache(ctx, r.client.B().Get().Key(r.keyPrefix+key).Cache(), r.clientSideTTL)
	} else {
		resp = r.client.Do(ctx, r.client.B().Get().Key(r.keyPrefix+key).Build())
	}

	raw, err := resp.AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return zero, ErrCacheMiss
		}
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return value, nil
}

func (r *RueidisCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	cmd := r.client.B().Set().
		Key(r.keyPrefix + key).
		Value(rueidis.BinaryString(encoded)).
		Ex(ttl).
		Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (r *RueidisCache[T]) Delete(ctx context.Context, key string) error {
	if err := r.client.Do(ctx, r.client.B().Del().Key(r.keyPrefix+key).Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (r *RueidisCache[T]) Close() error {
	r.client.Close()
	return nil
}

// Health checks if Redis is reachable.
func (r *RueidisCache[T]) Health(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type service struct {
	ClientID string   `json:"client_id"`
	Scopes   []string `json:"scopes"`
}

// ============================================================
// MemoryCache
// ============================================================

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := NewMemoryCache[service]()
	ctx := context.Background()

	_, err := c.Get(ctx, "CROP_ADVISORY_001")
	assert.ErrorIs(t, err, ErrCacheMiss)

	want := service{ClientID: "CROP_ADVISORY_001", Scopes: []string{"profile"}}
	require.NoError(t, c.Set(ctx, "CROP_ADVISORY_001", want, time.Minute))

	got, err := c.Get(ctx, "CROP_ADVISORY_001")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, c.Delete(ctx, "CROP_ADVISORY_001"))
	_, err = c.Get(ctx, "CROP_ADVISORY_001")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := NewMemoryCache[int]()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1, time.Second))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	now = now.Add(time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss, "entry expires exactly at its deadline")
}

func TestMemoryCache_PurgesExpiredEntries(t *testing.T) {
	c := NewMemoryCache[int]()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < purgeEvery-1; i++ {
		require.NoError(t, c.Set(ctx, strconv.Itoa(i), i, time.Second))
	}
	assert.Equal(t, purgeEvery-1, c.Len())

	now = now.Add(time.Minute)
	require.NoError(t, c.Set(ctx, "fresh", 1, time.Hour))
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_CloseAndHealth(t *testing.T) {
	c := NewMemoryCache[int]()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	require.NoError(t, c.Health(ctx))
	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Len())
}

// ============================================================
// Loader
// ============================================================

func TestLoader_FetchesOnceAndCaches(t *testing.T) {
	loader := NewLoader[service](NewMemoryCache[service](), time.Minute)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(context.Context) (service, error) {
		calls.Add(1)
		return service{ClientID: "CROP_ADVISORY_001"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := loader.Get(ctx, "CROP_ADVISORY_001", fetch)
		require.NoError(t, err)
		assert.Equal(t, "CROP_ADVISORY_001", got.ClientID)
	}
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, loader.Invalidate(ctx, "CROP_ADVISORY_001"))
	_, err := loader.Get(ctx, "CROP_ADVISORY_001", fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoader_ErrorsAreNotCached(t *testing.T) {
	loader := NewLoader[service](NewMemoryCache[service](), time.Minute)
	ctx := context.Background()
	errBoom := errors.New("boom")

	_, err := loader.Get(ctx, "k", func(context.Context) (service, error) {
		return service{}, errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	got, err := loader.Get(ctx, "k", func(context.Context) (service, error) {
		return service{ClientID: "k"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "k", got.ClientID)
}

func TestLoader_ConcurrentMissesShareFetch(t *testing.T) {
	loader := NewLoader[service](NewMemoryCache[service](), time.Minute)
	ctx := context.Background()

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (service, error) {
		calls.Add(1)
		<-release
		return service{ClientID: "k"}, nil
	}

	const workers = 10
	var wg sync.WaitGroup
	started := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			got, err := loader.Get(ctx, "k", fetch)
			assert.NoError(t, err)
			assert.Equal(t, "k", got.ClientID)
		}()
	}
	for i := 0; i < workers; i++ {
		<-started
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2), "misses in flight together share one fetch")
}

// ============================================================
// RueidisCache (requires Docker)
// ============================================================

func TestRueidisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Skipping Redis test: Docker not available (panic: %v)", r)
		}
	}()

	ctx := context.Background()
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Skipping Redis test: Docker not available (%v)", err)
		return
	}
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	addr, err := redisC.Endpoint(ctx, "")
	require.NoError(t, err)

	for _, clientSideTTL := range []time.Duration{0, time.Second} {
		t.Run("client_side_ttl_"+clientSideTTL.String(), func(t *testing.T) {
			c, err := NewRueidisCache[service](ctx, RueidisOptions{
				Addr:          addr,
				KeyPrefix:     "agrigate:test:" + clientSideTTL.String() + ":",
				ClientSideTTL: clientSideTTL,
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = c.Close() })

			require.NoError(t, c.Health(ctx))

			_, err = c.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrCacheMiss)

			want := service{ClientID: "CROP_ADVISORY_001", Scopes: []string{"profile", "land_records"}}
			require.NoError(t, c.Set(ctx, "svc", want, time.Minute))

			got, err := c.Get(ctx, "svc")
			require.NoError(t, err)
			assert.Equal(t, want, got)

			require.NoError(t, c.Delete(ctx, "svc"))
			// Client-side entries are dropped once Redis pushes the invalidation.
			assert.Eventually(t, func() bool {
				_, err := c.Get(ctx, "svc")
				return errors.Is(err, ErrCacheMiss)
			}, 2*time.Second, 20*time.Millisecond)
		})
	}
}

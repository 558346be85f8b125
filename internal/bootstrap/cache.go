package bootstrap

import (
	"context"
	"fmt"

	"github.com/agri-identity/agrigate/internal/cache"
	"github.com/agri-identity/agrigate/internal/config"
	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/metrics"
	"github.com/agri-identity/agrigate/internal/models"

	"go.uber.org/zap"
)

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config) metrics.Recorder {
	prometheusMetrics := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		logger.L().Info("Prometheus metrics initialized")
	} else {
		logger.L().Info("metrics disabled (using noop implementation)")
	}
	return prometheusMetrics
}

// initializeMetricsCache initializes the cache that backs gauge counts. It
// follows REGISTRY_CACHE_TYPE so a Redis deployment shares counts across
// instances.
func initializeMetricsCache(
	ctx context.Context,
	cfg *config.Config,
) (cache.Cache[int64], func() error, error) {
	if !cfg.MetricsEnabled || cfg.MetricsGaugeUpdateInterval <= 0 {
		return nil, nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	switch cfg.RegistryCacheType {
	case config.RegistryCacheTypeRedis:
		c, err := cache.NewRueidisCache[int64](ctx, cache.RueidisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: "agrigate:metrics:",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis metrics cache: %w", err)
		}
		logger.L().Info("metrics cache: redis",
			zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
		return c, c.Close, nil

	default: // memory
		c := cache.NewMemoryCache[int64]()
		logger.L().Info("metrics cache: memory (single instance only)")
		return c, c.Close, nil
	}
}

// initializeRegistryCache initializes the service registry cache (always
// enabled, defaults to memory)
func initializeRegistryCache(
	ctx context.Context,
	cfg *config.Config,
) (cache.Cache[models.Service], error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	switch cfg.RegistryCacheType {
	case config.RegistryCacheTypeRedis:
		c, err := cache.NewRueidisCache[models.Service](ctx, cache.RueidisOptions{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPassword,
			DB:            cfg.RedisDB,
			KeyPrefix:     "agrigate:registry:",
			ClientSideTTL: cfg.RegistryCacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis registry cache: %w", err)
		}
		logger.L().Info("registry cache: redis",
			zap.String("addr", cfg.RedisAddr),
			zap.Int("db", cfg.RedisDB),
			zap.Duration("ttl", cfg.RegistryCacheTTL),
		)
		return c, nil

	default: // memory
		logger.L().Info("registry cache: memory (single instance only)")
		return cache.NewMemoryCache[models.Service](), nil
	}
}

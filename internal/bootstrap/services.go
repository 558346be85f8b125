package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/agri-identity/agrigate/internal/cache"
	"github.com/agri-identity/agrigate/internal/config"
	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/metrics"
	"github.com/agri-identity/agrigate/internal/models"
	"github.com/agri-identity/agrigate/internal/services"
	"github.com/agri-identity/agrigate/internal/store"
	"github.com/agri-identity/agrigate/internal/token"

	"go.uber.org/zap"
)

// initializeServices creates all business logic services
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	registryCache cache.Cache[models.Service],
	auditService *services.AuditService,
	prometheusMetrics metrics.Recorder,
) (*services.RegistryService, *services.TokenService, *services.AuthorizationService) {
	registryService := services.NewRegistryService(db, registryCache, cfg, auditService)

	issuer := token.NewLocalIssuer(cfg.JWTSecret, cfg.BaseURL, cfg.AccessTokenExpiration)
	codec := token.NewCodec(cfg.JWTSecret)
	tokenService := services.NewTokenService(
		issuer,
		codec,
		db,
		registryService,
		auditService,
		prometheusMetrics,
	)

	authorizationService := services.NewAuthorizationService(
		db,
		registryService,
		tokenService,
		cfg,
		auditService,
		prometheusMetrics,
	)

	return registryService, tokenService, authorizationService
}

// seedRegistry loads SERVICE_REGISTRY_FILE into the database, if set.
func seedRegistry(ctx context.Context, cfg *config.Config, registry *services.RegistryService) error {
	if cfg.ServiceRegistryFile == "" {
		return nil
	}

	reg, err := config.LoadRegistryFile(cfg.ServiceRegistryFile)
	if err != nil {
		return err
	}
	n, err := registry.Seed(ctx, reg)
	if err != nil {
		return fmt.Errorf("failed to seed service registry: %w", err)
	}
	logger.L().Info("service registry seeded",
		zap.String("file", cfg.ServiceRegistryFile),
		logger.Count(n),
	)
	return nil
}

// Seed loads the registry file into the database and exits. It backs the
// seed command so operators can register services without starting the
// server.
func Seed(ctx context.Context, cfg *config.Config) (int, error) {
	if err := validateAllConfiguration(cfg); err != nil {
		return 0, err
	}
	if cfg.ServiceRegistryFile == "" {
		return 0, errors.New("SERVICE_REGISTRY_FILE is required to seed")
	}

	reg, err := config.LoadRegistryFile(cfg.ServiceRegistryFile)
	if err != nil {
		return 0, err
	}

	db, err := initializeDatabase(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.DBCloseTimeout)
		defer cancel()
		_ = db.Close(closeCtx)
	}()

	// Seeding invalidates cached entries, so it must reach the shared cache
	// when one is configured.
	registryCache, err := initializeRegistryCache(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer registryCache.Close()

	audit := services.NewAuditService(db, cfg.EnableAuditLogging, cfg.AuditLogBufferSize)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AuditShutdownTimeout)
		defer cancel()
		_ = audit.Shutdown(shutdownCtx)
	}()

	registry := services.NewRegistryService(db, registryCache, cfg, audit)
	return registry.Seed(ctx, reg)
}

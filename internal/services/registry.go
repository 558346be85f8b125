package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agri-identity/agrigate/internal/cache"
	"github.com/agri-identity/agrigate/internal/config"
	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/models"
	"github.com/agri-identity/agrigate/internal/scope"
	"github.com/agri-identity/agrigate/internal/store"

	"golang.org/x/crypto/bcrypt"
)

const serviceCacheKeyPrefix = "service:"

// dummySecretHash is compared against when a client id is unknown so that
// failed client authentication takes the same time either way.
var dummySecretHash, _ = bcrypt.GenerateFromPassword([]byte("agrigate-dummy-secret"), bcrypt.MinCost)

// RegistryService answers questions about registered services: who they are,
// which scopes they may request, which scopes are mandatory.
type RegistryService struct {
	store           *store.Store
	loader          *cache.Loader[models.Service]
	globalMandatory []string
	audit           *AuditService
}

// NewRegistryService creates a registry reading through c. Services are
// immutable between seeds, so cached entries only expire by ttl.
func NewRegistryService(
	s *store.Store,
	c cache.Cache[models.Service],
	cfg *config.Config,
	audit *AuditService,
) *RegistryService {
	return &RegistryService{
		store:           s,
		loader:          cache.NewLoader(c, cfg.RegistryCacheTTL),
		globalMandatory: scope.Normalize(cfg.MandatoryScopes),
		audit:           audit,
	}
}

// GetService returns the active service registered under clientID.
func (r *RegistryService) GetService(ctx context.Context, clientID string) (*models.Service, error) {
	if clientID == "" {
		return nil, ErrUnknownClient
	}

	svc, err := r.loader.Get(ctx, serviceCacheKeyPrefix+clientID, func(ctx context.Context) (models.Service, error) {
		stored, err := r.store.GetServiceByClientID(ctx, clientID)
		if err != nil {
			return models.Service{}, err
		}
		return *stored, nil
	})
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUnknownClient
		}
		return nil, fmt.Errorf("lookup service %s: %w", clientID, err)
	}
	if !svc.IsActive {
		return nil, ErrUnknownClient
	}
	return &svc, nil
}

// ValidateScopes splits requested into scopes the service may ask for and
// scopes it may not. Nothing is dropped silently.
func (r *RegistryService) ValidateScopes(svc *models.Service, requested []string) (valid, rejected []string) {
	return scope.Partition(svc.AllowedScopes, requested)
}

// MandatoryScopes is the global mandatory set plus the service's own.
func (r *RegistryService) MandatoryScopes(svc *models.Service) []string {
	return scope.Union(r.globalMandatory, svc.MandatoryScopes)
}

// ListServices returns the active services for the public catalogue.
func (r *RegistryService) ListServices(ctx context.Context) ([]models.Service, error) {
	return r.store.ListServices(ctx, true)
}

// AuthenticateClient verifies a service's client credentials. Secrets are
// read from the store because cached entries never carry them.
func (r *RegistryService) AuthenticateClient(ctx context.Context, clientID, secret string) (*models.Service, error) {
	svc, err := r.store.GetServiceByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummySecretHash, []byte(secret))
			return nil, ErrInvalidClientCredentials
		}
		return nil, err
	}
	if !svc.IsActive || !svc.ValidateClientSecret([]byte(secret)) {
		return nil, ErrInvalidClientCredentials
	}
	return svc, nil
}

// Seed upserts every registry entry into the database and drops the cached
// copies. Client secrets are stored as bcrypt hashes. Nothing is written
// unless every entry allows the global mandatory scopes.
func (r *RegistryService) Seed(ctx context.Context, reg *config.Registry) (int, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("registry.seed"))

	for _, def := range reg.Services {
		if missing := scope.Missing(r.globalMandatory, def.AllowedScopes); len(missing) > 0 {
			return 0, fmt.Errorf(
				"service %s: mandatory scopes %v are not in allowed_scopes", def.ClientID, missing,
			)
		}
	}

	for _, def := range reg.Services {
		var hashed string
		if def.ClientSecret != "" {
			h, err := bcrypt.GenerateFromPassword([]byte(def.ClientSecret), bcrypt.DefaultCost)
			if err != nil {
				return 0, fmt.Errorf("hash secret for %s: %w", def.ClientID, err)
			}
			hashed = string(h)
		}

		stored, err := r.store.UpsertService(ctx, &models.Service{
			ClientID:        def.ClientID,
			ClientSecret:    hashed,
			Name:            def.Name,
			Description:     def.Description,
			AllowedScopes:   def.AllowedScopes,
			MandatoryScopes: def.MandatoryScopes,
			RedirectURIs:    def.RedirectURIs,
			IsActive:        def.IsActive(),
		})
		if err != nil {
			return 0, fmt.Errorf("seed service %s: %w", def.ClientID, err)
		}
		if err := r.loader.Invalidate(ctx, serviceCacheKeyPrefix+def.ClientID); err != nil {
			log.Warn("failed to invalidate cached service", logger.ClientID(def.ClientID), logger.Err(err))
		}

		// Seeding often runs from a short-lived CLI, so write through.
		if err := r.audit.LogSync(ctx, AuditLogEntry{
			EventType:    models.EventServiceRegistered,
			ClientID:     stored.ClientID,
			ResourceType: models.ResourceService,
			ResourceID:   stored.ClientID,
			Action:       "service registered",
			Details: models.AuditDetails{
				"allowed_scopes": []string(stored.AllowedScopes),
				"active":         stored.IsActive,
			},
			Success: true,
		}); err != nil {
			log.Warn("failed to audit service registration", logger.ClientID(stored.ClientID), logger.Err(err))
		}
		log.Info("service registered",
			logger.ClientID(stored.ClientID),
			logger.Scopes(stored.AllowedScopes),
		)
	}
	return len(reg.Services), nil
}

// CacheHealth reports whether the registry cache backend is reachable.
func (r *RegistryService) CacheHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.loader.Cache().Health(ctx)
}

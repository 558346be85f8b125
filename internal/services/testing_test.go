package services

import (
	"context"
	"testing"
	"time"

	"github.com/agri-identity/agrigate/internal/cache"
	"github.com/agri-identity/agrigate/internal/config"
	"github.com/agri-identity/agrigate/internal/metrics"
	"github.com/agri-identity/agrigate/internal/models"
	"github.com/agri-identity/agrigate/internal/store"
	"github.com/agri-identity/agrigate/internal/token"

	"github.com/stretchr/testify/require"
)

const (
	testSecret      = "test-secret-key-for-jwt-signing-32b"
	cropAdvisoryID  = "CROP_ADVISORY_001"
	cropRedirectURI = "https://crop.example.com/callback"
	loanProviderID  = "LOAN_PROVIDER_001"
	loanRedirectURI = "https://loans.example.com/cb"
	farmer          = "farmer-42"
)

type testEnv struct {
	store    *store.Store
	cfg      *config.Config
	audit    *AuditService
	registry *RegistryService
	tokens   *TokenService
	authz    *AuthorizationService
	codec    *token.Codec
}

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:               "http://localhost:8080",
		JWTSecret:             testSecret,
		SessionJWTSecret:      testSecret,
		AccessTokenExpiration: time.Hour,
		AuthRequestExpiration: 10 * time.Minute,
		AuthRequestRetention:  24 * time.Hour,
		MandatoryScopes:       []string{"profile"},
		RegistryCacheTTL:      time.Minute,
		StoreTimeout:          5 * time.Second,
	}
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func testRegistry() *config.Registry {
	inactive := false
	return &config.Registry{Services: []config.ServiceDefinition{
		{
			ClientID:      cropAdvisoryID,
			ClientSecret:  "crop-secret",
			Name:          "Crop Advisory",
			Description:   "Seasonal crop recommendations",
			AllowedScopes: []string{"profile", "land_records", "soil_data"},
			RedirectURIs:  []string{cropRedirectURI},
		},
		{
			ClientID:        loanProviderID,
			Name:            "Kisan Loans",
			AllowedScopes:   []string{"profile", "land_records", "income"},
			MandatoryScopes: []string{"land_records"},
			RedirectURIs:    []string{loanRedirectURI, "https://loans.example.com/alt"},
		},
		{
			ClientID:      "RETIRED_001",
			Name:          "Retired",
			AllowedScopes: []string{"profile"},
			RedirectURIs:  []string{"https://retired.example.com/cb"},
			Active:        &inactive,
		},
	}}
}

func newTestEnvWithIssuer(t *testing.T, issuer token.Issuer) *testEnv {
	t.Helper()

	s := setupTestStore(t)
	cfg := testConfig()
	audit := NewAuditService(s, false, 0)
	m := metrics.NewNoopMetrics()

	registry := NewRegistryService(s, cache.NewMemoryCache[models.Service](), cfg, audit)
	require.NoError(t, testRegistry().Validate())
	_, err := registry.Seed(context.Background(), testRegistry())
	require.NoError(t, err)

	if issuer == nil {
		issuer = token.NewLocalIssuer(cfg.JWTSecret, cfg.BaseURL, cfg.AccessTokenExpiration)
	}
	codec := token.NewCodec(cfg.JWTSecret)
	tokens := NewTokenService(issuer, codec, s, registry, audit, m)

	return &testEnv{
		store:    s,
		cfg:      cfg,
		audit:    audit,
		registry: registry,
		tokens:   tokens,
		authz:    NewAuthorizationService(s, registry, tokens, cfg, audit, m),
		codec:    codec,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithIssuer(t, nil)
}

// begin starts a CROP_ADVISORY_001 request for farmer.
func (e *testEnv) begin(t *testing.T, scopes string) *AuthorizationResult {
	t.Helper()
	res, err := e.authz.BeginAuthorization(
		context.Background(), farmer, cropAdvisoryID, scopes, cropRedirectURI, "xyz",
	)
	require.NoError(t, err)
	return res
}

type failingIssuer struct{}

func (failingIssuer) Issue(context.Context, string, string, []string) (*token.AccessToken, error) {
	return nil, token.ErrSigningFault
}

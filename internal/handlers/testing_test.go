package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agri-identity/agrigate/internal/cache"
	"github.com/agri-identity/agrigate/internal/config"
	"github.com/agri-identity/agrigate/internal/metrics"
	"github.com/agri-identity/agrigate/internal/middleware"
	"github.com/agri-identity/agrigate/internal/models"
	"github.com/agri-identity/agrigate/internal/services"
	"github.com/agri-identity/agrigate/internal/store"
	"github.com/agri-identity/agrigate/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testSecret      = "test-secret-key-for-jwt-signing-32b"
	cropAdvisoryID  = "CROP_ADVISORY_001"
	cropSecret      = "crop-secret"
	cropRedirectURI = "https://crop.example.com/callback"
	loanProviderID  = "LOAN_PROVIDER_001"
	loanSecret      = "loan-secret"
	farmer          = "farmer-42"
)

type testServer struct {
	router *gin.Engine
	audit  *services.AuditService
	store  *store.Store
}

func testRegistry() *config.Registry {
	return &config.Registry{Services: []config.ServiceDefinition{
		{
			ClientID:      cropAdvisoryID,
			ClientSecret:  cropSecret,
			Name:          "Crop Advisory",
			Description:   "Seasonal crop recommendations",
			AllowedScopes: []string{"profile", "land_records", "soil_data"},
			RedirectURIs:  []string{cropRedirectURI},
		},
		{
			ClientID:        loanProviderID,
			ClientSecret:    loanSecret,
			Name:            "Kisan Loans",
			AllowedScopes:   []string{"profile", "land_records", "income"},
			MandatoryScopes: []string{"land_records"},
			RedirectURIs:    []string{"https://loans.example.com/cb"},
		},
	}}
}

// newTestServer wires the real services over an in-memory SQLite store and
// mounts the handlers the way the application router does.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.New(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	cfg := &config.Config{
		BaseURL:               "http://localhost:8080",
		JWTSecret:             testSecret,
		SessionJWTSecret:      testSecret,
		AccessTokenExpiration: time.Hour,
		AuthRequestExpiration: 10 * time.Minute,
		AuthRequestRetention:  24 * time.Hour,
		MandatoryScopes:       []string{"profile"},
		RegistryCacheTTL:      time.Minute,
	}

	audit := services.NewAuditService(s, true, 100)
	t.Cleanup(func() { _ = audit.Shutdown(context.Background()) })
	m := metrics.NewNoopMetrics()

	registry := services.NewRegistryService(s, cache.NewMemoryCache[models.Service](), cfg, audit)
	_, err = registry.Seed(context.Background(), testRegistry())
	require.NoError(t, err)

	codec := token.NewCodec(cfg.JWTSecret)
	issuer := token.NewLocalIssuer(cfg.JWTSecret, cfg.BaseURL, cfg.AccessTokenExpiration)
	tokens := services.NewTokenService(issuer, codec, s, registry, audit, m)
	authz := services.NewAuthorizationService(s, registry, tokens, cfg, audit, m)

	authzHandler := NewAuthorizationHandler(authz)
	tokenHandler := NewTokenHandler(tokens, registry)
	serviceHandler := NewServiceHandler(registry)
	auditHandler := NewAuditHandler(audit)

	r := gin.New()
	r.Use(middleware.RequestContext())
	r.GET("/services", serviceHandler.List)
	r.GET("/oauth/tokeninfo", tokenHandler.TokenInfo)
	r.POST("/oauth/introspect", tokenHandler.Introspect)

	portal := r.Group("/oauth", middleware.RequireBearer(token.NewCodec(cfg.SessionJWTSecret)))
	portal.POST("/authorize", authzHandler.Authorize)
	portal.POST("/grant", authzHandler.Grant)
	portal.POST("/cancel", authzHandler.Cancel)
	portal.POST("/revoke", authzHandler.Revoke)
	portal.GET("/active", authzHandler.ListActive)
	portal.GET("/logs", auditHandler.ListLogs)

	return &testServer{router: r, audit: audit, store: s}
}

// credential signs a portal login credential for subject.
func credential(t *testing.T, subject string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// authorize begins a CROP_ADVISORY_001 request for farmer and returns its id.
func (ts *testServer) authorize(t *testing.T, scopes string) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/oauth/authorize", credential(t, farmer), gin.H{
		"client_id":    cropAdvisoryID,
		"scope":        scopes,
		"redirect_uri": cropRedirectURI,
		"state":        "xyz",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[authorizeResponse](t, w).AuthRequestID
}

// grant approves requestID for farmer and returns the response.
func (ts *testServer) grant(t *testing.T, requestID string, scopes ...string) grantResponse {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/oauth/grant", credential(t, farmer), gin.H{
		"request_id":      requestID,
		"service_id":      cropAdvisoryID,
		"approved_scopes": scopes,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[grantResponse](t, w)
}

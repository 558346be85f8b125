package handlers

import (
	"net/http"

	"github.com/agri-identity/agrigate/internal/middleware"
	"github.com/agri-identity/agrigate/internal/services"

	"github.com/gin-gonic/gin"
)

// TokenHandler lets resource servers check access tokens.
type TokenHandler struct {
	tokenService    *services.TokenService
	registryService *services.RegistryService
}

func NewTokenHandler(ts *services.TokenService, rs *services.RegistryService) *TokenHandler {
	return &TokenHandler{
		tokenService:    ts,
		registryService: rs,
	}
}

// TokenInfo reports on the access token presented as the bearer credential
// (GET /oauth/tokeninfo). Revoked consents make the token inactive.
func (h *TokenHandler) TokenInfo(c *gin.Context) {
	raw, ok := middleware.BearerToken(c)
	if !ok {
		c.Header("WWW-Authenticate", `Bearer realm="agrigate"`)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "missing_token",
			"error_description": "Bearer access token required",
		})
		return
	}

	result, err := h.tokenService.Introspect(c.Request.Context(), raw)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Introspect is the RFC 7662 style endpoint for services
// (POST /oauth/introspect). The service authenticates with HTTP Basic and
// may only inspect tokens minted for itself.
func (h *TokenHandler) Introspect(c *gin.Context) {
	// Prefer HTTP Basic Auth; fall back to form-body parameters
	clientID, clientSecret, ok := c.Request.BasicAuth()
	if !ok {
		clientID = c.PostForm("client_id")
		clientSecret = c.PostForm("client_secret")
	}
	if clientID == "" || clientSecret == "" {
		c.Header("WWW-Authenticate", `Basic realm="agrigate"`)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_client",
			"error_description": "Client authentication required",
		})
		return
	}

	svc, err := h.registryService.AuthenticateClient(c.Request.Context(), clientID, clientSecret)
	if err != nil {
		c.Header("WWW-Authenticate", `Basic realm="agrigate"`)
		respondError(c, err)
		return
	}

	raw := c.PostForm("token")
	if raw == "" {
		badRequest(c, "token parameter is required")
		return
	}

	result, err := h.tokenService.IntrospectForClient(c.Request.Context(), svc.ClientID, raw)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

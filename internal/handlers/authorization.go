package handlers

import (
	"net/http"
	"time"

	"github.com/agri-identity/agrigate/internal/middleware"
	"github.com/agri-identity/agrigate/internal/scope"
	"github.com/agri-identity/agrigate/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthorizationHandler serves the consent exchange to the farmer portal.
// Every route sits behind middleware.RequireBearer.
type AuthorizationHandler struct {
	authorizationService *services.AuthorizationService
}

func NewAuthorizationHandler(as *services.AuthorizationService) *AuthorizationHandler {
	return &AuthorizationHandler{authorizationService: as}
}

type authorizeRequest struct {
	ClientID    string `json:"client_id"    binding:"required"`
	Scope       string `json:"scope"`
	RedirectURI string `json:"redirect_uri"`
	State       string `json:"state"`
}

type authorizeResponse struct {
	AuthRequestID      string    `json:"auth_request_id"`
	ServiceID          string    `json:"service_id"`
	ServiceName        string    `json:"service_name"`
	ServiceDescription string    `json:"service_description"`
	RequestedScopes    []string  `json:"requested_scopes"`
	MandatoryScopes    []string  `json:"mandatory_scopes"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// Authorize validates a service's request and returns what the consent
// screen shows (POST /oauth/authorize).
func (h *AuthorizationHandler) Authorize(c *gin.Context) {
	var req authorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "client_id is required")
		return
	}

	result, err := h.authorizationService.BeginAuthorization(
		c.Request.Context(),
		middleware.SubjectID(c),
		req.ClientID,
		req.Scope,
		req.RedirectURI,
		req.State,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authorizeResponse{
		AuthRequestID:      result.Request.UUID,
		ServiceID:          result.Service.ClientID,
		ServiceName:        result.Service.Name,
		ServiceDescription: result.Service.Description,
		RequestedScopes:    result.Request.RequestedScopes,
		MandatoryScopes:    result.MandatoryScopes,
		ExpiresAt:          result.Request.ExpiresAt.UTC(),
	})
}

type grantRequest struct {
	RequestID      string   `json:"request_id"      binding:"required"`
	ServiceID      string   `json:"service_id"      binding:"required"`
	ApprovedScopes []string `json:"approved_scopes"`
	SubjectID      string   `json:"subject_id"`
}

type grantResponse struct {
	AccessToken   string   `json:"access_token"`
	TokenType     string   `json:"token_type"`
	ExpiresIn     int64    `json:"expires_in"`
	Scope         string   `json:"scope"`
	GrantedScopes []string `json:"granted_scopes"`
	RedirectTo    string   `json:"redirect_to"`
}

// Grant records the farmer's approval and mints the service's access token
// (POST /oauth/grant).
func (h *AuthorizationHandler) Grant(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "request_id and service_id are required")
		return
	}

	result, err := h.authorizationService.Grant(c.Request.Context(), services.GrantInput{
		RequestID:        req.RequestID,
		SubjectID:        middleware.SubjectID(c),
		ClaimedSubjectID: req.SubjectID,
		ServiceID:        req.ServiceID,
		ApprovedScopes:   req.ApprovedScopes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	tok := result.Token
	c.JSON(http.StatusOK, grantResponse{
		AccessToken:   tok.Value,
		TokenType:     tok.TokenType,
		ExpiresIn:     tok.ExpiresIn(tok.IssuedAt),
		Scope:         scope.Join(tok.Scopes),
		GrantedScopes: tok.Scopes,
		RedirectTo:    result.RedirectTo,
	})
}

type cancelRequest struct {
	RequestID string `json:"request_id" binding:"required"`
}

// Cancel abandons a pending request (POST /oauth/cancel).
func (h *AuthorizationHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "request_id is required")
		return
	}

	if err := h.authorizationService.Cancel(
		c.Request.Context(),
		middleware.SubjectID(c),
		req.RequestID,
	); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type revokeRequest struct {
	ServiceID string `json:"service_id" binding:"required"`
}

// Revoke withdraws the caller's consent for a service (POST /oauth/revoke).
func (h *AuthorizationHandler) Revoke(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "service_id is required")
		return
	}

	if err := h.authorizationService.Revoke(
		c.Request.Context(),
		middleware.SubjectID(c),
		req.ServiceID,
	); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Consent revoked"})
}

type activeConsentResponse struct {
	ServiceID     string    `json:"service_id"`
	ServiceName   string    `json:"service_name"`
	GrantedScopes []string  `json:"granted_scopes"`
	GrantedAt     time.Time `json:"granted_at"`
}

// ListActive lists the services the caller currently shares data with
// (GET /oauth/active).
func (h *AuthorizationHandler) ListActive(c *gin.Context) {
	consents, err := h.authorizationService.ListActive(c.Request.Context(), middleware.SubjectID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]activeConsentResponse, 0, len(consents))
	for _, ac := range consents {
		item := activeConsentResponse{
			ServiceID:     ac.Consent.ClientID,
			GrantedScopes: ac.Consent.Scopes,
			GrantedAt:     ac.Consent.GrantedAt.UTC(),
		}
		if ac.Service != nil {
			item.ServiceName = ac.Service.Name
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, out)
}

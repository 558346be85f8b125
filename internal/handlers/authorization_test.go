package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/agri-identity/agrigate/internal/models"
	"github.com/agri-identity/agrigate/internal/services"
	"github.com/agri-identity/agrigate/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorBody struct {
	Error         string   `json:"error"`
	Description   string   `json:"error_description"`
	InvalidScopes []string `json:"invalid_scopes"`
}

// ============================================================
// oauthErrorCode
// ============================================================

func TestOauthErrorCode(t *testing.T) {
	tests := []struct {
		err        error
		wantCode   string
		wantStatus int
	}{
		{services.ErrUnknownClient, "unknown_client", http.StatusBadRequest},
		{&services.ScopeError{Err: services.ErrInvalidScope, Scopes: []string{"x"}}, "invalid_scope", http.StatusBadRequest},
		{services.ErrInvalidRedirect, "invalid_redirect", http.StatusBadRequest},
		{services.ErrInvalidRequest, "invalid_request", http.StatusBadRequest},
		{services.ErrScopeNotRequested, "scope_not_requested", http.StatusBadRequest},
		{services.ErrMandatoryScopeMissing, "mandatory_scope_missing", http.StatusBadRequest},
		{services.ErrRequestNotFound, "request_not_found", http.StatusNotFound},
		{services.ErrRequestExpired, "request_expired", http.StatusGone},
		{services.ErrRequestAlreadyConsumed, "request_already_consumed", http.StatusConflict},
		{services.ErrSubjectMismatch, "subject_mismatch", http.StatusForbidden},
		{services.ErrInvalidClientCredentials, "invalid_client", http.StatusUnauthorized},
		{fmt.Errorf("issue: %w", token.ErrSigningFault), "server_error", http.StatusInternalServerError},
		{errors.New("database is locked"), "server_error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode+"/"+tt.err.Error(), func(t *testing.T) {
			code, status := oauthErrorCode(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

// ============================================================
// POST /oauth/authorize
// ============================================================

func TestAuthorize_Success(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/oauth/authorize", credential(t, farmer), gin.H{
		"client_id":    cropAdvisoryID,
		"scope":        "profile land_records",
		"redirect_uri": cropRedirectURI,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[authorizeResponse](t, w)
	assert.Len(t, resp.AuthRequestID, 64)
	assert.Equal(t, cropAdvisoryID, resp.ServiceID)
	assert.Equal(t, "Crop Advisory", resp.ServiceName)
	assert.Equal(t, "Seasonal crop recommendations", resp.ServiceDescription)
	assert.Equal(t, []string{"profile", "land_records"}, resp.RequestedScopes)
	assert.Equal(t, []string{"profile"}, resp.MandatoryScopes)
	assert.False(t, resp.ExpiresAt.IsZero())
}

func TestAuthorize_Errors(t *testing.T) {
	tests := []struct {
		name          string
		body          gin.H
		wantStatus    int
		wantCode      string
		wantInvalid   []string
		wantDescEqual string
	}{
		{
			name:       "unknown client",
			body:       gin.H{"client_id": "NOPE", "scope": "profile", "redirect_uri": cropRedirectURI},
			wantStatus: http.StatusBadRequest,
			wantCode:   "unknown_client",
		},
		{
			name:          "scope outside the service allowance",
			body:          gin.H{"client_id": cropAdvisoryID, "scope": "profile weather_alerts", "redirect_uri": cropRedirectURI},
			wantStatus:    http.StatusBadRequest,
			wantCode:      "invalid_scope",
			wantInvalid:   []string{"weather_alerts"},
			wantDescEqual: "invalid scope: weather_alerts",
		},
		{
			name:          "profile left out of the request",
			body:          gin.H{"client_id": cropAdvisoryID, "scope": "land_records soil_data", "redirect_uri": cropRedirectURI},
			wantStatus:    http.StatusBadRequest,
			wantCode:      "invalid_scope",
			wantInvalid:   []string{"profile"},
			wantDescEqual: "invalid scope: mandatory scope not requested: profile",
		},
		{
			name:       "empty scope",
			body:       gin.H{"client_id": cropAdvisoryID, "scope": "  ", "redirect_uri": cropRedirectURI},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_scope",
		},
		{
			name:       "unregistered redirect",
			body:       gin.H{"client_id": cropAdvisoryID, "scope": "profile", "redirect_uri": "https://evil.example.com/cb"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_redirect",
		},
		{
			name: "state too long",
			body: gin.H{
				"client_id": cropAdvisoryID, "scope": "profile", "redirect_uri": cropRedirectURI,
				"state": strings.Repeat("s", 1025),
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "missing client_id",
			body:       gin.H{"scope": "profile"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			w := ts.do(t, http.MethodPost, "/oauth/authorize", credential(t, farmer), tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode[errorBody](t, w)
			assert.Equal(t, tt.wantCode, body.Error)
			assert.Equal(t, tt.wantInvalid, body.InvalidScopes)
			if tt.wantDescEqual != "" {
				assert.Equal(t, tt.wantDescEqual, body.Description)
			}
		})
	}
}

func TestAuthorize_RequiresPortalCredential(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/oauth/authorize", "", gin.H{
		"client_id": cropAdvisoryID, "scope": "profile", "redirect_uri": cropRedirectURI,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decode[errorBody](t, w).Error)
}

func TestPortalRoutes_RejectAccessTokens(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.grant(t, ts.authorize(t, "profile"), "profile")

	calls := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/oauth/authorize", gin.H{
			"client_id": cropAdvisoryID, "scope": "profile land_records soil_data", "redirect_uri": cropRedirectURI,
		}},
		{http.MethodPost, "/oauth/grant", gin.H{
			"request_id": "anything", "service_id": cropAdvisoryID, "approved_scopes": []string{"profile"},
		}},
		{http.MethodPost, "/oauth/revoke", gin.H{"service_id": cropAdvisoryID}},
		{http.MethodGet, "/oauth/active", nil},
		{http.MethodGet, "/oauth/logs", nil},
	}
	for _, call := range calls {
		t.Run(call.path, func(t *testing.T) {
			w := ts.do(t, call.method, call.path, resp.AccessToken, call.body)
			assert.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
			assert.Equal(t, "unauthorized", decode[errorBody](t, w).Error)
		})
	}

	w := ts.do(t, http.MethodGet, "/oauth/active", credential(t, farmer), nil)
	require.Equal(t, http.StatusOK, w.Code)
	active := decode[[]activeConsentResponse](t, w)
	require.Len(t, active, 1)
	assert.Equal(t, []string{"profile"}, active[0].GrantedScopes, "consent was not widened")
}

// ============================================================
// POST /oauth/grant
// ============================================================

func TestGrant_Success(t *testing.T) {
	ts := newTestServer(t)
	reqID := ts.authorize(t, "profile land_records")

	resp := ts.grant(t, reqID, "profile", "land_records")

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "profile land_records", resp.Scope)
	assert.Equal(t, []string{"profile", "land_records"}, resp.GrantedScopes)

	redirect, err := url.Parse(resp.RedirectTo)
	require.NoError(t, err)
	assert.Equal(t, "https", redirect.Scheme)
	assert.Equal(t, "crop.example.com", redirect.Host)
	assert.Equal(t, "/callback", redirect.Path)
	fragment, err := url.ParseQuery(redirect.Fragment)
	require.NoError(t, err)
	assert.Equal(t, resp.AccessToken, fragment.Get("access_token"))
	assert.Equal(t, "Bearer", fragment.Get("token_type"))
	assert.Equal(t, "3600", fragment.Get("expires_in"))
	assert.Equal(t, "profile land_records", fragment.Get("scope"))
	assert.Equal(t, "xyz", fragment.Get("state"))
}

func TestGrant_Errors(t *testing.T) {
	tests := []struct {
		name        string
		subject     string
		body        func(reqID string) gin.H
		wantStatus  int
		wantCode    string
		wantInvalid []string
	}{
		{
			name:    "scope not requested",
			subject: farmer,
			body: func(id string) gin.H {
				return gin.H{"request_id": id, "service_id": cropAdvisoryID, "approved_scopes": []string{"profile", "soil_data"}}
			},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "scope_not_requested",
			wantInvalid: []string{"soil_data"},
		},
		{
			name:    "mandatory scope unchecked",
			subject: farmer,
			body: func(id string) gin.H {
				return gin.H{"request_id": id, "service_id": cropAdvisoryID, "approved_scopes": []string{"land_records"}}
			},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "mandatory_scope_missing",
			wantInvalid: []string{"profile"},
		},
		{
			name:    "another farmer",
			subject: "farmer-99",
			body: func(id string) gin.H {
				return gin.H{"request_id": id, "service_id": cropAdvisoryID, "approved_scopes": []string{"profile"}}
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "subject_mismatch",
		},
		{
			name:    "body subject differs from credential",
			subject: farmer,
			body: func(id string) gin.H {
				return gin.H{
					"request_id": id, "service_id": cropAdvisoryID,
					"approved_scopes": []string{"profile"}, "subject_id": "farmer-99",
				}
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "subject_mismatch",
		},
		{
			name:    "unknown request",
			subject: farmer,
			body: func(string) gin.H {
				return gin.H{"request_id": strings.Repeat("0", 64), "service_id": cropAdvisoryID, "approved_scopes": []string{"profile"}}
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "request_not_found",
		},
		{
			name:    "request for another service",
			subject: farmer,
			body: func(id string) gin.H {
				return gin.H{"request_id": id, "service_id": loanProviderID, "approved_scopes": []string{"profile"}}
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "request_not_found",
		},
		{
			name:    "missing request_id",
			subject: farmer,
			body: func(string) gin.H {
				return gin.H{"service_id": cropAdvisoryID}
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			reqID := ts.authorize(t, "profile land_records")

			w := ts.do(t, http.MethodPost, "/oauth/grant", credential(t, tt.subject), tt.body(reqID))

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			body := decode[errorBody](t, w)
			assert.Equal(t, tt.wantCode, body.Error)
			assert.Equal(t, tt.wantInvalid, body.InvalidScopes)
		})
	}
}

func TestGrant_SecondAttemptConflicts(t *testing.T) {
	ts := newTestServer(t)
	reqID := ts.authorize(t, "profile")
	ts.grant(t, reqID, "profile")

	w := ts.do(t, http.MethodPost, "/oauth/grant", credential(t, farmer), gin.H{
		"request_id": reqID, "service_id": cropAdvisoryID, "approved_scopes": []string{"profile"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "request_already_consumed", decode[errorBody](t, w).Error)
}

// ============================================================
// POST /oauth/cancel
// ============================================================

func TestCancel_ThenGrantIsGone(t *testing.T) {
	ts := newTestServer(t)
	reqID := ts.authorize(t, "profile")

	w := ts.do(t, http.MethodPost, "/oauth/cancel", credential(t, farmer), gin.H{"request_id": reqID})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodPost, "/oauth/cancel", credential(t, farmer), gin.H{"request_id": reqID})
	assert.Equal(t, http.StatusNoContent, w.Code, "cancelling twice is harmless")

	w = ts.do(t, http.MethodPost, "/oauth/grant", credential(t, farmer), gin.H{
		"request_id": reqID, "service_id": cropAdvisoryID, "approved_scopes": []string{"profile"},
	})
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "request_expired", decode[errorBody](t, w).Error)
}

func TestCancel_OtherFarmersRequest(t *testing.T) {
	ts := newTestServer(t)
	reqID := ts.authorize(t, "profile")

	w := ts.do(t, http.MethodPost, "/oauth/cancel", credential(t, "farmer-99"), gin.H{"request_id": reqID})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// ============================================================
// POST /oauth/revoke, GET /oauth/active
// ============================================================

func TestRevoke_RemovesFromActiveList(t *testing.T) {
	ts := newTestServer(t)
	ts.grant(t, ts.authorize(t, "profile soil_data"), "profile", "soil_data")

	w := ts.do(t, http.MethodGet, "/oauth/active", credential(t, farmer), nil)
	require.Equal(t, http.StatusOK, w.Code)
	active := decode[[]activeConsentResponse](t, w)
	require.Len(t, active, 1)
	assert.Equal(t, cropAdvisoryID, active[0].ServiceID)
	assert.Equal(t, "Crop Advisory", active[0].ServiceName)
	assert.Equal(t, []string{"profile", "soil_data"}, active[0].GrantedScopes)
	assert.False(t, active[0].GrantedAt.IsZero())

	w = ts.do(t, http.MethodPost, "/oauth/revoke", credential(t, farmer), gin.H{"service_id": cropAdvisoryID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Consent revoked"}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/oauth/active", credential(t, farmer), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = ts.do(t, http.MethodPost, "/oauth/revoke", credential(t, farmer), gin.H{"service_id": cropAdvisoryID})
	assert.Equal(t, http.StatusOK, w.Code, "revoking again succeeds")
}

func TestListActive_OnlyCallersConsents(t *testing.T) {
	ts := newTestServer(t)
	ts.grant(t, ts.authorize(t, "profile"), "profile")

	w := ts.do(t, http.MethodGet, "/oauth/active", credential(t, "farmer-99"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

// ============================================================
// GET /oauth/logs
// ============================================================

func TestListLogs_CallerHistory(t *testing.T) {
	ts := newTestServer(t)
	ts.grant(t, ts.authorize(t, "profile"), "profile")
	require.NoError(t, ts.audit.Shutdown(context.Background()))

	w := ts.do(t, http.MethodGet, "/oauth/logs?page=1&page_size=2", credential(t, farmer), nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[struct {
		Logs       []models.AuditLog `json:"logs"`
		Pagination struct {
			Total    int64 `json:"total"`
			PageSize int   `json:"page_size"`
			HasNext  bool  `json:"has_next"`
		} `json:"pagination"`
	}](t, w)
	require.Len(t, resp.Logs, 2)
	for _, entry := range resp.Logs {
		assert.Equal(t, farmer, entry.SubjectID)
	}
	// requested, granted, token issued
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.PageSize)
	assert.True(t, resp.Pagination.HasNext)

	w = ts.do(t, http.MethodGet, "/oauth/logs", credential(t, "farmer-99"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/agri-identity/agrigate/internal/config"
	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/metrics"
	"github.com/agri-identity/agrigate/internal/models"
	"github.com/agri-identity/agrigate/internal/scope"
	"github.com/agri-identity/agrigate/internal/store"
	"github.com/agri-identity/agrigate/internal/token"
	"github.com/agri-identity/agrigate/internal/util"
)

const (
	// requestIDLength is the hex length of an auth_request_id (256 bits).
	requestIDLength = 64
	maxStateLength  = 1024
)

// AuthorizationResult is a freshly created PENDING request plus what the
// consent screen needs to render it.
type AuthorizationResult struct {
	Request *models.AuthorizationRequest
	Service *models.Service
	// MandatoryScopes are the scopes the farmer cannot uncheck. Every
	// request carries all of them.
	MandatoryScopes []string
}

// GrantInput is a farmer's decision on a pending request.
type GrantInput struct {
	RequestID string
	// SubjectID comes from the verified bearer credential.
	SubjectID string
	// ClaimedSubjectID is an optional subject echoed in the request body.
	// It is only cross-checked, never trusted.
	ClaimedSubjectID string
	// ServiceID is the client_id the portal believes the request is for.
	ServiceID      string
	ApprovedScopes []string
}

// GrantResult is the outcome of a successful grant.
type GrantResult struct {
	Token      *token.AccessToken
	Consent    *models.Consent
	Service    *models.Service
	RedirectTo string
}

// ActiveConsent pairs a live consent with its service for listings.
type ActiveConsent struct {
	Consent models.Consent
	Service *models.Service
}

// AuthorizationService runs the consent exchange: begin a request, grant
// or cancel it, and later list or revoke the resulting consents.
type AuthorizationService struct {
	store    *store.Store
	registry *RegistryService
	tokens   *TokenService
	config   *config.Config
	audit    *AuditService
	metrics  metrics.Recorder
	now      func() time.Time
}

func NewAuthorizationService(
	s *store.Store,
	registry *RegistryService,
	tokens *TokenService,
	cfg *config.Config,
	audit *AuditService,
	m metrics.Recorder,
) *AuthorizationService {
	return &AuthorizationService{
		store:    s,
		registry: registry,
		tokens:   tokens,
		config:   cfg,
		audit:    audit,
		metrics:  m,
		now:      time.Now,
	}
}

// BeginAuthorization validates a service's request for subjectID's data and
// records it as PENDING.
func (s *AuthorizationService) BeginAuthorization(
	ctx context.Context,
	subjectID, clientID, scopeString, redirectURI, state string,
) (*AuthorizationResult, error) {
	result, err := s.beginAuthorization(ctx, subjectID, clientID, scopeString, redirectURI, state)
	s.metrics.RecordAuthorizationRequest(outcome(err))
	if err != nil {
		s.audit.Log(ctx, AuditLogEntry{
			EventType:    models.EventAuthorizationRejected,
			Severity:     models.SeverityWarning,
			SubjectID:    subjectID,
			ClientID:     clientID,
			ResourceType: models.ResourceAuthRequest,
			Action:       "authorization request rejected",
			Details: models.AuditDetails{
				"scope":        scopeString,
				"redirect_uri": redirectURI,
			},
			Success:      false,
			ErrorMessage: err.Error(),
		})
		return nil, err
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventAuthorizationRequested,
		SubjectID:    subjectID,
		ClientID:     clientID,
		ResourceType: models.ResourceAuthRequest,
		ResourceID:   result.Request.UUID,
		Action:       "authorization requested",
		Details: models.AuditDetails{
			"requested_scopes": []string(result.Request.RequestedScopes),
		},
		Success: true,
	})
	return result, nil
}

func (s *AuthorizationService) beginAuthorization(
	ctx context.Context,
	subjectID, clientID, scopeString, redirectURI, state string,
) (*AuthorizationResult, error) {
	if subjectID == "" {
		return nil, ErrSubjectMismatch
	}
	if len(state) > maxStateLength {
		return nil, fmt.Errorf("%w: state exceeds %d characters", ErrInvalidRequest, maxStateLength)
	}

	svc, err := s.registry.GetService(ctx, clientID)
	if err != nil {
		return nil, err
	}

	requested := scope.Parse(scopeString)
	if len(requested) == 0 {
		return nil, ErrEmptyScope
	}
	if _, rejected := s.registry.ValidateScopes(svc, requested); len(rejected) > 0 {
		return nil, &ScopeError{Err: ErrInvalidScope, Scopes: rejected}
	}
	mandatory := s.registry.MandatoryScopes(svc)
	if missing := scope.Missing(mandatory, requested); len(missing) > 0 {
		return nil, &ScopeError{Err: ErrMandatoryScopeNotRequested, Scopes: missing}
	}

	redirectURI, err = resolveRedirectURI(svc, redirectURI)
	if err != nil {
		return nil, err
	}

	id, err := util.RandomHex(requestIDLength)
	if err != nil {
		return nil, fmt.Errorf("generate request id: %w", err)
	}

	now := s.now()
	req := &models.AuthorizationRequest{
		UUID:            id,
		ServiceID:       svc.ID,
		ClientID:        svc.ClientID,
		SubjectID:       subjectID,
		RequestedScopes: requested,
		RedirectURI:     redirectURI,
		State:           state,
		Status:          models.AuthRequestPending,
		ExpiresAt:       now.Add(s.config.AuthRequestExpiration),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateAuthorizationRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("create authorization request: %w", err)
	}

	return &AuthorizationResult{
		Request:         req,
		Service:         svc,
		MandatoryScopes: mandatory,
	}, nil
}

// resolveRedirectURI requires an exact match against the registered URIs.
// An omitted URI is accepted only when exactly one is registered.
func resolveRedirectURI(svc *models.Service, redirectURI string) (string, error) {
	if redirectURI == "" {
		if len(svc.RedirectURIs) == 1 {
			return svc.RedirectURIs[0], nil
		}
		return "", ErrInvalidRedirect
	}
	if err := util.ValidateRedirectURI(redirectURI); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRedirect, err)
	}
	if !svc.HasRedirectURI(redirectURI) {
		return "", ErrInvalidRedirect
	}
	return redirectURI, nil
}

// Grant records the farmer's approval of a pending request and mints the
// access token. The request is consumed at most once even under concurrent
// submissions; scope errors leave it PENDING so the farmer can fix the
// selection.
func (s *AuthorizationService) Grant(ctx context.Context, in GrantInput) (*GrantResult, error) {
	start := time.Now()
	result, err := s.grant(ctx, in)
	s.metrics.RecordGrant(outcome(err), time.Since(start))

	if err != nil {
		severity := models.SeverityWarning
		if errors.Is(err, ErrSubjectMismatch) {
			severity = models.SeverityCritical
		}
		eventType := models.EventConsentDenied
		if errors.Is(err, ErrSubjectMismatch) {
			eventType = models.EventSuspiciousActivity
		}
		s.audit.Log(ctx, AuditLogEntry{
			EventType:    eventType,
			Severity:     severity,
			SubjectID:    in.SubjectID,
			ClientID:     in.ServiceID,
			ResourceType: models.ResourceAuthRequest,
			ResourceID:   in.RequestID,
			Action:       "consent grant rejected",
			Details: models.AuditDetails{
				"approved_scopes":    in.ApprovedScopes,
				"claimed_subject_id": in.ClaimedSubjectID,
			},
			Success:      false,
			ErrorMessage: err.Error(),
		})
		return nil, err
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventConsentGranted,
		SubjectID:    in.SubjectID,
		ClientID:     result.Service.ClientID,
		ResourceType: models.ResourceConsent,
		ResourceID:   result.Consent.UUID,
		Action:       "consent granted",
		Details: models.AuditDetails{
			"auth_request_id": in.RequestID,
			"granted_scopes":  result.Token.Scopes,
		},
		Success: true,
	})
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventAccessTokenIssued,
		SubjectID:    in.SubjectID,
		ClientID:     result.Service.ClientID,
		ResourceType: models.ResourceToken,
		ResourceID:   result.Token.JTI,
		Action:       "access token issued",
		Details: models.AuditDetails{
			"scope":      scope.Join(result.Token.Scopes),
			"expires_at": result.Token.ExpiresAt,
		},
		Success: true,
	})
	return result, nil
}

func (s *AuthorizationService) grant(ctx context.Context, in GrantInput) (*GrantResult, error) {
	if in.SubjectID == "" {
		return nil, ErrSubjectMismatch
	}
	if in.ClaimedSubjectID != "" && in.ClaimedSubjectID != in.SubjectID {
		return nil, ErrSubjectMismatch
	}

	req, err := s.store.GetAuthorizationRequest(ctx, in.RequestID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("load authorization request: %w", err)
	}
	if req.SubjectID != in.SubjectID {
		return nil, ErrSubjectMismatch
	}

	now := s.now()
	switch {
	case req.Status == models.AuthRequestConsumed:
		return nil, ErrRequestAlreadyConsumed
	case req.Status == models.AuthRequestExpired:
		return nil, ErrRequestExpired
	case req.IsExpiredAt(now):
		if _, err := s.store.ExpireAuthorizationRequest(ctx, req.UUID, ""); err != nil {
			logger.From(ctx).Warn("failed to mark request expired",
				logger.RequestID(req.UUID), logger.Err(err))
		}
		return nil, ErrRequestExpired
	}

	if in.ServiceID != "" && in.ServiceID != req.ClientID {
		return nil, ErrRequestNotFound
	}

	svc, err := s.registry.GetService(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	approved := scope.Normalize(in.ApprovedScopes)
	if notRequested := scope.Missing(approved, req.RequestedScopes); len(notRequested) > 0 {
		return nil, &ScopeError{Err: ErrScopeNotRequested, Scopes: notRequested}
	}
	mandatory := s.registry.MandatoryScopes(svc)
	if missing := scope.Missing(mandatory, approved); len(missing) > 0 {
		return nil, &ScopeError{Err: ErrMandatoryScopeMissing, Scopes: missing}
	}
	if len(approved) == 0 {
		return nil, ErrEmptyScope
	}

	var tok *token.AccessToken
	consent, err := s.store.ConsumeAndGrant(ctx, req.UUID, now, &models.Consent{
		SubjectID: in.SubjectID,
		ServiceID: svc.ID,
		ClientID:  svc.ClientID,
		Scopes:    approved,
	}, func(*models.Consent) error {
		var err error
		tok, err = s.tokens.Issue(ctx, in.SubjectID, svc.ClientID, approved)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRequestAlreadyConsumed):
			return nil, ErrRequestAlreadyConsumed
		case errors.Is(err, store.ErrRequestExpired):
			return nil, ErrRequestExpired
		case errors.Is(err, store.ErrRecordNotFound):
			return nil, ErrRequestNotFound
		case token.IsSigningFault(err):
			return nil, err
		}
		return nil, fmt.Errorf("consume authorization request: %w", err)
	}

	redirect, err := redirectWithToken(req, tok)
	if err != nil {
		return nil, err
	}

	return &GrantResult{
		Token:      tok,
		Consent:    consent,
		Service:    svc,
		RedirectTo: redirect,
	}, nil
}

// redirectWithToken builds the redirect back to the service, carrying the
// token in the URI fragment so it never reaches server logs.
func redirectWithToken(req *models.AuthorizationRequest, tok *token.AccessToken) (string, error) {
	params := url.Values{}
	params.Set("access_token", tok.Value)
	params.Set("token_type", tok.TokenType)
	params.Set("expires_in", strconv.FormatInt(tok.ExpiresIn(tok.IssuedAt), 10))
	params.Set("scope", scope.Join(tok.Scopes))
	if req.State != "" {
		params.Set("state", req.State)
	}
	return util.AppendFragment(req.RedirectURI, params)
}

// Revoke withdraws subjectID's consent for the service. Revoking a consent
// that is already revoked or never existed succeeds without effect.
func (s *AuthorizationService) Revoke(ctx context.Context, subjectID, clientID string) error {
	if subjectID == "" {
		return ErrSubjectMismatch
	}

	svc, err := s.store.GetServiceByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			s.metrics.RecordConsentRevoked(false)
			return nil
		}
		return fmt.Errorf("lookup service %s: %w", clientID, err)
	}

	changed, err := s.store.RevokeConsent(ctx, subjectID, svc.ID, s.now())
	if err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}
	s.metrics.RecordConsentRevoked(changed > 0)

	if changed > 0 {
		s.audit.Log(ctx, AuditLogEntry{
			EventType:    models.EventConsentRevoked,
			SubjectID:    subjectID,
			ClientID:     svc.ClientID,
			ResourceType: models.ResourceConsent,
			ResourceID:   svc.ClientID,
			Action:       "consent revoked",
			Success:      true,
		})
	}
	return nil
}

// ListActive returns subjectID's live consents with their services.
func (s *AuthorizationService) ListActive(ctx context.Context, subjectID string) ([]ActiveConsent, error) {
	consents, err := s.store.ListActiveConsents(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	if len(consents) == 0 {
		return []ActiveConsent{}, nil
	}

	ids := make([]int64, 0, len(consents))
	for _, c := range consents {
		ids = append(ids, c.ServiceID)
	}
	services, err := s.store.GetServicesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}

	out := make([]ActiveConsent, 0, len(consents))
	for _, c := range consents {
		out = append(out, ActiveConsent{Consent: c, Service: services[c.ServiceID]})
	}
	return out, nil
}

// Cancel abandons a pending request by marking it EXPIRED. Cancelling a
// request that is already terminal is a no-op.
func (s *AuthorizationService) Cancel(ctx context.Context, subjectID, requestID string) error {
	req, err := s.store.GetAuthorizationRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("load authorization request: %w", err)
	}
	if req.SubjectID != subjectID {
		return ErrSubjectMismatch
	}
	if req.IsTerminal() {
		return nil
	}

	changed, err := s.store.ExpireAuthorizationRequest(ctx, requestID, subjectID)
	if err != nil {
		return fmt.Errorf("cancel authorization request: %w", err)
	}
	if changed {
		s.metrics.RecordAuthorizationCancelled()
		s.audit.Log(ctx, AuditLogEntry{
			EventType:    models.EventAuthorizationCancelled,
			SubjectID:    subjectID,
			ClientID:     req.ClientID,
			ResourceType: models.ResourceAuthRequest,
			ResourceID:   requestID,
			Action:       "authorization cancelled",
			Success:      true,
		})
	}
	return nil
}

// CleanupRequests marks overdue PENDING requests EXPIRED and deletes
// terminal requests older than the retention window.
func (s *AuthorizationService) CleanupRequests(ctx context.Context) (expired, deleted int64, err error) {
	now := s.now()

	expired, err = s.store.ExpireStaleAuthorizationRequests(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("expire stale requests: %w", err)
	}
	s.metrics.RecordAuthorizationRequestsExpired(expired)

	deleted, err = s.store.DeleteTerminalAuthorizationRequests(ctx, now.Add(-s.config.AuthRequestRetention))
	if err != nil {
		return expired, 0, fmt.Errorf("delete terminal requests: %w", err)
	}
	return expired, deleted, nil
}

// outcome maps an error to a low-cardinality metrics label.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return ErrorCode(err)
}

// ErrorCode maps service errors to the wire error codes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownClient):
		return "unknown_client"
	case errors.Is(err, ErrInvalidScope):
		return "invalid_scope"
	case errors.Is(err, ErrInvalidRedirect):
		return "invalid_redirect"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrRequestNotFound):
		return "request_not_found"
	case errors.Is(err, ErrRequestExpired):
		return "request_expired"
	case errors.Is(err, ErrRequestAlreadyConsumed):
		return "request_already_consumed"
	case errors.Is(err, ErrScopeNotRequested):
		return "scope_not_requested"
	case errors.Is(err, ErrMandatoryScopeMissing):
		return "mandatory_scope_missing"
	case errors.Is(err, ErrSubjectMismatch):
		return "subject_mismatch"
	case errors.Is(err, ErrInvalidClientCredentials):
		return "invalid_client"
	default:
		return "server_error"
	}
}

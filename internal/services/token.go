package services

import (
	"context"
	"errors"
	"time"

	"github.com/agri-identity/agrigate/internal/logger"
	"github.com/agri-identity/agrigate/internal/metrics"
	"github.com/agri-identity/agrigate/internal/models"
	"github.com/agri-identity/agrigate/internal/scope"
	"github.com/agri-identity/agrigate/internal/store"
	"github.com/agri-identity/agrigate/internal/token"
)

// Introspection is what a resource server learns about an access token.
type Introspection struct {
	Active    bool      `json:"active"`
	SubjectID string    `json:"sub,omitempty"`
	ServiceID string    `json:"service_id,omitempty"`
	Scopes    []string  `json:"-"`
	Scope     string    `json:"scope,omitempty"`
	ExpiresAt time.Time `json:"-"`
	Exp       int64     `json:"exp,omitempty"`
	IssuedAt  int64     `json:"iat,omitempty"`
	JTI       string    `json:"jti,omitempty"`
}

func inactive() *Introspection {
	return &Introspection{Active: false}
}

// TokenService mints access tokens and reports whether they are still
// backed by an active consent.
type TokenService struct {
	issuer   token.Issuer
	codec    *token.Codec
	store    *store.Store
	registry *RegistryService
	audit    *AuditService
	metrics  metrics.Recorder
}

// NewTokenService wires an issuer with the codec that verifies its tokens.
func NewTokenService(
	issuer token.Issuer,
	codec *token.Codec,
	s *store.Store,
	registry *RegistryService,
	audit *AuditService,
	m metrics.Recorder,
) *TokenService {
	return &TokenService{
		issuer:   issuer,
		codec:    codec,
		store:    s,
		registry: registry,
		audit:    audit,
		metrics:  m,
	}
}

// Issue mints a token. A failure is a signing fault: it is logged and
// audited for operators and must not be retried. Issue may run inside a
// store transaction, so it never writes to the store synchronously.
func (s *TokenService) Issue(
	ctx context.Context,
	subjectID, clientID string,
	scopes []string,
) (*token.AccessToken, error) {
	start := time.Now()
	tok, err := s.issuer.Issue(ctx, subjectID, clientID, scopes)
	s.metrics.RecordTokenIssued(err == nil, time.Since(start))

	if err != nil {
		logger.From(ctx).Error("access token signing failed",
			logger.Layer("service"),
			logger.Op("token.issue"),
			logger.SubjectID(subjectID),
			logger.ClientID(clientID),
			logger.Err(err),
		)
		s.audit.Log(ctx, AuditLogEntry{
			EventType:    models.EventTokenSigningFailure,
			Severity:     models.SeverityCritical,
			SubjectID:    subjectID,
			ClientID:     clientID,
			ResourceType: models.ResourceToken,
			Action:       "access token signing failed",
			Success:      false,
			ErrorMessage: err.Error(),
		})
		if !token.IsSigningFault(err) {
			err = errors.Join(token.ErrSigningFault, err)
		}
		return nil, err
	}
	return tok, nil
}

// Introspect reports a token active only if it verifies, is an access
// token, its service is still active and the subject's consent for that
// service still covers every scope in the token.
func (s *TokenService) Introspect(ctx context.Context, raw string) (*Introspection, error) {
	result, err := s.introspect(ctx, raw)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIntrospection(result.Active)
	return result, nil
}

// IntrospectForClient is Introspect restricted to tokens minted for
// clientID. Other tokens are reported inactive.
func (s *TokenService) IntrospectForClient(ctx context.Context, clientID, raw string) (*Introspection, error) {
	result, err := s.introspect(ctx, raw)
	if err != nil {
		return nil, err
	}
	if result.Active && result.ServiceID != clientID {
		result = inactive()
	}
	s.metrics.RecordTokenIntrospection(result.Active)

	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventTokenIntrospected,
		SubjectID:    result.SubjectID,
		ClientID:     clientID,
		ResourceType: models.ResourceToken,
		ResourceID:   result.JTI,
		Action:       "token introspected",
		Details:      models.AuditDetails{"active": result.Active},
		Success:      true,
	})
	return result, nil
}

func (s *TokenService) introspect(ctx context.Context, raw string) (*Introspection, error) {
	claims, err := s.codec.Decode(raw)
	if err != nil || claims.Type != token.TypeAccess || claims.AuthorizedParty == "" {
		return inactive(), nil
	}

	svc, err := s.registry.GetService(ctx, claims.AuthorizedParty)
	if err != nil {
		if errors.Is(err, ErrUnknownClient) {
			return inactive(), nil
		}
		return nil, err
	}

	consent, err := s.store.GetActiveConsent(ctx, claims.Subject, svc.ID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return inactive(), nil
		}
		return nil, err
	}

	scopes := claims.Scopes()
	if !scope.Subset(scopes, consent.Scopes) {
		return inactive(), nil
	}

	result := &Introspection{
		Active:    true,
		SubjectID: claims.Subject,
		ServiceID: claims.AuthorizedParty,
		Scopes:    scopes,
		Scope:     scope.Join(scopes),
		JTI:       claims.ID,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
		result.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Unix()
	}
	return result, nil
}

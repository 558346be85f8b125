package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agri-identity/agrigate/internal/scope"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer mints access tokens for approved consents.
type Issuer interface {
	Issue(ctx context.Context, subjectID, serviceID string, scopes []string) (*AccessToken, error)
}

// LocalIssuer signs access tokens in-process with a shared HMAC secret.
type LocalIssuer struct {
	method jwt.SigningMethod
	key    any
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption customises a LocalIssuer.
type IssuerOption func(*LocalIssuer)

// WithSigningKey replaces the signing method and key.
func WithSigningKey(method jwt.SigningMethod, key any) IssuerOption {
	return func(i *LocalIssuer) {
		i.method = method
		i.key = key
	}
}

// WithIssuerClock overrides the clock used for iat and exp.
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *LocalIssuer) { i.now = now }
}

// NewLocalIssuer creates an HS256 issuer. baseURL becomes the iss claim.
func NewLocalIssuer(secret, baseURL string, ttl time.Duration, opts ...IssuerOption) *LocalIssuer {
	i := &LocalIssuer{
		method: jwt.SigningMethodHS256,
		key:    []byte(secret),
		issuer: baseURL,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue signs a token for subjectID scoped to scopes. It only fails on a
// signing-key fault, reported as ErrSigningFault.
func (i *LocalIssuer) Issue(
	ctx context.Context,
	subjectID, serviceID string,
	scopes []string,
) (*AccessToken, error) {
	if key, ok := i.key.([]byte); ok && len(key) == 0 {
		return nil, fmt.Errorf("%w: empty signing key", ErrSigningFault)
	}
	if i.ttl <= 0 {
		return nil, fmt.Errorf("%w: non-positive token lifetime", ErrSigningFault)
	}

	now := i.now()
	granted := scope.Normalize(scopes)
	claims := &Claims{
		Scope:           scope.Join(granted),
		AuthorizedParty: serviceID,
		Type:            TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFault, err)
	}

	return &AccessToken{
		Value:     signed,
		TokenType: TokenTypeBearer,
		SubjectID: subjectID,
		ServiceID: serviceID,
		Scopes:    granted,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		JTI:       claims.ID,
	}, nil
}

// IsSigningFault reports whether err came from a failed signature.
func IsSigningFault(err error) bool {
	return errors.Is(err, ErrSigningFault)
}

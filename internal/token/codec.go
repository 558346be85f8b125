package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec verifies HS256 bearer credentials and extracts their claims. It has
// no side effects; callers decide what the subject is allowed to do.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithCodecClock overrides the clock used for exp checks.
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a codec that verifies signatures with secret.
func NewCodec(secret string, opts ...CodecOption) *Codec {
	c := &Codec{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decode verifies the credential and returns its claims.
func (c *Codec) Decode(bearer string) (*Claims, error) {
	if bearer == "" {
		return nil, ErrMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(bearer, claims, func(*jwt.Token) (any, error) {
		if len(c.secret) == 0 {
			return nil, errors.New("no verification key configured")
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrMalformed)
	}
	return claims, nil
}

// DecodePortalSubject verifies a portal login credential and returns its
// subject. Access tokens minted for services (typ=access or an azp claim)
// are rejected even when they verify.
func (c *Codec) DecodePortalSubject(bearer string) (string, error) {
	claims, err := c.Decode(bearer)
	if err != nil {
		return "", err
	}
	if claims.Type == TypeAccess || claims.AuthorizedParty != "" {
		return "", ErrNotPortalCredential
	}
	return claims.Subject, nil
}

// classify maps jwt parse errors onto the codec's three failure kinds.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

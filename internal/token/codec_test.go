package token

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32b"

func signClaims(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func portalClaims(sub string, exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
	}
}

func TestCodec_DecodePortalSubject(t *testing.T) {
	codec := NewCodec(testSecret)

	bearer := signClaims(t, testSecret, portalClaims("farmer-42", time.Now().Add(time.Hour)))
	sub, err := codec.DecodePortalSubject(bearer)
	require.NoError(t, err)
	assert.Equal(t, "farmer-42", sub)
}

func TestCodec_DecodePortalSubject_RejectsAccessTokens(t *testing.T) {
	codec := NewCodec(testSecret)

	minted, err := NewLocalIssuer(testSecret, "", time.Hour).
		Issue(context.Background(), "farmer-42", "CROP_ADVISORY_001", []string{"profile"})
	require.NoError(t, err)

	withAZP := portalClaims("farmer-42", time.Now().Add(time.Hour))
	withAZP["azp"] = "CROP_ADVISORY_001"
	withType := portalClaims("farmer-42", time.Now().Add(time.Hour))
	withType["typ"] = TypeAccess

	for name, bearer := range map[string]string{
		"issued access token": minted.Value,
		"azp claim":           signClaims(t, testSecret, withAZP),
		"typ access":          signClaims(t, testSecret, withType),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(bearer)
			require.NoError(t, err, "the token itself verifies")

			sub, err := codec.DecodePortalSubject(bearer)
			assert.ErrorIs(t, err, ErrNotPortalCredential)
			assert.Empty(t, sub)
		})
	}
}

func TestCodec_Decode_Errors(t *testing.T) {
	codec := NewCodec(testSecret)
	valid := signClaims(t, testSecret, portalClaims("farmer-42", time.Now().Add(time.Hour)))
	parts := strings.Split(valid, ".")

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, portalClaims("farmer-42", time.Now().Add(time.Hour))).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		bearer string
		want   error
	}{
		{"empty", "", ErrMalformed},
		{"missing segments", parts[0] + "." + parts[1], ErrMalformed},
		{"bad base64 payload", parts[0] + ".!!!." + parts[2], ErrMalformed},
		{
			"payload not json",
			parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte("not-json")) + "." + parts[2],
			ErrMalformed,
		},
		{"expired", signClaims(t, testSecret, portalClaims("farmer-42", time.Now().Add(-time.Minute))), ErrExpired},
		{"wrong secret", signClaims(t, "another-secret", portalClaims("farmer-42", time.Now().Add(time.Hour))), ErrInvalidSignature},
		{"alg none", noneToken, ErrInvalidSignature},
		{"missing sub", signClaims(t, testSecret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}), ErrMalformed},
		{"missing exp", signClaims(t, testSecret, jwt.MapClaims{"sub": "farmer-42"}), ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.bearer)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCodec_Clock(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	bearer := signClaims(t, testSecret, portalClaims("farmer-42", exp))

	later := NewCodec(testSecret, WithCodecClock(func() time.Time { return exp.Add(time.Second) }))
	_, err := later.Decode(bearer)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCodec_EmptySecret(t *testing.T) {
	bearer := signClaims(t, testSecret, portalClaims("farmer-42", time.Now().Add(time.Hour)))
	_, err := NewCodec("").Decode(bearer)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

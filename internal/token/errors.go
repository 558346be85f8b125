package token

import "errors"

var (
	// ErrMalformed indicates the credential is structurally invalid: wrong
	// segment count, bad encoding, unparsable claims or no subject.
	ErrMalformed = errors.New("malformed token")

	// ErrExpired indicates the credential's exp claim has passed
	ErrExpired = errors.New("token expired")

	// ErrInvalidSignature indicates the signature or algorithm did not verify
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrNotPortalCredential indicates a verified token that was minted for a
	// service and cannot stand in for a portal login.
	ErrNotPortalCredential = errors.New("access token presented as portal credential")

	// ErrSigningFault indicates the issuer could not sign a token. It points
	// at a key or configuration problem and must not be retried.
	ErrSigningFault = errors.New("token signing fault")
)

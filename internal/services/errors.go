package services

import (
	"errors"
	"fmt"
	"strings"
)

// Client-input errors. The caller can fix the request and try again.
var (
	ErrUnknownClient   = errors.New("unknown client")
	ErrInvalidScope    = errors.New("invalid scope")
	ErrInvalidRedirect = errors.New("redirect_uri is not registered for this service")
	ErrInvalidRequest  = errors.New("invalid request")

	// ErrMandatoryScopeNotRequested is an ErrInvalidScope raised when a
	// request leaves out scopes every consent must carry.
	ErrMandatoryScopeNotRequested = fmt.Errorf("%w: mandatory scope not requested", ErrInvalidScope)

	// ErrEmptyScope is an ErrInvalidScope with no offending names.
	ErrEmptyScope = &ScopeError{Err: ErrInvalidScope}

	ErrScopeNotRequested     = errors.New("approved scope was not requested")
	ErrMandatoryScopeMissing = errors.New("mandatory scope missing from approval")
	ErrSubjectMismatch       = errors.New("subject does not match the authenticated caller")

	ErrInvalidClientCredentials = errors.New("invalid client credentials")
)

// Request-state errors. Terminal for the request id; the flow must restart.
var (
	ErrRequestNotFound        = errors.New("authorization request not found")
	ErrRequestExpired         = errors.New("authorization request expired")
	ErrRequestAlreadyConsumed = errors.New("authorization request already consumed")
)

// ScopeError names the scopes behind a scope failure. It matches its
// sentinel (ErrInvalidScope, ErrScopeNotRequested, ErrMandatoryScopeMissing)
// under errors.Is.
type ScopeError struct {
	Err    error
	Scopes []string
}

func (e *ScopeError) Error() string {
	if len(e.Scopes) == 0 {
		if e.Err == ErrInvalidScope {
			return e.Err.Error() + ": no scope requested"
		}
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + strings.Join(e.Scopes, ", ")
}

func (e *ScopeError) Unwrap() error {
	return e.Err
}

// ScopesOf returns the scope names carried by err, if any.
func ScopesOf(err error) []string {
	var se *ScopeError
	if errors.As(err, &se) {
		return se.Scopes
	}
	return nil
}

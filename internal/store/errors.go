package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrRequestAlreadyConsumed is returned when a conditional consume finds
	// the authorization request already CONSUMED (0 rows updated).
	ErrRequestAlreadyConsumed = errors.New("authorization request already consumed")

	// ErrRequestExpired is returned when a conditional consume finds the
	// authorization request EXPIRED or past its deadline.
	ErrRequestExpired = errors.New("authorization request expired")
)

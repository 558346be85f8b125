package cache

import "errors"

var (
	// ErrCacheMiss indicates the requested key was not found or has expired
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheUnavailable indicates the cache backend could not be reached
	ErrCacheUnavailable = errors.New("cache: backend unavailable")

	// ErrInvalidValue indicates a cached value could not be encoded or decoded
	ErrInvalidValue = errors.New("cache: invalid value")
)

package domain

import "errors"

var (
	// ErrEmptyCatalog is returned when a catalog file holds no matchable products
	ErrEmptyCatalog = errors.New("catalog contains no matchable products")

	// ErrAttemptsExhausted is returned when an external call failed on every retry
	ErrAttemptsExhausted = errors.New("external call attempts exhausted")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when the cache backend cannot be reached
	ErrCacheUnavailable = errors.New("cache service unavailable")
)

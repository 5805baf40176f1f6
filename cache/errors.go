package cache

import "github.com/cockroachdb/errors"

var (
	// ErrClosed is returned by fill operations after Close.
	ErrClosed = errors.New("cache: closed")

	// ErrInvalidOptions is returned by New for a misconfigured cache.
	ErrInvalidOptions = errors.New("cache: invalid options")

	// ErrInvalidPattern is returned by InvalidateByPattern before any entry
	// is touched when the pattern cannot be compiled.
	ErrInvalidPattern = errors.New("cache: invalid pattern")

	// ErrInvalidStaleTime is returned by StaleWhileRevalidate when the stale
	// window is negative or longer than the entry TTL.
	ErrInvalidStaleTime = errors.New("cache: stale time must be within [0, ttl]")
)

// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "github.com/cespare/xxhash/v2"

// KeyHash returns the 64-bit xxhash of a cache key.
// It does not allocate for string input.
func KeyHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

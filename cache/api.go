package cache

import "context"

// Cache is a sharded, in-memory cache of string keys to values of type V.
// All methods are safe for concurrent use by multiple goroutines.
//
// Point operations are amortized O(1): a map lookup plus constant-time list
// adjustments under a shard lock. Tag invalidation costs O(entries carrying
// the tag); pattern invalidation scans every key.
//
// Bulk invalidation visits shards one at a time. It is not atomic with
// respect to concurrent writers: an entry written to an already visited
// shard during the call survives, and a fill that was in flight when the
// invalidation ran may store its result afterwards.
type Cache[V any] interface {
	// Get returns the value for key and whether a live entry was found.
	// Expired entries are purged and reported as misses.
	Get(key string) (V, bool)

	// Set creates or overwrites key (last writer wins). TTL comes from
	// WithTTL or Options.DefaultTTL; tags from WithTags replace any previous
	// tags. Returns false if the cache is closed.
	Set(key string, v V, opts ...EntryOption) bool

	// Delete removes key and reports whether a live entry was present.
	Delete(key string) bool

	// Clear removes every entry and resets all counters. In-flight fills
	// are not interrupted and may repopulate their keys.
	Clear()

	// GetOrSet returns the cached value or fills it via factory. Concurrent
	// misses for the same key share one factory call. Factory errors are
	// returned unchanged and never cached.
	GetOrSet(ctx context.Context, key string, factory Loader[V], opts ...EntryOption) (V, error)

	// SingleFlight runs producer at most once at a time per key; concurrent
	// callers receive the same value or error. It does not read or write
	// the store.
	SingleFlight(ctx context.Context, key string, producer Loader[V]) (V, error)

	// StaleWhileRevalidate serves a hit immediately. When the hit is inside
	// the stale window (WithStaleTime) it also refreshes the entry in a
	// background goroutine whose failures are logged, not returned.
	// A miss is filled synchronously like GetOrSet.
	StaleWhileRevalidate(ctx context.Context, key string, producer Loader[V], opts ...EntryOption) (V, error)

	// InvalidateByTag removes every entry tagged with tag and returns the count.
	InvalidateByTag(tag string) int

	// InvalidateByPattern removes every entry whose whole key matches
	// pattern, where '*' matches any run of bytes and '\' escapes the
	// next byte. Keys are compared as raw bytes, not decoded as UTF-8.
	// A malformed pattern returns ErrInvalidPattern and removes nothing.
	InvalidateByPattern(pattern string) (int, error)

	// Inspect returns entry metadata without affecting stats or recency.
	Inspect(key string) (EntryInfo, bool)

	// Metrics returns a snapshot of the cache counters.
	Metrics() Stats

	// HealthCheck classifies the cache from its counters. It never fails.
	HealthCheck() Health

	// Len returns the number of resident entries across all shards.
	Len() int

	// Close stops the sweeper and background refreshes and waits for them.
	// Afterwards reads miss, writes are ignored and fills return ErrClosed.
	Close() error
}

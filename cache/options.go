package cache

import (
	"context"
	"time"

	"github.com/IvanBrykalov/swrcache/policy"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxSize is the entry limit used when Options.MaxSize is 0.
	DefaultMaxSize = 10_000
	// DefaultTTL is the entry lifetime used when Options.DefaultTTL is 0.
	DefaultTTL = 5 * time.Minute

	// minShardCapacity is the smallest per-shard capacity the automatic
	// shard count will produce.
	minShardCapacity = 256
)

// EvictReason explains why the cache dropped an entry on its own.
// Explicit deletes and invalidations are not evictions.
type EvictReason int

const (
	// EvictCapacity: removed by the eviction policy to make room.
	EvictCapacity EvictReason = iota
	// EvictExpired: TTL elapsed (lazy purge on access or sweeper).
	EvictExpired
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Metrics receives cache events. NoopMetrics is used by default.
// Implementations must be safe for concurrent use; Hit, Miss, Evict and Size
// are called under a shard lock and must not call back into the cache.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	// Invalidate reports n entries removed by a tag or pattern invalidation.
	Invalidate(n int)
	// Size reports the number of resident entries.
	Size(entries int)
	// Load reports a completed factory/producer call.
	Load(d time.Duration, err error)
	// Refresh reports a completed background revalidation.
	Refresh(err error)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Loader produces a value for a key on a miss or a revalidation.
type Loader[V any] func(ctx context.Context) (V, error)

// HealthThresholds drive HealthCheck.
type HealthThresholds struct {
	// MinHitRate below which the cache is reported degraded.
	MinHitRate float64
	// MaxOccupancy (size / MaxSize) above which the cache is unhealthy.
	MaxOccupancy float64
	// MinRequests is the number of lookups required before the hit rate
	// rule applies; a cold cache is not degraded.
	MinRequests int64
}

// DefaultHealthThresholds returns the thresholds used when Options.Health is nil.
func DefaultHealthThresholds() HealthThresholds {
	return HealthThresholds{MinHitRate: 0.5, MaxOccupancy: 0.9, MinRequests: 100}
}

// Options configures a cache. Zero values are safe; New applies:
//   - MaxSize 0      => DefaultMaxSize
//   - DefaultTTL 0   => DefaultTTL (negative => entries never expire)
//   - Shards 0       => auto, rounded to a power of two
//   - nil Policy     => LRU
//   - nil Metrics    => NoopMetrics
//   - nil Health     => DefaultHealthThresholds
//   - nil Logger     => zerolog.Nop
type Options[V any] struct {
	// MaxSize is the entry count limit, split evenly across shards.
	// Each shard enforces its share on its own: with more than one shard a
	// full shard evicts its own LRU entry even while the cache as a whole is
	// below MaxSize, so the victim is the shard's LRU, not the global one.
	MaxSize int

	// Shards defines the number of shards. If 0, about 2*GOMAXPROCS shards
	// are used, but never so many that a shard holds fewer than 256 entries.
	Shards int

	// Policy is the eviction policy; nil => LRU.
	Policy policy.Policy[V]

	// DefaultTTL applies when an entry is written without WithTTL.
	DefaultTTL time.Duration
	// DefaultStaleTime is the stale window used by StaleWhileRevalidate
	// without WithStaleTime. Must not exceed DefaultTTL.
	DefaultStaleTime time.Duration

	// DisableMetrics turns off hit/miss/eviction accounting and the Metrics hook.
	DisableMetrics bool

	// Health overrides the HealthCheck thresholds.
	Health *HealthThresholds

	// SweepInterval enables a background purge of expired entries.
	// 0 keeps expiry lazy (on access only).
	SweepInterval time.Duration

	// RefreshTimeout bounds each background revalidation (0 = unbounded).
	RefreshTimeout time.Duration
	// MaxConcurrentRefreshes caps running background revalidations across
	// all keys; extra refreshes are skipped (0 = unbounded).
	MaxConcurrentRefreshes int

	// OnEvict is called for capacity and expiry evictions under the shard
	// lock; keep it lightweight.
	OnEvict func(key string, v V, reason EvictReason)
	Metrics Metrics

	// Logger receives background refresh failures.
	Logger *zerolog.Logger

	// Clock overrides the time source (tests). Nil => time.Now().
	Clock Clock
}

// validate rejects misconfiguration up front and fills in defaults.
func (o *Options[V]) validate() error {
	switch {
	case o.MaxSize < 0:
		return errors.Wrapf(ErrInvalidOptions, "MaxSize must be >= 0, got %d", o.MaxSize)
	case o.Shards < 0:
		return errors.Wrapf(ErrInvalidOptions, "Shards must be >= 0, got %d", o.Shards)
	case o.DefaultStaleTime < 0:
		return errors.Wrapf(ErrInvalidOptions, "DefaultStaleTime must be >= 0, got %s", o.DefaultStaleTime)
	case o.SweepInterval < 0:
		return errors.Wrapf(ErrInvalidOptions, "SweepInterval must be >= 0, got %s", o.SweepInterval)
	case o.RefreshTimeout < 0:
		return errors.Wrapf(ErrInvalidOptions, "RefreshTimeout must be >= 0, got %s", o.RefreshTimeout)
	case o.MaxConcurrentRefreshes < 0:
		return errors.Wrapf(ErrInvalidOptions, "MaxConcurrentRefreshes must be >= 0, got %d", o.MaxConcurrentRefreshes)
	}

	if o.MaxSize == 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.DefaultTTL == 0 {
		o.DefaultTTL = DefaultTTL
	}
	if o.DefaultTTL > 0 && o.DefaultStaleTime > o.DefaultTTL {
		return errors.Wrapf(ErrInvalidOptions,
			"DefaultStaleTime %s exceeds DefaultTTL %s", o.DefaultStaleTime, o.DefaultTTL)
	}

	if o.Health == nil {
		h := DefaultHealthThresholds()
		o.Health = &h
	}
	h := o.Health
	if h.MinHitRate < 0 || h.MinHitRate > 1 {
		return errors.Wrapf(ErrInvalidOptions, "Health.MinHitRate must be in [0,1], got %v", h.MinHitRate)
	}
	if h.MaxOccupancy <= 0 || h.MaxOccupancy > 1 {
		return errors.Wrapf(ErrInvalidOptions, "Health.MaxOccupancy must be in (0,1], got %v", h.MaxOccupancy)
	}
	if h.MinRequests < 0 {
		return errors.Wrapf(ErrInvalidOptions, "Health.MinRequests must be >= 0, got %d", h.MinRequests)
	}

	if o.Metrics == nil || o.DisableMetrics {
		o.Metrics = NoopMetrics{}
	}
	return nil
}

// entryConfig is the per-call configuration assembled from EntryOptions.
type entryConfig struct {
	ttl       time.Duration
	ttlSet    bool
	tags      []string
	tagsSet   bool
	staleTime time.Duration
	staleSet  bool
}

// EntryOption customizes a single write or fill.
type EntryOption func(*entryConfig)

// WithTTL sets the entry lifetime. A non-positive ttl disables expiration
// for this entry.
func WithTTL(ttl time.Duration) EntryOption {
	return func(c *entryConfig) { c.ttl, c.ttlSet = ttl, true }
}

// WithTags attaches tags for InvalidateByTag. Duplicates collapse.
// Tags replace, never merge with, the tags of an overwritten entry.
func WithTags(tags ...string) EntryOption {
	return func(c *entryConfig) { c.tags, c.tagsSet = dedupTags(tags), true }
}

// WithStaleTime sets the stale window used by StaleWhileRevalidate:
// a hit later than expiresAt-staleTime triggers a background refresh.
func WithStaleTime(d time.Duration) EntryOption {
	return func(c *entryConfig) { c.staleTime, c.staleSet = d, true }
}

func dedupTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

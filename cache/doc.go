// Package cache provides a generic, sharded in-memory cache with per-entry
// TTL, LRU eviction, tag and key-pattern invalidation, single-flight fills
// and stale-while-revalidate reads, plus a metrics and health surface.
//
// # Design
//
//   - Concurrency: keys are spread over power-of-two shards by xxhash; each
//     shard has its own lock, key map, tag index and intrusive MRU<->LRU
//     list. Small caches get a single shard, so eviction order is exactly
//     global LRU; large caches run LRU per shard.
//
//   - TTL: entries carry an absolute deadline. An entry is valid up to and
//     including its deadline. Expiry is lazy on access, with an optional
//     sweeper (Options.SweepInterval) for keys nobody reads again.
//
//   - Eviction: before a new key is inserted into a full shard the policy
//     nominates a victim (LRU: the least recently read or written entry).
//     Only these capacity evictions count as Stats.Evictions.
//
//   - Fills: GetOrSet and StaleWhileRevalidate load misses through a
//     single-flight group, so N concurrent misses on one key run the
//     factory once. Errors reach every waiter and are never cached.
//
//   - Stale-while-revalidate: a hit later than expiresAt-staleTime is
//     served at once and refreshed in a detached goroutine. The goroutine
//     keeps the caller's context values but not its cancellation, honours
//     Options.RefreshTimeout and stops on Close.
//
//   - Invalidation: InvalidateByTag uses the per-shard tag index;
//     InvalidateByPattern scans keys with an anchored glob. Both visit shards
//     one at a time and are not atomic with concurrent writes.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Invalidate/Size/Load/
//     Refresh events (metrics/prom exports them to Prometheus); Metrics()
//     returns a snapshot and HealthCheck derives a verdict from it.
//
// # Basic usage
//
//	c, err := cache.New(cache.Options[User]{MaxSize: 10_000})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	c.Set("u:1", User{Name: "Ann"}, cache.WithTTL(time.Second), cache.WithTags("users"))
//	u, ok := c.Get("u:1")
//
// # Read-through
//
//	u, err := c.GetOrSet(ctx, "u:1", func(ctx context.Context) (User, error) {
//	    return db.LoadUser(ctx, 1)
//	}, cache.WithTags("users"))
//
// # Stale-while-revalidate
//
//	stats, err := c.StaleWhileRevalidate(ctx, "stats:42", loadStats,
//	    cache.WithTTL(time.Minute), cache.WithStaleTime(15*time.Second))
//
// # Invalidation
//
//	c.InvalidateByTag("users")
//	n, err := c.InvalidateByPattern("campaign:42:*")
package cache

package cache

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/swrcache/internal/singleflight"
	"github.com/IvanBrykalov/swrcache/internal/util"
	"github.com/IvanBrykalov/swrcache/policy/lru"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// cache is a sharded in-memory store with a pluggable eviction policy.
type cache[V any] struct {
	shards []*shard[V]
	env    *env[V]
	opt    Options[V]
	log    zerolog.Logger

	// sf coalesces fills and background refreshes per key.
	sf singleflight.Group[V]

	// background work: sweeper and revalidations
	ctx      context.Context
	cancel   context.CancelFunc
	bgMu     sync.Mutex // orders wg.Add against Close
	bg       sync.WaitGroup
	closed   atomic.Bool
	refreshN *semaphore.Weighted

	loads         util.Counter
	loadErrors    util.Counter
	loadNanos     util.Counter
	refreshes     util.Counter
	refreshErrors util.Counter
	refreshSkips  util.Counter
	invalidations util.Counter
}

// New constructs a cache. Misconfiguration (negative sizes or durations,
// DefaultStaleTime > DefaultTTL, health thresholds out of range) is
// reported as ErrInvalidOptions.
func New[V any](opt Options[V]) (Cache[V], error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[V]()
	}

	sh := opt.Shards
	if sh <= 0 {
		sh = util.ReasonableShardCount(opt.MaxSize, minShardCapacity)
	} else {
		sh = int(util.NextPow2(uint64(sh)))
	}

	e := &env[V]{
		metrics:  opt.Metrics,
		onEvict:  opt.OnEvict,
		counting: !opt.DisableMetrics,
	}
	perShardCap := (opt.MaxSize + sh - 1) / sh
	shards := make([]*shard[V], sh)
	for i := range shards {
		shards[i] = newShard[V](perShardCap, opt.Policy, e)
	}

	log := zerolog.Nop()
	if opt.Logger != nil {
		log = *opt.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &cache[V]{
		shards: shards,
		env:    e,
		opt:    opt,
		log:    log.With().Str("component", "swrcache").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
	if opt.MaxConcurrentRefreshes > 0 {
		c.refreshN = semaphore.NewWeighted(int64(opt.MaxConcurrentRefreshes))
	}
	if opt.SweepInterval > 0 {
		c.bg.Add(1)
		go c.sweepLoop(opt.SweepInterval)
	}
	return c, nil
}

// MustNew is like New but panics on invalid options.
func MustNew[V any](opt Options[V]) Cache[V] {
	c, err := New(opt)
	if err != nil {
		panic(err)
	}
	return c
}

// ---- Cache[V] implementation ----

func (c *cache[V]) Get(key string) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	v, _, ok := c.getShard(key).get(key, c.now())
	return v, ok
}

func (c *cache[V]) Set(key string, v V, opts ...EntryOption) bool {
	if c.closed.Load() {
		return false
	}
	c.store(key, v, c.resolve(opts))
	return true
}

func (c *cache[V]) Delete(key string) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(key).remove(key, c.now())
}

func (c *cache[V]) Clear() {
	for _, s := range c.shards {
		s.clear()
	}
	c.loads.Reset()
	c.loadErrors.Reset()
	c.loadNanos.Reset()
	c.refreshes.Reset()
	c.refreshErrors.Reset()
	c.refreshSkips.Reset()
	c.invalidations.Reset()
	c.env.metrics.Size(int(c.env.size.Load()))
}

func (c *cache[V]) Inspect(key string) (EntryInfo, bool) {
	if c.closed.Load() {
		return EntryInfo{}, false
	}
	return c.getShard(key).inspect(key, c.now())
}

func (c *cache[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// Close cancels background refreshes, stops the sweeper and waits for both.
func (c *cache[V]) Close() error {
	c.bgMu.Lock()
	already := c.closed.Swap(true)
	c.bgMu.Unlock()
	if already {
		return nil
	}
	c.cancel()
	c.bg.Wait()
	return nil
}

// ---- helpers ----

// getShard picks a shard by hashing the key.
func (c *cache[V]) getShard(key string) *shard[V] {
	return c.shards[util.ShardIndex(util.KeyHash(key), len(c.shards))]
}

// store writes v under key with the resolved per-call configuration.
func (c *cache[V]) store(key string, v V, cfg entryConfig) {
	now := c.now()
	c.getShard(key).set(key, v, deadline(now, cfg.ttl), cfg.tags, now)
}

// resolve applies opts over the cache defaults.
func (c *cache[V]) resolve(opts []EntryOption) entryConfig {
	var cfg entryConfig
	for _, o := range opts {
		o(&cfg)
	}
	if !cfg.ttlSet {
		cfg.ttl = c.opt.DefaultTTL
	}
	if !cfg.staleSet {
		cfg.staleTime = c.opt.DefaultStaleTime
	}
	return cfg
}

func (c *cache[V]) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// deadline converts a relative TTL into an absolute UnixNano deadline.
// A non-positive ttl returns 0 (no expiration); deadlines past the int64
// range saturate at math.MaxInt64.
func deadline(now int64, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	if int64(ttl) > math.MaxInt64-now {
		return math.MaxInt64
	}
	return now + int64(ttl)
}

package cache

import (
	"context"
	"time"
)

func (c *cache[V]) GetOrSet(ctx context.Context, key string, factory Loader[V], opts ...EntryOption) (V, error) {
	if c.closed.Load() {
		var zero V
		return zero, ErrClosed
	}
	// fast path; a miss is recorded here whatever the fill outcome
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	return c.fill(ctx, key, factory, c.resolve(opts))
}

func (c *cache[V]) SingleFlight(ctx context.Context, key string, producer Loader[V]) (V, error) {
	if c.closed.Load() {
		var zero V
		return zero, ErrClosed
	}
	v, err, _ := c.sf.Do(ctx, key, func() (V, error) {
		return c.load(ctx, producer)
	})
	return v, err
}

// fill loads key through the single-flight group and stores a successful
// result. Joiners that arrive after another fill already stored the key get
// the stored value without calling factory again.
//
// The leader's ctx is the one passed to factory: if the leader is cancelled,
// every joiner sees that cancellation error.
func (c *cache[V]) fill(ctx context.Context, key string, factory Loader[V], cfg entryConfig) (V, error) {
	v, err, _ := c.sf.Do(ctx, key, func() (V, error) {
		if v, ok := c.getShard(key).peek(key, c.now()); ok {
			return v, nil
		}
		v, err := c.load(ctx, factory)
		if err != nil {
			return v, err
		}
		if !c.closed.Load() {
			c.store(key, v, cfg)
		}
		return v, nil
	})
	return v, err
}

// load calls fn and records its latency and outcome.
func (c *cache[V]) load(ctx context.Context, fn Loader[V]) (V, error) {
	start := time.Now()
	v, err := fn(ctx)
	d := time.Since(start)

	if c.env.counting {
		c.loads.Inc()
		c.loadNanos.Add(int64(d))
		if err != nil {
			c.loadErrors.Inc()
		}
	}
	c.env.metrics.Load(d, err)
	return v, err
}

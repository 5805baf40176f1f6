package cache

import (
	"context"

	"github.com/cockroachdb/errors"
)

func (c *cache[V]) StaleWhileRevalidate(ctx context.Context, key string, producer Loader[V], opts ...EntryOption) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	cfg := c.resolve(opts)
	if cfg.staleTime < 0 {
		return zero, errors.Wrapf(ErrInvalidStaleTime, "stale time %s is negative", cfg.staleTime)
	}
	if cfg.ttl > 0 && cfg.staleTime > cfg.ttl {
		return zero, errors.Wrapf(ErrInvalidStaleTime, "stale time %s exceeds ttl %s", cfg.staleTime, cfg.ttl)
	}

	now := c.now()
	v, exp, ok := c.getShard(key).get(key, now)
	if !ok {
		return c.fill(ctx, key, producer, cfg)
	}
	if exp == 0 || now <= exp-int64(cfg.staleTime) {
		return v, nil
	}
	c.revalidate(ctx, key, producer, cfg)
	return v, nil
}

// revalidate refreshes key in a detached goroutine. The goroutine joins the
// single-flight group, so a refresh (or a foreground fill) already running
// for key absorbs this one.
func (c *cache[V]) revalidate(ctx context.Context, key string, producer Loader[V], cfg entryConfig) {
	if c.sf.Pending(key) {
		return
	}
	if c.refreshN != nil && !c.refreshN.TryAcquire(1) {
		if c.env.counting {
			c.refreshSkips.Inc()
		}
		c.log.Debug().Str("key", key).Msg("background refresh skipped: limit reached")
		return
	}

	c.bgMu.Lock()
	if c.closed.Load() {
		c.bgMu.Unlock()
		if c.refreshN != nil {
			c.refreshN.Release(1)
		}
		return
	}
	c.bg.Add(1)
	c.bgMu.Unlock()

	go func() {
		defer c.bg.Done()
		if c.refreshN != nil {
			defer c.refreshN.Release(1)
		}

		rctx, cancel := c.refreshContext(ctx)
		defer cancel()
		c.refreshKey(rctx, key, producer, cfg)
	}()
}

// refreshKey runs producer for key through the single-flight group and
// updates the entry in place. Only a call that ran producer is counted; one
// that joined a fill or refresh already in flight records nothing.
func (c *cache[V]) refreshKey(ctx context.Context, key string, producer Loader[V], cfg entryConfig) {
	ran := false
	_, err, _ := c.sf.Do(ctx, key, func() (V, error) {
		ran = true
		v, err := c.load(ctx, producer)
		if err != nil {
			return v, err
		}
		if !c.closed.Load() {
			now := c.now()
			c.getShard(key).refresh(key, v, deadline(now, cfg.ttl), cfg.tags, cfg.tagsSet, now)
		}
		return v, nil
	})
	if !ran {
		return
	}

	if c.env.counting {
		c.refreshes.Inc()
		if err != nil {
			c.refreshErrors.Inc()
		}
	}
	c.env.metrics.Refresh(err)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("background refresh failed")
	}
}

// refreshContext detaches ctx from the caller's cancellation, keeps its
// values, applies Options.RefreshTimeout and ties the result to Close.
func (c *cache[V]) refreshContext(parent context.Context) (context.Context, context.CancelFunc) {
	base, cancelBase := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(c.ctx, cancelBase)

	ctx, cancelTimeout := base, context.CancelFunc(func() {})
	if c.opt.RefreshTimeout > 0 {
		ctx, cancelTimeout = context.WithTimeout(base, c.opt.RefreshTimeout)
	}
	return ctx, func() {
		cancelTimeout()
		stop()
		cancelBase()
	}
}

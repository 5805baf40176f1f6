package cache

import "time"

// sweepLoop purges expired entries every interval until Close.
// Lazy expiry alone never frees keys that are written once and never read.
func (c *cache[V]) sweepLoop(interval time.Duration) {
	defer c.bg.Done()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			if n := c.sweep(); n > 0 {
				c.log.Debug().Int("purged", n).Msg("expired entries swept")
			}
		}
	}
}

// sweep purges expired entries from every shard, one shard lock at a time.
func (c *cache[V]) sweep() int {
	now := c.now()
	purged := 0
	for _, s := range c.shards {
		purged += s.sweep(now)
	}
	return purged
}

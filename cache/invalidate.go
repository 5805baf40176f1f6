package cache

func (c *cache[V]) InvalidateByTag(tag string) int {
	if c.closed.Load() {
		return 0
	}
	removed := 0
	for _, s := range c.shards {
		removed += s.removeTag(tag)
	}
	c.recordInvalidation(removed)
	return removed
}

func (c *cache[V]) InvalidateByPattern(pattern string) (int, error) {
	g, err := compilePattern(pattern)
	if err != nil {
		return 0, err
	}
	if c.closed.Load() {
		return 0, nil
	}
	removed := 0
	for _, s := range c.shards {
		removed += s.removeMatching(g.MatchString)
	}
	c.recordInvalidation(removed)
	return removed, nil
}

func (c *cache[V]) recordInvalidation(n int) {
	if n == 0 || !c.env.counting {
		return
	}
	c.invalidations.Add(int64(n))
	c.env.metrics.Invalidate(n)
}

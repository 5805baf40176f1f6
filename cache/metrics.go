package cache

import "time"

// NoopMetrics is a Metrics implementation that does nothing.
// It is the default when no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                      {}
func (NoopMetrics) Miss()                     {}
func (NoopMetrics) Evict(EvictReason)         {}
func (NoopMetrics) Invalidate(int)            {}
func (NoopMetrics) Size(int)                  {}
func (NoopMetrics) Load(time.Duration, error) {}
func (NoopMetrics) Refresh(error)             {}

var _ Metrics = NoopMetrics{}

// Stats is a point-in-time snapshot of cache counters. Counters only grow
// until Clear resets them. With Options.DisableMetrics all counters stay 0;
// Size, Capacity and InFlight are always reported.
type Stats struct {
	Hits    int64
	Misses  int64
	HitRate float64 // Hits / (Hits + Misses), 0 without lookups

	Evictions     int64 // capacity-driven only
	Expirations   int64 // expired entries purged on access or by the sweeper
	Invalidations int64 // entries removed by tag or pattern

	Size     int
	Capacity int

	Loads       int64
	LoadErrors  int64
	AvgLoadTime time.Duration

	Refreshes        int64
	RefreshErrors    int64
	RefreshesSkipped int64

	InFlight int // keys with a running fill or refresh
}

// Requests returns Hits + Misses.
func (s Stats) Requests() int64 { return s.Hits + s.Misses }

// Occupancy returns Size / Capacity.
func (s Stats) Occupancy() float64 {
	if s.Capacity <= 0 {
		return 0
	}
	return float64(s.Size) / float64(s.Capacity)
}

func (c *cache[V]) Metrics() Stats {
	var st Stats
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evicts.Load()
		st.Expirations += s.expired.Load()
	}
	if n := st.Hits + st.Misses; n > 0 {
		st.HitRate = float64(st.Hits) / float64(n)
	}
	st.Invalidations = c.invalidations.Load()
	st.Size = int(c.env.size.Load())
	st.Capacity = c.opt.MaxSize

	st.Loads = c.loads.Load()
	st.LoadErrors = c.loadErrors.Load()
	if st.Loads > 0 {
		st.AvgLoadTime = time.Duration(c.loadNanos.Load() / st.Loads)
	}
	st.Refreshes = c.refreshes.Load()
	st.RefreshErrors = c.refreshErrors.Load()
	st.RefreshesSkipped = c.refreshSkips.Load()
	st.InFlight = c.sf.InFlight()
	return st
}

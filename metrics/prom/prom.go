// Package prom exports cache events and health to Prometheus.
package prom

import (
	"time"

	"github.com/IvanBrykalov/swrcache/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	evicts        *prometheus.CounterVec
	invalidations prometheus.Counter
	size          prometheus.Gauge
	loads         *prometheus.HistogramVec
	refreshes     *prometheus.CounterVec
}

// New constructs a Prometheus metrics adapter.
//   - reg: registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub: Prometheus namespace and subsystem
//   - constLabels: static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Entries dropped by the cache, by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "invalidations_total",
			Help:        "Entries removed by tag or pattern invalidation",
			ConstLabels: constLabels,
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
		loads: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "load_duration_seconds",
				Help:        "Factory and producer latency, by outcome",
				Buckets:     prometheus.ExponentialBuckets(0.0005, 4, 10),
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "refreshes_total",
				Help:        "Background revalidations, by outcome",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.invalidations, a.size, a.loads, a.refreshes)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Invalidate adds n removed entries.
func (a *Adapter) Invalidate(n int) { a.invalidations.Add(float64(n)) }

// Size updates the resident entries gauge.
func (a *Adapter) Size(entries int) { a.size.Set(float64(entries)) }

// Load observes a factory or producer call.
func (a *Adapter) Load(d time.Duration, err error) {
	a.loads.WithLabelValues(result(err)).Observe(d.Seconds())
}

// Refresh counts a finished background revalidation.
func (a *Adapter) Refresh(err error) {
	a.refreshes.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)

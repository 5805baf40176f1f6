package prom

import (
	"github.com/IvanBrykalov/swrcache/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// HealthChecker is the part of cache.Cache the collector needs.
type HealthChecker interface {
	HealthCheck() cache.Health
}

// HealthCollector evaluates HealthCheck on every scrape.
type HealthCollector struct {
	hc        HealthChecker
	status    *prometheus.Desc
	hitRate   *prometheus.Desc
	occupancy *prometheus.Desc
	inFlight  *prometheus.Desc
}

// NewHealthCollector returns a collector exporting the health verdict
// (0 healthy, 1 degraded, 2 unhealthy), hit rate, occupancy and in-flight
// loads of hc. Register it with a prometheus.Registerer.
func NewHealthCollector(hc HealthChecker, ns, sub string, constLabels prometheus.Labels) *HealthCollector {
	name := func(n string) string { return prometheus.BuildFQName(ns, sub, n) }
	return &HealthCollector{
		hc: hc,
		status: prometheus.NewDesc(name("health_status"),
			"Cache health: 0 healthy, 1 degraded, 2 unhealthy", nil, constLabels),
		hitRate: prometheus.NewDesc(name("hit_ratio"),
			"Hits / (hits + misses) since the last Clear", nil, constLabels),
		occupancy: prometheus.NewDesc(name("occupancy_ratio"),
			"Resident entries / capacity", nil, constLabels),
		inFlight: prometheus.NewDesc(name("in_flight_loads"),
			"Keys with a running fill or refresh", nil, constLabels),
	}
}

// Describe implements prometheus.Collector.
func (c *HealthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.status
	ch <- c.hitRate
	ch <- c.occupancy
	ch <- c.inFlight
}

// Collect implements prometheus.Collector.
func (c *HealthCollector) Collect(ch chan<- prometheus.Metric) {
	h := c.hc.HealthCheck()
	ch <- prometheus.MustNewConstMetric(c.status, prometheus.GaugeValue, float64(h.Status))
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, h.Stats.HitRate)
	ch <- prometheus.MustNewConstMetric(c.occupancy, prometheus.GaugeValue, h.Stats.Occupancy())
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(h.Stats.InFlight))
}

var _ prometheus.Collector = (*HealthCollector)(nil)

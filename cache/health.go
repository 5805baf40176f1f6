package cache

import "fmt"

// HealthStatus is the verdict of HealthCheck.
type HealthStatus int

const (
	StatusHealthy HealthStatus = iota
	StatusDegraded
	StatusUnhealthy
)

func (s HealthStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	default:
		return "unhealthy"
	}
}

// Health is advisory: callers decide whether to alert or throttle.
type Health struct {
	Status HealthStatus
	Stats  Stats
	Issues []string
}

// HealthCheck applies Options.Health to a Metrics snapshot:
//   - occupancy above MaxOccupancy => unhealthy
//   - a closed cache => unhealthy
//   - hit rate below MinHitRate after MinRequests lookups => degraded
func (c *cache[V]) HealthCheck() Health {
	st := c.Metrics()
	th := c.opt.Health
	h := Health{Status: StatusHealthy, Stats: st}

	if c.closed.Load() {
		h.worsen(StatusUnhealthy, "cache is closed")
	}
	if occ := st.Occupancy(); occ > th.MaxOccupancy {
		h.worsen(StatusUnhealthy, fmt.Sprintf("occupancy %.1f%% exceeds %.1f%% (%d/%d entries)",
			occ*100, th.MaxOccupancy*100, st.Size, st.Capacity))
	}
	if !c.opt.DisableMetrics && st.Requests() >= th.MinRequests && st.Requests() > 0 && st.HitRate < th.MinHitRate {
		h.worsen(StatusDegraded, fmt.Sprintf("hit rate %.1f%% below %.1f%% over %d lookups",
			st.HitRate*100, th.MinHitRate*100, st.Requests()))
	}
	return h
}

func (h *Health) worsen(s HealthStatus, issue string) {
	if s > h.Status {
		h.Status = s
	}
	h.Issues = append(h.Issues, issue)
}

package allocation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Allocation results.
const (
	ResultSuccess      = "success"
	ResultPrecondition = "precondition"
	ResultThreshold    = "threshold"
	ResultConditions   = "conditions"
)

// Metrics holds the orchestrator's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	allocations  *prometheus.CounterVec
	rolledBack   *prometheus.CounterVec
	released     *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	conditions   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		allocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fleetalloc",
				Name:      "allocation_total",
				Help:      "Total number of allocate calls by result",
			},
			[]string{"result"},
		),
		rolledBack: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fleetalloc",
				Name:      "instances_rolled_back_total",
				Help:      "Total number of instances rolled back by reason",
			},
			[]string{"reason"},
		),
		released: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fleetalloc",
				Name:      "release_resources_total",
				Help:      "Total number of resources released by kind and result",
			},
			[]string{"resource", "result"},
		),
		pollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fleetalloc",
				Name:      "poll_duration_seconds",
				Help:      "Duration of bounded status polls in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5min
			},
			[]string{"kind", "result"},
		),
		conditions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fleetalloc",
				Name:      "conditions_total",
				Help:      "Total number of recorded conditions by severity",
			},
			[]string{"severity"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.allocations, m.rolledBack, m.released, m.pollDuration, m.conditions)
	}
	return m
}

func (m *Metrics) recordAllocation(result string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(result).Inc()
}

func (m *Metrics) recordRollback(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.rolledBack.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) recordRelease(resource string, err error) {
	if m == nil {
		return
	}
	result := "deleted"
	if err != nil {
		result = "error"
	}
	m.released.WithLabelValues(resource, result).Inc()
}

func (m *Metrics) recordLeak(resource string) {
	if m == nil {
		return
	}
	m.released.WithLabelValues(resource, "leaked").Inc()
}

func (m *Metrics) recordPoll(kind, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.pollDuration.WithLabelValues(kind, result).Observe(d.Seconds())
}

func (m *Metrics) recordCondition(c Condition) {
	if m == nil {
		return
	}
	m.conditions.WithLabelValues(string(c.Severity)).Inc()
}

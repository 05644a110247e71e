// Package obsmetrics wires AgentPlatform's instrumentation points into
// Prometheus collectors, registered against a caller-supplied registry so
// cmd/agentplatformd controls whether/where /metrics is exposed.
package obsmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements platform.Metrics (duck-typed, no import of
// internal/platform needed here).
type Metrics struct {
	tasksSubmitted   prometheus.Counter
	tasksCompleted   *prometheus.CounterVec
	taskDuration     prometheus.Histogram
	resultPoolSize   prometheus.Gauge
	registeredAgents prometheus.Gauge
}

// New builds the collector set and registers it against reg. Passing a
// fresh prometheus.NewRegistry() keeps tests hermetic; cmd/agentplatformd
// also passes its own prometheus.NewRegistry() and serves it on /metrics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentplatform",
			Name:      "tasks_submitted_total",
			Help:      "Number of reply tasks submitted to the worker pool.",
		}),
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentplatform",
			Name:      "tasks_completed_total",
			Help:      "Number of reply tasks completed, partitioned by outcome.",
		}, []string{"outcome"}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agentplatform",
			Name:      "task_duration_seconds",
			Help:      "Wall-clock duration of an agent Reply call, from submit to result.",
			Buckets:   prometheus.DefBuckets,
		}),
		resultPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentplatform",
			Name:      "result_pool_size",
			Help:      "Current number of entries held in the result pool.",
		}),
		registeredAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentplatform",
			Name:      "registered_agents",
			Help:      "Current number of live agent instances on this server.",
		}),
	}
	reg.MustRegister(
		m.tasksSubmitted,
		m.tasksCompleted,
		m.taskDuration,
		m.resultPoolSize,
		m.registeredAgents,
	)
	return m
}

// TaskSubmitted records a reply task handed off to a worker goroutine.
func (m *Metrics) TaskSubmitted() {
	m.tasksSubmitted.Inc()
}

// TaskCompleted records a worker goroutine finishing, successfully or not,
// and its duration.
func (m *Metrics) TaskCompleted(d time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.tasksCompleted.WithLabelValues(outcome).Inc()
	m.taskDuration.Observe(d.Seconds())
}

// ObserveResultPoolSize updates the result pool size gauge.
func (m *Metrics) ObserveResultPoolSize(n int) {
	m.resultPoolSize.Set(float64(n))
}

// ObserveAgentCount updates the registered agent count gauge.
func (m *Metrics) ObserveAgentCount(n int) {
	m.registeredAgents.Set(float64(n))
}

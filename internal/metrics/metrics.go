// Package metrics exposes the node agent's Prometheus counters and gauges,
// trimmed from the teacher's job-queue metric set down to the handful of
// series this agent actually produces: job throughput, duration, and
// current concurrency. Grounded on the teacher's metrics.go.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rhizos_node_jobs_accepted_total",
			Help: "Total number of jobs accepted from the orchestrator",
		},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rhizos_node_jobs_completed_total",
			Help: "Total number of jobs finished, by outcome",
		},
		[]string{"outcome"},
	)

	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rhizos_node_job_duration_seconds",
			Help:    "Time taken to run a job to completion",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34m
		},
	)

	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rhizos_node_jobs_active",
			Help: "Number of jobs currently running on this node",
		},
	)

	EarningsCents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rhizos_node_earnings_cents_total",
			Help: "Total earnings recorded, by currency",
		},
		[]string{"currency"},
	)

	OrchestratorConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rhizos_node_orchestrator_connected",
			Help: "1 if the orchestrator session is currently connected, 0 otherwise",
		},
	)

	HostCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rhizos_node_host_cpu_percent",
			Help: "Most recently sampled host CPU utilization percentage",
		},
	)

	HostMemoryPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rhizos_node_host_memory_percent",
			Help: "Most recently sampled host memory utilization percentage",
		},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rhizos_node_goroutines",
			Help: "Current number of goroutines in the agent process",
		},
	)
)

// Handler returns the Prometheus scrape handler, mounted under the local
// status API per §6.4.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordJobAccepted increments the accepted-job counter.
func RecordJobAccepted() {
	JobsAccepted.Inc()
}

// RecordJobCompletion records a finished job's outcome and duration.
func RecordJobCompletion(success bool, durationSeconds float64) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	JobsCompleted.WithLabelValues(outcome).Inc()
	JobDuration.Observe(durationSeconds)
}

// SetJobsActive reports the current running-job count.
func SetJobsActive(count int) {
	JobsActive.Set(float64(count))
}

// RecordEarnings adds to the running earnings total for a currency.
func RecordEarnings(currency string, cents int64) {
	if currency == "" || cents <= 0 {
		return
	}
	EarningsCents.WithLabelValues(currency).Add(float64(cents))
}

// SetOrchestratorConnected reports the session's connection status.
func SetOrchestratorConnected(connected bool) {
	if connected {
		OrchestratorConnected.Set(1)
		return
	}
	OrchestratorConnected.Set(0)
}

// RecordHostSample reports a point-in-time host resource sample, taken by
// the periodic resource monitor.
func RecordHostSample(cpuPercent, memPercent float64, goroutines int) {
	HostCPUPercent.Set(cpuPercent)
	HostMemoryPercent.Set(memPercent)
	GoRoutines.Set(float64(goroutines))
}

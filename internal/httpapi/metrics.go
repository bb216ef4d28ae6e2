package httpapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks request, run, and tool-execution counters for the
// serve command's /metrics endpoint.
type Metrics struct {
	// RunCounter counts /v1/run requests. Labels: status (success|error).
	RunCounter *prometheus.CounterVec

	// RunDuration measures end-to-end agent run latency in seconds.
	RunDuration prometheus.Histogram

	// ToolExecutionCounter counts tool invocations made during a run.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec
}

// NewMetrics registers and returns the serve command's metric
// collectors against the default Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		RunCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agentctl_runs_total",
			Help: "Total number of agent runs served over HTTP.",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentctl_run_duration_seconds",
			Help:    "Agent run latency in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		ToolExecutionCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agentctl_tool_executions_total",
			Help: "Total number of tool executions, by tool and outcome.",
		}, []string{"tool_name", "status"}),
	}
}

// ObserveRun records one completed run's duration and outcome.
func (m *Metrics) ObserveRun(d time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RunCounter.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
}

package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "socialbot",
			Subsystem: "runner",
			Name:      "backend_calls_total",
			Help:      "Total generation backend calls",
		},
		[]string{"status"}, // "ok", "error"
	)

	backendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "socialbot",
			Subsystem: "runner",
			Name:      "backend_duration_seconds",
			Help:      "Duration of generation backend calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
	)

	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "socialbot",
			Subsystem: "runner",
			Name:      "tool_calls_total",
			Help:      "Total tool calls requested by the backend",
		},
		[]string{"tool", "status"}, // "ok", "failed", "not_found", "cancelled"
	)

	toolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "socialbot",
			Subsystem: "runner",
			Name:      "tool_duration_seconds",
			Help:      "Duration of tool calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	iterationLimitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "socialbot",
			Subsystem: "runner",
			Name:      "iteration_limit_total",
			Help:      "Role executions stopped by the iteration cap",
		},
		[]string{"role"},
	)
)

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "socialbot",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by terminal result",
		},
		[]string{"result"}, // "published", "rejected", "failed"
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "socialbot",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"stage"},
	)

	criticScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "socialbot",
			Subsystem: "pipeline",
			Name:      "critic_score",
			Help:      "Scores returned by the critic",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
	)

	activeRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "socialbot",
			Subsystem: "pipeline",
			Name:      "runs_active",
			Help:      "Pipeline runs currently executing",
		},
	)
)

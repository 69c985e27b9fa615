// Package telemetry holds the Prometheus instruments for the generation
// pipeline. Metrics register themselves on the default registry and are
// exposed through the /metrics endpoint.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "brainrot"

var (
	// TasksSubmitted counts accepted generation requests by variant.
	TasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_submitted_total",
		Help:      "Generation tasks accepted, by variant.",
	}, []string{"variant"})

	// TasksProcessed counts finished tasks by variant and terminal status.
	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_processed_total",
		Help:      "Generation tasks finished, by variant and terminal status.",
	}, []string{"variant", "status"})

	// CompositionsInFlight tracks renders currently holding a concurrency slot.
	CompositionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "compositions_in_flight",
		Help:      "Renders currently holding a concurrency slot.",
	})

	// CompositionDuration observes wall time of the full pipeline per task.
	CompositionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "composition_duration_seconds",
		Help:      "Wall time from task start to terminal status.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"variant"})

	// CompositionTier counts which render tier actually produced the output.
	CompositionTier = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "composition_tier_total",
		Help:      "Outputs produced, by render tier (full, emergency, placeholder).",
	}, []string{"tier"})

	// CleanupDeletions counts files removed by the retention sweeper.
	CleanupDeletions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_deletions_total",
		Help:      "Files and directories removed by the cleanup sweeper.",
	})
)

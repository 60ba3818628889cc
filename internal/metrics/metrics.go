// Package metrics exposes Prometheus collectors for the research loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider metrics
	ProviderFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evidence_provider_fetch_duration_seconds",
			Help:    "Provider fetch task duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 15, 20},
		},
		[]string{"provider"},
	)

	ProviderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_provider_failures_total",
			Help: "Total number of provider fetch failures",
		},
		[]string{"provider", "reason"},
	)

	SourcesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_sources_fetched_total",
			Help: "Total number of sources accepted after deduplication",
		},
		[]string{"provider"},
	)

	DuplicatesFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evidence_duplicates_filtered_total",
			Help: "Total number of already-seen sources dropped across rounds",
		},
	)

	LowYieldRounds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evidence_low_yield_rounds_total",
			Help: "Rounds that retrieved fewer than half of the requested sources",
		},
	)

	// Session metrics
	RoundsPerSession = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evidence_rounds_per_session",
			Help:    "Number of fetch rounds executed per research session",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	StopConditions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_stop_conditions_total",
			Help: "Stopping conditions that fired when a session stopped",
		},
		[]string{"condition"},
	)

	SelectedTokens = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evidence_selected_tokens",
			Help:    "Estimated tokens of the selected sources per session",
			Buckets: []float64{1000, 2000, 4000, 8000, 12000, 16800},
		},
	)

	// Completion metrics
	CompletionFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_completion_fallbacks_total",
			Help: "Heuristic fallbacks taken after a failed or unparseable completion",
		},
		[]string{"component"},
	)
)

// Write dumps the default registry to path in the Prometheus text format,
// for pickup by a node-exporter textfile collector.
func Write(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secsync_fetch_attempts_total",
			Help: "Remote fetch attempts by kind and result",
		},
		[]string{"kind", "result"},
	)

	FetchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secsync_fetch_outcomes_total",
			Help: "Terminal fetch outcomes by kind",
		},
		[]string{"kind", "outcome"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secsync_fetch_duration_seconds",
			Help:    "Duration of a full fetch including retries",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secsync_cache_lookups_total",
			Help: "Cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)

	PlaceholderRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secsync_placeholder_records_total",
			Help: "Records replaced by error placeholders during normalization",
		},
		[]string{"kind"},
	)

	CollectionSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "secsync_collection_size",
			Help: "Records in the last published collection",
		},
		[]string{"kind"},
	)

	Subscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "secsync_subscribers",
			Help: "Active subscribers per channel",
		},
		[]string{"channel"},
	)

	DiagnosticsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secsync_diagnostics_dropped_total",
			Help: "Diagnostics events dropped because the buffer was full",
		},
	)

	DiagnosticsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secsync_diagnostics_written_total",
			Help: "Diagnostics events written to the sink",
		},
	)
)

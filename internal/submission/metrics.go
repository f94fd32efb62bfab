package submission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts coordinator operations.
	// Labels: op, result (ok, or the error kind)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "projecthunt",
			Subsystem: "submission",
			Name:      "operations_total",
			Help:      "Total number of submission operations by result",
		},
		[]string{"op", "result"},
	)

	// SimilarHits tracks how many near-duplicates a similarity check reports.
	SimilarHits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "projecthunt",
			Subsystem: "submission",
			Name:      "similar_hits",
			Help:      "Number of similar entries reported per similarity check",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
	)

	// SearchDuration tracks hybrid search latency.
	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "projecthunt",
			Subsystem: "submission",
			Name:      "search_duration_seconds",
			Help:      "Duration of hybrid searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

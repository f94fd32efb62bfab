package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts index calls.
	// Labels: index (vector, lexical), op (add, search, delete), result (success, error, timeout)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "projecthunt",
			Subsystem: "index",
			Name:      "operations_total",
			Help:      "Total number of index operations",
		},
		[]string{"index", "op", "result"},
	)

	// OperationDuration tracks index call latency.
	// Labels: index, op
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "projecthunt",
			Subsystem: "index",
			Name:      "operation_duration_seconds",
			Help:      "Duration of index operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"index", "op"},
	)
)

package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts store operations.
	// Labels: provider (chromem, qdrant), op, result (success, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsrag",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations",
		},
		[]string{"provider", "op", "result"},
	)

	// OperationDuration tracks how long store operations take.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newsrag",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "op"},
	)

	// Documents is the number of rows in a collection after the last write.
	Documents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "newsrag",
			Subsystem: "vectorstore",
			Name:      "documents",
			Help:      "Number of documents stored in the collection",
		},
		[]string{"provider", "collection"},
	)
)

func recordOperation(provider, op string, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(provider, op, result).Inc()
	OperationDuration.WithLabelValues(provider, op).Observe(d.Seconds())
}

func recordDocuments(provider, collection string, n int) {
	Documents.WithLabelValues(provider, collection).Set(float64(n))
}

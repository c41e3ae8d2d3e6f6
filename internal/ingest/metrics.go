package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesTotal counts pages processed by ingestion runs.
	// Labels: result (success, error)
	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsrag",
			Subsystem: "ingest",
			Name:      "pages_total",
			Help:      "Total number of pages processed by ingestion",
		},
		[]string{"result"},
	)

	// DocumentsTotal counts documents produced by ingestion.
	// Labels: type (text, image)
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsrag",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of documents produced by ingestion",
		},
		[]string{"type"},
	)
)

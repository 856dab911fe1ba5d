package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion and index Prometheus metrics.
var (
	DocumentsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Documents run through parse and chunk",
		},
		[]string{"format", "status"},
	)

	ChunksProducedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_produced_total",
			Help:      "Chunks produced by the splitter",
		},
		[]string{"format"},
	)

	IndexUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_updates_total",
			Help:      "Vector index update calls by outcome",
		},
		[]string{"status"},
	)

	IndexUpdateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_update_duration_seconds",
			Help:      "Vector index update duration including embedding and save",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	IndexChunksAddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_chunks_added_total",
			Help:      "Chunks merged into the vector index",
		},
	)

	IndexEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Entries in the vector index after the last successful save",
		},
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers ingestion metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(DocumentsProcessedTotal)
	prometheus.MustRegister(ChunksProducedTotal)
	prometheus.MustRegister(IndexUpdatesTotal)
	prometheus.MustRegister(IndexUpdateDuration)
	prometheus.MustRegister(IndexChunksAddedTotal)
	prometheus.MustRegister(IndexEntries)
	ingestMetricsRegistered = true
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Cache and ingestion Prometheus metrics.
var (
	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fusedex",
			Name:      "result_cache_total",
			Help:      "Fused result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	IngestJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fusedex",
			Name:      "ingest_jobs_total",
			Help:      "Total ingestion jobs by terminal status",
		},
		[]string{"status"},
	)

	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fusedex",
			Name:      "ingest_documents_total",
			Help:      "Total documents written by the ingestion pipeline",
		},
		[]string{"status"}, // "ok" / "failed"
	)

	IngestRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fusedex",
			Name:      "ingest_batch_retries_total",
			Help:      "Total batch write retries",
		},
	)

	IngestQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fusedex",
			Name:      "ingest_queue_depth",
			Help:      "Jobs accepted but not yet finished",
		},
	)
)

var pipelineRegistered bool

// RegisterPipelineMetrics registers cache and ingestion metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineRegistered {
		return
	}
	prometheus.MustRegister(CacheTotal)
	prometheus.MustRegister(IngestJobsTotal)
	prometheus.MustRegister(IngestDocumentsTotal)
	prometheus.MustRegister(IngestRetriesTotal)
	prometheus.MustRegister(IngestQueueDepth)
	pipelineRegistered = true
}

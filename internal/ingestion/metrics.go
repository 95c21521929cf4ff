package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcome label values.
const (
	outcomeOK           = "ok"
	outcomeExtractError = "extract_error"
	outcomeError        = "error"
)

// pipelineMetrics holds the Prometheus metrics owned by one pipeline.
type pipelineMetrics struct {
	// runs counts finished runs by outcome.
	runs *prometheus.CounterVec

	// batches counts committed batches.
	batches prometheus.Counter

	// records counts committed entries.
	records prometheus.Counter

	// encodeSeconds records the latency of each encode attempt.
	encodeSeconds prometheus.Histogram

	// encodeRetries counts encode attempts that failed and were retried.
	encodeRetries prometheus.Counter

	// oversized counts descriptions estimated above the encoder input window.
	oversized prometheus.Counter

	// lastRecords is the corpus size after the last successful run.
	lastRecords prometheus.Gauge
}

func newPipelineMetrics(reg prometheus.Registerer) *pipelineMetrics {
	factory := promauto.With(reg)

	return &pipelineMetrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ekb",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs, partitioned by outcome.",
		}, []string{"outcome"}),

		batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ekb",
			Subsystem: "pipeline",
			Name:      "batches_total",
			Help:      "Total number of batches encoded and committed.",
		}),

		records: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ekb",
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Total number of corpus entries committed.",
		}),

		encodeSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ekb",
			Subsystem: "pipeline",
			Name:      "encode_duration_seconds",
			Help:      "Latency of encoder calls, one observation per attempt.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		encodeRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ekb",
			Subsystem: "pipeline",
			Name:      "encode_retries_total",
			Help:      "Total number of failed encoder calls that were retried.",
		}),

		oversized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ekb",
			Subsystem: "pipeline",
			Name:      "oversized_descriptions_total",
			Help:      "Total number of descriptions estimated to exceed the encoder input window.",
		}),

		lastRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ekb",
			Subsystem: "pipeline",
			Name:      "corpus_records",
			Help:      "Number of entries in the corpus after the last successful run.",
		}),
	}
}

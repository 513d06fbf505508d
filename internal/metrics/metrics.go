// Package metrics exposes pipeline counters in the Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PipelineMetrics = (*Pipeline)(nil)

const namespace = "compliance_sync"

// Pipeline records document and run outcomes on its own registry.
type Pipeline struct {
	registry *prometheus.Registry

	documents   *prometheus.CounterVec
	docDuration *prometheus.HistogramVec
	synthetic   *prometheus.CounterVec
	retries     prometheus.Counter
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	lastRun     prometheus.Gauge
}

// NewPipeline creates the collectors and registers them, plus the Go
// runtime and process collectors.
func NewPipeline() *Pipeline {
	m := &Pipeline{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents that left the pipeline, by outcome and type.",
		}, []string{"outcome", "document_type"}),
		docDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_duration_seconds",
			Help:      "Time spent processing one document, retries included.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),
		synthetic: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthetic_results_total",
			Help:      "Results fabricated because a collaborator was unavailable, by stage.",
		}, []string{"stage"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Pipeline retry attempts.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Finished sync runs, by status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Duration of sync runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sync_run_timestamp_seconds",
			Help:      "Unix time the last sync run finished.",
		}),
	}

	m.registry.MustRegister(
		m.documents, m.docDuration, m.synthetic, m.retries, m.runs, m.runDuration, m.lastRun,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Pipeline) DocumentFinished(outcome driven.DocumentOutcome, docType domain.DocumentType, elapsed time.Duration) {
	m.documents.WithLabelValues(string(outcome), string(docType)).Inc()
	m.docDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
}

func (m *Pipeline) SyntheticResult(stage domain.Stage) {
	m.synthetic.WithLabelValues(string(stage)).Inc()
}

func (m *Pipeline) RetryAttempted() {
	m.retries.Inc()
}

func (m *Pipeline) RunFinished(status domain.SyncJobStatus, elapsed time.Duration) {
	m.runs.WithLabelValues(string(status)).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.lastRun.SetToCurrentTime()
}

// Handler serves the registry.
func (m *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Pipeline) Registry() *prometheus.Registry {
	return m.registry
}

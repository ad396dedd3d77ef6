// Package metrics exposes ingestion counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hoiarr/hoiarr/internal/domain/incident"
)

const namespace = "hoiarr"

// Ingest records pipeline outcomes. It satisfies incident.Recorder.
type Ingest struct {
	registry *prometheus.Registry

	batches      prometheus.Counter
	failures     *prometheus.CounterVec
	rowsRead     prometheus.Counter
	records      prometheus.Counter
	dropped      *prometheus.CounterVec
	unclassified prometheus.Counter
	duration     prometheus.Histogram
	activeSize   prometheus.Gauge
	activeSpan   prometheus.Gauge
}

var _ incident.Recorder = (*Ingest)(nil)

// NewIngest registers the ingestion metrics, together with the Go runtime
// and process collectors, on a fresh registry.
func NewIngest() *Ingest {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Ingest{
		registry: reg,
		batches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches processed successfully",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_failures_total",
			Help:      "Batches rejected, by reason",
		}, []string{"reason"}),
		rowsRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Raw rows read from uploaded tables",
		}),
		records: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Canonical records produced",
		}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows dropped during ingestion, by reason",
		}, []string{"reason"}),
		unclassified: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_unclassified_total",
			Help:      "Records whose severity did not map to an impact level",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time to process one batch",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		activeSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_batch_records",
			Help:      "Records in the most recently processed batch",
		}),
		activeSpan: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_batch_span_months",
			Help:      "Month span of the most recently processed batch",
		}),
	}
}

func (m *Ingest) ObserveBatch(b *incident.Batch, drops map[string]int, elapsed time.Duration) {
	m.batches.Inc()
	m.rowsRead.Add(float64(b.RowsRead))
	m.records.Add(float64(b.Len()))
	m.unclassified.Add(float64(b.Unclassified))
	for reason, n := range drops {
		m.dropped.WithLabelValues(reason).Add(float64(n))
	}
	m.duration.Observe(elapsed.Seconds())
	m.activeSize.Set(float64(b.Len()))
	m.activeSpan.Set(float64(b.SpanMonths))
}

func (m *Ingest) ObserveFailure(reason string) {
	m.failures.WithLabelValues(reason).Inc()
}

// Registry returns the registry the metrics are registered on.
func (m *Ingest) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Ingest) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

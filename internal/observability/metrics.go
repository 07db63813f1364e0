package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. It satisfies the
// upload recorder used by the ingest package.
type Metrics struct {
	registry *prometheus.Registry

	uploads        *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	rowsRead       *prometheus.CounterVec
	inserted       *prometheus.CounterVec
	queries        *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qbench",
			Name:      "uploads_total",
			Help:      "Uploads processed, by kind and summary status.",
		}, []string{"kind", "status"}),
		uploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qbench",
			Name:      "upload_duration_seconds",
			Help:      "Time spent processing an upload.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		rowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qbench",
			Name:      "upload_rows_total",
			Help:      "Data rows read from uploaded files.",
		}, []string{"kind"}),
		inserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qbench",
			Name:      "inserted_entities_total",
			Help:      "Entities created by uploads.",
		}, []string{"entity"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qbench",
			Name:      "queries_total",
			Help:      "Query-builder runs, by builder and outcome.",
		}, []string{"builder", "outcome"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qbench",
			Name:      "query_duration_seconds",
			Help:      "Query-builder execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"builder"}),
	}
	reg.MustRegister(
		m.uploads, m.uploadDuration, m.rowsRead, m.inserted, m.queries, m.queryDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveUpload records a finished upload.
func (m *Metrics) ObserveUpload(kind, status string, rows int, elapsed time.Duration) {
	m.uploads.WithLabelValues(kind, status).Inc()
	m.uploadDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	m.rowsRead.WithLabelValues(kind).Add(float64(rows))
}

// AddInserted counts entities created by an upload.
func (m *Metrics) AddInserted(entity string, n int) {
	if n <= 0 {
		return
	}
	m.inserted.WithLabelValues(entity).Add(float64(n))
}

// ObserveQuery records a query-builder run. outcome is "ok" or "error".
func (m *Metrics) ObserveQuery(builder, outcome string, elapsed time.Duration) {
	m.queries.WithLabelValues(builder, outcome).Inc()
	m.queryDuration.WithLabelValues(builder).Observe(elapsed.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package metrics provides Prometheus collectors for the clipboard daemon.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pastev"

// Metrics contains the Prometheus metrics for polling, enrichment, provider
// calls, queries, and retention.
type Metrics struct {
	registry *prometheus.Registry

	pollsTotal *prometheus.CounterVec

	enrichStepsTotal   *prometheus.CounterVec
	enrichStepDuration *prometheus.HistogramVec

	providerCallsTotal   *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec

	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	queryResults  *prometheus.HistogramVec

	retentionRunsTotal    *prometheus.CounterVec
	retentionDeletedTotal prometheus.Counter
}

// New creates a registry with the Go and process collectors plus the
// application metrics.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return NewWithRegistry(registry)
}

// NewWithRegistry creates and registers the application metrics on registry.
func NewWithRegistry(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clipboard_polls_total",
			Help:      "Clipboard poll ticks by result",
		},
		[]string{"result"}, // unchanged, touched, inserted, empty, too_large, read_error, store_error
	)

	m.enrichStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrich_steps_total",
			Help:      "Enrichment steps by step and status",
		},
		[]string{"step", "status"},
	)

	m.enrichStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrich_step_duration_seconds",
			Help:      "Time taken by enrichment steps",
			// 1ms to ~65s; OCR and AI calls sit at the top end.
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 17),
		},
		[]string{"step"},
	)

	m.providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_provider_calls_total",
			Help:      "Calls to the AI provider by endpoint and status",
		},
		[]string{"endpoint", "status"}, // status: ok, error, timeout
	)

	m.providerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_provider_call_duration_seconds",
			Help:      "Latency of AI provider calls",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"endpoint"},
	)

	m.queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "History queries served by mode",
		},
		[]string{"mode"},
	)

	m.queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Time taken to serve history queries",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"mode"},
	)

	m.queryResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_results",
			Help:      "Number of entries returned per query",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200},
		},
		[]string{"mode"},
	)

	m.retentionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_runs_total",
			Help:      "Retention sweeps by status",
		},
		[]string{"status"},
	)

	m.retentionDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_deleted_entries_total",
			Help:      "Entries deleted by retention sweeps",
		},
	)
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.pollsTotal.Describe(ch)
	m.enrichStepsTotal.Describe(ch)
	m.enrichStepDuration.Describe(ch)
	m.providerCallsTotal.Describe(ch)
	m.providerCallDuration.Describe(ch)
	m.queriesTotal.Describe(ch)
	m.queryDuration.Describe(ch)
	m.queryResults.Describe(ch)
	m.retentionRunsTotal.Describe(ch)
	m.retentionDeletedTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.pollsTotal.Collect(ch)
	m.enrichStepsTotal.Collect(ch)
	m.enrichStepDuration.Collect(ch)
	m.providerCallsTotal.Collect(ch)
	m.providerCallDuration.Collect(ch)
	m.queriesTotal.Collect(ch)
	m.queryDuration.Collect(ch)
	m.queryResults.Collect(ch)
	m.retentionRunsTotal.Collect(ch)
	m.retentionDeletedTotal.Collect(ch)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// EventStream is the view of the SSE manager the stream gauges read.
type EventStream interface {
	ClientCount() int
	Dropped() uint64
}

// ObserveEventStream registers gauges that read the stream's client count
// and dropped deliveries at scrape time.
func (m *Metrics) ObserveEventStream(s EventStream) error {
	clients := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "clients",
		Help:      "Connected event stream clients",
	}, func() float64 { return float64(s.ClientCount()) })
	dropped := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Event deliveries lost to a full queue or a slow client",
	}, func() float64 { return float64(s.Dropped()) })

	if err := m.registry.Register(clients); err != nil {
		return err
	}
	return m.registry.Register(dropped)
}

// RecordPoll counts one poller tick.
func (m *Metrics) RecordPoll(result string) {
	m.pollsTotal.WithLabelValues(result).Inc()
}

// RecordEnrichStep records the outcome and duration of an enrichment step.
func (m *Metrics) RecordEnrichStep(step, status string, d time.Duration) {
	m.enrichStepsTotal.WithLabelValues(step, status).Inc()
	m.enrichStepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// RecordProviderCall records one AI provider request.
func (m *Metrics) RecordProviderCall(endpoint, status string, d time.Duration) {
	m.providerCallsTotal.WithLabelValues(endpoint, status).Inc()
	m.providerCallDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordQuery records a served query.
func (m *Metrics) RecordQuery(mode string, d time.Duration, results int) {
	m.queriesTotal.WithLabelValues(mode).Inc()
	m.queryDuration.WithLabelValues(mode).Observe(d.Seconds())
	m.queryResults.WithLabelValues(mode).Observe(float64(results))
}

// RecordRetention records one retention sweep.
func (m *Metrics) RecordRetention(deleted int64, err error) {
	if err != nil {
		m.retentionRunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.retentionRunsTotal.WithLabelValues("success").Inc()
	m.retentionDeletedTotal.Add(float64(deleted))
}

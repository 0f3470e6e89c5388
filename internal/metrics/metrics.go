// Package metrics holds the prometheus collectors pluginwatch exports at
// /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pluginwatch"

// Metrics is the set of service collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	ingestEvents   *prometheus.CounterVec
	ingestRequests *prometheus.CounterVec
	queryDuration  *prometheus.SummaryVec
	cacheRequests  *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.ingestEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_events_total",
		Help:      "Telemetry events seen by the ingest endpoint, by result",
	}, []string{"result"})
	m.ingestRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_requests_total",
		Help:      "Ingest requests by HTTP status",
	}, []string{"status"})
	m.queryDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  namespace,
		Name:       "query_duration_seconds",
		Help:       "Time spent loading events for a dashboard query",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, []string{"query"})
	m.cacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_requests_total",
		Help:      "Response cache lookups by result",
	}, []string{"result"})

	m.registry.MustRegister(
		m.ingestEvents,
		m.ingestRequests,
		m.queryDuration,
		m.cacheRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveIngest records one ingest request.
func (m *Metrics) ObserveIngest(status, accepted, inserted int) {
	m.ingestRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.ingestEvents.WithLabelValues("accepted").Add(float64(accepted))
	m.ingestEvents.WithLabelValues("inserted").Add(float64(inserted))
	if rejected := accepted - inserted; rejected > 0 {
		m.ingestEvents.WithLabelValues("rejected").Add(float64(rejected))
	}
}

// ObserveQuery records the load time of a named query.
func (m *Metrics) ObserveQuery(query string, d time.Duration) {
	m.queryDuration.WithLabelValues(query).Observe(d.Seconds())
}

// CacheResult counts a cache hit, miss or error.
func (m *Metrics) CacheResult(result string) {
	m.cacheRequests.WithLabelValues(result).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

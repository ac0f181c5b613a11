package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the gateway's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	searchCache      *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	busMessages      *prometheus.CounterVec
}

// New creates the collectors and registers them on a dedicated registry
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runon",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "runon",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
	m.searchCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runon",
		Subsystem: "search",
		Name:      "cache_lookups_total",
		Help:      "Search cache lookups by result",
	}, []string{"result"})
	m.providerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runon",
		Name:      "provider_requests_total",
		Help:      "Number of upstream provider requests by status",
	}, []string{"provider", "status"})
	m.busMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runon",
		Subsystem: "bus",
		Name:      "messages_total",
		Help:      "Event bus messages by direction and outcome",
	}, []string{"direction", "outcome"})

	m.registry.MustRegister(
		m.httpRequests, m.httpDuration, m.searchCache,
		m.providerRequests, m.busMessages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.searchCache.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.searchCache.WithLabelValues("miss").Inc()
}

// ProviderRequest counts one upstream call; status is "ok" or "error"
func (m *Metrics) ProviderRequest(provider, status string) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, status).Inc()
}

// BusMessage counts one published or consumed bus message
func (m *Metrics) BusMessage(direction, outcome string) {
	if m == nil {
		return
	}
	m.busMessages.WithLabelValues(direction, outcome).Inc()
}

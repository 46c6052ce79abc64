// Package metrics exposes lookup, cache, CAPTCHA and archive counters to
// Prometheus. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "court"

type Metrics struct {
	registry *prometheus.Registry

	lookups         *prometheus.CounterVec
	lookupDuration  *prometheus.HistogramVec
	cacheRequests   *prometheus.CounterVec
	captchaAttempts *prometheus.CounterVec
	orderArchive    *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Case lookups by portal and outcome.",
		}, []string{"portal", "outcome"}),
		lookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Duration of case lookups, including cache hits.",
			Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"portal"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Case cache reads by portal and result (hit, miss, bypass).",
		}, []string{"portal", "result"}),
		captchaAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captcha_attempts_total",
			Help:      "CAPTCHA attempts by portal and result.",
		}, []string{"portal", "result"}),
		orderArchive: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_archive_total",
			Help:      "Order archive operations by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.lookups,
		m.lookupDuration,
		m.cacheRequests,
		m.captchaAttempts,
		m.orderArchive,
	)
	return m
}

func (m *Metrics) ObserveLookup(portal, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(portal, outcome).Inc()
	m.lookupDuration.WithLabelValues(portal).Observe(d.Seconds())
}

func (m *Metrics) CacheRequest(portal, result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(portal, result).Inc()
}

func (m *Metrics) CaptchaAttempt(portal, result string) {
	if m == nil {
		return
	}
	m.captchaAttempts.WithLabelValues(portal, result).Inc()
}

func (m *Metrics) OrderArchived(result string) {
	if m == nil {
		return
	}
	m.orderArchive.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

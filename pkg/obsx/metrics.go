// Package obsx exposes the service's Prometheus metrics.
package obsx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors and implements the observer interfaces of
// the auth, csrf, password and jobx packages.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AuthOperationsTotal *prometheus.CounterVec
	CsrfConsumedTotal   *prometheus.CounterVec
	PwnedLookupsTotal   *prometheus.CounterVec
	JobsTotal           *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with registry. A nil
// registry gets a fresh one with the Go and process collectors.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mz_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mz_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mz_auth_operations_total",
				Help: "Auth operations by outcome, result is ok or an error code",
			},
			[]string{"operation", "result"},
		),
		CsrfConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mz_csrf_consumed_total",
				Help: "CSRF consume attempts, result is hit or miss",
			},
			[]string{"result"},
		),
		PwnedLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mz_pwned_lookups_total",
				Help: "Breached password lookups by result",
			},
			[]string{"result"},
		),
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mz_notify_jobs_total",
				Help: "Processed background jobs by kind and result",
			},
			[]string{"kind", "result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthOperationsTotal,
		m.CsrfConsumedTotal,
		m.PwnedLookupsTotal,
		m.JobsTotal,
	)
	return m
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) AuthOperation(operation, result string) {
	m.AuthOperationsTotal.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) CsrfConsumed(found bool) {
	result := "miss"
	if found {
		result = "hit"
	}
	m.CsrfConsumedTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) PwnedLookup(result string) {
	m.PwnedLookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) JobFinished(jobType, result string) {
	m.JobsTotal.WithLabelValues(jobType, result).Inc()
}

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	taskEvents      *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	cacheLookups    *prometheus.CounterVec
}

// New creates and registers all collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		taskEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasq_task_events_total",
				Help: "Task lifecycle transitions by action",
			},
			[]string{"action"},
		),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasq_attachment_uploads_total",
				Help: "Attachment uploads by resource class and outcome",
			},
			[]string{"resource", "outcome"},
		),
		uploadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tasq_attachment_upload_bytes_total",
				Help: "Bytes written to attachment storage",
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasq_cache_lookups_total",
				Help: "Dashboard cache lookups by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.taskEvents,
		m.uploads,
		m.uploadBytes,
		m.cacheLookups,
	)

	return m
}

// Middleware records request count and latency per route
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			m.requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			m.requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TaskEvent counts one lifecycle action (created, updated, completed...).
func (m *Metrics) TaskEvent(action string) {
	if m == nil {
		return
	}
	m.taskEvents.WithLabelValues(action).Inc()
}

// Upload counts one attachment upload attempt.
func (m *Metrics) Upload(resource, outcome string, size int) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(resource, outcome).Inc()
	if outcome == "ok" {
		m.uploadBytes.Add(float64(size))
	}
}

// CacheLookup counts a dashboard cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

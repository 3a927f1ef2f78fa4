// Package metrics defines the gateway's Prometheus instrumentation:
// request latency and counts, view-translation and JS-execution counts
// (with their failures), and upstream fall-through counts.
package metrics

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the gateway registers.
type Metrics struct {
	RequestDuration    *prometheus.HistogramVec
	RequestsTotal      *prometheus.CounterVec
	ViewTranslations   *prometheus.CounterVec
	ViewPipelineErrors *prometheus.CounterVec
	JSExecutions       *prometheus.CounterVec
	JSExecutionErrors  *prometheus.CounterVec
	UpstreamForwards   *prometheus.CounterVec
}

// New creates and registers the gateway's collectors under namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "couchmongo_gateway"
	}

	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of gateway HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of gateway HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		ViewTranslations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "view_translations_total",
				Help:      "Total number of view definitions translated into aggregation pipelines",
			},
			[]string{"db", "design", "view"},
		),
		ViewPipelineErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "view_pipeline_errors_total",
				Help:      "Total number of view pipeline build or execution failures",
			},
			[]string{"db", "design", "view"},
		),
		JSExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "js_executions_total",
				Help:      "Total number of sandboxed JavaScript executions (update functions and break-glass scripts)",
			},
			[]string{"kind"},
		),
		JSExecutionErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "js_execution_errors_total",
				Help:      "Total number of sandboxed JavaScript executions that failed",
			},
			[]string{"kind"},
		),
		UpstreamForwards: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_forwards_total",
				Help:      "Total number of requests forwarded to the upstream CouchDB",
			},
			[]string{"db", "reason"},
		),
	}
}

// RecordRequest records one completed HTTP request's latency and count.
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	statusStr := statusClass(status)
	m.RequestDuration.WithLabelValues(method, route, statusStr).Observe(duration.Seconds())
	m.RequestsTotal.WithLabelValues(method, route, statusStr).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Middleware wraps every request with RecordRequest, using the matched
// Echo route path (not the raw URL) as the route label to keep
// cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.RecordRequest(c.Request().Method, route, c.Response().Status, time.Since(start))
			return err
		}
	}
}

// Handler returns the Echo handler serving /metrics in Prometheus
// exposition format.
func Handler() echo.HandlerFunc {
	h := promhttp.Handler()
	return func(c echo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

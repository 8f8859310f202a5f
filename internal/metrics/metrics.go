// Package metrics owns a private Prometheus registry and the collectors for
// HTTP traffic, store calls, tree builds and capability issuance.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/damacus/bucketview/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bucketview"

// Metrics is the process-wide collector set. It implements the observer
// interfaces of the store, tree cache and capability issuer.
type Metrics struct {
	reg *prometheus.Registry

	inflight prometheus.Gauge
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec

	builds       *prometheus.CounterVec
	buildLatency prometheus.Histogram
	cacheLookups *prometheus.CounterVec

	capabilities *prometheus.CounterVec
}

// New creates a fresh registry with every collector registered
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of inflight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed, partitioned by route, status code and method.",
		}, []string{"route", "code", "method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of latencies for HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "ops_total",
			Help:      "Total number of object store calls by result.",
		}, []string{"op", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "op_duration_seconds",
			Help:      "Histogram of object store call durations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "builds_total",
			Help:      "Total number of namespace tree builds by result.",
		}, []string{"result"}),
		buildLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "build_duration_seconds",
			Help:      "Histogram of namespace tree build durations in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "cache_lookups_total",
			Help:      "Tree cache lookups by outcome.",
		}, []string{"outcome"}),
		capabilities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capability",
			Name:      "issued_total",
			Help:      "Capability issue attempts by operation and result.",
		}, []string{"operation", "result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inflight, m.requests, m.latency,
		m.storeOps, m.storeLatency,
		m.builds, m.buildLatency, m.cacheLookups,
		m.capabilities,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware records inflight, count and latency for every request. Routes
// are labelled by their registered path, never the raw URL.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.inflight.Inc()
			defer m.inflight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requests.WithLabelValues(route, strconv.Itoa(status), c.Request().Method).Inc()
			m.latency.WithLabelValues(route, c.Request().Method).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// ObserveStore records one object store call
func (m *Metrics) ObserveStore(op string, err error, dur time.Duration) {
	m.storeOps.WithLabelValues(op, result(err)).Inc()
	m.storeLatency.WithLabelValues(op).Observe(dur.Seconds())
}

// ObserveBuild records one tree build
func (m *Metrics) ObserveBuild(err error, dur time.Duration) {
	m.builds.WithLabelValues(result(err)).Inc()
	m.buildLatency.Observe(dur.Seconds())
}

// ObserveCacheLookup records a tree cache hit or miss
func (m *Metrics) ObserveCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// ObserveCapability records one capability issue attempt
func (m *Metrics) ObserveCapability(op models.Operation, err error) {
	m.capabilities.WithLabelValues(string(op), result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

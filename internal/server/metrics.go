package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/loadmix/internal/compose"
	"github.com/roach88/loadmix/internal/request"
)

// Metrics holds the service's Prometheus collectors. It implements
// compose.Observer so the engine reports table cache activity directly.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	tableLoads        *prometheus.CounterVec
	tableLoadDuration prometheus.Histogram
	compositions      *prometheus.CounterVec
	diagnostics       *prometheus.CounterVec
}

var _ compose.Observer = (*Metrics)(nil)

// NewMetrics registers the collectors with a fresh registry. Each server
// owns its registry so several can run in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadmix_table_cache_hits_total",
			Help: "Scenario table lookups served from the request cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadmix_table_cache_misses_total",
			Help: "Scenario table lookups that went to the source.",
		}),
		tableLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loadmix_table_loads_total",
			Help: "Scenario table loads by result (ok, not_found, error).",
		}, []string{"result"}),
		tableLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "loadmix_table_load_duration_seconds",
			Help:    "Histogram of scenario table load durations.",
			Buckets: prometheus.DefBuckets,
		}),
		compositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loadmix_compositions_total",
			Help: "Compositions by outcome code (ok or an error code).",
		}, []string{"code"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loadmix_diagnostics_total",
			Help: "Recoverable diagnostics reported, by code.",
		}, []string{"code"}),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.cacheHits,
		m.cacheMisses,
		m.tableLoads,
		m.tableLoadDuration,
		m.compositions,
		m.diagnostics,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and observes latency for route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// CacheHit implements compose.Observer.
func (m *Metrics) CacheHit(string) {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// CacheMiss implements compose.Observer.
func (m *Metrics) CacheMiss(string) {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// TableLoaded implements compose.Observer.
func (m *Metrics) TableLoaded(_ string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.tableLoadDuration.Observe(elapsed.Seconds())
	result := "ok"
	switch {
	case err == nil:
	case compose.IsNotFound(err):
		result = "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "canceled"
	default:
		result = "error"
	}
	m.tableLoads.WithLabelValues(result).Inc()
}

// Composition records the outcome of one composition.
func (m *Metrics) Composition(err error, diags request.Diagnostics) {
	if m == nil {
		return
	}
	code := "ok"
	if err != nil {
		code = string(compose.CodeOf(err))
		if code == "" {
			code = "unknown"
		}
	}
	m.compositions.WithLabelValues(code).Inc()
	for _, d := range diags {
		m.diagnostics.WithLabelValues(string(d.Code)).Inc()
	}
}

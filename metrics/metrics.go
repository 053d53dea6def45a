// Package metrics holds the Prometheus collectors for the API client and the chart cache.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wagtee"

// Metrics groups the client collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	retries        prometheus.Counter
	refreshes      *prometheus.CounterVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions *prometheus.CounterVec
	cacheEntries   prometheus.Gauge
	cacheBytes     prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg uses a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of API calls by method, status and result code.",
			},
			[]string{"method", "status", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of API calls including retries and token refresh.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
			},
			[]string{"method"},
		),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "retries_total",
			Help:      "Total number of re-issued requests after a server or transport error.",
		}),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "token_refreshes_total",
				Help:      "Total number of refresh endpoint calls by outcome.",
			},
			[]string{"result"},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chart_cache",
			Name:      "hits_total",
			Help:      "Total number of chart cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chart_cache",
			Name:      "misses_total",
			Help:      "Total number of chart cache misses, including expired entries.",
		}),
		cacheEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "chart_cache",
				Name:      "evictions_total",
				Help:      "Total number of evicted chart cache entries by reason.",
			},
			[]string{"reason"},
		),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chart_cache",
			Name:      "entries",
			Help:      "Current number of chart cache entries.",
		}),
		cacheBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chart_cache",
			Name:      "bytes",
			Help:      "Approximate serialized size of the chart cache.",
		}),
	}
	reg.MustRegister(
		m.requests,
		m.duration,
		m.retries,
		m.refreshes,
		m.cacheHits,
		m.cacheMisses,
		m.cacheEvictions,
		m.cacheEntries,
		m.cacheBytes,
	)
	return m
}

// ObserveRequest records one finished API call. status is 0 when no response arrived.
func (m *Metrics) ObserveRequest(method string, status int, code string, duration time.Duration) {
	if m == nil {
		return
	}
	if code == "" {
		code = "OK"
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status), code).Inc()
	m.duration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// Refresh records a refresh endpoint call.
func (m *Metrics) Refresh(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// CacheEvict records n entries removed for reason (expired, size, memory, invalidated).
func (m *Metrics) CacheEvict(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheEvictions.WithLabelValues(reason).Add(float64(n))
}

// CacheSize publishes the current entry count and byte usage.
func (m *Metrics) CacheSize(entries int, bytes int64) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(entries))
	m.cacheBytes.Set(float64(bytes))
}

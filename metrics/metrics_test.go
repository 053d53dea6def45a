package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", 200, "", time.Millisecond)
		m.Retry()
		m.Refresh(true)
		m.CacheHit()
		m.CacheMiss()
		m.CacheEvict("size", 3)
		m.CacheSize(1, 2)
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("GET", 200, "", time.Millisecond)
	m.ObserveRequest("GET", 404, "NOT_FOUND", time.Millisecond)
	m.Retry()
	m.Retry()
	m.Refresh(false)
	m.CacheHit()
	m.CacheEvict("memory", 2)
	m.CacheEvict("memory", 0)
	m.CacheSize(7, 1024)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "200", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "404", "NOT_FOUND")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.retries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheEvictions.WithLabelValues("memory")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.cacheEntries))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.cacheBytes))

	count, err := testutil.GatherAndCount(reg, "wagtee_http_requests_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

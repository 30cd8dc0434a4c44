package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordSearch("search", "cache", 10*time.Millisecond)
	m.RecordSearch("search", "upstream", time.Second)
	m.RecordUpstream("search", "200", time.Second)
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordCacheMiss()
	m.SetRateLimitRemaining(42)
	m.SetBreakerState("OPEN", "CLOSED", "OPEN", "HALF_OPEN")
	m.RecordTranslation("keyword_research", 40000)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("search", "cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMissesTotal))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.RateLimitRemaining))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("OPEN")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("CLOSED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TranslationsTotal.WithLabelValues("keyword_research", "error")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCacheHit()
		m.RecordUpstream("search", "500", time.Second)
		m.SetQueueWaiting(3)
		m.RecordInboundRejected()
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordCacheHit()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "serp_gateway_cache_hits_total 1")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordCacheHit()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheHitsTotal))
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "serp_gateway"

// Metrics Prometheus 指标集合，所有方法对 nil 接收者安全
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	CacheErrorsTotal *prometheus.CounterVec

	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec

	RateLimitRemaining prometheus.Gauge
	RateLimitWaits     prometheus.Counter
	QueueWaiting       prometheus.Gauge

	InboundRejectedTotal prometheus.Counter
	TranslationsTotal    *prometheus.CounterVec
}

// New 创建指标集合，注册到独立的 registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests handled by the gateway",
		}, []string{"type", "source"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_request_duration_seconds",
			Help:      "End-to-end gateway search latency",
			Buckets:   []float64{0.005, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"type"}),

		UpstreamRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests dispatched to the search provider",
		}, []string{"type", "status"}),
		UpstreamRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Search provider request latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"type"}),

		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Search cache hits",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Search cache misses",
		}),
		CacheErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Cache backend failures degraded to misses",
		}, []string{"op"}),

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "1 for the current circuit breaker state, 0 otherwise",
		}, []string{"state"}),
		BreakerTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		}, []string{"from", "to"}),

		RateLimitRemaining: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_rate_limit_remaining",
			Help:      "Remaining upstream requests in the current window",
		}),
		RateLimitWaits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_rate_limit_waits_total",
			Help:      "Dispatches that slept until the rate limit window reset",
		}),
		QueueWaiting: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_waiting",
			Help:      "Jobs waiting in the dispatch queue",
		}),

		InboundRejectedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_rate_limited_total",
			Help:      "Client requests rejected by the inbound limiter",
		}),
		TranslationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Compatibility envelopes produced",
		}, []string{"endpoint", "status"}),
	}
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordSearch(searchType, source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(searchType, source).Inc()
	m.RequestDuration.WithLabelValues(searchType).Observe(duration.Seconds())
}

func (m *Metrics) RecordUpstream(searchType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(searchType, status).Inc()
	m.UpstreamRequestDuration.WithLabelValues(searchType).Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) RecordCacheError(op string) {
	if m == nil {
		return
	}
	m.CacheErrorsTotal.WithLabelValues(op).Inc()
}

// SetBreakerState 将当前状态置 1，其余置 0
func (m *Metrics) SetBreakerState(current string, all ...string) {
	if m == nil {
		return
	}
	for _, s := range all {
		m.BreakerState.WithLabelValues(s).Set(0)
	}
	m.BreakerState.WithLabelValues(current).Set(1)
}

func (m *Metrics) RecordBreakerTransition(from, to string) {
	if m == nil {
		return
	}
	m.BreakerTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) SetRateLimitRemaining(n int) {
	if m == nil {
		return
	}
	m.RateLimitRemaining.Set(float64(n))
}

func (m *Metrics) RecordRateLimitWait() {
	if m == nil {
		return
	}
	m.RateLimitWaits.Inc()
}

func (m *Metrics) SetQueueWaiting(n int) {
	if m == nil {
		return
	}
	m.QueueWaiting.Set(float64(n))
}

func (m *Metrics) RecordInboundRejected() {
	if m == nil {
		return
	}
	m.InboundRejectedTotal.Inc()
}

func (m *Metrics) RecordTranslation(endpoint string, statusCode int) {
	if m == nil {
		return
	}
	status := "ok"
	if statusCode != 20000 {
		status = "error"
	}
	m.TranslationsTotal.WithLabelValues(endpoint, status).Inc()
}

package biz

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lk2023060901/serp-gateway/internal/pkg/breaker"
	apperrors "github.com/lk2023060901/serp-gateway/internal/pkg/errors"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/metrics"
	"github.com/lk2023060901/serp-gateway/internal/pkg/workerpool"
	"github.com/lk2023060901/serp-gateway/internal/websearch/cache"
	"github.com/lk2023060901/serp-gateway/internal/websearch/provider"
	"github.com/lk2023060901/serp-gateway/internal/websearch/ratelimit"
	"github.com/lk2023060901/serp-gateway/internal/websearch/types"
)

// Cache defines the cache operations the gateway needs
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool
	Clear(ctx context.Context, prefix string) int
	Stats(ctx context.Context) cache.Stats
	HealthCheck(ctx context.Context) cache.Health
}

// Config gateway behaviour
type Config struct {
	CacheTTL         time.Duration
	HealthCheckQuery string
}

// GatewayMetrics is a snapshot of gateway counters
type GatewayMetrics struct {
	TotalRequests       int64                 `json:"total_requests"`
	SuccessfulRequests  int64                 `json:"successful_requests"`
	FailedRequests      int64                 `json:"failed_requests"`
	CachedRequests      int64                 `json:"cached_requests"`
	RejectedRequests    int64                 `json:"rejected_requests"`
	AverageResponseTime float64               `json:"average_response_time_ms"`
	LastRequestTime     *time.Time            `json:"last_request_time,omitempty"`
	RateLimit           ratelimit.Window      `json:"rate_limit"`
	CircuitBreaker      breaker.Metrics       `json:"circuit_breaker"`
	Queue               workerpool.Statistics `json:"queue"`
}

// Health is the result of a live upstream check
type Health struct {
	Healthy        bool             `json:"healthy"`
	Latency        float64          `json:"latency_ms"`
	RateLimit      ratelimit.Window `json:"rate_limit"`
	CircuitBreaker breaker.State    `json:"circuit_breaker"`
	Error          string           `json:"error,omitempty"`
}

// SearchGateway is the resilient client to the upstream search provider.
// Misses go through a FIFO dispatch queue, the rate-limit tracker and the circuit breaker.
type SearchGateway struct {
	provider provider.Provider
	cache    Cache
	breaker  *breaker.CircuitBreaker
	tracker  *ratelimit.Tracker
	pool     *workerpool.Pool
	group    singleflight.Group

	config  Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	stats GatewayMetrics
}

// NewSearchGateway creates a gateway from its collaborators
func NewSearchGateway(
	p provider.Provider,
	c Cache,
	cb *breaker.CircuitBreaker,
	tracker *ratelimit.Tracker,
	pool *workerpool.Pool,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *SearchGateway {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.HealthCheckQuery == "" {
		cfg.HealthCheckQuery = "health check"
	}

	return &SearchGateway{
		provider: p,
		cache:    c,
		breaker:  cb,
		tracker:  tracker,
		pool:     pool,
		config:   cfg,
		logger:   logger.OrGlobal(log).Named("gateway"),
		metrics:  m,
	}
}

// Search returns the cached result for params or dispatches it upstream
func (g *SearchGateway) Search(ctx context.Context, params types.SearchParams) (*types.SearchResult, error) {
	start := time.Now()
	p := params.Normalize()
	if err := p.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrSearchInvalidParams, err.Error())
	}

	key := p.CacheKey()
	var cached types.SearchResult
	if g.cache.Get(ctx, key, &cached) {
		g.mu.Lock()
		g.stats.CachedRequests++
		g.mu.Unlock()

		g.metrics.RecordCacheHit()
		g.metrics.RecordSearch(string(p.Type), "cache", time.Since(start))
		return &cached, nil
	}
	g.metrics.RecordCacheMiss()

	// identical concurrent misses share one dispatch
	jobCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (interface{}, error) {
		result, err := g.dispatch(jobCtx, p, workerpool.PriorityNormal)
		if err != nil {
			return nil, err
		}
		g.cache.Set(jobCtx, key, result, g.config.CacheTTL)
		return result, nil
	})

	select {
	case <-ctx.Done():
		return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrUpstreamTimeout, "caller stopped waiting")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		g.metrics.RecordSearch(string(p.Type), "upstream", time.Since(start))
		return res.Val.(*types.SearchResult), nil
	}
}

// SearchImages searches the images vertical
func (g *SearchGateway) SearchImages(ctx context.Context, params types.SearchParams) (*types.SearchResult, error) {
	params.Type = types.SearchTypeImages
	return g.Search(ctx, params)
}

// SearchVideos searches the videos vertical
func (g *SearchGateway) SearchVideos(ctx context.Context, params types.SearchParams) (*types.SearchResult, error) {
	params.Type = types.SearchTypeVideos
	return g.Search(ctx, params)
}

// SearchNews searches the news vertical
func (g *SearchGateway) SearchNews(ctx context.Context, params types.SearchParams) (*types.SearchResult, error) {
	params.Type = types.SearchTypeNews
	return g.Search(ctx, params)
}

// SearchPlaces searches the places vertical
func (g *SearchGateway) SearchPlaces(ctx context.Context, params types.SearchParams) (*types.SearchResult, error) {
	params.Type = types.SearchTypePlaces
	return g.Search(ctx, params)
}

// SearchScholar searches the scholar vertical
func (g *SearchGateway) SearchScholar(ctx context.Context, params types.SearchParams) (*types.SearchResult, error) {
	params.Type = types.SearchTypeScholar
	return g.Search(ctx, params)
}

// dispatch queues one upstream call and waits for its result
func (g *SearchGateway) dispatch(ctx context.Context, p types.SearchParams, priority workerpool.Priority) (*types.SearchResult, error) {
	resultCh, err := g.pool.SubmitWithResult(priority, func() (interface{}, error) {
		return g.execute(ctx, p)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrServiceUnavail, "dispatch queue unavailable")
	}
	g.metrics.SetQueueWaiting(g.pool.QueueLength())

	res := <-resultCh
	g.metrics.SetQueueWaiting(g.pool.QueueLength())
	if res.Error != nil {
		if errors.Is(res.Error, workerpool.ErrPoolClosed) || errors.Is(res.Error, workerpool.ErrTaskPanic) {
			return nil, apperrors.Wrap(res.Error, apperrors.ErrServiceUnavail)
		}
		return nil, res.Error
	}
	return res.Data.(*types.SearchResult), nil
}

// execute runs on a queue worker: breaker, budget, provider.
// The budget is only taken for calls the breaker admits, so an open circuit fails fast.
func (g *SearchGateway) execute(ctx context.Context, p types.SearchParams) (*types.SearchResult, error) {
	log := g.logger.WithContext(ctx)

	var (
		start           time.Time
		budgetErr       error
		reachedProvider bool
	)
	resp, err := breaker.Do(ctx, g.breaker, func(ctx context.Context) (*provider.Response, error) {
		waited, err := g.tracker.Acquire(ctx)
		if err != nil {
			budgetErr = err
			return nil, err
		}
		if waited > 0 {
			log.Info("dispatch delayed by rate limit", zap.Duration("waited", waited))
		}

		reachedProvider = true
		start = time.Now()
		return g.provider.Search(ctx, p)
	})

	if err != nil {
		switch {
		case budgetErr != nil:
			return nil, apperrors.Wrap(budgetErr, apperrors.ErrServiceUnavail, "rate limit wait aborted")
		case !reachedProvider:
			g.mu.Lock()
			g.stats.RejectedRequests++
			g.mu.Unlock()
			return nil, apperrors.NewCircuitOpenError(err)
		}

		g.recordRequest(false, time.Since(start))
		g.applyFailureHeaders(err)
		log.Warn("upstream search failed",
			zap.String("type", string(p.Type)),
			zap.String("query", p.Q),
			zap.Error(err),
		)
		return nil, toAppError(err)
	}

	latency := time.Since(start)
	if resp.Latency > 0 {
		latency = resp.Latency
	}
	g.tracker.UpdateFromHeaders(resp.Header)
	g.recordRequest(true, latency)
	return resp.Result, nil
}

// applyFailureHeaders feeds budget metadata from a failed response into the tracker.
// A 429 always drains the budget; the reported reset is used when present.
func (g *SearchGateway) applyFailureHeaders(err error) {
	var ue *types.UpstreamError
	if !errors.As(err, &ue) {
		return
	}
	if types.IsRateLimited(ue) {
		g.tracker.Exhaust(ue.Header)
		return
	}
	g.tracker.UpdateFromHeaders(ue.Header)
}

func (g *SearchGateway) recordRequest(success bool, latency time.Duration) {
	now := time.Now()
	ms := float64(latency) / float64(time.Millisecond)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.stats.TotalRequests++
	if success {
		g.stats.SuccessfulRequests++
	} else {
		g.stats.FailedRequests++
	}
	// running mean over every upstream call
	n := float64(g.stats.TotalRequests)
	g.stats.AverageResponseTime += (ms - g.stats.AverageResponseTime) / n
	g.stats.LastRequestTime = &now
}

func toAppError(err error) error {
	if errors.Is(err, breaker.ErrCircuitOpen) {
		return apperrors.NewCircuitOpenError(err)
	}

	var ue *types.UpstreamError
	if errors.As(err, &ue) {
		status := ue.Status
		if ue.Code == types.CodeTimeout {
			status = 504
		}
		return apperrors.NewUpstreamError(err, status, ue.Details)
	}
	return apperrors.Wrap(err, apperrors.ErrUpstreamFailed)
}

// Metrics returns a snapshot of gateway counters with rate limit, breaker and queue state
func (g *SearchGateway) Metrics() GatewayMetrics {
	g.mu.Lock()
	m := g.stats
	if m.LastRequestTime != nil {
		t := *m.LastRequestTime
		m.LastRequestTime = &t
	}
	g.mu.Unlock()

	m.RateLimit = g.tracker.Snapshot()
	m.CircuitBreaker = g.breaker.Metrics()
	m.Queue = g.pool.Stats()
	return m
}

// HealthCheck performs a one-result live search, bypassing the cache
func (g *SearchGateway) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	p := types.SearchParams{Q: g.config.HealthCheckQuery, Num: 1}.Normalize()

	type outcome struct{ err error }
	done := make(chan outcome, 1)
	go func() {
		_, err := g.dispatch(context.WithoutCancel(ctx), p, workerpool.PriorityLow)
		done <- outcome{err: err}
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case o := <-done:
		err = o.err
	}

	h := Health{
		Healthy:        err == nil,
		Latency:        float64(time.Since(start)) / float64(time.Millisecond),
		RateLimit:      g.tracker.Snapshot(),
		CircuitBreaker: g.breaker.State(),
	}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}

// CircuitState returns the current breaker state
func (g *SearchGateway) CircuitState() breaker.State {
	return g.breaker.State()
}

// ResetCircuitBreaker forces the breaker closed
func (g *SearchGateway) ResetCircuitBreaker() breaker.Metrics {
	before := g.breaker.State()
	g.breaker.Reset()
	g.logger.Info("circuit breaker reset", zap.String("previous_state", string(before)))
	return g.breaker.Metrics()
}

// ClearCache removes cached results whose key starts with prefix
func (g *SearchGateway) ClearCache(ctx context.Context, prefix string) int {
	return g.cache.Clear(ctx, prefix)
}

// CacheStats returns backend statistics
func (g *SearchGateway) CacheStats(ctx context.Context) cache.Stats {
	return g.cache.Stats(ctx)
}

// CacheHealth pings the cache backend
func (g *SearchGateway) CacheHealth(ctx context.Context) cache.Health {
	return g.cache.HealthCheck(ctx)
}

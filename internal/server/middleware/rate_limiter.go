package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/lk2023060901/serp-gateway/internal/pkg/errors"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/metrics"
	"github.com/lk2023060901/serp-gateway/internal/pkg/response"
	"github.com/lk2023060901/serp-gateway/internal/pkg/validator"
)

// Strategies for building the limiter key
const (
	StrategyIP       = "ip"
	StrategyEndpoint = "endpoint"
)

const maxLocalLimiters = 10000

// 无法解析客户端地址时共用的桶
const unknownClient = "unknown"

// ErrRateLimited is reported to callers rejected by the inbound limiter
var ErrRateLimited = errors.New("too many requests")

// slidingWindowScript 原子性滑动窗口，分数与窗口均为毫秒
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local current = redis.call('ZCARD', key)

if current < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window)
	return {1, limit - current - 1, now + window}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')[2]
return {0, 0, tonumber(oldest) + window}
`

// Evaler runs a Lua script; satisfied by *redis.Client
type Evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// RateLimiterConfig 限流配置
type RateLimiterConfig struct {
	// 时间窗口内允许的最大请求数
	MaxRequests int
	// 时间窗口（秒）
	WindowSeconds int
	// 限流策略：ip（默认）, endpoint
	Strategy string
	// Redis key 前缀
	KeyPrefix string
}

// Decision is the outcome of one limiter check
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RejectFunc writes the response for a rejected request
type RejectFunc func(c *gin.Context, d Decision)

// RateLimiter 基于 Redis 的滑动窗口限流，Redis 不可用时退化为本地令牌桶
type RateLimiter struct {
	store   Evaler
	cfg     RateLimiterConfig
	window  time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	local map[string]*rate.Limiter
	now   func() time.Time
}

// NewRateLimiter 创建限流器，store 为 nil 时只使用本地令牌桶
func NewRateLimiter(store Evaler, cfg RateLimiterConfig, log *logger.Logger, m *metrics.Metrics) *RateLimiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 100
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 60
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyIP
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rate_limit"
	}

	return &RateLimiter{
		store:   store,
		cfg:     cfg,
		window:  time.Duration(cfg.WindowSeconds) * time.Second,
		logger:  logger.OrGlobal(log).Named("inbound-limiter"),
		metrics: m,
		local:   make(map[string]*rate.Limiter),
		now:     time.Now,
	}
}

// Middleware returns the gin handler. A nil reject responds 429.
func (l *RateLimiter) Middleware(reject RejectFunc) gin.HandlerFunc {
	if reject == nil {
		reject = RejectTooManyRequests
	}

	return func(c *gin.Context) {
		d := l.Allow(c.Request.Context(), l.key(c))

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			l.metrics.RecordInboundRejected()
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(d.ResetAt, l.now())))
			reject(c, d)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RejectTooManyRequests is the default reject response
func RejectTooManyRequests(c *gin.Context, d Decision) {
	response.AbortWithCode(c, apperrors.ErrTooManyRequests,
		fmt.Sprintf("please retry after %s", d.ResetAt.UTC().Format(time.RFC3339)))
}

// Allow checks and records one request for key
func (l *RateLimiter) Allow(ctx context.Context, key string) Decision {
	if l.store != nil {
		d, err := l.allowRedis(ctx, key)
		if err == nil {
			return d
		}
		l.logger.Warn("redis limiter unavailable, using local bucket", zap.Error(err), zap.String("key", key))
	}
	return l.allowLocal(key)
}

func (l *RateLimiter) allowRedis(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	result, err := l.store.Eval(ctx, slidingWindowScript, []string{key},
		now.UnixMilli(), l.window.Milliseconds(), l.cfg.MaxRequests, uuid.NewString())
	if err != nil {
		return Decision{}, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return Decision{}, fmt.Errorf("invalid rate limit result: %v", result)
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	resetMs, _ := values[2].(int64)

	return Decision{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetAt:   time.UnixMilli(resetMs),
	}, nil
}

func (l *RateLimiter) allowLocal(key string) Decision {
	now := l.now()

	l.mu.Lock()
	lim, ok := l.local[key]
	if !ok {
		if len(l.local) >= maxLocalLimiters {
			l.local = make(map[string]*rate.Limiter)
		}
		every := l.window / time.Duration(l.cfg.MaxRequests)
		lim = rate.NewLimiter(rate.Every(every), l.cfg.MaxRequests)
		l.local[key] = lim
	}
	l.mu.Unlock()

	allowed := lim.AllowN(now, 1)
	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   now.Add(l.window),
	}
}

// key 构建限流 key
func (l *RateLimiter) key(c *gin.Context) string {
	ip := validator.GetIPOrDefault(c.ClientIP(), unknownClient)
	switch l.cfg.Strategy {
	case StrategyEndpoint:
		return fmt.Sprintf("%s:endpoint:%s:%s", l.cfg.KeyPrefix, c.FullPath(), ip)
	default:
		return fmt.Sprintf("%s:ip:%s", l.cfg.KeyPrefix, ip)
	}
}

func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

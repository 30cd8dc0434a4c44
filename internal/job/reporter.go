package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lk2023060901/serp-gateway/internal/pkg/breaker"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/websearch/biz"
	"github.com/lk2023060901/serp-gateway/internal/websearch/cache"
)

// gRPC health service names
const (
	ServiceOverall = ""
	ServiceGateway = "serp.SearchGateway"
	ServiceCache   = "serp.CacheStore"
)

const (
	DefaultSpec  = "@every 1m"
	checkTimeout = 5 * time.Second
)

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// GatewayStatus is the read-only gateway view the reporter needs
type GatewayStatus interface {
	Metrics() biz.GatewayMetrics
	CircuitState() breaker.State
	CacheHealth(ctx context.Context) cache.Health
}

// HealthSetter is satisfied by *health.Server
type HealthSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// Reporter 定时输出网关指标快照并刷新 gRPC 健康状态
type Reporter struct {
	cron   *cron.Cron
	spec   string
	gw     GatewayStatus
	health HealthSetter
	logger *logger.Logger
}

// NewReporter 创建定时上报任务，spec 为标准 cron 表达式或 @every 描述符
func NewReporter(spec string, gw GatewayStatus, health HealthSetter, log *logger.Logger) (*Reporter, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := specParser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid reporter spec %q: %w", spec, err)
	}

	log = logger.OrGlobal(log).Named("reporter")
	r := &Reporter{
		spec:   spec,
		gw:     gw,
		health: health,
		logger: log,
	}
	r.cron = cron.New(
		cron.WithParser(specParser),
		cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
	)
	if _, err := r.cron.AddFunc(spec, func() { r.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("failed to schedule reporter: %w", err)
	}
	return r, nil
}

// Start 启动调度
func (r *Reporter) Start() {
	r.logger.Info("starting health reporter", zap.String("spec", r.spec))
	r.cron.Start()
}

// Stop 停止调度并等待正在执行的任务结束
func (r *Reporter) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn("reporter stop timed out")
	}
}

// RunOnce 执行一次上报
func (r *Reporter) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	m := r.gw.Metrics()
	state := r.gw.CircuitState()
	cacheHealth := r.gw.CacheHealth(ctx)

	gatewayStatus := healthpb.HealthCheckResponse_SERVING
	if state == breaker.StateOpen {
		gatewayStatus = healthpb.HealthCheckResponse_NOT_SERVING
	}
	cacheStatus := healthpb.HealthCheckResponse_SERVING
	if !cacheHealth.Healthy {
		cacheStatus = healthpb.HealthCheckResponse_NOT_SERVING
	}

	if r.health != nil {
		r.health.SetServingStatus(ServiceGateway, gatewayStatus)
		r.health.SetServingStatus(ServiceCache, cacheStatus)
		// 缓存降级不影响整体可用性
		r.health.SetServingStatus(ServiceOverall, gatewayStatus)
	}

	r.logger.Info("gateway snapshot",
		zap.Int64("total_requests", m.TotalRequests),
		zap.Int64("successful_requests", m.SuccessfulRequests),
		zap.Int64("failed_requests", m.FailedRequests),
		zap.Int64("cached_requests", m.CachedRequests),
		zap.Int64("rejected_requests", m.RejectedRequests),
		zap.Float64("average_response_time_ms", m.AverageResponseTime),
		zap.Int("rate_limit_remaining", m.RateLimit.Remaining),
		zap.String("circuit_breaker", string(state)),
		zap.Int("queue_waiting", m.Queue.Waiting),
		zap.Bool("cache_healthy", cacheHealth.Healthy),
	)
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, zap.Any("details", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"

	"github.com/lk2023060901/serp-gateway/internal/auth"
	compatbiz "github.com/lk2023060901/serp-gateway/internal/compat/biz"
	compatservice "github.com/lk2023060901/serp-gateway/internal/compat/service"
	"github.com/lk2023060901/serp-gateway/internal/conf"
	"github.com/lk2023060901/serp-gateway/internal/data"
	"github.com/lk2023060901/serp-gateway/internal/job"
	"github.com/lk2023060901/serp-gateway/internal/pkg/breaker"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/metrics"
	"github.com/lk2023060901/serp-gateway/internal/pkg/workerpool"
	"github.com/lk2023060901/serp-gateway/internal/server"
	"github.com/lk2023060901/serp-gateway/internal/server/middleware"
	"github.com/lk2023060901/serp-gateway/internal/websearch/biz"
	"github.com/lk2023060901/serp-gateway/internal/websearch/cache"
	"github.com/lk2023060901/serp-gateway/internal/websearch/provider"
	"github.com/lk2023060901/serp-gateway/internal/websearch/ratelimit"
	"github.com/lk2023060901/serp-gateway/internal/websearch/service"
	"github.com/lk2023060901/serp-gateway/internal/websearch/types"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "config file path")
)

const retryBackoff = 200 * time.Millisecond

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	logConfig := &logger.Config{
		Level:            config.Log.Level,
		Format:           config.Log.Format,
		Output:           config.Log.Output,
		EnableCaller:     config.Log.EnableCaller,
		EnableStacktrace: config.Log.EnableStacktrace,
		File: logger.FileConfig{
			Filename:   config.Log.File.Filename,
			MaxSize:    config.Log.File.MaxSize,
			MaxAge:     config.Log.File.MaxAge,
			MaxBackups: config.Log.File.MaxBackups,
			Compress:   config.Log.File.Compress,
		},
	}

	log, err := logger.New(logConfig)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("config loaded successfully")

	m := metrics.New()

	// Initialize data layer
	d, cleanup, err := data.NewData(config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	store := cache.New(d.Redis, cache.Config{
		Prefix:     config.Cache.Prefix,
		DefaultTTL: config.Cache.DefaultTTL,
		ScanBatch:  config.Cache.ScanBatch,
	}, log, m)

	// Upstream provider with its dispatch middleware chain
	serper, err := provider.NewSerperProvider(&types.ProviderConfig{
		ID:         types.ProviderSerper,
		Name:       "Serper",
		APIHost:    config.Upstream.BaseURL,
		APIKey:     config.Upstream.APIKey,
		Timeout:    config.Upstream.Timeout,
		MaxRetries: config.Upstream.MaxRetries,
	},
		provider.WithTiming(),
		provider.WithLogging(log),
		provider.WithMetrics(m),
		provider.WithRetry(config.Upstream.MaxRetries, retryBackoff),
	)
	if err != nil {
		log.Fatal("failed to initialize upstream provider", zap.Error(err))
	}
	log.Info("upstream provider ready",
		zap.String("host", config.Upstream.BaseURL),
		zap.Int("api_keys", serper.KeyCount()),
	)

	cb := biz.NewUpstreamBreaker(breaker.Config{
		FailureThreshold: config.CircuitBreaker.FailureThreshold,
		ResetTimeout:     config.CircuitBreaker.ResetTimeout,
		SuccessThreshold: config.CircuitBreaker.HalfOpenTrials,
	}, log, m)

	tracker := ratelimit.New(ratelimit.Config{
		Limit:  config.RateLimit.MaxRequests,
		Window: config.RateLimit.Window,
	}, log, m)

	pool, err := workerpool.New(&workerpool.Config{
		Workers:   config.Dispatch.Concurrency,
		QueueSize: config.Dispatch.QueueSize,
	}, log.Logger)
	if err != nil {
		log.Fatal("failed to initialize dispatch queue", zap.Error(err))
	}

	gateway := biz.NewSearchGateway(serper, store, cb, tracker, pool, biz.Config{
		CacheTTL: config.Cache.DefaultTTL,
	}, log, m)
	translator := compatbiz.NewTranslator(gateway, log, m)

	svc := server.Services{
		Search:     service.NewSearchService(gateway, log),
		Compat:     compatservice.NewCompatService(translator, log),
		Translator: translator,
		Metrics:    m,
	}
	switch {
	case config.Admin.JWTSecret != "":
		svc.JWT = auth.NewJWTManager(config.Admin.JWTSecret, config.Admin.JWTIssuer, config.Admin.TokenTTL)
	case config.Admin.Insecure:
		log.Warn("admin.insecure is set, admin endpoints are unauthenticated")
	}
	if config.InboundLimit.Enabled {
		svc.Limiter = middleware.NewRateLimiter(d.Redis, middleware.RateLimiterConfig{
			MaxRequests:   config.InboundLimit.MaxRequests,
			WindowSeconds: config.InboundLimit.WindowSeconds,
			KeyPrefix:     config.Cache.Prefix + "inbound",
		}, log, m)
	}

	// Health reporting
	healthServer := health.NewServer()
	var reporter *job.Reporter
	if config.Reporter.Enabled {
		reporter, err = job.NewReporter(config.Reporter.Spec, gateway, healthServer, log)
		if err != nil {
			log.Fatal("failed to initialize reporter", zap.Error(err))
		}
		reporter.RunOnce(context.Background())
		reporter.Start()
	}

	// Initialize servers
	httpServer := server.NewHTTPServer(config, log, server.NewRouter(config, log, svc))
	grpcServer := server.NewGRPCServer(config, log, healthServer)

	// Start servers in goroutines
	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			log.Fatal("failed to start gRPC server", zap.Error(err))
		}
	}()

	log.Info("servers started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down servers...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if reporter != nil {
		reporter.Stop(ctx)
	}

	grpcServer.Stop()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	if err := pool.Shutdown(5 * time.Second); err != nil {
		log.Warn("dispatch queue did not drain", zap.Error(err))
	}

	log.Info("servers exited")
}

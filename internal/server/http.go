package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/serp-gateway/internal/auth"
	authmw "github.com/lk2023060901/serp-gateway/internal/auth/middleware"
	compatbiz "github.com/lk2023060901/serp-gateway/internal/compat/biz"
	compatservice "github.com/lk2023060901/serp-gateway/internal/compat/service"
	"github.com/lk2023060901/serp-gateway/internal/conf"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/metrics"
	"github.com/lk2023060901/serp-gateway/internal/server/middleware"
	searchservice "github.com/lk2023060901/serp-gateway/internal/websearch/service"
)

// EndpointInboundLimit labels compat envelopes rejected by the inbound limiter
const EndpointInboundLimit = "inbound_limit"

// Services 路由依赖
type Services struct {
	Search     *searchservice.SearchService
	Compat     *compatservice.CompatService
	Translator *compatbiz.Translator
	Metrics    *metrics.Metrics
	// JWT 为 nil 时不注册管理接口，除非 admin.insecure 为 true
	JWT *auth.JWTManager
	// Limiter 为 nil 时不做入站限流
	Limiter *middleware.RateLimiter
}

type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

// NewRouter 组装 gin 路由
func NewRouter(config *conf.Config, log *logger.Logger, svc Services) *gin.Engine {
	log = logger.OrGlobal(log)
	if config.Server.Mode != "" {
		gin.SetMode(config.Server.Mode)
	}

	router := gin.New()
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log, logger.MiddlewareOptions{
		SkipPaths: []string{"/health/live", "/health/ready", "/metrics"},
	}))
	router.Use(authmw.CORS())

	svc.Search.RegisterHealthRoutes(router)
	router.GET("/metrics", gin.WrapH(svc.Metrics.Handler()))

	api := router.Group("/api/v1")
	if svc.Limiter != nil {
		api.Use(svc.Limiter.Middleware(nil))
	}
	svc.Search.RegisterRoutes(api)

	v3 := router.Group("/v3")
	if svc.Limiter != nil {
		v3.Use(svc.Limiter.Middleware(compatReject(svc.Translator)))
	}
	svc.Compat.RegisterRoutes(v3)

	if svc.JWT == nil && !config.Admin.Insecure {
		log.Warn("admin routes disabled: admin.jwt_secret is empty and admin.insecure is false")
		return router
	}
	admin := router.Group("/admin",
		authmw.AdminAuth(svc.JWT, log),
		authmw.RequireRole(auth.RoleAdmin),
	)
	svc.Search.RegisterAdminRoutes(admin)

	return router
}

// compatReject keeps the envelope contract for rate limited compat callers
func compatReject(t *compatbiz.Translator) middleware.RejectFunc {
	return func(c *gin.Context, d middleware.Decision) {
		c.JSON(http.StatusOK, t.Reject(c.Request.Context(), EndpointInboundLimit, middleware.ErrRateLimited))
	}
}

func NewHTTPServer(config *conf.Config, log *logger.Logger, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:    config.Server.Addr(),
			Handler: handler,
		},
		logger: logger.OrGlobal(log).Named("http"),
	}
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

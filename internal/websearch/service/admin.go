package service

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/lk2023060901/serp-gateway/internal/pkg/errors"
	"github.com/lk2023060901/serp-gateway/internal/pkg/response"
)

// RegisterAdminRoutes 注册管理路由，鉴权由调用方的中间件负责
func (s *SearchService) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/metrics", s.GetMetrics)
	r.POST("/circuit-breaker/reset", s.ResetCircuitBreaker)
	r.GET("/cache/stats", s.GetCacheStats)
	r.DELETE("/cache", s.ClearCache)
	r.GET("/log/level", s.GetLogLevel)
	r.PUT("/log/level", s.SetLogLevel)
}

// GetMetrics 网关计数、限流窗口与熔断器状态
func (s *SearchService) GetMetrics(c *gin.Context) {
	response.Success(c, s.gw.Metrics())
}

// ResetCircuitBreaker 手动关闭熔断器
func (s *SearchService) ResetCircuitBreaker(c *gin.Context) {
	m := s.gw.ResetCircuitBreaker()
	s.logger.WithContext(c.Request.Context()).Info("circuit breaker reset by admin",
		zap.String("subject", c.GetString("admin_subject")),
	)
	response.Success(c, m)
}

// GetCacheStats 缓存统计
func (s *SearchService) GetCacheStats(c *gin.Context) {
	response.Success(c, s.gw.CacheStats(c.Request.Context()))
}

// ClearCache 按前缀清理缓存，prefix 为空时清空命名空间
func (s *SearchService) ClearCache(c *gin.Context) {
	prefix := c.Query("prefix")
	deleted := s.gw.ClearCache(c.Request.Context(), prefix)

	s.logger.WithContext(c.Request.Context()).Info("cache cleared by admin",
		zap.String("prefix", prefix),
		zap.Int("deleted", deleted),
		zap.String("subject", c.GetString("admin_subject")),
	)
	response.Success(c, gin.H{
		"prefix":  prefix,
		"deleted": deleted,
	})
}

type logLevelRequest struct {
	Level string `json:"level" binding:"required"`
}

// GetLogLevel 当前日志级别
func (s *SearchService) GetLogLevel(c *gin.Context) {
	response.Success(c, gin.H{"level": s.logger.Level()})
}

// SetLogLevel 运行时调整全局日志级别
func (s *SearchService) SetLogLevel(c *gin.Context) {
	var req logLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	previous := s.logger.Level()
	if err := s.logger.SetLevel(req.Level); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	s.logger.WithContext(c.Request.Context()).Warn("log level changed by admin",
		zap.String("from", previous),
		zap.String("to", s.logger.Level()),
		zap.String("subject", c.GetString("admin_subject")),
	)
	response.Success(c, gin.H{"level": s.logger.Level(), "previous": previous})
}

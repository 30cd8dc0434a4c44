package service

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/serp-gateway/internal/pkg/breaker"
)

// RegisterHealthRoutes 注册健康检查路由
func (s *SearchService) RegisterHealthRoutes(r gin.IRoutes) {
	r.GET("/health", s.Health)
	r.GET("/health/live", s.Live)
	r.GET("/health/ready", s.Ready)
}

// Health 上游实时探测 + 缓存探测
func (s *SearchService) Health(c *gin.Context) {
	ctx := c.Request.Context()
	gateway := s.gw.HealthCheck(ctx)
	cache := s.gw.CacheHealth(ctx)

	status := http.StatusOK
	state := "ok"
	if !gateway.Healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	} else if !cache.Healthy {
		state = "degraded"
	}

	c.JSON(status, gin.H{
		"status":  state,
		"time":    time.Now().Format(time.RFC3339),
		"gateway": gateway,
		"cache":   cache,
	})
}

// Live 进程存活
func (s *SearchService) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Ready 熔断器未打开即可接收流量
func (s *SearchService) Ready(c *gin.Context) {
	state := s.gw.CircuitState()
	if state == breaker.StateOpen {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":          "not_ready",
			"circuit_breaker": state,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "ready",
		"circuit_breaker": state,
	})
}

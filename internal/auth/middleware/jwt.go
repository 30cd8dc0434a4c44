package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/serp-gateway/internal/auth"
	apperrors "github.com/lk2023060901/serp-gateway/internal/pkg/errors"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/response"
)

// Context keys set by AdminAuth
const (
	ContextKeySubject = "admin_subject"
	ContextKeyRole    = "role"
)

// AdminAuth JWT 认证中间件，manager 为 nil 时不做认证
func AdminAuth(manager *auth.JWTManager, log *logger.Logger) gin.HandlerFunc {
	log = logger.OrGlobal(log)

	return func(c *gin.Context) {
		if manager == nil {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AbortWithCode(c, apperrors.ErrUnauthorized, "missing authorization")
			return
		}

		token, err := auth.ExtractTokenFromHeader(authHeader)
		if err != nil {
			response.AbortWithCode(c, apperrors.ErrUnauthorized, err.Error())
			return
		}

		claims, err := manager.VerifyToken(token)
		if err != nil {
			log.Warn("invalid admin token",
				zap.Error(err),
				zap.String("ip", c.ClientIP()))
			response.AbortWithCode(c, apperrors.ErrUnauthorized, "invalid or expired token")
			return
		}

		c.Set(ContextKeySubject, claims.Subject)
		c.Set(ContextKeyRole, claims.Role)
		c.Next()
	}
}

// RequireRole 角色验证中间件（需要先经过 AdminAuth）
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 未启用认证时 AdminAuth 不写入角色
		if _, authed := c.Get(ContextKeySubject); !authed {
			c.Next()
			return
		}

		role := c.GetString(ContextKeyRole)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.AbortWithCode(c, apperrors.ErrForbidden, "insufficient permissions")
	}
}

// GetSubject 从上下文获取令牌主体
func GetSubject(c *gin.Context) (string, bool) {
	subject := c.GetString(ContextKeySubject)
	return subject, subject != ""
}

// CORS 跨域中间件
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		origin := c.Request.Header.Get("Origin")

		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
			c.Header("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "Content-Length, X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset")
		}

		if method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

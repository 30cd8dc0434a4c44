package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// 客户端传入的请求 ID 超过该长度时重新生成
const maxRequestIDLen = 64

// internalErrorCode 与 apperrors.ErrInternalServer 一致
const internalErrorCode = 1000

// MiddlewareOptions configures the logger middleware
type MiddlewareOptions struct {
	// SkipPaths 不记录日志的路径（探针等）
	SkipPaths []string
	// SkipPathPrefixes 不记录日志的路径前缀
	SkipPathPrefixes []string
}

// GinLogger 注入请求 ID 并记录访问日志，5xx 为 error，4xx 为 warn
func GinLogger(logger *Logger, opts MiddlewareOptions) gin.HandlerFunc {
	skip := methodSet(opts.SkipPaths)

	return func(c *gin.Context) {
		requestID := requestIDFrom(c.GetHeader(RequestIDHeader))
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))
		c.Header(RequestIDHeader, requestID)

		path := c.Request.URL.Path
		if skip[path] || hasAnyPrefix(path, opts.SkipPathPrefixes) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ce := logger.Check(statusLevel(status), "HTTP Request")
		if ce == nil {
			return
		}

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("route", c.FullPath()),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		ce.Write(fields...)
	}
}

// GinRecovery 捕获 panic 并返回统一的 500 响应
func GinRecovery(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.String("request_id", GetRequestID(c.Request.Context())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    internalErrorCode,
					"message": "Internal server error",
					"data":    struct{}{},
				})
			}
		}()

		c.Next()
	}
}

func requestIDFrom(header string) string {
	header = strings.TrimSpace(header)
	if header == "" || len(header) > maxRequestIDLen || strings.ContainsFunc(header, isControl) {
		return uuid.NewString()
	}
	return header
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

func statusLevel(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

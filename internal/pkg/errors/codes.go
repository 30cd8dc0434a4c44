package errors

import (
	"fmt"
	"net/http"
)

// Code 错误码定义
type Code struct {
	Code    int
	Status  int
	Message string
}

const (
	Success = 0

	// 通用错误 (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrUnauthorized    = 1003
	ErrForbidden       = 1004
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008

	// 搜索网关错误 (6000-6999)
	ErrUpstreamFailed       = 6000
	ErrUpstreamRateLimited  = 6001
	ErrUpstreamUnauthorized = 6002
	ErrUpstreamTimeout      = 6003
	ErrCircuitOpen          = 6004
	ErrSearchInvalidParams  = 6005
)

var codeMap = map[int]Code{}

func register(code, status int, message string) {
	codeMap[code] = Code{Code: code, Status: status, Message: message}
}

func init() {
	register(Success, http.StatusOK, "Success")

	register(ErrInternalServer, http.StatusInternalServerError, "Internal server error")
	register(ErrInvalidParams, http.StatusBadRequest, "Invalid parameters")
	register(ErrUnauthorized, http.StatusUnauthorized, "Unauthorized")
	register(ErrForbidden, http.StatusForbidden, "Forbidden")
	register(ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests")
	register(ErrBadRequest, http.StatusBadRequest, "Bad request")
	register(ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable")

	register(ErrUpstreamFailed, http.StatusBadGateway, "Upstream search request failed")
	register(ErrUpstreamRateLimited, http.StatusTooManyRequests, "Upstream rate limit exceeded")
	register(ErrUpstreamUnauthorized, http.StatusBadGateway, "Upstream rejected credentials")
	register(ErrUpstreamTimeout, http.StatusGatewayTimeout, "Upstream request timed out")
	register(ErrCircuitOpen, http.StatusServiceUnavailable, "Circuit breaker is open")
	register(ErrSearchInvalidParams, http.StatusBadRequest, "Invalid search parameters")
}

// GetCode 未注册的错误码按内部错误处理
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus 错误码对应的 HTTP 状态
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage 错误码对应的默认文案
func GetMessage(code int) string {
	return GetCode(code).Message
}

// UpstreamCode 将上游 HTTP 状态映射为网关错误码
func UpstreamCode(status int) int {
	switch status {
	case http.StatusTooManyRequests:
		return ErrUpstreamRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUpstreamUnauthorized
	case http.StatusGatewayTimeout:
		return ErrUpstreamTimeout
	default:
		return ErrUpstreamFailed
	}
}

// FormatError 文案加详情
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}

package errors

import (
	"errors"
	"fmt"
)

// AppError 带业务错误码的错误
type AppError struct {
	Code    int
	Message string
	Err     error
	Details string
	// UpstreamStatus 上游返回的 HTTP 状态，0 表示未到达上游
	UpstreamStatus int
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("[%d] %s", e.Code, e.Message)
	if e.UpstreamStatus != 0 {
		msg = fmt.Sprintf("%s (upstream %d)", msg, e.UpstreamStatus)
	}
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	case e.Details != "":
		return fmt.Sprintf("%s: %s", msg, e.Details)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus 返回给原生调用方的 HTTP 状态
func (e *AppError) HTTPStatus() int {
	return GetHTTPStatus(e.Code)
}

// New 按错误码创建
func New(code int, details ...string) *AppError {
	return &AppError{
		Code:    code,
		Message: GetMessage(code),
		Details: first(details),
	}
}

// Wrap 包装底层错误；已是 AppError 时保留原错误码，返回副本
func Wrap(err error, code int, details ...string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		cp := *appErr
		if d := first(details); d != "" {
			cp.Details = d
		}
		return &cp
	}

	return &AppError{
		Code:    code,
		Message: GetMessage(code),
		Err:     err,
		Details: first(details),
	}
}

// Is 判断错误链上是否有指定错误码的 AppError
func Is(err error, code int) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ExtractCode 非 AppError 一律视为内部错误
func ExtractCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServer
}

// GetDetails 优先返回 Details，其次是底层错误文本
func GetDetails(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Details != "" {
			return appErr.Details
		}
		if appErr.Err != nil {
			return appErr.Err.Error()
		}
		return ""
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// GetUpstreamStatus 提取上游 HTTP 状态
func GetUpstreamStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.UpstreamStatus
	}
	return 0
}

// NewCircuitOpenError 熔断器拒绝的调用
func NewCircuitOpenError(err error) *AppError {
	return Wrap(err, ErrCircuitOpen)
}

// NewUpstreamError 上游调用失败，status 为上游 HTTP 状态（网络错误时为 0）
func NewUpstreamError(err error, status int, details string) *AppError {
	appErr := Wrap(err, UpstreamCode(status), details)
	if appErr != nil {
		appErr.UpstreamStatus = status
	}
	return appErr
}

func first(details []string) string {
	if len(details) > 0 {
		return details[0]
	}
	return ""
}

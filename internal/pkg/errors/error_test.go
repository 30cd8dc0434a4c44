package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Wrap(t *testing.T) {
	base := errors.New("connection reset")
	err := Wrap(base, ErrUpstreamFailed, "serper")

	assert.Equal(t, ErrUpstreamFailed, ExtractCode(err))
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus())
	assert.Equal(t, "serper", GetDetails(err))
	assert.True(t, errors.Is(err, base))
	assert.Nil(t, Wrap(nil, ErrUpstreamFailed))
}

func TestAppError_WrapKeepsOriginal(t *testing.T) {
	orig := New(ErrCircuitOpen, "first")
	wrapped := Wrap(orig, ErrInternalServer, "second")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrCircuitOpen, wrapped.Code)
	assert.Equal(t, "second", wrapped.Details)
	// 原错误不被修改
	assert.Equal(t, "first", orig.Details)
}

func TestNewUpstreamError(t *testing.T) {
	tests := []struct {
		status int
		want   int
		http   int
	}{
		{429, ErrUpstreamRateLimited, http.StatusTooManyRequests},
		{401, ErrUpstreamUnauthorized, http.StatusBadGateway},
		{403, ErrUpstreamUnauthorized, http.StatusBadGateway},
		{504, ErrUpstreamTimeout, http.StatusGatewayTimeout},
		{500, ErrUpstreamFailed, http.StatusBadGateway},
		{0, ErrUpstreamFailed, http.StatusBadGateway},
	}

	for _, tt := range tests {
		err := NewUpstreamError(errors.New("boom"), tt.status, "details")
		assert.Equal(t, tt.want, err.Code, "status %d", tt.status)
		assert.Equal(t, tt.http, GetHTTPStatus(err.Code), "status %d", tt.status)
		assert.Equal(t, tt.status, GetUpstreamStatus(err), "status %d", tt.status)
	}
}

func TestAppError_Error(t *testing.T) {
	err := NewUpstreamError(errors.New("boom"), 500, "")
	assert.Equal(t, "[6000] Upstream search request failed (upstream 500): boom", err.Error())

	assert.Equal(t, "[6005] Invalid search parameters: q is required", New(ErrSearchInvalidParams, "q is required").Error())
	assert.Equal(t, "[1000] Internal server error", New(ErrInternalServer).Error())
}

func TestExtractCode_PlainError(t *testing.T) {
	assert.Equal(t, ErrInternalServer, ExtractCode(errors.New("x")))
	assert.Equal(t, 0, GetUpstreamStatus(errors.New("x")))
	assert.Equal(t, http.StatusServiceUnavailable, GetHTTPStatus(ErrCircuitOpen))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(9999))
	assert.True(t, Is(NewCircuitOpenError(errors.New("open")), ErrCircuitOpen))
	assert.Equal(t, "Invalid search parameters: q is required", FormatError(ErrSearchInvalidParams, "q is required"))
}

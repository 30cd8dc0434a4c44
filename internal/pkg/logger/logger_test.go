package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "default config", config: DefaultConfig()},
		{name: "nil config", config: nil},
		{
			name:   "console format",
			config: &Config{Level: "debug", Format: "console", Output: "console"},
		},
		{
			name: "file output",
			config: &Config{
				Level:  "info",
				Format: "json",
				Output: "both",
				File:   FileConfig{Filename: filepath.Join(dir, "app.log"), MaxSize: 10, MaxAge: 7, MaxBackups: 3},
			},
		},
		{name: "invalid level", config: &Config{Level: "verbose", Format: "json", Output: "console"}, wantErr: true},
		{name: "invalid format", config: &Config{Level: "info", Format: "xml", Output: "console"}, wantErr: true},
		{name: "invalid output", config: &Config{Level: "info", Format: "json", Output: "syslog"}, wantErr: true},
		{
			name:    "file output without filename",
			config:  &Config{Level: "info", Format: "json", Output: "file"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.Info("hello")
			_ = logger.Sync()
		})
	}
}

func TestLogger_SetLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	root := NewFromZap(zap.New(core))
	child := root.Named("cache").With(zap.String("k", "v"))

	child.Debug("visible")
	require.NoError(t, root.SetLevel("warn"))
	assert.Equal(t, "warn", child.Level())

	child.Info("hidden")
	child.Warn("shown")
	assert.Error(t, root.SetLevel("loud"))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "visible", logs.All()[0].Message)
	assert.Equal(t, "shown", logs.All()[1].Message)
}

func TestNew_Level(t *testing.T) {
	l, err := New(&Config{Level: "error", Format: "json", Output: "console"})
	require.NoError(t, err)
	assert.Equal(t, "error", l.Level())
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	require.NoError(t, l.SetLevel("debug"))
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestLogger_WithContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewFromZap(zap.New(core))

	ctx := WithRequestID(context.Background(), "req-1")
	logger.WithContext(ctx).Info("with id")
	logger.WithContext(context.Background()).Info("without id")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "req-1", logs.All()[0].ContextMap()["request_id"])
	assert.NotContains(t, logs.All()[1].ContextMap(), "request_id")
}

func TestGetRequestID(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))

	ctx := WithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", GetRequestID(ctx))
}

func TestOrGlobal(t *testing.T) {
	nop := NewNop()
	assert.Same(t, nop, OrGlobal(nop))
	assert.NotNil(t, OrGlobal(nil))
}

func TestGinLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewFromZap(zap.New(core))

	r := gin.New()
	r.Use(GinLogger(logger, MiddlewareOptions{SkipPaths: []string{"/health/live"}}))
	r.GET("/health/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, 0, logs.Len())

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set(RequestIDHeader, "given-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "given-id", w.Header().Get(RequestIDHeader))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "given-id", entry.ContextMap()["request_id"])
	assert.Equal(t, "/fail", entry.ContextMap()["route"])
}

func TestRequestIDFrom(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"caller id", "abc-123", true},
		{"empty", "", false},
		{"too long", strings.Repeat("x", maxRequestIDLen+1), false},
		{"control chars", "id\nforged=1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := requestIDFrom(tt.header)
			if tt.keep {
				assert.Equal(t, tt.header, got)
				return
			}
			assert.NotEqual(t, tt.header, got)
			assert.Len(t, got, 36)
		})
	}
}

func TestGinRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.ErrorLevel)
	logger := NewFromZap(zap.New(core))

	r := gin.New()
	r.Use(GinRecovery(logger))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, logs.Len())
}

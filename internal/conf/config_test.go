package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://google.serper.dev", cfg.Upstream.BaseURL)
	assert.Equal(t, "serp:", cfg.Cache.Prefix)
	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.CircuitBreaker.ResetTimeout)
	assert.Equal(t, 1, cfg.CircuitBreaker.HalfOpenTrials)
	assert.Equal(t, 1, cfg.Dispatch.Concurrency)
	assert.Empty(t, cfg.Admin.JWTSecret)
	assert.False(t, cfg.Admin.Insecure)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
upstream:
  api_key: "k1, k2"
cache:
  default_ttl: 10m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SERP_SERVER_GRPC_PORT", "9100")
	t.Setenv("SERP_ADMIN_INSECURE", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 9100, cfg.Server.GRPCPort)
	assert.Equal(t, 10*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Upstream.APIKeys())
	assert.True(t, cfg.Admin.Insecure)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}

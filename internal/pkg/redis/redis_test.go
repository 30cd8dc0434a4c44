package redis

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
)

const testRedisAddr = "localhost:6379"

// setupTestClient 连接本地 Redis，不可用时跳过
func setupTestClient(t *testing.T) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Addrs = []string{testRedisAddr}
	cfg.DialTimeout = 300 * time.Millisecond
	cfg.MaxRetries = 0

	client, err := New(cfg, logger.NewNop())
	if err != nil {
		t.Skipf("redis not available at %s: %v", testRedisAddr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "no addrs", mutate: func(c *Config) { c.Addrs = nil }, wantErr: true},
		{name: "bad mode", mutate: func(c *Config) { c.Mode = "read-write" }, wantErr: true},
		{name: "sentinel without master", mutate: func(c *Config) { c.Mode = ModeSentinel }, wantErr: true},
		{name: "sentinel", mutate: func(c *Config) { c.Mode = ModeSentinel; c.MasterName = "mymaster" }},
		{name: "cluster", mutate: func(c *Config) { c.Mode = ModeCluster; c.Addrs = []string{"a:1", "b:2"} }},
		{name: "db out of range", mutate: func(c *Config) { c.DB = 16 }, wantErr: true},
		{name: "zero pool", mutate: func(c *Config) { c.PoolSize = 0 }, wantErr: true},
		{name: "idle exceeds pool", mutate: func(c *Config) { c.MinIdleConns = 50 }, wantErr: true},
		{name: "zero dial timeout", mutate: func(c *Config) { c.DialTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseUsedMemory(t *testing.T) {
	info := "# Memory\r\nused_memory:1048576\r\nused_memory_human:1.00M\r\n"
	assert.Equal(t, int64(1048576), ParseUsedMemory(info))
	assert.Equal(t, int64(0), ParseUsedMemory("# Memory\r\n"))
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, IsConnectionError(nil))
	assert.False(t, IsConnectionError(redis.Nil))
	assert.True(t, IsConnectionError(redis.ErrClosed))
	assert.True(t, IsConnectionError(context.DeadlineExceeded))
	assert.True(t, IsConnectionError(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.False(t, IsConnectionError(errors.New("WRONGTYPE")))
}

func TestNew_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addrs = []string{"127.0.0.1:1"}
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.MaxRetries = 0

	_, err := New(cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestClient_Operations(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	key := "serp-gateway:test:" + time.Now().Format("150405.000000")

	require.NoError(t, client.Set(ctx, key, `{"a":1}`, time.Minute))

	val, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(val))

	n, err := client.Exists(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := client.Expire(ctx, key, 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := client.TTL(ctx, key)
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Minute)

	vals, err := client.MGet(ctx, key, key+":missing")
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.NotNil(t, vals[0])
	assert.Nil(t, vals[1])

	var found []string
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, key+"*", 100)
		require.NoError(t, err)
		found = append(found, keys...)
		if cursor = next; cursor == 0 {
			break
		}
	}
	assert.Contains(t, found, key)

	deleted, err := client.Del(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = client.Get(ctx, key)
	assert.True(t, IsNil(err))
}

func TestNewLazy_DoesNotDial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addrs = []string{"127.0.0.1:1"}
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.MaxRetries = 0

	client, err := NewLazy(cfg, logger.NewNop())
	require.NoError(t, err)
	defer client.Close()

	err = client.Ping(context.Background())
	assert.Error(t, err)
	assert.True(t, IsConnectionError(err))

	_, err = NewLazy(&Config{}, logger.NewNop())
	assert.Error(t, err)
}

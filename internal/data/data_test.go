package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/serp-gateway/internal/conf"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/redis"
)

func TestRedisConfig(t *testing.T) {
	cfg := &conf.Config{Redis: conf.RedisConfig{
		Mode:        "cluster",
		Addrs:       []string{"r1:6379", "r2:6379"},
		Password:    "pw",
		DB:          0,
		PoolSize:    20,
		DialTimeout: time.Second,
	}}

	rc := RedisConfig(cfg)
	assert.Equal(t, redis.ModeCluster, rc.Mode)
	assert.Equal(t, []string{"r1:6379", "r2:6379"}, rc.Addrs)
	assert.Equal(t, "pw", rc.Password)
	assert.Equal(t, 20, rc.PoolSize)
	assert.Equal(t, time.Second, rc.DialTimeout)
	assert.Equal(t, 3*time.Second, rc.ReadTimeout)
}

func TestNewData_UnreachableRedisIsNotFatal(t *testing.T) {
	cfg := &conf.Config{Redis: conf.RedisConfig{
		Addrs:       []string{"127.0.0.1:1"},
		DialTimeout: 100 * time.Millisecond,
	}}

	d, cleanup, err := NewData(cfg, logger.NewNop())
	require.NoError(t, err)
	require.NotNil(t, d.Redis)
	cleanup()
}

func TestNewData_InvalidConfig(t *testing.T) {
	cfg := &conf.Config{Redis: conf.RedisConfig{Mode: "bogus"}}
	_, _, err := NewData(cfg, logger.NewNop())
	assert.Error(t, err)
}

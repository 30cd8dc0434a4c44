package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client Redis 客户端封装
type Client struct {
	config *Config
	logger *logger.Logger
	rdb    redis.UniversalClient
}

// New 创建 Redis 客户端并执行一次 Ping
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := NewWithUniversal(newUniversal(cfg), log)
	client.config = cfg

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	client.logger.Info("redis client initialized successfully",
		zap.String("mode", string(cfg.Mode)),
		zap.Strings("addrs", cfg.Addrs),
	)

	return client, nil
}

// NewLazy 创建客户端但不检查连通性，连接在首次命令时建立
func NewLazy(cfg *Config, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := NewWithUniversal(newUniversal(cfg), log)
	client.config = cfg
	return client, nil
}

// NewWithUniversal 包装已有的 go-redis 客户端，不做连通性检查
func NewWithUniversal(rdb redis.UniversalClient, log *logger.Logger) *Client {
	return &Client{
		config: DefaultConfig(),
		logger: logger.OrGlobal(log).Named("redis"),
		rdb:    rdb,
	}
}

func newUniversal(cfg *Config) redis.UniversalClient {
	opts := &redis.UniversalOptions{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,

		MaxRetries: cfg.MaxRetries,
	}

	switch cfg.Mode {
	case ModeSentinel:
		opts.MasterName = cfg.MasterName
		opts.DB = cfg.DB
		return redis.NewFailoverClient(opts.Failover())
	case ModeCluster:
		return redis.NewClusterClient(opts.Cluster())
	default:
		opts.DB = cfg.DB
		opts.Addrs = cfg.Addrs[:1]
		return redis.NewClient(opts.Simple())
	}
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return ErrNotInitialized
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.logger.Error("redis ping failed", zap.Error(err))
		return err
	}
	return nil
}

// PingLatency 返回一次 Ping 的耗时
func (c *Client) PingLatency(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := c.Ping(ctx)
	return time.Since(start), err
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Close(); err != nil {
		c.logger.Error("close redis client failed", zap.Error(err))
		return err
	}
	c.logger.Info("redis client closed")
	return nil
}

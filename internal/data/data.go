package data

import (
	"go.uber.org/zap"

	"github.com/lk2023060901/serp-gateway/internal/conf"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/redis"
)

// Data holds the external stores shared by the gateway
type Data struct {
	Redis  *redis.Client
	Logger *logger.Logger
}

// NewData connects to Redis. An unreachable Redis is not fatal: the client is
// created without a connectivity check and the cache runs degraded until it
// comes back.
func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	log = logger.OrGlobal(log).Named("data")
	cfg := RedisConfig(config)

	client, err := redis.New(cfg, log)
	if err != nil {
		log.Warn("redis unavailable at startup, cache degraded", zap.Error(err))
		client, err = redis.NewLazy(cfg, log)
		if err != nil {
			return nil, nil, err
		}
	}

	d := &Data{
		Redis:  client,
		Logger: log,
	}

	cleanup := func() {
		log.Info("cleaning up data resources")
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis", zap.Error(err))
		}
	}

	return d, cleanup, nil
}

// RedisConfig maps the application config onto the redis client config
func RedisConfig(config *conf.Config) *redis.Config {
	cfg := redis.DefaultConfig()
	rc := config.Redis

	if rc.Mode != "" {
		cfg.Mode = redis.DeployMode(rc.Mode)
	}
	if len(rc.Addrs) > 0 {
		cfg.Addrs = rc.Addrs
	}
	cfg.Password = rc.Password
	cfg.DB = rc.DB
	if rc.PoolSize > 0 {
		cfg.PoolSize = rc.PoolSize
	}
	if rc.DialTimeout > 0 {
		cfg.DialTimeout = rc.DialTimeout
	}
	if rc.ReadTimeout > 0 {
		cfg.ReadTimeout = rc.ReadTimeout
	}
	if rc.WriteTimeout > 0 {
		cfg.WriteTimeout = rc.WriteTimeout
	}
	return cfg
}

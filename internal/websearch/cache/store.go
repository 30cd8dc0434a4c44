package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/metrics"
	"github.com/lk2023060901/serp-gateway/internal/pkg/redis"
)

// Backend is the subset of the Redis client used by the store
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
	Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error)
	UsedMemory(ctx context.Context) (int64, error)
	PingLatency(ctx context.Context) (time.Duration, error)
}

var _ Backend = (*redis.Client)(nil)

// Config cache namespace and defaults
type Config struct {
	Prefix     string
	DefaultTTL time.Duration
	ScanBatch  int64
}

// Stats backend summary for the admin API
type Stats struct {
	Connected   bool  `json:"connected"`
	KeyCount    int64 `json:"keyCount"`
	MemoryUsage int64 `json:"memoryUsage"`
}

// Health is the result of a cache ping
type Health struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// Store is a namespaced JSON cache. Backend failures are logged and reported
// as misses, never returned to the caller.
type Store struct {
	backend   Backend
	config    Config
	connected atomic.Bool
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

// New creates a store over backend
func New(backend Backend, cfg Config, log *logger.Logger, m *metrics.Metrics) *Store {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.ScanBatch <= 0 {
		cfg.ScanBatch = 500
	}

	s := &Store{
		backend: backend,
		config:  cfg,
		logger:  logger.OrGlobal(log).Named("cache"),
		metrics: m,
	}
	s.connected.Store(backend != nil)
	return s
}

// Key returns the namespaced backend key
func (s *Store) Key(key string) string {
	return s.config.Prefix + key
}

// Get decodes the cached value into dest; false on miss, backend error or decode error
func (s *Store) Get(ctx context.Context, key string, dest interface{}) bool {
	if s.backend == nil {
		return false
	}

	data, err := s.backend.Get(ctx, s.Key(key))
	if err != nil {
		if !redis.IsNil(err) {
			s.fail(ctx, "get", key, err)
		} else {
			s.ok()
		}
		return false
	}
	s.ok()

	if err := json.Unmarshal(data, dest); err != nil {
		s.logger.WithContext(ctx).Warn("cache value decode failed", zap.String("key", key), zap.Error(err))
		s.metrics.RecordCacheError("decode")
		return false
	}
	return true
}

// Set encodes value as JSON and stores it; ttl <= 0 uses the default TTL
func (s *Store) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	if s.backend == nil {
		return false
	}
	if ttl <= 0 {
		ttl = s.config.DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.logger.WithContext(ctx).Warn("cache value encode failed", zap.String("key", key), zap.Error(err))
		s.metrics.RecordCacheError("encode")
		return false
	}

	if err := s.backend.Set(ctx, s.Key(key), data, ttl); err != nil {
		s.fail(ctx, "set", key, err)
		return false
	}
	s.ok()
	return true
}

// Delete removes key; true if it existed
func (s *Store) Delete(ctx context.Context, key string) bool {
	if s.backend == nil {
		return false
	}
	n, err := s.backend.Del(ctx, s.Key(key))
	if err != nil {
		s.fail(ctx, "delete", key, err)
		return false
	}
	s.ok()
	return n > 0
}

// Exists reports whether key is cached
func (s *Store) Exists(ctx context.Context, key string) bool {
	if s.backend == nil {
		return false
	}
	n, err := s.backend.Exists(ctx, s.Key(key))
	if err != nil {
		s.fail(ctx, "exists", key, err)
		return false
	}
	s.ok()
	return n > 0
}

// Expire resets the TTL of key
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	if s.backend == nil {
		return false
	}
	ok, err := s.backend.Expire(ctx, s.Key(key), ttl)
	if err != nil {
		s.fail(ctx, "expire", key, err)
		return false
	}
	s.ok()
	return ok
}

// MGet returns the raw JSON for each key, nil for misses. A backend failure yields all nils.
func (s *Store) MGet(ctx context.Context, keys []string) []json.RawMessage {
	out := make([]json.RawMessage, len(keys))
	if s.backend == nil || len(keys) == 0 {
		return out
	}

	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = s.Key(k)
	}

	vals, err := s.backend.MGet(ctx, namespaced...)
	if err != nil {
		s.fail(ctx, "mget", "", err)
		return out
	}
	s.ok()

	for i := range out {
		if i < len(vals) && vals[i] != nil && json.Valid(vals[i]) {
			out[i] = json.RawMessage(vals[i])
		}
	}
	return out
}

// Clear deletes every key under namespace+prefix and returns the number removed
func (s *Store) Clear(ctx context.Context, prefix string) int {
	if s.backend == nil {
		return 0
	}

	match := s.Key(prefix) + "*"
	keys, err := s.scan(ctx, match)
	if err != nil {
		s.fail(ctx, "clear", prefix, err)
		return 0
	}

	var deleted int64
	for start := 0; start < len(keys); start += int(s.config.ScanBatch) {
		end := min(start+int(s.config.ScanBatch), len(keys))
		n, err := s.backend.Del(ctx, keys[start:end]...)
		if err != nil {
			s.fail(ctx, "clear", prefix, err)
			return int(deleted)
		}
		deleted += n
	}
	s.ok()

	s.logger.WithContext(ctx).Info("cache cleared", zap.String("match", match), zap.Int64("deleted", deleted))
	return int(deleted)
}

// scan collects all keys matching match
func (s *Store) scan(ctx context.Context, match string) ([]string, error) {
	var (
		cursor uint64
		all    []string
	)
	for {
		keys, next, err := s.backend.Scan(ctx, cursor, match, s.config.ScanBatch)
		if err != nil {
			return nil, err
		}
		all = append(all, keys...)
		if cursor = next; cursor == 0 {
			return all, nil
		}
	}
}

// Stats counts keys under the namespace and reads backend memory usage
func (s *Store) Stats(ctx context.Context) Stats {
	if s.backend == nil {
		return Stats{}
	}

	keys, err := s.scan(ctx, s.Key("*"))
	if err != nil {
		s.fail(ctx, "stats", "", err)
		return Stats{Connected: s.Connected()}
	}

	mem, err := s.backend.UsedMemory(ctx)
	if err != nil {
		s.fail(ctx, "stats", "", err)
	} else {
		s.ok()
	}

	return Stats{
		Connected:   s.Connected(),
		KeyCount:    int64(len(keys)),
		MemoryUsage: mem,
	}
}

// HealthCheck pings the backend
func (s *Store) HealthCheck(ctx context.Context) Health {
	if s.backend == nil {
		return Health{Error: "cache backend not configured"}
	}

	latency, err := s.backend.PingLatency(ctx)
	if err != nil {
		s.fail(ctx, "ping", "", err)
		return Health{Latency: latency, Error: err.Error()}
	}
	s.ok()
	return Health{Healthy: true, Latency: latency}
}

// Connected reports whether the last backend call succeeded at the connection level
func (s *Store) Connected() bool {
	return s.connected.Load()
}

func (s *Store) ok() {
	if !s.connected.Swap(true) {
		s.logger.Info("cache backend reconnected")
	}
}

func (s *Store) fail(ctx context.Context, op, key string, err error) {
	s.metrics.RecordCacheError(op)
	if redis.IsConnectionError(err) && s.connected.Swap(false) {
		s.logger.Warn("cache backend disconnected", zap.Error(err))
	}
	s.logger.WithContext(ctx).Warn("cache operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}

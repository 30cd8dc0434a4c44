package cache

import (
	"context"
	"errors"
	"net"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/metrics"
	"github.com/lk2023060901/serp-gateway/internal/pkg/redis"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// memBackend is an in-memory Backend with TTL driven by a settable clock
type memBackend struct {
	mu   sync.Mutex
	data map[string]memEntry
	now  time.Time
	err  error
}

func newMemBackend() *memBackend {
	return &memBackend{
		data: make(map[string]memEntry),
		now:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (b *memBackend) advance(d time.Duration) {
	b.mu.Lock()
	b.now = b.now.Add(d)
	b.mu.Unlock()
}

func (b *memBackend) setErr(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

func (b *memBackend) liveLocked(key string) ([]byte, bool) {
	e, ok := b.data[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !b.now.Before(e.expiresAt) {
		delete(b.data, key)
		return nil, false
	}
	return e.value, true
}

func (b *memBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	v, ok := b.liveLocked(key)
	if !ok {
		return nil, redis.ErrNil
	}
	return v, nil
}

func (b *memBackend) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported value type")
	}
	e := memEntry{value: data}
	if expiration > 0 {
		e.expiresAt = b.now.Add(expiration)
	}
	b.data[key] = e
	return nil
}

func (b *memBackend) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if v, ok := b.liveLocked(k); ok {
			out[i] = v
		}
	}
	return out, nil
}

func (b *memBackend) Del(ctx context.Context, keys ...string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return 0, b.err
	}
	var n int64
	for _, k := range keys {
		if _, ok := b.liveLocked(k); ok {
			delete(b.data, k)
			n++
		}
	}
	return n, nil
}

func (b *memBackend) Exists(ctx context.Context, keys ...string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return 0, b.err
	}
	var n int64
	for _, k := range keys {
		if _, ok := b.liveLocked(k); ok {
			n++
		}
	}
	return n, nil
}

func (b *memBackend) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return false, b.err
	}
	v, ok := b.liveLocked(key)
	if !ok {
		return false, nil
	}
	b.data[key] = memEntry{value: v, expiresAt: b.now.Add(expiration)}
	return true, nil
}

// Scan pages through matching keys in sorted order; cursor is the next index
func (b *memBackend) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, 0, b.err
	}
	prefix := strings.TrimSuffix(match, "*")
	var all []string
	for k := range b.data {
		if _, ok := b.liveLocked(k); ok && strings.HasPrefix(k, prefix) {
			all = append(all, k)
		}
	}
	sort.Strings(all)

	start := int(cursor)
	if start >= len(all) {
		return nil, 0, nil
	}
	end := start + int(count)
	if end >= len(all) {
		return all[start:], 0, nil
	}
	return all[start:end], uint64(end), nil
}

func (b *memBackend) UsedMemory(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return 0, b.err
	}
	var n int64
	for k, e := range b.data {
		n += int64(len(k) + len(e.value))
	}
	return n, nil
}

func (b *memBackend) PingLatency(ctx context.Context) (time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return 0, b.err
	}
	return time.Millisecond, nil
}

func newTestStore(b Backend, m *metrics.Metrics) *Store {
	return New(b, Config{Prefix: "serp:", DefaultTTL: time.Hour, ScanBatch: 2}, logger.NewNop(), m)
}

type payload struct {
	Query   string   `json:"query"`
	Results []string `json:"results"`
}

func TestStore_RoundTripAndTTL(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b, nil)
	ctx := context.Background()

	want := payload{Query: "golang", Results: []string{"a", "b"}}
	require.True(t, s.Set(ctx, "k1", want, 10*time.Second))

	var got payload
	require.True(t, s.Get(ctx, "k1", &got))
	assert.Equal(t, want, got)

	b.advance(10 * time.Second)
	var expired payload
	assert.False(t, s.Get(ctx, "k1", &expired))
}

func TestStore_DefaultTTL(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b, nil)
	ctx := context.Background()

	require.True(t, s.Set(ctx, "k", "v", 0))
	b.advance(59 * time.Minute)
	assert.True(t, s.Exists(ctx, "k"))
	b.advance(time.Minute)
	assert.False(t, s.Exists(ctx, "k"))
}

func TestStore_Namespace(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b, nil)

	require.True(t, s.Set(context.Background(), "search:web:abc", 1, time.Minute))
	_, ok := b.data["serp:search:web:abc"]
	assert.True(t, ok)
}

func TestStore_DecodeFailureIsMiss(t *testing.T) {
	b := newMemBackend()
	m := metrics.New()
	s := newTestStore(b, m)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "serp:bad", "not json", time.Minute))

	var dest payload
	assert.False(t, s.Get(ctx, "bad", &dest))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheErrorsTotal.WithLabelValues("decode")))
}

func TestStore_DeleteExistsExpire(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b, nil)
	ctx := context.Background()

	require.True(t, s.Set(ctx, "k", "v", time.Minute))
	assert.True(t, s.Exists(ctx, "k"))

	assert.True(t, s.Expire(ctx, "k", 5*time.Minute))
	b.advance(2 * time.Minute)
	assert.True(t, s.Exists(ctx, "k"))

	assert.True(t, s.Delete(ctx, "k"))
	assert.False(t, s.Exists(ctx, "k"))
	assert.False(t, s.Delete(ctx, "k"))
	assert.False(t, s.Expire(ctx, "k", time.Minute))
}

func TestStore_MGet(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b, nil)
	ctx := context.Background()

	require.True(t, s.Set(ctx, "a", map[string]int{"n": 1}, time.Minute))
	require.True(t, s.Set(ctx, "c", "x", time.Minute))

	vals := s.MGet(ctx, []string{"a", "b", "c"})
	require.Len(t, vals, 3)
	assert.JSONEq(t, `{"n":1}`, string(vals[0]))
	assert.Nil(t, vals[1])
	assert.JSONEq(t, `"x"`, string(vals[2]))

	assert.Empty(t, s.MGet(ctx, nil))
}

func TestStore_Clear(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b, nil)
	ctx := context.Background()

	for _, k := range []string{"search:search:1", "search:search:2", "search:news:1", "search:news:2", "search:news:3", "other"} {
		require.True(t, s.Set(ctx, k, k, time.Minute))
	}
	require.NoError(t, b.Set(ctx, "foreign:search:x", "x", time.Minute))

	assert.Equal(t, 3, s.Clear(ctx, "search:news:"))
	assert.False(t, s.Exists(ctx, "search:news:1"))
	assert.True(t, s.Exists(ctx, "search:search:1"))

	assert.Equal(t, 3, s.Clear(ctx, ""))
	_, ok := b.data["foreign:search:x"]
	assert.True(t, ok)
}

func TestStore_Stats(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b, nil)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.True(t, s.Set(ctx, k, k, time.Minute))
	}
	require.NoError(t, b.Set(ctx, "foreign", "x", time.Minute))

	stats := s.Stats(ctx)
	assert.True(t, stats.Connected)
	assert.Equal(t, int64(3), stats.KeyCount)
	assert.Greater(t, stats.MemoryUsage, int64(0))
}

func TestStore_BackendFailureDegrades(t *testing.T) {
	b := newMemBackend()
	m := metrics.New()
	s := newTestStore(b, m)
	ctx := context.Background()

	require.True(t, s.Set(ctx, "k", "v", time.Minute))
	b.setErr(&net.OpError{Op: "dial", Err: errors.New("connection refused")})

	var v string
	assert.False(t, s.Get(ctx, "k", &v))
	assert.False(t, s.Connected())
	assert.False(t, s.Set(ctx, "k2", "v", time.Minute))
	assert.False(t, s.Exists(ctx, "k"))
	assert.False(t, s.Delete(ctx, "k"))
	assert.Equal(t, 0, s.Clear(ctx, ""))
	for _, raw := range s.MGet(ctx, []string{"k", "k2"}) {
		assert.Nil(t, raw)
	}

	health := s.HealthCheck(ctx)
	assert.False(t, health.Healthy)
	assert.NotEmpty(t, health.Error)
	assert.False(t, s.Stats(ctx).Connected)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheErrorsTotal.WithLabelValues("get")))

	b.setErr(nil)
	assert.True(t, s.Get(ctx, "k", &v))
	assert.Equal(t, "v", v)
	assert.True(t, s.Connected())
	assert.True(t, s.HealthCheck(ctx).Healthy)
}

func TestStore_NonConnectionErrorKeepsConnected(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b, nil)
	b.setErr(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"))

	var v string
	assert.False(t, s.Get(context.Background(), "k", &v))
	assert.True(t, s.Connected())
}

func TestStore_NilBackend(t *testing.T) {
	s := New(nil, Config{}, logger.NewNop(), nil)
	ctx := context.Background()

	var v string
	assert.False(t, s.Get(ctx, "k", &v))
	assert.False(t, s.Set(ctx, "k", "v", 0))
	assert.False(t, s.Connected())
	assert.False(t, s.HealthCheck(ctx).Healthy)
	assert.Equal(t, Stats{}, s.Stats(ctx))
}

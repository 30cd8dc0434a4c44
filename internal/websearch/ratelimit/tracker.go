package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/metrics"
)

// Response headers read by UpdateFromHeaders; the unprefixed IETF draft names are accepted too
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
	// HeaderRetryAfter is used for the reset when no reset header is present
	HeaderRetryAfter = "Retry-After"
)

// epoch seconds below this are treated as a delta
const epochThreshold = 1_000_000_000

// Config initial window
type Config struct {
	Limit  int
	Window time.Duration

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Window is a snapshot of the upstream budget
type Window struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"resetAt"`
	Window    string    `json:"window"`
}

// Info is budget metadata reported by the upstream; zero fields are absent
type Info struct {
	Limit     int
	Remaining int
	ResetAt   time.Time

	hasRemaining bool
}

// NewInfo builds Info with all three fields present
func NewInfo(limit, remaining int, resetAt time.Time) Info {
	return Info{Limit: limit, Remaining: remaining, ResetAt: resetAt, hasRemaining: true}
}

// Tracker accounts for the upstream call budget. Acquire never rejects: it waits for the reset.
type Tracker struct {
	mu        sync.Mutex
	limit     int
	remaining int
	resetAt   time.Time
	window    time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	logger  *logger.Logger
	metrics *metrics.Metrics
}

// New creates a tracker with a full budget
func New(cfg Config, log *logger.Logger, m *metrics.Metrics) *Tracker {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}

	t := &Tracker{
		limit:     cfg.Limit,
		remaining: cfg.Limit,
		resetAt:   cfg.Now().Add(cfg.Window),
		window:    cfg.Window,
		now:       cfg.Now,
		sleep:     cfg.Sleep,
		logger:    logger.OrGlobal(log).Named("ratelimit"),
		metrics:   m,
	}
	m.SetRateLimitRemaining(t.remaining)
	return t
}

// Acquire takes one unit of budget, sleeping until the window resets when none is left.
// It returns the total time spent waiting.
func (t *Tracker) Acquire(ctx context.Context) (time.Duration, error) {
	var waited time.Duration
	for {
		t.mu.Lock()
		now := t.now()
		t.resetIfDueLocked(now)
		if t.remaining > 0 {
			t.remaining--
			remaining := t.remaining
			t.mu.Unlock()
			t.metrics.SetRateLimitRemaining(remaining)
			return waited, nil
		}
		wait := t.resetAt.Sub(now)
		resetAt := t.resetAt
		t.mu.Unlock()

		t.metrics.RecordRateLimitWait()
		t.logger.WithContext(ctx).Info("rate limit exhausted, waiting for reset",
			zap.Duration("wait", wait),
			zap.Time("reset_at", resetAt),
		)
		if err := t.sleep(ctx, wait); err != nil {
			return waited, err
		}
		waited += wait
	}
}

// Update applies budget metadata from an upstream response
func (t *Tracker) Update(info Info) {
	t.mu.Lock()
	if info.Limit > 0 {
		t.limit = info.Limit
	}
	if info.hasRemaining {
		t.remaining = max(info.Remaining, 0)
	}
	if !info.ResetAt.IsZero() {
		t.resetAt = info.ResetAt
	}
	remaining := t.remaining
	t.mu.Unlock()

	t.metrics.SetRateLimitRemaining(remaining)
}

// UpdateFromHeaders parses rate limit headers and applies them. It reports whether any were present.
func (t *Tracker) UpdateFromHeaders(h http.Header) bool {
	info, ok := ParseHeaders(h, t.now())
	if ok {
		t.Update(info)
	}
	return ok
}

// Exhaust drains the budget after the upstream rejected a call as rate limited.
// A reset reported in h replaces the local one.
func (t *Tracker) Exhaust(h http.Header) {
	info, _ := ParseHeaders(h, t.now())
	info.Remaining = 0
	info.hasRemaining = true
	t.Update(info)

	t.logger.Warn("upstream rate limited, budget drained", zap.Time("reset_at", t.Snapshot().ResetAt))
}

// Snapshot returns the current window, applying a due reset first
func (t *Tracker) Snapshot() Window {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfDueLocked(t.now())
	return Window{
		Remaining: t.remaining,
		Limit:     t.limit,
		ResetAt:   t.resetAt,
		Window:    t.window.String(),
	}
}

// resetIfDueLocked restores the budget once now >= resetAt and moves resetAt into the future
func (t *Tracker) resetIfDueLocked(now time.Time) {
	if now.Before(t.resetAt) {
		return
	}
	t.remaining = t.limit
	for !t.resetAt.After(now) {
		t.resetAt = t.resetAt.Add(t.window)
	}
}

// ParseHeaders reads rate limit metadata from h
func ParseHeaders(h http.Header, now time.Time) (Info, bool) {
	var info Info
	found := false

	if v, ok := headerInt(h, HeaderLimit, "RateLimit-Limit"); ok {
		info.Limit = int(v)
		found = true
	}
	if v, ok := headerInt(h, HeaderRemaining, "RateLimit-Remaining"); ok {
		info.Remaining = int(v)
		info.hasRemaining = true
		found = true
	}
	if v, ok := headerInt(h, HeaderReset, "RateLimit-Reset"); ok && v >= 0 {
		if v >= epochThreshold {
			info.ResetAt = time.Unix(v, 0)
		} else {
			info.ResetAt = now.Add(time.Duration(v) * time.Second)
		}
		found = true
	}
	if info.ResetAt.IsZero() {
		if resetAt, ok := retryAfter(h, now); ok {
			info.ResetAt = resetAt
			found = true
		}
	}
	return info, found
}

// retryAfter reads Retry-After as delay seconds or an HTTP date
func retryAfter(h http.Header, now time.Time) (time.Time, bool) {
	raw := strings.TrimSpace(h.Get(HeaderRetryAfter))
	if raw == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs >= 0 {
		return now.Add(time.Duration(secs) * time.Second), true
	}
	if at, err := http.ParseTime(raw); err == nil {
		return at, true
	}
	return time.Time{}, false
}

func headerInt(h http.Header, names ...string) (int64, bool) {
	for _, name := range names {
		raw := strings.TrimSpace(h.Get(name))
		if raw == "" {
			continue
		}
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v, true
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

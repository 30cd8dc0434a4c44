package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lk2023060901/serp-gateway/internal/auth"
	compatbiz "github.com/lk2023060901/serp-gateway/internal/compat/biz"
	compatservice "github.com/lk2023060901/serp-gateway/internal/compat/service"
	"github.com/lk2023060901/serp-gateway/internal/conf"
	"github.com/lk2023060901/serp-gateway/internal/pkg/breaker"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/metrics"
	"github.com/lk2023060901/serp-gateway/internal/pkg/workerpool"
	"github.com/lk2023060901/serp-gateway/internal/server/middleware"
	"github.com/lk2023060901/serp-gateway/internal/websearch/biz"
	"github.com/lk2023060901/serp-gateway/internal/websearch/cache"
	"github.com/lk2023060901/serp-gateway/internal/websearch/provider"
	"github.com/lk2023060901/serp-gateway/internal/websearch/ratelimit"
	"github.com/lk2023060901/serp-gateway/internal/websearch/service"
	"github.com/lk2023060901/serp-gateway/internal/websearch/types"
)

type okProvider struct{}

func (okProvider) Search(ctx context.Context, params types.SearchParams) (*provider.Response, error) {
	return &provider.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Result: &types.SearchResult{
			Organic: []types.OrganicResult{{Position: 1, Title: "Go", Link: "https://go.dev/"}},
		},
	}, nil
}

func (okProvider) GetID() types.ProviderID { return types.ProviderSerper }
func (okProvider) GetName() string         { return "ok" }

type nopCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *nopCache) Get(ctx context.Context, key string, dest interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	return ok && json.Unmarshal(raw, dest) == nil
}

func (c *nopCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	raw, _ := json.Marshal(value)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return true
}

func (c *nopCache) Clear(ctx context.Context, prefix string) int { return 0 }
func (c *nopCache) Stats(ctx context.Context) cache.Stats        { return cache.Stats{Connected: true} }
func (c *nopCache) HealthCheck(ctx context.Context) cache.Health {
	return cache.Health{Healthy: true}
}

type routerOptions struct {
	jwt           *auth.JWTManager
	limiter       int
	insecureAdmin bool
}

func newTestRouter(t *testing.T, opts routerOptions) *gin.Engine {
	t.Helper()
	log := logger.NewNop()
	m := metrics.New()

	pool, err := workerpool.New(&workerpool.Config{Workers: 1, QueueSize: 10}, log.Logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Shutdown(time.Second) })

	gw := biz.NewSearchGateway(
		okProvider{},
		&nopCache{data: map[string][]byte{}},
		breaker.New(breaker.Config{FailureThreshold: 5, ResetTimeout: time.Minute}),
		ratelimit.New(ratelimit.Config{Limit: 100, Window: time.Minute}, log, m),
		pool,
		biz.Config{},
		log,
		m,
	)
	translator := compatbiz.NewTranslator(gw, log, m)

	svc := Services{
		Search:     service.NewSearchService(gw, log),
		Compat:     compatservice.NewCompatService(translator, log),
		Translator: translator,
		Metrics:    m,
		JWT:        opts.jwt,
	}
	if opts.limiter > 0 {
		svc.Limiter = middleware.NewRateLimiter(nil, middleware.RateLimiterConfig{
			MaxRequests:   opts.limiter,
			WindowSeconds: 60,
			Strategy:      middleware.StrategyEndpoint,
		}, log, m)
	}

	cfg := &conf.Config{
		Server: conf.ServerConfig{Mode: gin.TestMode},
		Admin:  conf.AdminConfig{Insecure: opts.insecureAdmin},
	}
	return NewRouter(cfg, log, svc)
}

func send(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Routes(t *testing.T) {
	r := newTestRouter(t, routerOptions{})

	w := send(r, http.MethodPost, "/api/v1/search", `{"q":"golang"}`, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = send(r, http.MethodPost, "/v3/serp/google/organic/live/advanced", `[{"keyword":"golang"}]`, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status_code":20000`)

	w = send(r, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = send(r, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "serp_gateway_translations_total")

	// no secret and no opt-in: admin routes are not mounted
	w = send(r, http.MethodGet, "/admin/metrics", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = send(r, http.MethodPost, "/admin/circuit-breaker/reset", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_AdminInsecureOptIn(t *testing.T) {
	r := newTestRouter(t, routerOptions{insecureAdmin: true})

	w := send(r, http.MethodGet, "/admin/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	m := auth.NewJWTManager("secret", "serp-gateway", time.Hour)
	r := newTestRouter(t, routerOptions{jwt: m})

	w := send(r, http.MethodGet, "/admin/metrics", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	viewer, _, err := m.GenerateToken("intern", "viewer")
	require.NoError(t, err)
	w = send(r, http.MethodGet, "/admin/metrics", "", viewer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin, _, err := m.GenerateToken("ops", auth.RoleAdmin)
	require.NoError(t, err)
	w = send(r, http.MethodPost, "/admin/circuit-breaker/reset", "", admin)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_InboundLimit(t *testing.T) {
	r := newTestRouter(t, routerOptions{limiter: 1})

	assert.Equal(t, http.StatusOK, send(r, http.MethodPost, "/api/v1/search", `{"q":"a"}`, "").Code)
	w := send(r, http.MethodPost, "/api/v1/search", `{"q":"a"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// compat callers keep the envelope contract when limited
	path := "/v3/keywords_data/google/keyword_research/live"
	w = send(r, http.MethodPost, path, `{"keyword":"a"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status_code":20000`)
	w = send(r, http.MethodPost, path, `{"keyword":"a"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status_code":40000`)
	assert.Contains(t, w.Body.String(), `"tasks":[]`)
}

func TestGRPCServer_Health(t *testing.T) {
	hs := health.NewServer()
	hs.SetServingStatus("serp.SearchGateway", healthpb.HealthCheckResponse_NOT_SERVING)

	s := NewGRPCServer(&conf.Config{}, logger.NewNop(), hs)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := healthpb.NewHealthClient(conn)
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "serp.SearchGateway"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	s.Stop()
	assert.NoError(t, <-errCh)
}

package provider

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	wshttp "github.com/lk2023060901/serp-gateway/internal/websearch/http"
	"github.com/lk2023060901/serp-gateway/internal/websearch/types"
)

// Provider defines the interface for the upstream search provider
type Provider interface {
	// Search executes a normalized search query
	Search(ctx context.Context, params types.SearchParams) (*Response, error)

	// GetID returns the provider ID
	GetID() types.ProviderID

	// GetName returns the provider name
	GetName() string
}

// Request is a single upstream dispatch
type Request struct {
	Params types.SearchParams
	APIKey string
}

// Response is a decoded upstream reply
type Response struct {
	Result     *types.SearchResult
	StatusCode int
	Header     http.Header
	Latency    time.Duration
}

// DispatchFunc sends one request to the provider
type DispatchFunc func(ctx context.Context, req *Request) (*Response, error)

// Middleware decorates a DispatchFunc
type Middleware func(next DispatchFunc) DispatchFunc

// Chain wraps dispatch with mws; the first middleware is the outermost
func Chain(dispatch DispatchFunc, mws ...Middleware) DispatchFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		dispatch = mws[i](dispatch)
	}
	return dispatch
}

// BaseProvider provides common functionality for providers
type BaseProvider struct {
	config     *types.ProviderConfig
	httpClient *http.Client

	mu       sync.Mutex
	apiKeys  []string // Support multiple API keys for rotation
	keyIndex int      // Current key index
}

// NewBaseProvider creates a new base provider
func NewBaseProvider(config *types.ProviderConfig) *BaseProvider {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	// Parse multiple API keys (comma-separated)
	var apiKeys []string
	for _, k := range strings.Split(config.APIKey, ",") {
		if k = strings.TrimSpace(k); k != "" {
			apiKeys = append(apiKeys, k)
		}
	}

	return &BaseProvider{
		config:     config,
		httpClient: wshttp.NewHTTPClient(timeout),
		apiKeys:    apiKeys,
	}
}

// GetID returns the provider ID
func (b *BaseProvider) GetID() types.ProviderID {
	return b.config.ID
}

// GetName returns the provider name
func (b *BaseProvider) GetName() string {
	return b.config.Name
}

// SetHTTPClient replaces the HTTP client
func (b *BaseProvider) SetHTTPClient(c *http.Client) {
	b.httpClient = c
}

// GetAPIKey returns the current API key and advances the rotation
func (b *BaseProvider) GetAPIKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.apiKeys) == 0 {
		return ""
	}

	key := b.apiKeys[b.keyIndex]
	b.keyIndex = (b.keyIndex + 1) % len(b.apiKeys)
	return key
}

// KeyCount returns the number of configured API keys
func (b *BaseProvider) KeyCount() int {
	return len(b.apiKeys)
}

// BuildDefaultHeaders builds default HTTP headers
func (b *BaseProvider) BuildDefaultHeaders() map[string]string {
	ua := b.config.UserAgent
	if ua == "" {
		ua = "SERP-Gateway/1.0"
	}
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"User-Agent":   ua,
	}
}

// Validate validates the provider configuration
func (b *BaseProvider) Validate() error {
	return b.config.Validate()
}

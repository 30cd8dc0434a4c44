package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lk2023060901/serp-gateway/internal/websearch/types"
)

const (
	maxResponseBytes = 10 << 20
	maxErrorDetails  = 512
)

// SerperProvider implements the Serper search API
type SerperProvider struct {
	*BaseProvider
	dispatch DispatchFunc
}

// NewSerperProvider creates a new Serper provider. Middlewares wrap every dispatch,
// the first one outermost.
func NewSerperProvider(config *types.ProviderConfig, mws ...Middleware) (*SerperProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &SerperProvider{BaseProvider: NewBaseProvider(config)}
	p.dispatch = Chain(p.do, mws...)
	return p, nil
}

// Search executes a search query using the Serper API
func (p *SerperProvider) Search(ctx context.Context, params types.SearchParams) (*Response, error) {
	return p.dispatch(ctx, &Request{
		Params: params,
		APIKey: p.GetAPIKey(),
	})
}

func (p *SerperProvider) do(ctx context.Context, req *Request) (*Response, error) {
	reqBody, err := json.Marshal(req.Params.UpstreamBody())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/%s", strings.TrimRight(p.config.APIHost, "/"), req.Params.Type)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range p.BuildDefaultHeaders() {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("X-API-KEY", req.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		code := types.CodeRequestFailed
		if isTimeout(err) {
			code = types.CodeTimeout
		}
		return nil, &types.UpstreamError{
			Provider: p.GetID(),
			Code:     code,
			Details:  "Failed to execute request",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &types.UpstreamError{
			Provider: p.GetID(),
			Status:   resp.StatusCode,
			Code:     types.CodeRequestFailed,
			Details:  "Failed to read response body",
			Err:      err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &types.UpstreamError{
			Provider: p.GetID(),
			Status:   resp.StatusCode,
			Code:     types.HTTPCode(resp.StatusCode),
			Details:  errorDetails(resp.StatusCode, body),
			Header:   resp.Header.Clone(),
		}
	}

	var result types.SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &types.UpstreamError{
			Provider: p.GetID(),
			Status:   resp.StatusCode,
			Code:     types.CodeDecodeFailed,
			Details:  "Failed to decode response",
			Err:      errors.Join(types.ErrInvalidResponse, err),
		}
	}

	return &Response{
		Result:     &result,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
	}, nil
}

// errorDetails pulls a message out of an upstream error body
func errorDetails(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		for _, path := range []string{"message", "error.message", "error", "detail"} {
			if v := parsed.Get(path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}

	details := strings.TrimSpace(string(body))
	if details == "" {
		return http.StatusText(status)
	}
	if len(details) > maxErrorDetails {
		details = details[:maxErrorDetails]
	}
	return details
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

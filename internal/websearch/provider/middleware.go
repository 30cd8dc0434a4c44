package provider

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/metrics"
	"github.com/lk2023060901/serp-gateway/internal/websearch/types"
)

// WithTiming records the dispatch latency on the response
func WithTiming() Middleware {
	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			if resp != nil {
				resp.Latency = time.Since(start)
			}
			return resp, err
		}
	}
}

// WithLogging logs every dispatch outcome
func WithLogging(log *logger.Logger) Middleware {
	log = logger.OrGlobal(log).Named("upstream")
	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			fields := []zap.Field{
				zap.String("type", string(req.Params.Type)),
				zap.String("query", req.Params.Q),
				zap.Duration("latency", time.Since(start)),
			}
			if err != nil {
				var ue *types.UpstreamError
				if errors.As(err, &ue) {
					fields = append(fields, zap.Int("status", ue.Status), zap.String("code", ue.Code))
				}
				log.WithContext(ctx).Warn("upstream search failed", append(fields, zap.Error(err))...)
				return resp, err
			}

			log.WithContext(ctx).Debug("upstream search completed", append(fields, zap.Int("status", resp.StatusCode))...)
			return resp, nil
		}
	}
}

// WithMetrics records upstream request counts and latency
func WithMetrics(m *metrics.Metrics) Middleware {
	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			m.RecordUpstream(string(req.Params.Type), statusLabel(resp, err), time.Since(start))
			return resp, err
		}
	}
}

// WithRetry retries transport failures with exponential backoff. Responses with an
// HTTP status are never retried.
func WithRetry(maxRetries int, backoff time.Duration) Middleware {
	return func(next DispatchFunc) DispatchFunc {
		if maxRetries <= 0 {
			return next
		}
		return func(ctx context.Context, req *Request) (*Response, error) {
			var lastErr error
			for i := 0; i <= maxRetries; i++ {
				resp, err := next(ctx, req)
				if err == nil || !retryable(err) {
					return resp, err
				}
				lastErr = err

				if i < maxRetries {
					wait := backoff * time.Duration(1<<uint(i))
					select {
					case <-ctx.Done():
						return nil, lastErr
					case <-time.After(wait):
					}
				}
			}
			return nil, lastErr
		}
	}
}

func retryable(err error) bool {
	var ue *types.UpstreamError
	return errors.As(err, &ue) && ue.Status == 0 && ue.Code == types.CodeRequestFailed
}

func statusLabel(resp *Response, err error) string {
	if err == nil && resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	var ue *types.UpstreamError
	if errors.As(err, &ue) && ue.Status != 0 {
		return strconv.Itoa(ue.Status)
	}
	return "error"
}

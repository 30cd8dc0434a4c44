package biz

import (
	"go.uber.org/zap"

	"github.com/lk2023060901/serp-gateway/internal/pkg/breaker"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
	"github.com/lk2023060901/serp-gateway/internal/pkg/metrics"
)

var breakerStates = []string{
	string(breaker.StateClosed),
	string(breaker.StateOpen),
	string(breaker.StateHalfOpen),
}

// NewUpstreamBreaker creates the breaker guarding the provider, with transitions
// logged and exported as metrics. Observers already set on cfg run first.
func NewUpstreamBreaker(cfg breaker.Config, log *logger.Logger, m *metrics.Metrics) *breaker.CircuitBreaker {
	log = logger.OrGlobal(log).Named("breaker")

	onStateChange := cfg.OnStateChange
	cfg.OnStateChange = func(from, to breaker.State) {
		if onStateChange != nil {
			onStateChange(from, to)
		}
		m.RecordBreakerTransition(string(from), string(to))
		m.SetBreakerState(string(to), breakerStates...)

		fields := []zap.Field{zap.String("from", string(from)), zap.String("to", string(to))}
		if to == breaker.StateOpen {
			log.Error("circuit breaker opened", fields...)
		} else {
			log.Info("circuit breaker state changed", fields...)
		}
	}

	onFailure := cfg.OnFailure
	cfg.OnFailure = func(err error, consecutive int) {
		if onFailure != nil {
			onFailure(err, consecutive)
		}
		log.Warn("upstream failure recorded", zap.Int("consecutive", consecutive), zap.Error(err))
	}

	cb := breaker.New(cfg)
	m.SetBreakerState(string(cb.State()), breakerStates...)
	return cb
}

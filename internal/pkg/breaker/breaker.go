// Package breaker implements a consecutive-failure circuit breaker.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a call is rejected without being attempted.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Config configures the circuit breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	// Default: 5
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before admitting a trial call.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// SuccessThreshold is the number of successful trial calls needed to close
	// the circuit again. It also bounds concurrent trials in HALF_OPEN.
	// Default: 1
	SuccessThreshold int

	// IsFailure decides whether an error counts against the circuit.
	// Default: any non-nil error except context.Canceled.
	IsFailure func(err error) bool

	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(from, to State)

	// OnFailure is called after every counted failure, outside the lock.
	OnFailure func(err error, consecutive int)

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Metrics is a point-in-time snapshot of the breaker.
type Metrics struct {
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TrialSuccesses      int       `json:"trial_successes"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
	TotalFailures       int64     `json:"total_failures"`
	TotalRejected       int64     `json:"total_rejected"`
	Trips               int64     `json:"trips"`
}

type transition struct {
	from, to State
}

// CircuitBreaker guards calls to an unreliable dependency.
type CircuitBreaker struct {
	config Config

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	trialSuccesses      int
	trialsInFlight      int
	openedAt            time.Time

	totalFailures int64
	totalRejected int64
	trips         int64
}

// New creates a circuit breaker, applying defaults to zero config values.
func New(config Config) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Execute runs fn through the breaker. When the circuit is open fn is not
// invoked and ErrCircuitOpen is returned.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) (err error) {
	trial, err := cb.beforeCall()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.afterCall(trial, errors.New("panic in guarded call"))
			panic(r)
		}
		cb.afterCall(trial, err)
	}()

	return fn(ctx)
}

// Do is the value-returning form of Execute.
func Do[T any](ctx context.Context, cb *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// State returns the current state, moving OPEN to HALF_OPEN once the reset
// timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	var ts []transition
	state := cb.currentStateLocked(&ts)
	cb.mu.Unlock()

	cb.notify(ts)
	return state
}

// Metrics returns a snapshot of the breaker.
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	var ts []transition
	m := Metrics{
		State:               cb.currentStateLocked(&ts),
		ConsecutiveFailures: cb.consecutiveFailures,
		TrialSuccesses:      cb.trialSuccesses,
		OpenedAt:            cb.openedAt,
		TotalFailures:       cb.totalFailures,
		TotalRejected:       cb.totalRejected,
		Trips:               cb.trips,
	}
	cb.mu.Unlock()

	cb.notify(ts)
	return m
}

// Reset forces the circuit closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	var ts []transition
	cb.setStateLocked(StateClosed, &ts)
	cb.consecutiveFailures = 0
	cb.trialSuccesses = 0
	cb.trialsInFlight = 0
	cb.openedAt = time.Time{}
	cb.mu.Unlock()

	cb.notify(ts)
}

func (cb *CircuitBreaker) beforeCall() (trial bool, err error) {
	cb.mu.Lock()
	var ts []transition
	switch cb.currentStateLocked(&ts) {
	case StateOpen:
		cb.totalRejected++
		err = ErrCircuitOpen
	case StateHalfOpen:
		if cb.trialsInFlight+cb.trialSuccesses >= cb.config.SuccessThreshold {
			cb.totalRejected++
			err = ErrCircuitOpen
		} else {
			cb.trialsInFlight++
			trial = true
		}
	}
	cb.mu.Unlock()

	cb.notify(ts)
	return trial, err
}

func (cb *CircuitBreaker) afterCall(trial bool, err error) {
	failed := cb.config.IsFailure(err)

	cb.mu.Lock()
	var ts []transition
	if trial {
		cb.trialsInFlight--
	}

	consecutive := 0
	switch {
	case failed:
		cb.totalFailures++
		cb.consecutiveFailures++
		consecutive = cb.consecutiveFailures
		if trial || cb.state == StateHalfOpen || cb.consecutiveFailures >= cb.config.FailureThreshold {
			if cb.state != StateOpen {
				cb.trips++
				cb.openedAt = cb.config.Now()
				cb.trialSuccesses = 0
				cb.setStateLocked(StateOpen, &ts)
			}
		}
	case err != nil:
		// not counted, e.g. caller cancellation
	case trial && cb.state == StateHalfOpen:
		cb.trialSuccesses++
		if cb.trialSuccesses >= cb.config.SuccessThreshold {
			cb.consecutiveFailures = 0
			cb.trialSuccesses = 0
			cb.setStateLocked(StateClosed, &ts)
		}
	case cb.state == StateClosed:
		cb.consecutiveFailures = 0
	}
	cb.mu.Unlock()

	var failure error
	if failed {
		failure = err
	}
	cb.notifyFailure(failure, consecutive)
	cb.notify(ts)
}

func (cb *CircuitBreaker) currentStateLocked(ts *[]transition) State {
	if cb.state == StateOpen && cb.config.Now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		cb.trialSuccesses = 0
		cb.trialsInFlight = 0
		cb.setStateLocked(StateHalfOpen, ts)
	}
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(to State, ts *[]transition) {
	if cb.state == to {
		return
	}
	*ts = append(*ts, transition{from: cb.state, to: to})
	cb.state = to
}

func (cb *CircuitBreaker) notify(ts []transition) {
	if cb.config.OnStateChange == nil {
		return
	}
	for _, t := range ts {
		safeCall(func() { cb.config.OnStateChange(t.from, t.to) })
	}
}

func (cb *CircuitBreaker) notifyFailure(err error, consecutive int) {
	if err == nil || cb.config.OnFailure == nil {
		return
	}
	safeCall(func() { cb.config.OnFailure(err, consecutive) })
}

// safeCall isolates observer panics from the guarded call.
func safeCall(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

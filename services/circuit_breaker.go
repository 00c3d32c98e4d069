package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"stock-forecast/observability"
)

// ErrServiceUnavailable is returned when a breaker rejects a call
var ErrServiceUnavailable = errors.New("service unavailable")

// Breaker names, one per upstream
const (
	BreakerYahoo        = "yahoo"
	BreakerAlphaVantage = "alphavantage"
	BreakerAlpaca       = "alpaca"
	BreakerModelService = "model_service"
)

// CircuitBreakerConfig controls when an upstream is skipped
type CircuitBreakerConfig struct {
	MinRequests  uint32        // calls observed before the breaker may trip
	FailureRatio float64       // share of transient failures that trips it
	MaxRequests  uint32        // trial calls allowed while half-open
	Interval     time.Duration // closed-state window after which counts reset
	Timeout      time.Duration // how long an open breaker skips the upstream
}

// DefaultCircuitBreakerConfig trips after half of at least five calls fail
// and retries the upstream after 30s
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MinRequests:  5,
	FailureRatio: 0.5,
	MaxRequests:  5,
	Interval:     time.Minute,
	Timeout:      30 * time.Second,
}

// CircuitBreakerRegistry holds one breaker per upstream name
type CircuitBreakerRegistry struct {
	config CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewCircuitBreakerRegistry creates an empty registry
func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		config:   config,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// callerAbort marks a failure caused by the caller's own context, which
// says nothing about the upstream
type callerAbort struct{ err error }

func (e *callerAbort) Error() string { return e.err.Error() }
func (e *callerAbort) Unwrap() error { return e.err }

// countsAgainstUpstream reports whether err should move the breaker
// towards open. Unknown tickers and empty results are permanent answers
// from a healthy upstream.
func countsAgainstUpstream(err error) bool {
	if err == nil {
		return false
	}
	var abort *callerAbort
	if errors.As(err, &abort) {
		return false
	}
	return IsTransient(err)
}

// GetBreaker returns the breaker for name, creating it on first use
func (r *CircuitBreakerRegistry) GetBreaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cfg := r.config
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return !countsAgainstUpstream(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.Warn("upstream breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
			metrics := observability.GetMetrics()
			metrics.SetCircuitBreakerState(name, stateToInt(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}
		},
	})
	r.breakers[name] = cb
	return cb
}

// Execute runs fn through the breaker for name. A rejected call fails with
// ErrServiceUnavailable so the loader moves on to the next source.
func (r *CircuitBreakerRegistry) Execute(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	result, err := r.GetBreaker(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, &callerAbort{err: err}
		}
		res, err := fn()
		if err != nil && ctx.Err() != nil {
			return nil, &callerAbort{err: err}
		}
		return res, err
	})

	var abort *callerAbort
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &abort):
		return nil, abort.err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.Debug("upstream skipped by breaker", "breaker", name, "reason", err.Error())
		return nil, fmt.Errorf("%w: %s: %v", ErrServiceUnavailable, name, err)
	default:
		return nil, err
	}
}

// CircuitBreakerStatus is the health view of one breaker
type CircuitBreakerStatus struct {
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	Failures            uint32 `json:"failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// Status reports every breaker created so far
func (r *CircuitBreakerRegistry) Status() map[string]CircuitBreakerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := make(map[string]CircuitBreakerStatus, len(r.breakers))
	for name, cb := range r.breakers {
		counts := cb.Counts()
		status[name] = CircuitBreakerStatus{
			State:               cb.State().String(),
			Requests:            counts.Requests,
			Failures:            counts.TotalFailures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		}
	}
	return status
}

var (
	registryMu     sync.Mutex
	globalRegistry *CircuitBreakerRegistry
)

// GetGlobalRegistry returns the process-wide registry
func GetGlobalRegistry() *CircuitBreakerRegistry {
	registryMu.Lock()
	defer registryMu.Unlock()
	if globalRegistry == nil {
		globalRegistry = NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
	}
	return globalRegistry
}

// SetGlobalRegistry replaces the process-wide registry
func SetGlobalRegistry(r *CircuitBreakerRegistry) {
	registryMu.Lock()
	defer registryMu.Unlock()
	globalRegistry = r
}

// WithCircuitBreaker runs fn through the global breaker for name
func WithCircuitBreaker[T any](ctx context.Context, name string, fn func() (T, error)) (T, error) {
	result, err := GetGlobalRegistry().Execute(ctx, name, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// stateToInt is the gauge value for a state: 0 closed, 1 half-open, 2 open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Package resilience provides resilient execution of actions and
// collaborator calls using fortify.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/ragent/domain/action"
	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// Invoker runs a registered action on behalf of an agent.
type Invoker interface {
	Invoke(ctx context.Context, name string, a action.Action, meta action.Metadata, ag *agent.Agent, params map[string]any) (any, error)
}

// DirectInvoker calls actions without any protection.
type DirectInvoker struct{}

// Invoke calls the action directly.
func (DirectInvoker) Invoke(ctx context.Context, _ string, a action.Action, _ action.Metadata, ag *agent.Agent, params map[string]any) (any, error) {
	return a.Execute(ctx, ag, params)
}

// Executor applies bulkhead, timeout, circuit breaker and retry around calls.
// Each call key gets its own circuit breaker so one failing action cannot
// open the circuit for the others.
type Executor struct {
	config   ExecutorConfig
	bulkhead bulkhead.Bulkhead[any]
	retry    retry.Retry[any]

	mu       sync.Mutex
	breakers map[string]circuitbreaker.CircuitBreaker[any]
}

// ExecutorConfig configures the resilient executor.
type ExecutorConfig struct {
	// MaxConcurrent limits concurrent executions.
	MaxConcurrent   int
	BulkheadEnabled bool

	// CircuitBreakerThreshold is the number of consecutive failures before opening.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration
	CircuitBreakerEnabled bool

	// RetryMaxAttempts is the maximum number of attempts for idempotent calls.
	RetryMaxAttempts int

	// RetryInitialDelay is the initial delay between retries.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64
	RetryEnabled           bool

	// DefaultTimeout bounds each call. Zero disables the timeout.
	DefaultTimeout time.Duration
}

// DefaultExecutorConfig returns a configuration with sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrent:           10,
		BulkheadEnabled:         true,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		CircuitBreakerEnabled:   true,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       100 * time.Millisecond,
		RetryBackoffMultiplier:  2.0,
		RetryEnabled:            true,
		DefaultTimeout:          30 * time.Second,
	}
}

// NewExecutor creates a new resilient executor.
func NewExecutor(config ExecutorConfig) *Executor {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.CircuitBreakerThreshold <= 0 {
		config.CircuitBreakerThreshold = 5
	}
	if config.RetryMaxAttempts <= 0 {
		config.RetryMaxAttempts = 1
	}
	if config.RetryBackoffMultiplier < 1 {
		config.RetryBackoffMultiplier = 1
	}

	return &Executor{
		config: config,
		bulkhead: bulkhead.New[any](bulkhead.Config{
			MaxConcurrent: config.MaxConcurrent,
		}),
		retry: retry.New[any](retry.Config{
			MaxAttempts:   config.RetryMaxAttempts,
			InitialDelay:  config.RetryInitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    config.RetryBackoffMultiplier,
			// Caller cancellation is final.
			NonRetryableErrors: []error{context.Canceled},
		}),
		breakers: make(map[string]circuitbreaker.CircuitBreaker[any]),
	}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return NewExecutor(DefaultExecutorConfig())
}

// Invoke runs an action with resilience patterns applied. Only actions whose
// metadata marks them idempotent are retried.
func (e *Executor) Invoke(ctx context.Context, name string, a action.Action, meta action.Metadata, ag *agent.Agent, params map[string]any) (any, error) {
	return e.Call(ctx, ActionKey(name), meta.Idempotent, func(ctx context.Context) (any, error) {
		return a.Execute(ctx, ag, params)
	})
}

// Call runs fn with resilience patterns applied.
// Composition order: Bulkhead → Timeout → Circuit Breaker → Retry (if idempotent).
// The error returned by fn is passed through unchanged so callers can match it.
func (e *Executor) Call(ctx context.Context, key string, idempotent bool, fn func(ctx context.Context) (any, error)) (any, error) {
	var (
		mu      sync.Mutex
		lastErr error
	)
	attempt := func(ctx context.Context) (any, error) {
		out, err := fn(ctx)
		mu.Lock()
		lastErr = err
		mu.Unlock()
		return out, err
	}

	guarded := func(ctx context.Context) (any, error) {
		if e.config.DefaultTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.config.DefaultTimeout)
			defer cancel()
		}

		inner := attempt
		if idempotent && e.config.RetryEnabled && e.config.RetryMaxAttempts > 1 {
			inner = func(ctx context.Context) (any, error) {
				return e.retry.Do(ctx, attempt)
			}
		}
		if !e.config.CircuitBreakerEnabled {
			return inner(ctx)
		}
		return e.breaker(key).Execute(ctx, inner)
	}

	var (
		out any
		err error
	)
	if e.config.BulkheadEnabled {
		out, err = e.bulkhead.Execute(ctx, guarded)
	} else {
		out, err = guarded(ctx)
	}

	if err != nil {
		mu.Lock()
		cause := lastErr
		mu.Unlock()
		if cause != nil && !errors.Is(err, cause) {
			err = cause
		}
		logging.Debug().
			Add(logging.Component("resilience")).
			Add(logging.Str("key", key)).
			Add(logging.ErrorField(err)).
			Msg("protected call failed")
	}
	return out, err
}

// Do is a typed wrapper around Executor.Call.
func Do[T any](ctx context.Context, e *Executor, key string, idempotent bool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	out, err := e.Call(ctx, key, idempotent, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		if v, ok := out.(T); ok {
			return v, err
		}
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

func (e *Executor) breaker(key string) circuitbreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[key]; ok {
		return cb
	}
	threshold := uint32(e.config.CircuitBreakerThreshold) // #nosec G115 -- positive, checked in NewExecutor
	cb := circuitbreaker.New[any](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    e.config.CircuitBreakerTimeout,
		Timeout:     e.config.CircuitBreakerTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})
	e.breakers[key] = cb
	return cb
}

// CircuitBreakerState returns the state of the breaker for a call key.
func (e *Executor) CircuitBreakerState(key string) circuitbreaker.State {
	return e.breaker(key).State()
}

// ActionKey returns the call key used for an action.
func ActionKey(name string) string {
	return "action:" + name
}

var (
	_ Invoker = (*Executor)(nil)
	_ Invoker = DirectInvoker{}
)

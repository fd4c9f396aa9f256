package resilience

import (
	"time"

	"github.com/felixgeelhaar/ragent/domain/config"
)

// Option configures the executor.
type Option func(*ExecutorConfig)

// WithMaxConcurrent sets the maximum concurrent executions.
func WithMaxConcurrent(n int) Option {
	return func(c *ExecutorConfig) {
		c.MaxConcurrent = n
	}
}

// WithCircuitBreakerThreshold sets the failure threshold for circuit breakers.
func WithCircuitBreakerThreshold(n int) Option {
	return func(c *ExecutorConfig) {
		c.CircuitBreakerThreshold = n
	}
}

// WithCircuitBreakerTimeout sets the circuit breaker open duration.
func WithCircuitBreakerTimeout(d time.Duration) Option {
	return func(c *ExecutorConfig) {
		c.CircuitBreakerTimeout = d
	}
}

// WithRetryAttempts sets the maximum retry attempts.
func WithRetryAttempts(n int) Option {
	return func(c *ExecutorConfig) {
		c.RetryMaxAttempts = n
	}
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *ExecutorConfig) {
		c.RetryInitialDelay = d
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *ExecutorConfig) {
		c.DefaultTimeout = d
	}
}

// FromConfig applies the resilience section of the application configuration.
func FromConfig(rc config.ResilienceConfig) Option {
	return func(c *ExecutorConfig) {
		if rc.Timeout > 0 {
			c.DefaultTimeout = rc.Timeout.Duration()
		}
		c.RetryEnabled = rc.Retry.Enabled
		if rc.Retry.MaxAttempts > 0 {
			c.RetryMaxAttempts = rc.Retry.MaxAttempts
		}
		if rc.Retry.InitialDelay > 0 {
			c.RetryInitialDelay = rc.Retry.InitialDelay.Duration()
		}
		if rc.Retry.Multiplier > 0 {
			c.RetryBackoffMultiplier = rc.Retry.Multiplier
		}
		c.CircuitBreakerEnabled = rc.CircuitBreaker.Enabled
		if rc.CircuitBreaker.Threshold > 0 {
			c.CircuitBreakerThreshold = rc.CircuitBreaker.Threshold
		}
		if rc.CircuitBreaker.Timeout > 0 {
			c.CircuitBreakerTimeout = rc.CircuitBreaker.Timeout.Duration()
		}
		c.BulkheadEnabled = rc.Bulkhead.Enabled
		if rc.Bulkhead.MaxConcurrent > 0 {
			c.MaxConcurrent = rc.Bulkhead.MaxConcurrent
		}
	}
}

// NewExecutorWithOptions creates an executor with the given options.
func NewExecutorWithOptions(opts ...Option) *Executor {
	cfg := DefaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewExecutor(cfg)
}

package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/ragent/domain/action"
	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/config"
)

func fastConfig() ExecutorConfig {
	c := DefaultExecutorConfig()
	c.RetryInitialDelay = time.Millisecond
	c.DefaultTimeout = time.Second
	return c
}

func countingAction(calls *int32, err error) action.Action {
	return action.Func(func(context.Context, *agent.Agent, map[string]any) (any, error) {
		atomic.AddInt32(calls, 1)
		if err != nil {
			return nil, err
		}
		return "ok", nil
	})
}

func TestDefaultExecutorConfig(t *testing.T) {
	t.Parallel()

	config := DefaultExecutorConfig()

	if config.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, want 10", config.MaxConcurrent)
	}
	if config.CircuitBreakerThreshold != 5 {
		t.Errorf("CircuitBreakerThreshold = %d, want 5", config.CircuitBreakerThreshold)
	}
	if config.RetryMaxAttempts != 3 {
		t.Errorf("RetryMaxAttempts = %d, want 3", config.RetryMaxAttempts)
	}
	if config.DefaultTimeout != 30*time.Second {
		t.Errorf("DefaultTimeout = %v, want 30s", config.DefaultTimeout)
	}
}

func TestExecutor_Invoke_Success(t *testing.T) {
	t.Parallel()

	var calls int32
	executor := NewExecutor(fastConfig())

	result, err := executor.Invoke(context.Background(), "search", countingAction(&calls, nil), action.Metadata{}, nil, nil)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result != "ok" {
		t.Errorf("Invoke() = %v, want ok", result)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecutor_Invoke_PreservesError(t *testing.T) {
	t.Parallel()

	expected := errors.New("capability failed")
	tests := []struct {
		name       string
		idempotent bool
	}{
		{"not idempotent", false},
		{"idempotent", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls int32
			executor := NewExecutor(fastConfig())
			_, err := executor.Invoke(context.Background(), "x", countingAction(&calls, expected), action.Metadata{Idempotent: tt.idempotent}, nil, nil)
			if !errors.Is(err, expected) {
				t.Errorf("Invoke() error = %v, want %v", err, expected)
			}
			if !tt.idempotent && calls != 1 {
				t.Errorf("calls = %d, want 1 for non-idempotent action", calls)
			}
			if tt.idempotent && calls < 2 {
				t.Errorf("calls = %d, want retries for idempotent action", calls)
			}
		})
	}
}

func TestExecutor_Timeout(t *testing.T) {
	t.Parallel()

	executor := NewExecutorWithOptions(WithTimeout(20*time.Millisecond), WithRetryAttempts(1))
	slow := action.Func(func(ctx context.Context, _ *agent.Agent, _ map[string]any) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "late", nil
		}
	})

	if _, err := executor.Invoke(context.Background(), "slow", slow, action.Metadata{}, nil, nil); err == nil {
		t.Error("Invoke() should fail when the timeout elapses")
	}
}

func TestExecutor_CircuitBreakerPerKey(t *testing.T) {
	t.Parallel()

	executor := NewExecutorWithOptions(WithCircuitBreakerThreshold(2), WithRetryAttempts(1))
	failing := errors.New("down")

	if state := executor.CircuitBreakerState(ActionKey("flaky")); state.String() != "closed" {
		t.Errorf("initial state = %v, want closed", state)
	}

	var calls int32
	for i := 0; i < 4; i++ {
		_, _ = executor.Invoke(context.Background(), "flaky", countingAction(&calls, failing), action.Metadata{}, nil, nil)
	}
	if calls >= 4 {
		t.Errorf("calls = %d, want the open circuit to short-circuit later calls", calls)
	}

	var healthy int32
	if _, err := executor.Invoke(context.Background(), "healthy", countingAction(&healthy, nil), action.Metadata{}, nil, nil); err != nil {
		t.Errorf("Invoke(healthy) error = %v, want isolation from flaky breaker", err)
	}
}

func TestDo(t *testing.T) {
	t.Parallel()

	executor := NewDefaultExecutor()
	got, err := Do(context.Background(), executor, "llm:complete", true, func(context.Context) (string, error) {
		return "text", nil
	})
	if err != nil || got != "text" {
		t.Errorf("Do() = %q, %v, want text", got, err)
	}
}

func TestDirectInvoker(t *testing.T) {
	t.Parallel()

	expected := errors.New("boom")
	var calls int32
	_, err := DirectInvoker{}.Invoke(context.Background(), "x", countingAction(&calls, expected), action.Metadata{Idempotent: true}, nil, nil)
	if !errors.Is(err, expected) || calls != 1 {
		t.Errorf("Invoke() = %v after %d calls, want boom after 1", err, calls)
	}
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	rc := config.ResilienceConfig{
		Timeout:        config.Duration(5 * time.Second),
		Retry:          config.RetryConfig{Enabled: false, MaxAttempts: 7},
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true, Threshold: 9},
		Bulkhead:       config.BulkheadConfig{Enabled: true, MaxConcurrent: 3},
	}

	cfg := DefaultExecutorConfig()
	FromConfig(rc)(&cfg)

	if cfg.DefaultTimeout != 5*time.Second {
		t.Errorf("DefaultTimeout = %v, want 5s", cfg.DefaultTimeout)
	}
	if cfg.RetryEnabled || cfg.RetryMaxAttempts != 7 {
		t.Errorf("retry = %v/%d, want disabled/7", cfg.RetryEnabled, cfg.RetryMaxAttempts)
	}
	if cfg.CircuitBreakerThreshold != 9 || cfg.MaxConcurrent != 3 {
		t.Errorf("threshold/max = %d/%d, want 9/3", cfg.CircuitBreakerThreshold, cfg.MaxConcurrent)
	}
}

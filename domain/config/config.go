// Package config provides the application configuration model and its
// validation rules.
package config

import (
	"time"

	"github.com/felixgeelhaar/ragent/domain/evaluation"
)

// AppConfig represents the complete runtime configuration.
type AppConfig struct {
	// Name is a human-readable name for this deployment.
	Name string `json:"name" yaml:"name"`
	// Version is the configuration schema version.
	Version string `json:"version" yaml:"version"`

	Logging    LoggingConfig    `json:"logging,omitempty" yaml:"logging,omitempty"`
	Storage    StorageConfig    `json:"storage,omitempty" yaml:"storage,omitempty"`
	Events     EventsConfig     `json:"events,omitempty" yaml:"events,omitempty"`
	LLM        LLMConfig        `json:"llm,omitempty" yaml:"llm,omitempty"`
	Planning   PlanningConfig   `json:"planning,omitempty" yaml:"planning,omitempty"`
	Evaluation EvaluationConfig `json:"evaluation,omitempty" yaml:"evaluation,omitempty"`
	Resilience ResilienceConfig `json:"resilience,omitempty" yaml:"resilience,omitempty"`
	Telemetry  TelemetryConfig  `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
	Retrieval  RetrievalConfig  `json:"retrieval,omitempty" yaml:"retrieval,omitempty"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is json or console.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// StorageConfig selects and configures the entity repositories.
type StorageConfig struct {
	// Backend is memory, sqlite, postgres or redis.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// CacheSize enables an LRU agent cache when positive.
	CacheSize int            `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`
	SQLite    SQLiteConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Postgres  PostgresConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
	Redis     RedisConfig    `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Address   string `json:"address,omitempty" yaml:"address,omitempty"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int    `json:"db,omitempty" yaml:"db,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
}

// EventsConfig selects the event store.
type EventsConfig struct {
	// Backend is memory, badger or none.
	Backend string       `json:"backend,omitempty" yaml:"backend,omitempty"`
	Badger  BadgerConfig `json:"badger,omitempty" yaml:"badger,omitempty"`
}

// BadgerConfig configures the badger event store.
type BadgerConfig struct {
	Dir      string `json:"dir,omitempty" yaml:"dir,omitempty"`
	InMemory bool   `json:"in_memory,omitempty" yaml:"in_memory,omitempty"`
}

// LLMConfig configures the language model provider.
type LLMConfig struct {
	// Provider is openai, anthropic, ollama or mock.
	Provider    string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey      string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL     string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Temperature float64  `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Timeout     Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// PlanningConfig configures plan execution.
type PlanningConfig struct {
	// FailurePolicy is abort or continue.
	FailurePolicy string `json:"failure_policy,omitempty" yaml:"failure_policy,omitempty"`
	// MaxConcurrentSteps bounds how many ready steps run at once.
	MaxConcurrentSteps int `json:"max_concurrent_steps,omitempty" yaml:"max_concurrent_steps,omitempty"`
}

// EvaluationConfig overrides the stock evaluation settings.
type EvaluationConfig struct {
	OverallThreshold float64            `json:"overall_threshold,omitempty" yaml:"overall_threshold,omitempty"`
	Thresholds       map[string]float64 `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Weights          map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// Settings converts the overrides into evaluation settings on top of the defaults.
// Unknown criterion names are ignored; Validator reports them.
func (c EvaluationConfig) Settings() evaluation.Settings {
	override := evaluation.Settings{
		Thresholds:       make(map[evaluation.Criterion]float64),
		Weights:          make(map[evaluation.Criterion]float64),
		OverallThreshold: c.OverallThreshold,
	}
	for name, v := range c.Thresholds {
		if crit, err := evaluation.ParseCriterion(name); err == nil {
			override.Thresholds[crit] = v
		}
	}
	for name, v := range c.Weights {
		if crit, err := evaluation.ParseCriterion(name); err == nil {
			override.Weights[crit] = v
		}
	}
	return evaluation.DefaultSettings().Merge(override)
}

// ResilienceConfig contains resilience settings.
type ResilienceConfig struct {
	// Timeout bounds each capability or collaborator call.
	Timeout        Duration             `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retry          RetryConfig          `json:"retry,omitempty" yaml:"retry,omitempty"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
	Bulkhead       BulkheadConfig       `json:"bulkhead,omitempty" yaml:"bulkhead,omitempty"`
}

// RetryConfig configures retry of idempotent calls.
type RetryConfig struct {
	Enabled      bool     `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	MaxAttempts  int      `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	InitialDelay Duration `json:"initial_delay,omitempty" yaml:"initial_delay,omitempty"`
	Multiplier   float64  `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Threshold is consecutive failures before opening.
	Threshold int `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	// Timeout is how long the circuit stays open.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// BulkheadConfig configures bulkhead behavior.
type BulkheadConfig struct {
	Enabled       bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	MaxConcurrent int  `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
}

// TelemetryConfig configures tracing and metrics.
type TelemetryConfig struct {
	Tracing TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// TracingConfig configures the trace exporter.
type TracingConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Exporter is stdout, otlp or none.
	Exporter   string  `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	Endpoint   string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure   bool    `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	SampleRate float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

// MetricsConfig configures the metrics subscriber.
type MetricsConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// RetrievalConfig selects the document retriever and its seed corpus.
type RetrievalConfig struct {
	// Backend is memory or bleve.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// IndexPath is the bleve index directory; empty means in-memory.
	IndexPath string `json:"index_path,omitempty" yaml:"index_path,omitempty"`
	// Limit is the default number of documents returned by search.
	Limit     int              `json:"limit,omitempty" yaml:"limit,omitempty"`
	Documents []DocumentConfig `json:"documents,omitempty" yaml:"documents,omitempty"`
}

// DocumentConfig is one seed document.
type DocumentConfig struct {
	ID       string            `json:"id" yaml:"id"`
	Title    string            `json:"title,omitempty" yaml:"title,omitempty"`
	Content  string            `json:"content" yaml:"content"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Default returns a configuration that runs entirely in memory.
func Default() *AppConfig {
	return &AppConfig{
		Name:    "ragent",
		Version: "1",
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Storage: StorageConfig{
			Backend:  "memory",
			SQLite:   SQLiteConfig{DSN: "file:ragent.db?cache=shared&mode=rwc"},
			Postgres: PostgresConfig{Schema: "public"},
			Redis:    RedisConfig{Address: "localhost:6379", KeyPrefix: "ragent:"},
		},
		Events: EventsConfig{
			Backend: "memory",
			Badger:  BadgerConfig{Dir: "./events"},
		},
		LLM: LLMConfig{
			Provider:    "mock",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   1024,
			Timeout:     Duration(60 * time.Second),
		},
		Planning: PlanningConfig{FailurePolicy: "abort", MaxConcurrentSteps: 1},
		Evaluation: EvaluationConfig{
			OverallThreshold: 0.75,
		},
		Resilience: ResilienceConfig{
			Timeout: Duration(30 * time.Second),
			Retry: RetryConfig{
				Enabled:      true,
				MaxAttempts:  3,
				InitialDelay: Duration(100 * time.Millisecond),
				Multiplier:   2.0,
			},
			CircuitBreaker: CircuitBreakerConfig{Enabled: true, Threshold: 5, Timeout: Duration(30 * time.Second)},
			Bulkhead:       BulkheadConfig{Enabled: true, MaxConcurrent: 10},
		},
		Telemetry: TelemetryConfig{
			Tracing: TracingConfig{Exporter: "stdout", Insecure: true, SampleRate: 1.0},
			Metrics: MetricsConfig{Enabled: true},
		},
		Retrieval: RetrievalConfig{Backend: "memory", Limit: 5},
	}
}

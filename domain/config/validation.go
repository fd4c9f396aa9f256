package config

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/ragent/domain/evaluation"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the dotted path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates application configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *AppConfig) ValidationErrors {
	v.errors = nil

	v.validateRequired(config)
	v.validateLogging(config)
	v.validateStorage(config)
	v.validateEvents(config)
	v.validateLLM(config)
	v.validatePlanning(config)
	v.validateEvaluation(config)
	v.validateResilience(config)
	v.validateTelemetry(config)
	v.validateRetrieval(config)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) oneOf(path, value string, allowed ...string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.addError(path, fmt.Sprintf("must be one of %s, got %q", strings.Join(allowed, ", "), value))
}

func (v *Validator) validateRequired(config *AppConfig) {
	if config.Name == "" {
		v.addError("name", "name is required")
	}
	if config.Version == "" {
		v.addError("version", "version is required")
	}
}

func (v *Validator) validateLogging(config *AppConfig) {
	v.oneOf("logging.level", strings.ToLower(config.Logging.Level), "trace", "debug", "info", "warn", "error")
	v.oneOf("logging.format", config.Logging.Format, "json", "console")
}

func (v *Validator) validateStorage(config *AppConfig) {
	s := config.Storage
	v.oneOf("storage.backend", s.Backend, "memory", "sqlite", "postgres", "redis")
	if s.CacheSize < 0 {
		v.addError("storage.cache_size", "cache_size must be non-negative")
	}
	switch s.Backend {
	case "sqlite":
		if s.SQLite.DSN == "" {
			v.addError("storage.sqlite.dsn", "dsn is required for sqlite backend")
		}
	case "postgres":
		if s.Postgres.DSN == "" {
			v.addError("storage.postgres.dsn", "dsn is required for postgres backend")
		}
	case "redis":
		if s.Redis.Address == "" {
			v.addError("storage.redis.address", "address is required for redis backend")
		}
		if s.Redis.DB < 0 {
			v.addError("storage.redis.db", "db must be non-negative")
		}
	}
}

func (v *Validator) validateEvents(config *AppConfig) {
	e := config.Events
	v.oneOf("events.backend", e.Backend, "memory", "badger", "none")
	if e.Backend == "badger" && !e.Badger.InMemory && e.Badger.Dir == "" {
		v.addError("events.badger.dir", "dir is required unless in_memory is set")
	}
}

func (v *Validator) validateLLM(config *AppConfig) {
	l := config.LLM
	v.oneOf("llm.provider", l.Provider, "openai", "anthropic", "ollama", "mock")
	if (l.Provider == "openai" || l.Provider == "anthropic") && l.APIKey == "" {
		v.addError("llm.api_key", fmt.Sprintf("api_key is required for %s provider", l.Provider))
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		v.addError("llm.temperature", "temperature must be between 0 and 2")
	}
	if l.MaxTokens < 0 {
		v.addError("llm.max_tokens", "max_tokens must be non-negative")
	}
	if l.Timeout < 0 {
		v.addError("llm.timeout", "timeout must be non-negative")
	}
}

func (v *Validator) validatePlanning(config *AppConfig) {
	v.oneOf("planning.failure_policy", config.Planning.FailurePolicy, "abort", "continue")
	if config.Planning.MaxConcurrentSteps < 0 {
		v.addError("planning.max_concurrent_steps", "max_concurrent_steps must be non-negative")
	}
}

func (v *Validator) validateEvaluation(config *AppConfig) {
	e := config.Evaluation
	if e.OverallThreshold < 0 || e.OverallThreshold > 1 {
		v.addError("evaluation.overall_threshold", "overall_threshold must be between 0 and 1")
	}
	for name, t := range e.Thresholds {
		path := "evaluation.thresholds." + name
		if _, err := evaluation.ParseCriterion(name); err != nil {
			v.addError(path, fmt.Sprintf("unknown criterion: %s", name))
			continue
		}
		if t < 0 || t > 1 {
			v.addError(path, "threshold must be between 0 and 1")
		}
	}
	for name, w := range e.Weights {
		path := "evaluation.weights." + name
		if _, err := evaluation.ParseCriterion(name); err != nil {
			v.addError(path, fmt.Sprintf("unknown criterion: %s", name))
			continue
		}
		if w < 0 {
			v.addError(path, "weight must be non-negative")
		}
	}
}

func (v *Validator) validateResilience(config *AppConfig) {
	r := config.Resilience
	if r.Timeout < 0 {
		v.addError("resilience.timeout", "timeout must be non-negative")
	}
	if r.Retry.Enabled {
		if r.Retry.MaxAttempts <= 0 {
			v.addError("resilience.retry.max_attempts", "max_attempts must be positive when enabled")
		}
		if r.Retry.Multiplier < 1 {
			v.addError("resilience.retry.multiplier", "multiplier must be >= 1")
		}
	}
	if r.CircuitBreaker.Enabled && r.CircuitBreaker.Threshold <= 0 {
		v.addError("resilience.circuit_breaker.threshold", "threshold must be positive when enabled")
	}
	if r.Bulkhead.Enabled && r.Bulkhead.MaxConcurrent <= 0 {
		v.addError("resilience.bulkhead.max_concurrent", "max_concurrent must be positive when enabled")
	}
}

func (v *Validator) validateTelemetry(config *AppConfig) {
	t := config.Telemetry.Tracing
	if !t.Enabled {
		return
	}
	v.oneOf("telemetry.tracing.exporter", t.Exporter, "stdout", "otlp", "none")
	if t.Exporter == "otlp" && t.Endpoint == "" {
		v.addError("telemetry.tracing.endpoint", "endpoint is required for otlp exporter")
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		v.addError("telemetry.tracing.sample_rate", "sample_rate must be between 0 and 1")
	}
}

func (v *Validator) validateRetrieval(config *AppConfig) {
	r := config.Retrieval
	v.oneOf("retrieval.backend", r.Backend, "memory", "bleve")
	if r.Limit < 0 {
		v.addError("retrieval.limit", "limit must be non-negative")
	}
	seen := make(map[string]bool, len(r.Documents))
	for i, doc := range r.Documents {
		path := fmt.Sprintf("retrieval.documents[%d]", i)
		if doc.ID == "" {
			v.addError(path+".id", "document id is required")
		} else if seen[doc.ID] {
			v.addError(path+".id", fmt.Sprintf("duplicate document id: %s", doc.ID))
		}
		seen[doc.ID] = true
		if doc.Content == "" {
			v.addError(path+".content", "document content is required")
		}
	}
}

package application

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/ragent/domain/action"
	"github.com/felixgeelhaar/ragent/domain/evaluation"
	"github.com/felixgeelhaar/ragent/domain/event"
	"github.com/felixgeelhaar/ragent/domain/plan"
	"github.com/felixgeelhaar/ragent/infrastructure/resilience"
)

// Config contains the collaborators shared by the orchestration services.
type Config struct {
	// Registry resolves action types to capabilities. Required.
	Registry action.Registry

	// Invoker runs capabilities. Defaults to resilience.DirectInvoker.
	Invoker resilience.Invoker

	// Events receives domain events. Defaults to event.NopPublisher.
	Events event.Publisher

	// Tracer records service spans. Defaults to the global tracer.
	Tracer trace.Tracer

	// Generator proposes plan steps. Required by the planning service.
	Generator plan.Generator

	// FailurePolicy decides whether a failed step stops the plan.
	FailurePolicy plan.FailurePolicy

	// MaxConcurrentSteps bounds how many ready steps run at once.
	// Values below 1 mean one step at a time.
	MaxConcurrentSteps int

	// Scorer judges every criterion without a dedicated scorer.
	// Required by the evaluation service.
	Scorer evaluation.Scorer

	// Scorers overrides the scorer per criterion.
	Scorers map[evaluation.Criterion]evaluation.Scorer

	// Improver revises responses. Required by the evaluation service.
	Improver evaluation.Improver

	// Settings holds the evaluation thresholds and weights.
	// The zero value means evaluation.DefaultSettings.
	Settings evaluation.Settings
}

// Option configures the services.
type Option func(*Config)

// WithRegistry sets the action registry.
func WithRegistry(r action.Registry) Option {
	return func(c *Config) {
		c.Registry = r
	}
}

// WithInvoker sets the capability invoker, usually a *resilience.Executor.
func WithInvoker(i resilience.Invoker) Option {
	return func(c *Config) {
		c.Invoker = i
	}
}

// WithEvents sets the event publisher.
func WithEvents(p event.Publisher) Option {
	return func(c *Config) {
		c.Events = p
	}
}

// WithTracer sets the tracer used for service spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Config) {
		c.Tracer = t
	}
}

// WithGenerator sets the plan generator.
func WithGenerator(g plan.Generator) Option {
	return func(c *Config) {
		c.Generator = g
	}
}

// WithFailurePolicy sets what happens to a plan after a step fails.
func WithFailurePolicy(p plan.FailurePolicy) Option {
	return func(c *Config) {
		c.FailurePolicy = p
	}
}

// WithMaxConcurrentSteps sets how many ready steps may run at once.
func WithMaxConcurrentSteps(n int) Option {
	return func(c *Config) {
		c.MaxConcurrentSteps = n
	}
}

// WithScorer sets the default scorer.
func WithScorer(s evaluation.Scorer) Option {
	return func(c *Config) {
		c.Scorer = s
	}
}

// WithCriterionScorer sets a dedicated scorer for one criterion.
func WithCriterionScorer(criterion evaluation.Criterion, s evaluation.Scorer) Option {
	return func(c *Config) {
		if c.Scorers == nil {
			c.Scorers = make(map[evaluation.Criterion]evaluation.Scorer)
		}
		c.Scorers[criterion] = s
	}
}

// WithImprover sets the response improver.
func WithImprover(i evaluation.Improver) Option {
	return func(c *Config) {
		c.Improver = i
	}
}

// WithSettings sets the evaluation thresholds and weights.
func WithSettings(s evaluation.Settings) Option {
	return func(c *Config) {
		c.Settings = s
	}
}

// Services bundles the three orchestration services built from one Config.
type Services struct {
	Execution  *ExecutionService
	Planning   *PlanningService
	Evaluation *EvaluationService
}

// NewServices creates every service from config.
func NewServices(config Config) (*Services, error) {
	execution, err := NewExecutionService(config)
	if err != nil {
		return nil, err
	}
	planning, err := NewPlanningService(config, execution)
	if err != nil {
		return nil, err
	}
	evaluator, err := NewEvaluationService(config)
	if err != nil {
		return nil, err
	}
	return &Services{
		Execution:  execution,
		Planning:   planning,
		Evaluation: evaluator,
	}, nil
}

// NewServicesWithOptions creates every service with functional options.
func NewServicesWithOptions(opts ...Option) (*Services, error) {
	config := Config{}
	for _, opt := range opts {
		opt(&config)
	}
	return NewServices(config)
}

// Package api provides the public entry point for embedding ragent.
//
// A Runtime is built from an AppConfig and owns every collaborator the
// configuration selects: repositories, event store, buses, LLM client,
// retriever and tracing. Commands and queries are dispatched through the
// buses:
//
//	rt, err := api.New(ctx, config.Default())
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	created, err := bus.Send[application.CreateAgentResult](ctx, rt.Commands,
//	    application.CreateAgent{Name: "helper"})
//	answer, err := bus.Send[application.ProcessAgentQueryResult](ctx, rt.Commands,
//	    application.ProcessAgentQuery{AgentID: created.AgentID, Query: "What is Go?"})
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/felixgeelhaar/ragent"
	"github.com/felixgeelhaar/ragent/application"
	"github.com/felixgeelhaar/ragent/domain/action"
	"github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/domain/plan"
	"github.com/felixgeelhaar/ragent/infrastructure/bus"
	infraconfig "github.com/felixgeelhaar/ragent/infrastructure/config"
	"github.com/felixgeelhaar/ragent/infrastructure/llm"
	"github.com/felixgeelhaar/ragent/infrastructure/lock"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
	"github.com/felixgeelhaar/ragent/infrastructure/resilience"
	"github.com/felixgeelhaar/ragent/infrastructure/retrieval"
	"github.com/felixgeelhaar/ragent/infrastructure/storage"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/memory"
	"github.com/felixgeelhaar/ragent/infrastructure/telemetry"
	"github.com/felixgeelhaar/ragent/pack/rag"
)

// Runtime is a fully wired ragent instance.
type Runtime struct {
	Commands *bus.CommandBus
	Queries  *bus.QueryBus
	Events   *bus.EventBus
	Services *application.Services
	Registry action.Registry

	repos     *storage.Repositories
	retriever retrieval.Index
	tracing   *telemetry.Provider
	client    *llm.Client

	mu      sync.Mutex
	config  *config.AppConfig
	watcher *infraconfig.Watcher
	closed  bool
}

// Option configures a Runtime.
type Option func(*options)

type extraAction struct {
	name string
	act  action.Action
	meta action.Metadata
}

type options struct {
	provider    llm.Provider
	traceWriter io.Writer
	logOutput   io.Writer
	actions     []extraAction
	builtins    bool
}

// WithLLMProvider replaces the provider selected by the llm section.
func WithLLMProvider(p llm.Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithTraceWriter sends stdout trace exporter output to w.
func WithTraceWriter(w io.Writer) Option {
	return func(o *options) {
		o.traceWriter = w
	}
}

// WithLogOutput sends log output to w.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		o.logOutput = w
	}
}

// WithAction registers an additional action. It replaces a built-in action
// of the same name.
func WithAction(name string, a action.Action, meta action.Metadata) Option {
	return func(o *options) {
		o.actions = append(o.actions, extraAction{name: name, act: a, meta: meta})
	}
}

// WithoutBuiltins skips registration of the built-in rag actions.
func WithoutBuiltins() Option {
	return func(o *options) {
		o.builtins = false
	}
}

// New builds a Runtime from cfg. A nil cfg uses config.Default(). On error
// everything opened so far is released.
func New(ctx context.Context, cfg *config.AppConfig, opts ...Option) (_ *Runtime, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := options{builtins: true}
	for _, opt := range opts {
		opt(&o)
	}

	logging.Init(logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format, o.logOutput))

	rt := &Runtime{
		Commands: bus.NewCommandBus(),
		Queries:  bus.NewQueryBus(),
		config:   cfg,
	}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	telemetryOpts := []telemetry.Option{telemetry.WithService(cfg.Name, ragent.Version)}
	if o.traceWriter != nil {
		telemetryOpts = append(telemetryOpts, telemetry.WithWriter(o.traceWriter))
	}
	if rt.tracing, err = telemetry.New(ctx, cfg.Telemetry.Tracing, telemetryOpts...); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	if rt.repos, err = storage.Open(ctx, cfg.Storage, cfg.Events); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	if rt.repos.Events != nil {
		rt.Events = bus.NewEventBus(bus.WithStore(rt.repos.Events))
	} else {
		rt.Events = bus.NewEventBus()
	}
	if cfg.Telemetry.Metrics.Enabled {
		metrics, err := telemetry.NewMetrics(nil)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		rt.Events.SubscribeAll(metrics)
	}

	executor := resilience.NewExecutorWithOptions(resilience.FromConfig(cfg.Resilience))

	if o.provider != nil {
		rt.client = llm.NewClient(o.provider, llm.WithExecutor(executor), llm.WithModel(cfg.LLM.Model))
	} else if rt.client, err = llm.NewClientFromConfig(cfg.LLM, llm.WithExecutor(executor)); err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	if rt.retriever, err = retrieval.New(ctx, cfg.Retrieval); err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}

	registry := memory.NewActionRegistry()
	rt.Registry = registry

	rt.Services, err = application.NewServices(application.Config{
		Registry:           registry,
		Invoker:            executor,
		Events:             rt.Events,
		Tracer:             rt.tracing.Tracer(),
		Generator:          llm.NewPlanGenerator(rt.client),
		FailurePolicy:      plan.FailurePolicy(cfg.Planning.FailurePolicy),
		MaxConcurrentSteps: cfg.Planning.MaxConcurrentSteps,
		Scorer:             llm.NewScorer(rt.client),
		Improver:           llm.NewImprover(rt.client),
		Settings:           cfg.Evaluation.Settings(),
	})
	if err != nil {
		return nil, err
	}

	if o.builtins {
		err = rag.Register(registry, rt.retriever, llm.NewTextGenerator(rt.client),
			rag.WithEvaluator(rt.Services.Evaluation),
			rag.WithEvaluations(rt.repos.Evaluations),
			rag.WithSearchLimit(cfg.Retrieval.Limit),
		)
		if err != nil {
			return nil, err
		}
	}
	for _, extra := range o.actions {
		if err := registry.Register(extra.name, extra.act, extra.meta); err != nil {
			return nil, fmt.Errorf("register %s: %w", extra.name, err)
		}
	}

	handlers, err := application.NewHandlers(application.HandlerConfig{
		Services:    rt.Services,
		Agents:      rt.repos.Agents,
		Plans:       rt.repos.Plans,
		Evaluations: rt.repos.Evaluations,
		Events:      rt.repos.Events,
		Locker:      lock.NewKeyedMutex(),
	})
	if err != nil {
		return nil, err
	}
	if err := handlers.Register(rt.Commands, rt.Queries); err != nil {
		return nil, err
	}

	logging.Info().
		Add(logging.Component("runtime")).
		Add(logging.Backend(cfg.Storage.Backend)).
		Add(logging.Str("llm", rt.client.Provider().Name())).
		Add(logging.Count("actions", len(registry.List()))).
		Msg("runtime ready")

	return rt, nil
}

// Config returns the configuration currently in effect.
func (r *Runtime) Config() *config.AppConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config
}

// ApplyConfig applies the parts of cfg that can change at runtime: the
// evaluation settings and the log level.
func (r *Runtime) ApplyConfig(cfg *config.AppConfig) error {
	if err := r.Services.Evaluation.ApplySettings(cfg.Evaluation.Settings()); err != nil {
		return err
	}
	if cfg.Logging.Level != "" {
		logging.SetLevel(cfg.Logging.Level)
	}
	r.mu.Lock()
	r.config = cfg
	r.mu.Unlock()
	return nil
}

// Watch reloads path when it changes and applies the result with
// ApplyConfig until ctx is done or the runtime is closed.
func (r *Runtime) Watch(ctx context.Context, path string) error {
	w, err := infraconfig.NewWatcher(path, func(cfg *config.AppConfig) {
		if err := r.ApplyConfig(cfg); err != nil {
			logging.Warn().
				Add(logging.Component("runtime")).
				Add(logging.ErrorField(err)).
				Msg("config reload rejected")
			return
		}
		logging.Info().
			Add(logging.Component("runtime")).
			Add(logging.Str("path", path)).
			Msg("config reloaded")
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return w.Close()
	}
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	r.watcher = w
	return nil
}

// Close releases every resource in reverse order of acquisition. It is safe
// to call more than once.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	watcher := r.watcher
	r.mu.Unlock()

	var errs []error
	if watcher != nil {
		errs = append(errs, watcher.Close())
	}
	if r.retriever != nil {
		errs = append(errs, r.retriever.Close())
	}
	if r.repos != nil {
		errs = append(errs, r.repos.Close())
	}
	if r.tracing != nil {
		errs = append(errs, r.tracing.Shutdown(context.Background()))
	}
	return errors.Join(errs...)
}

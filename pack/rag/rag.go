// Package rag provides the built-in retrieval-augmented actions: search,
// generate, evaluate, improve, remember and recall.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/felixgeelhaar/ragent/domain/action"
	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/evaluation"
	"github.com/felixgeelhaar/ragent/infrastructure/llm"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
	"github.com/felixgeelhaar/ragent/infrastructure/retrieval"
)

// Action names registered by this pack.
const (
	Search   = "search"
	Generate = "generate"
	Evaluate = "evaluate"
	Improve  = "improve"
	Remember = "remember"
	Recall   = "recall"
)

var (
	// ErrInvalidParameters indicates action parameters that could not be decoded.
	ErrInvalidParameters = errors.New("invalid action parameters")

	// ErrMissingRetriever indicates the pack was built without a retriever.
	ErrMissingRetriever = errors.New("rag pack requires a retriever")

	// ErrMissingGenerator indicates the pack was built without a text generator.
	ErrMissingGenerator = errors.New("rag pack requires a text generator")
)

// Evaluator judges and revises responses. The application evaluation
// service satisfies it.
type Evaluator interface {
	EvaluateResponse(ctx context.Context, a *agent.Agent, query, response string, snippets []string, responseID string) (*evaluation.Evaluation, error)
	NeedsImprovement(e *evaluation.Evaluation) bool
	ImproveResponse(ctx context.Context, a *agent.Agent, e *evaluation.Evaluation) (*evaluation.Improvement, error)
}

// Config configures the pack.
type Config struct {
	Retriever retrieval.Retriever
	Generator llm.TextGenerator

	// Evaluator enables the evaluate and improve actions.
	Evaluator Evaluator

	// Evaluations persists what evaluate and improve produce, and lets
	// improve find an earlier evaluation by id.
	Evaluations evaluation.Repository

	// SearchLimit is the number of documents search returns when the
	// caller does not ask for a limit.
	SearchLimit int
}

// Option configures the pack.
type Option func(*Config)

// WithEvaluator enables the evaluate and improve actions.
func WithEvaluator(e Evaluator) Option {
	return func(c *Config) {
		c.Evaluator = e
	}
}

// WithEvaluations sets the repository evaluations and improvements are saved to.
func WithEvaluations(r evaluation.Repository) Option {
	return func(c *Config) {
		c.Evaluations = r
	}
}

// WithSearchLimit sets the default number of search results.
func WithSearchLimit(n int) Option {
	return func(c *Config) {
		c.SearchLimit = n
	}
}

// Register adds the pack's actions to registry.
func Register(registry action.Registry, retriever retrieval.Retriever, generator llm.TextGenerator, opts ...Option) error {
	if retriever == nil {
		return ErrMissingRetriever
	}
	if generator == nil {
		return ErrMissingGenerator
	}
	cfg := Config{
		Retriever:   retriever,
		Generator:   generator,
		SearchLimit: retrieval.DefaultLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	type entry struct {
		name string
		fn   action.Func
		meta action.Metadata
	}
	entries := []entry{
		{Search, cfg.search, action.Metadata{Description: "Search the knowledge base for passages relevant to a query", Idempotent: true}},
		{Generate, cfg.generate, action.Metadata{Description: "Generate an answer to a query from context passages", Idempotent: true}},
		{Remember, cfg.remember, action.Metadata{Description: "Store a value in agent memory"}},
		{Recall, cfg.recall, action.Metadata{Description: "Read a value from agent memory", Idempotent: true}},
	}
	if cfg.Evaluator != nil {
		entries = append(entries,
			entry{Evaluate, cfg.evaluate, action.Metadata{Description: "Score a response against the evaluation criteria"}},
			entry{Improve, cfg.improve, action.Metadata{Description: "Revise a response using its evaluation"}},
		)
	}

	for _, e := range entries {
		if err := registry.Register(e.name, e.fn, e.meta); err != nil {
			return fmt.Errorf("register %s: %w", e.name, err)
		}
	}

	logging.Info().
		Add(logging.Component("rag")).
		Add(logging.Count("actions", len(entries))).
		Add(logging.Flag("evaluation", cfg.Evaluator != nil)).
		Msg("rag actions registered")
	return nil
}

type searchParams struct {
	Query string `mapstructure:"query"`
	Limit int    `mapstructure:"limit"`
}

func (c *Config) search(ctx context.Context, a *agent.Agent, params map[string]any) (any, error) {
	var p searchParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := required("query", p.Query); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = c.SearchLimit
	}

	docs, err := c.Retriever.Retrieve(ctx, p.Query, p.Limit)
	if err != nil {
		return nil, err
	}

	logging.Debug().
		Add(logging.Component("rag")).
		Add(logging.AgentID(a.ID)).
		Add(logging.Count("documents", len(docs))).
		Msg("search completed")
	return retrieval.Contents(docs), nil
}

type generateParams struct {
	Query   string   `mapstructure:"query"`
	Context []string `mapstructure:"context"`
}

func (c *Config) generate(ctx context.Context, _ *agent.Agent, params map[string]any) (any, error) {
	var p generateParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := required("query", p.Query); err != nil {
		return nil, err
	}
	return c.Generator.GenerateText(ctx, p.Query, p.Context)
}

type evaluateParams struct {
	Query      string   `mapstructure:"query"`
	Response   string   `mapstructure:"response"`
	Context    []string `mapstructure:"context"`
	ResponseID string   `mapstructure:"response_id"`
}

func (c *Config) evaluate(ctx context.Context, a *agent.Agent, params map[string]any) (any, error) {
	var p evaluateParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := required("response", p.Response); err != nil {
		return nil, err
	}

	e, err := c.Evaluator.EvaluateResponse(ctx, a, p.Query, p.Response, p.Context, p.ResponseID)
	if err != nil {
		return nil, err
	}
	if c.Evaluations != nil {
		if err := c.Evaluations.SaveEvaluation(ctx, e); err != nil {
			return nil, err
		}
	}
	return judgment(e, c.Evaluator.NeedsImprovement(e)), nil
}

type improveParams struct {
	Query      string         `mapstructure:"query"`
	Response   string         `mapstructure:"response"`
	Context    []string       `mapstructure:"context"`
	Evaluation map[string]any `mapstructure:"evaluation"`
}

// improve revises a response. The evaluation named by evaluation.evaluation_id
// is used when it can be loaded; otherwise the response is evaluated first.
func (c *Config) improve(ctx context.Context, a *agent.Agent, params map[string]any) (any, error) {
	var p improveParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := required("response", p.Response); err != nil {
		return nil, err
	}

	e, err := c.priorEvaluation(ctx, p)
	if err != nil {
		return nil, err
	}
	if e == nil {
		e, err = c.Evaluator.EvaluateResponse(ctx, a, p.Query, p.Response, p.Context, "")
		if err != nil {
			return nil, err
		}
	}

	improvement, err := c.Evaluator.ImproveResponse(ctx, a, e)
	if err != nil {
		return nil, err
	}
	if c.Evaluations != nil {
		if err := c.Evaluations.SaveImprovement(ctx, improvement); err != nil {
			return nil, err
		}
	}

	suggestions := make([]map[string]any, 0, len(improvement.Suggestions))
	for _, s := range improvement.Suggestions {
		suggestions = append(suggestions, map[string]any{
			"criterion":  string(s.Criterion),
			"suggestion": s.Suggestion,
			"priority":   s.Priority,
		})
	}
	return map[string]any{
		"improved_response": improvement.ImprovedResponse,
		"suggestions":       suggestions,
		"improvement_id":    improvement.ID,
	}, nil
}

func (c *Config) priorEvaluation(ctx context.Context, p improveParams) (*evaluation.Evaluation, error) {
	id, _ := p.Evaluation["evaluation_id"].(string)
	if id == "" || c.Evaluations == nil {
		return nil, nil
	}
	e, err := c.Evaluations.GetEvaluationByID(ctx, id)
	if errors.Is(err, evaluation.ErrEvaluationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.Response != p.Response {
		return nil, nil
	}
	return e, nil
}

type memoryParams struct {
	Key   string `mapstructure:"key"`
	Value any    `mapstructure:"value"`
}

func (c *Config) remember(_ context.Context, a *agent.Agent, params map[string]any) (any, error) {
	var p memoryParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := required("key", p.Key); err != nil {
		return nil, err
	}
	a.SetMemory(p.Key, p.Value)
	return map[string]any{"key": p.Key, "value": p.Value}, nil
}

func (c *Config) recall(_ context.Context, a *agent.Agent, params map[string]any) (any, error) {
	var p memoryParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := required("key", p.Key); err != nil {
		return nil, err
	}
	value, found := a.Memory(p.Key)
	return map[string]any{"key": p.Key, "value": value, "found": found}, nil
}

// judgment renders an evaluation as the evaluate action result.
func judgment(e *evaluation.Evaluation, needsImprovement bool) map[string]any {
	scores := make(map[string]float64, len(e.Scores))
	for c, s := range e.Scores {
		scores[string(c)] = s.Score
	}
	return map[string]any{
		"evaluation_id":     e.ID,
		"overall_score":     e.OverallScore,
		"criterion_scores":  scores,
		"needs_improvement": needsImprovement,
	}
}

func decode(params map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(params); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidParameters, name)
	}
	return nil
}

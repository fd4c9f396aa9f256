package application

import (
	"context"
	"sync"
	"testing"

	"github.com/felixgeelhaar/ragent/domain/action"
	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/evaluation"
	"github.com/felixgeelhaar/ragent/domain/event"
	"github.com/felixgeelhaar/ragent/domain/plan"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/memory"
)

// recorder is an event.Publisher that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(_ context.Context, events ...event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) count(t event.Type) int {
	n := 0
	for _, got := range r.types() {
		if got == t {
			n++
		}
	}
	return n
}

func constant(v any) action.Action {
	return action.Func(func(context.Context, *agent.Agent, map[string]any) (any, error) {
		return v, nil
	})
}

func failing(err error) action.Action {
	return action.Func(func(context.Context, *agent.Agent, map[string]any) (any, error) {
		return nil, err
	})
}

// tracing returns an action that appends name to order when it runs.
func tracing(mu *sync.Mutex, order *[]string, name string) action.Action {
	return action.Func(func(context.Context, *agent.Agent, map[string]any) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		*order = append(*order, name)
		return name + "-result", nil
	})
}

func newRegistry(t *testing.T, actions map[string]action.Action) *memory.ActionRegistry {
	t.Helper()
	r := memory.NewActionRegistry()
	for name, a := range actions {
		if err := r.Register(name, a, action.Metadata{Description: name + " action"}); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}
	return r
}

func fixedScorer(scores map[evaluation.Criterion]float64) evaluation.Scorer {
	return evaluation.ScorerFunc(func(_ context.Context, req evaluation.ScoreRequest) (evaluation.ScoreResult, error) {
		return evaluation.ScoreResult{Score: scores[req.Criterion], Reason: "judged " + string(req.Criterion)}, nil
	})
}

func uniformScorer(score float64) evaluation.Scorer {
	return evaluation.ScorerFunc(func(context.Context, evaluation.ScoreRequest) (evaluation.ScoreResult, error) {
		return evaluation.ScoreResult{Score: score, Reason: "uniform"}, nil
	})
}

func echoImprover() evaluation.Improver {
	return evaluation.ImproverFunc(func(_ context.Context, req evaluation.ImproveRequest) (evaluation.ImproveResult, error) {
		return evaluation.ImproveResult{
			ImprovedResponse: req.Response + " (improved)",
			Suggestions: []evaluation.Suggestion{
				{Criterion: evaluation.Completeness, Suggestion: "add detail", Priority: 3},
				{Criterion: evaluation.Relevance, Suggestion: "stay on topic", Priority: 8},
			},
		}, nil
	})
}

// staticPlan returns a generator that always proposes specs.
func staticPlan(specs ...plan.StepSpec) plan.Generator {
	return plan.GeneratorFunc(func(context.Context, plan.GenerateRequest) ([]plan.StepSpec, error) {
		return specs, nil
	})
}

func step(actionType string, deps ...int) plan.StepSpec {
	return plan.StepSpec{ActionType: actionType, Description: "run " + actionType, Dependencies: deps}
}

type fixture struct {
	registry *memory.ActionRegistry
	events   *recorder
	services *Services
}

func newFixture(t *testing.T, actions map[string]action.Action, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		registry: newRegistry(t, actions),
		events:   &recorder{},
	}
	config := Config{
		Registry:  f.registry,
		Events:    f.events,
		Generator: staticPlan(step("search")),
		Scorer:    uniformScorer(0.9),
		Improver:  echoImprover(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	services, err := NewServices(config)
	if err != nil {
		t.Fatalf("NewServices() error = %v", err)
	}
	f.services = services
	return f
}

func newAgent() *agent.Agent {
	return agent.New("helper", "answers questions", "conv-1", nil)
}

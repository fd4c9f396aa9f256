package api

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/felixgeelhaar/ragent/application"
	"github.com/felixgeelhaar/ragent/domain/action"
	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/domain/evaluation"
	"github.com/felixgeelhaar/ragent/domain/plan"
	"github.com/felixgeelhaar/ragent/infrastructure/bus"
	"github.com/felixgeelhaar/ragent/infrastructure/llm"
)

func testConfig() *config.AppConfig {
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.Resilience.Retry.Enabled = false
	cfg.Retrieval.Documents = []config.DocumentConfig{
		{ID: "go", Title: "Go", Content: "Go is a statically typed compiled language with goroutines"},
		{ID: "rust", Title: "Rust", Content: "Rust is a systems language focused on memory safety"},
	}
	return cfg
}

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	opts = append([]Option{WithLogOutput(io.Discard)}, opts...)
	rt, err := New(context.Background(), testConfig(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := rt.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return rt
}

func TestNew_RegistersBuiltins(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)
	got := strings.Join(rt.Registry.List(), ",")
	want := "evaluate,generate,improve,recall,remember,search"
	if got != want {
		t.Errorf("actions = %s, want %s", got, want)
	}
}

func TestNew_WithoutBuiltins(t *testing.T) {
	t.Parallel()

	echo := action.Func(func(_ context.Context, _ *agent.Agent, params map[string]any) (any, error) {
		return params["text"], nil
	})
	rt := newRuntime(t, WithoutBuiltins(), WithAction("echo", echo, action.Metadata{Description: "echo"}))

	if got := rt.Registry.List(); len(got) != 1 || got[0] != "echo" {
		t.Errorf("actions = %v, want [echo]", got)
	}
}

func TestNew_InvalidBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Storage.Backend = "cassandra"
	if _, err := New(context.Background(), cfg, WithLogOutput(io.Discard)); err == nil {
		t.Error("New() should fail for an unknown storage backend")
	}
}

func TestRuntime_QueryRoundTrip(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)
	ctx := context.Background()

	created, err := bus.Send[application.CreateAgentResult](ctx, rt.Commands, application.CreateAgent{Name: "helper"})
	if err != nil {
		t.Fatalf("CreateAgent error = %v", err)
	}

	answer, err := bus.Send[application.ProcessAgentQueryResult](ctx, rt.Commands, application.ProcessAgentQuery{
		AgentID: created.AgentID,
		Query:   "What are goroutines?",
	})
	if err != nil {
		t.Fatalf("ProcessAgentQuery error = %v", err)
	}
	if answer.Response == "" {
		t.Error("Response should not be empty")
	}
	if len(answer.Sources) == 0 || !strings.Contains(answer.Sources[0], "goroutines") {
		t.Errorf("Sources = %v, want the Go document first", answer.Sources)
	}

	view, err := bus.Ask[*application.AgentView](ctx, rt.Queries, application.GetAgentByID{AgentID: created.AgentID})
	if err != nil || view == nil {
		t.Fatalf("GetAgentByID = %v, %v", view, err)
	}
	if view.ActionCount < 3 {
		t.Errorf("ActionCount = %d, want search, generate and evaluate at least", view.ActionCount)
	}

	events, err := bus.Ask[application.AgentEventsResult](ctx, rt.Queries, application.GetAgentEvents{AgentID: created.AgentID, Limit: 100})
	if err != nil {
		t.Fatalf("GetAgentEvents error = %v", err)
	}
	if len(events.Events) == 0 {
		t.Error("GetAgentEvents should return the recorded events")
	}
}

func TestRuntime_PlannedQuery(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)
	ctx := context.Background()

	created, err := bus.Send[application.CreateAgentResult](ctx, rt.Commands, application.CreateAgent{Name: "planner"})
	if err != nil {
		t.Fatalf("CreateAgent error = %v", err)
	}
	answer, err := bus.Send[application.ProcessAgentQueryResult](ctx, rt.Commands, application.ProcessAgentQuery{
		AgentID:     created.AgentID,
		Query:       "Compare Go and Rust",
		UsePlanning: true,
	})
	if err != nil {
		t.Fatalf("ProcessAgentQuery error = %v", err)
	}
	if answer.Plan == nil || len(answer.Plan.Steps) != 2 {
		t.Fatalf("Plan = %+v, want the two-step mock plan", answer.Plan)
	}
	for _, s := range answer.Plan.Steps {
		if s.Status != plan.StepCompleted {
			t.Errorf("step %d status = %s, want completed", s.StepNumber, s.Status)
		}
	}
}

func TestRuntime_ProviderOverride(t *testing.T) {
	t.Parallel()

	provider := llm.NewMockProvider(func(req llm.CompletionRequest) (string, error) {
		if req.Purpose == llm.PurposeGenerate {
			return "scripted answer", nil
		}
		return llm.DefaultResponder(req)
	})
	rt := newRuntime(t, WithLLMProvider(provider))
	ctx := context.Background()

	created, err := bus.Send[application.CreateAgentResult](ctx, rt.Commands, application.CreateAgent{Name: "helper"})
	if err != nil {
		t.Fatalf("CreateAgent error = %v", err)
	}
	if _, err := bus.Send[application.ProcessAgentQueryResult](ctx, rt.Commands, application.ProcessAgentQuery{
		AgentID: created.AgentID,
		Query:   "What is Go?",
	}); err != nil {
		t.Fatalf("ProcessAgentQuery error = %v", err)
	}
	if len(provider.Requests()) == 0 {
		t.Error("the overriding provider should receive the completions")
	}
}

func TestRuntime_ApplyConfig(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)

	next := testConfig()
	next.Evaluation.OverallThreshold = 0.5
	next.Evaluation.Weights = map[string]float64{"relevance": 2}
	if err := rt.ApplyConfig(next); err != nil {
		t.Fatalf("ApplyConfig() error = %v", err)
	}
	settings := rt.Services.Evaluation.Settings()
	if settings.OverallThreshold != 0.5 || settings.Weights[evaluation.Relevance] != 2 {
		t.Errorf("Settings() = %+v, want the applied overrides", settings)
	}
	if rt.Config() != next {
		t.Error("Config() should return the applied configuration")
	}

	bad := testConfig()
	bad.Evaluation.Thresholds = map[string]float64{"relevance": 3}
	if err := rt.ApplyConfig(bad); !errors.Is(err, evaluation.ErrInvalidThreshold) {
		t.Errorf("ApplyConfig() error = %v, want ErrInvalidThreshold", err)
	}
	if rt.Config() != next {
		t.Error("a rejected config should not replace the current one")
	}
}

func TestRuntime_CloseTwice(t *testing.T) {
	t.Parallel()

	rt, err := New(context.Background(), testConfig(), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

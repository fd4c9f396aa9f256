package application

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/ragent/domain/action"
	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/evaluation"
	"github.com/felixgeelhaar/ragent/domain/event"
	"github.com/felixgeelhaar/ragent/domain/plan"
	"github.com/felixgeelhaar/ragent/infrastructure/bus"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/memory"
)

type harness struct {
	commands *bus.CommandBus
	queries  *bus.QueryBus
	agents   *memory.AgentRepository
	plans    *memory.PlanRepository
	store    *memory.EventStore
}

func newHarness(t *testing.T, actions map[string]action.Action, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		commands: bus.NewCommandBus(),
		queries:  bus.NewQueryBus(),
		agents:   memory.NewAgentRepository(),
		plans:    memory.NewPlanRepository(),
		store:    memory.NewEventStore(),
	}

	config := Config{
		Registry:  newRegistry(t, actions),
		Events:    bus.NewEventBus(bus.WithStore(h.store)),
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
	handlers, err := NewHandlers(HandlerConfig{
		Services:    services,
		Agents:      h.agents,
		Plans:       h.plans,
		Evaluations: memory.NewEvaluationRepository(),
		Events:      h.store,
	})
	if err != nil {
		t.Fatalf("NewHandlers() error = %v", err)
	}
	if err := handlers.Register(h.commands, h.queries); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return h
}

func (h *harness) createAgent(t *testing.T) string {
	t.Helper()
	res, err := bus.Send[CreateAgentResult](context.Background(), h.commands, CreateAgent{
		Name:           "helper",
		Description:    "answers questions",
		ConversationID: "conv-1",
	})
	if err != nil {
		t.Fatalf("CreateAgent error = %v", err)
	}
	return res.AgentID
}

func TestNewHandlers_RequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewHandlers(HandlerConfig{}); !errors.Is(err, ErrMissingDependency) {
		t.Errorf("NewHandlers() error = %v, want ErrMissingDependency", err)
	}
}

func TestRegister_Twice(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	services, err := NewServices(Config{
		Registry:  newRegistry(t, nil),
		Generator: staticPlan(step("search")),
		Scorer:    uniformScorer(1),
		Improver:  echoImprover(),
	})
	if err != nil {
		t.Fatalf("NewServices() error = %v", err)
	}
	again, err := NewHandlers(HandlerConfig{
		Services:    services,
		Agents:      h.agents,
		Plans:       h.plans,
		Evaluations: memory.NewEvaluationRepository(),
	})
	if err != nil {
		t.Fatalf("NewHandlers() error = %v", err)
	}
	if err := again.Register(h.commands, h.queries); !errors.Is(err, bus.ErrHandlerExists) {
		t.Errorf("Register() error = %v, want ErrHandlerExists", err)
	}
}

func TestHandlers_CreateAndGetAgent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()
	id := h.createAgent(t)

	view, err := bus.Ask[*AgentView](ctx, h.queries, GetAgentByID{AgentID: id})
	if err != nil {
		t.Fatalf("GetAgentByID error = %v", err)
	}
	if view == nil || view.Name != "helper" || view.ConversationID != "conv-1" {
		t.Fatalf("GetAgentByID = %+v, want helper in conv-1", view)
	}

	byConv, err := bus.Ask[*AgentView](ctx, h.queries, GetAgentByConversationID{ConversationID: "conv-1"})
	if err != nil || byConv == nil || byConv.ID != id {
		t.Errorf("GetAgentByConversationID = %+v, %v, want agent %s", byConv, err, id)
	}

	all, err := bus.Ask[[]*AgentView](ctx, h.queries, ListAgents{})
	if err != nil || len(all) != 1 {
		t.Errorf("ListAgents = %d agents, %v, want 1", len(all), err)
	}
}

func TestHandlers_QueriesReturnNilWhenAbsent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	if v, err := bus.Ask[*AgentView](ctx, h.queries, GetAgentByID{AgentID: "missing"}); err != nil || v != nil {
		t.Errorf("GetAgentByID = %v, %v, want nil, nil", v, err)
	}
	if p, err := bus.Ask[*plan.Plan](ctx, h.queries, GetPlanByID{PlanID: "missing"}); err != nil || p != nil {
		t.Errorf("GetPlanByID = %v, %v, want nil, nil", p, err)
	}
	if e, err := bus.Ask[*evaluation.Evaluation](ctx, h.queries, GetEvaluationByID{EvaluationID: "missing"}); err != nil || e != nil {
		t.Errorf("GetEvaluationByID = %v, %v, want nil, nil", e, err)
	}
	if i, err := bus.Ask[*evaluation.Improvement](ctx, h.queries, GetImprovementByEvaluationID{EvaluationID: "missing"}); err != nil || i != nil {
		t.Errorf("GetImprovementByEvaluationID = %v, %v, want nil, nil", i, err)
	}
	actions, err := bus.Ask[AgentActionsResult](ctx, h.queries, GetAgentActions{AgentID: "missing"})
	if err != nil || len(actions.Actions) != 0 {
		t.Errorf("GetAgentActions = %+v, %v, want empty", actions, err)
	}
}

func TestHandlers_CommandsOnMissingAgent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]action.Action{"search": constant(nil)})
	ctx := context.Background()

	commands := []any{
		DeleteAgent{AgentID: "ghost"},
		ExecuteAgentAction{AgentID: "ghost", ActionType: "search"},
		ProcessAgentQuery{AgentID: "ghost", Query: "q"},
		CreatePlan{AgentID: "ghost", Task: "t"},
		EvaluateResponse{AgentID: "ghost", Query: "q", Response: "r"},
	}
	for _, cmd := range commands {
		_, err := h.commands.Dispatch(ctx, cmd)
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.Entity != "agent" || nf.ID != "ghost" {
			t.Errorf("Dispatch(%T) error = %v, want agent NotFoundError", cmd, err)
		}
		if !errors.Is(err, agent.ErrAgentNotFound) {
			t.Errorf("Dispatch(%T) error should unwrap to ErrAgentNotFound", cmd)
		}
	}
}

func TestHandlers_ExecuteAgentAction(t *testing.T) {
	t.Parallel()

	boom := errors.New("capability broke")
	h := newHarness(t, map[string]action.Action{
		"search":  constant([]string{"doc"}),
		"explode": failing(boom),
	})
	ctx := context.Background()
	id := h.createAgent(t)

	ok, err := bus.Send[ExecuteAgentActionResult](ctx, h.commands, ExecuteAgentAction{
		AgentID: id, ActionType: "search", Parameters: map[string]any{"query": "x"},
	})
	if err != nil {
		t.Fatalf("ExecuteAgentAction error = %v", err)
	}
	if ok.Status != agent.ActionCompleted || ok.ActionID == "" {
		t.Errorf("result = %+v, want a completed action", ok)
	}

	failed, err := bus.Send[ExecuteAgentActionResult](ctx, h.commands, ExecuteAgentAction{AgentID: id, ActionType: "explode"})
	if !errors.Is(err, boom) {
		t.Fatalf("ExecuteAgentAction error = %v, want capability broke", err)
	}
	if failed.Status != agent.ActionFailed || failed.Error != "capability broke" {
		t.Errorf("failed result = %+v, want the recorded failure", failed)
	}

	stored, err := h.agents.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	history := stored.Actions()
	if len(history) != 2 {
		t.Fatalf("stored history = %d actions, want 2", len(history))
	}
	if history[1].Status != agent.ActionFailed || history[1].Error != "capability broke" {
		t.Errorf("stored failure = %s/%q, want failed/capability broke", history[1].Status, history[1].Error)
	}

	before := stored.Version
	_, err = bus.Send[ExecuteAgentActionResult](ctx, h.commands, ExecuteAgentAction{AgentID: id, ActionType: "frobnicate"})
	if !errors.Is(err, action.ErrUnknownAction) {
		t.Errorf("ExecuteAgentAction error = %v, want ErrUnknownAction", err)
	}
	after, _ := h.agents.GetByID(ctx, id)
	if after.Version != before || after.ActionCount() != 2 {
		t.Errorf("unknown action changed the agent: version %d -> %d, actions %d", before, after.Version, after.ActionCount())
	}
}

func TestHandlers_GetAgentActionsPaging(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]action.Action{
		"search":   constant(nil),
		"generate": constant(nil),
	})
	ctx := context.Background()
	id := h.createAgent(t)

	for i := 0; i < 12; i++ {
		actionType := "search"
		if i%3 == 0 {
			actionType = "generate"
		}
		if _, err := bus.Send[ExecuteAgentActionResult](ctx, h.commands, ExecuteAgentAction{AgentID: id, ActionType: actionType}); err != nil {
			t.Fatalf("ExecuteAgentAction error = %v", err)
		}
	}

	tests := []struct {
		name      string
		query     GetAgentActions
		wantLen   int
		wantTotal int
	}{
		{"default page size", GetAgentActions{AgentID: id}, 10, 12},
		{"second page", GetAgentActions{AgentID: id, Limit: 5, Offset: 10}, 2, 12},
		{"offset past end", GetAgentActions{AgentID: id, Offset: 40}, 0, 12},
		{"filtered by type", GetAgentActions{AgentID: id, ActionType: "generate"}, 4, 4},
	}

	for _, tt := range tests {
		got, err := bus.Ask[AgentActionsResult](ctx, h.queries, tt.query)
		if err != nil {
			t.Fatalf("%s: GetAgentActions error = %v", tt.name, err)
		}
		if len(got.Actions) != tt.wantLen || got.Total != tt.wantTotal {
			t.Errorf("%s: GetAgentActions = %d of %d, want %d of %d", tt.name, len(got.Actions), got.Total, tt.wantLen, tt.wantTotal)
		}
	}
}

func TestHandlers_ProcessAgentQuery(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]action.Action{
		"search":   constant([]string{"doc"}),
		"generate": constant("answer"),
	}, WithGenerator(staticPlan(step("search"), step("generate", 1))))
	ctx := context.Background()
	id := h.createAgent(t)

	direct, err := bus.Send[ProcessAgentQueryResult](ctx, h.commands, ProcessAgentQuery{AgentID: id, Query: "what?"})
	if err != nil {
		t.Fatalf("ProcessAgentQuery error = %v", err)
	}
	if direct.Response != "answer" || direct.Plan != nil {
		t.Errorf("direct result = %+v, want answer without a plan", direct)
	}

	planned, err := bus.Send[ProcessAgentQueryResult](ctx, h.commands, ProcessAgentQuery{AgentID: id, Query: "what?", UsePlanning: true})
	if err != nil {
		t.Fatalf("ProcessAgentQuery error = %v", err)
	}
	if planned.Response != "answer" || planned.Plan == nil {
		t.Fatalf("planned result = %+v, want answer with a plan", planned)
	}

	stored, err := bus.Ask[*plan.Plan](ctx, h.queries, GetPlanByID{PlanID: planned.Plan.ID})
	if err != nil || stored == nil {
		t.Fatalf("GetPlanByID = %v, %v, want the executed plan", stored, err)
	}
	if stored.Status != plan.StatusCompleted {
		t.Errorf("stored plan status = %s, want completed", stored.Status)
	}

	view, _ := bus.Ask[*AgentView](ctx, h.queries, GetAgentByID{AgentID: id})
	if view.ActionCount != 4 {
		t.Errorf("ActionCount = %d, want 4", view.ActionCount)
	}
	if view.Memory[agent.MemoryCurrentPlan] != planned.Plan.ID {
		t.Errorf("Memory[current_plan] = %v, want %s", view.Memory[agent.MemoryCurrentPlan], planned.Plan.ID)
	}
}

func TestHandlers_PlanLifecycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]action.Action{
		"search":   constant([]string{"doc"}),
		"generate": constant("answer"),
	}, WithGenerator(staticPlan(step("search"), step("generate", 1))))
	ctx := context.Background()
	id := h.createAgent(t)

	created, err := bus.Send[CreatePlanResult](ctx, h.commands, CreatePlan{AgentID: id, Task: "research"})
	if err != nil {
		t.Fatalf("CreatePlan error = %v", err)
	}
	if created.StepCount != 2 {
		t.Errorf("StepCount = %d, want 2", created.StepCount)
	}

	executed, err := bus.Send[ExecutePlanResult](ctx, h.commands, ExecutePlan{AgentID: id, PlanID: created.PlanID})
	if err != nil {
		t.Fatalf("ExecutePlan error = %v", err)
	}
	if executed.Status != plan.StatusCompleted || len(executed.CompletedSteps) != 2 {
		t.Errorf("ExecutePlan = %+v, want two completed steps", executed)
	}

	again, err := bus.Send[ExecutePlanResult](ctx, h.commands, ExecutePlan{AgentID: id, PlanID: created.PlanID})
	if err != nil {
		t.Fatalf("second ExecutePlan error = %v", err)
	}
	if again.Status != plan.StatusCompleted {
		t.Errorf("second ExecutePlan status = %s, want completed", again.Status)
	}

	plans, err := bus.Ask[[]*plan.Plan](ctx, h.queries, ListPlansByAgentID{AgentID: id})
	if err != nil || len(plans) != 1 {
		t.Errorf("ListPlansByAgentID = %d plans, %v, want 1", len(plans), err)
	}

	view, _ := bus.Ask[*AgentView](ctx, h.queries, GetAgentByID{AgentID: id})
	if view.ActionCount != 2 {
		t.Errorf("ActionCount = %d, want 2 after re-running a finished plan", view.ActionCount)
	}

	_, err = bus.Send[ExecutePlanResult](ctx, h.commands, ExecutePlan{AgentID: id, PlanID: "missing"})
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "plan" {
		t.Errorf("ExecutePlan(missing) error = %v, want plan NotFoundError", err)
	}

	other := h.createAgent(t)
	_, err = bus.Send[ExecutePlanResult](ctx, h.commands, ExecutePlan{AgentID: other, PlanID: created.PlanID})
	if !errors.Is(err, ErrPlanAgentMismatch) {
		t.Errorf("ExecutePlan(other agent) error = %v, want ErrPlanAgentMismatch", err)
	}
}

func TestHandlers_EvaluateAndImprove(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, WithScorer(uniformScorer(0.4)))
	ctx := context.Background()
	id := h.createAgent(t)

	evaluated, err := bus.Send[EvaluateResponseResult](ctx, h.commands, EvaluateResponse{
		AgentID: id, Query: "q", Response: "draft", Context: []string{"doc"},
	})
	if err != nil {
		t.Fatalf("EvaluateResponse error = %v", err)
	}
	if !evaluated.NeedsImprovement || len(evaluated.CriterionScores) != 5 {
		t.Errorf("EvaluateResponse = %+v, want five scores needing improvement", evaluated)
	}

	improved, err := bus.Send[ImproveResponseResult](ctx, h.commands, ImproveResponse{AgentID: id, EvaluationID: evaluated.EvaluationID})
	if err != nil {
		t.Fatalf("ImproveResponse error = %v", err)
	}
	if improved.ImprovedResponse != "draft (improved)" {
		t.Errorf("ImprovedResponse = %q, want draft (improved)", improved.ImprovedResponse)
	}

	latest, err := bus.Ask[*evaluation.Improvement](ctx, h.queries, GetImprovementByEvaluationID{EvaluationID: evaluated.EvaluationID})
	if err != nil || latest == nil || latest.ID != improved.ImprovementID {
		t.Errorf("GetImprovementByEvaluationID = %v, %v, want %s", latest, err, improved.ImprovementID)
	}
	byID, err := bus.Ask[*evaluation.Improvement](ctx, h.queries, GetImprovementByID{ImprovementID: improved.ImprovementID})
	if err != nil || byID == nil {
		t.Errorf("GetImprovementByID = %v, %v, want the improvement", byID, err)
	}

	list, err := bus.Ask[EvaluationListResult](ctx, h.queries, ListEvaluationsByAgentID{AgentID: id})
	if err != nil || list.Total != 1 || list.Evaluations[0].ID != evaluated.EvaluationID {
		t.Errorf("ListEvaluationsByAgentID = %+v, %v, want the evaluation", list, err)
	}

	_, err = bus.Send[ImproveResponseResult](ctx, h.commands, ImproveResponse{AgentID: id, EvaluationID: "missing"})
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "evaluation" {
		t.Errorf("ImproveResponse(missing) error = %v, want evaluation NotFoundError", err)
	}
}

func TestHandlers_GetAgentEvents(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]action.Action{"search": constant(nil)})
	ctx := context.Background()
	id := h.createAgent(t)
	for i := 0; i < 3; i++ {
		if _, err := bus.Send[ExecuteAgentActionResult](ctx, h.commands, ExecuteAgentAction{AgentID: id, ActionType: "search"}); err != nil {
			t.Fatalf("ExecuteAgentAction error = %v", err)
		}
	}

	all, err := bus.Ask[AgentEventsResult](ctx, h.queries, GetAgentEvents{AgentID: id})
	if err != nil {
		t.Fatalf("GetAgentEvents error = %v", err)
	}
	if len(all.Events) != 7 {
		t.Errorf("GetAgentEvents = %d events, want 7", len(all.Events))
	}

	completed, err := bus.Ask[AgentEventsResult](ctx, h.queries, GetAgentEvents{
		AgentID: id,
		Types:   []event.Type{event.TypeActionCompleted},
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("GetAgentEvents error = %v", err)
	}
	if len(completed.Events) != 2 {
		t.Errorf("filtered GetAgentEvents = %d events, want 2", len(completed.Events))
	}
	for _, e := range completed.Events {
		if e.Type != event.TypeActionCompleted {
			t.Errorf("event type = %s, want %s", e.Type, event.TypeActionCompleted)
		}
	}
}

func TestHandlers_DeleteAgent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()
	id := h.createAgent(t)

	if _, err := bus.Send[DeleteAgentResult](ctx, h.commands, DeleteAgent{AgentID: id}); err != nil {
		t.Fatalf("DeleteAgent error = %v", err)
	}
	if v, err := bus.Ask[*AgentView](ctx, h.queries, GetAgentByID{AgentID: id}); err != nil || v != nil {
		t.Errorf("GetAgentByID after delete = %v, %v, want nil, nil", v, err)
	}
}

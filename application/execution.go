// Package application provides the orchestration services that drive agents,
// plans and evaluations, and the command and query handlers built on them.
package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/ragent/domain/action"
	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/event"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
	"github.com/felixgeelhaar/ragent/infrastructure/resilience"
	"github.com/felixgeelhaar/ragent/infrastructure/telemetry"
)

// Built-in action types used by ProcessQuery.
const (
	ActionSearch   = "search"
	ActionGenerate = "generate"
	ActionEvaluate = "evaluate"
	ActionImprove  = "improve"
)

// ExecutionService creates agents and runs their actions.
type ExecutionService struct {
	registry action.Registry
	invoker  resilience.Invoker
	events   event.Publisher
	tracer   trace.Tracer
}

// NewExecutionService creates an execution service.
func NewExecutionService(config Config) (*ExecutionService, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("%w: action registry", ErrMissingDependency)
	}
	s := &ExecutionService{
		registry: config.Registry,
		invoker:  config.Invoker,
		events:   config.Events,
		tracer:   config.Tracer,
	}
	if s.invoker == nil {
		s.invoker = resilience.DirectInvoker{}
	}
	if s.events == nil {
		s.events = event.NopPublisher{}
	}
	return s, nil
}

// Registry returns the action registry the service resolves against.
func (s *ExecutionService) Registry() action.Registry {
	return s.registry
}

// CreateAgent creates an agent bound to a conversation. An empty
// conversation ID gets a generated one.
func (s *ExecutionService) CreateAgent(ctx context.Context, name, description, conversationID string, config map[string]any) (*agent.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(conversationID) == "" {
		conversationID = uuid.NewString()
	}

	a := agent.New(name, description, conversationID, config)

	publish(ctx, s.events, a.ID, event.TypeAgentCreated, event.AgentCreatedPayload{
		AgentID:        a.ID,
		Name:           a.Name,
		ConversationID: conversationID,
	})

	logging.Info().
		Add(logging.Component("execution")).
		Add(logging.AgentID(a.ID)).
		Add(logging.Str("name", a.Name)).
		Msg("agent created")

	return a, nil
}

// ExecuteAction runs a registered action for the agent and records it in
// the agent's history. An unknown action type returns
// *action.UnknownActionError without touching the agent. A capability error
// is recorded on the failed action and returned unchanged.
func (s *ExecutionService) ExecuteAction(ctx context.Context, a *agent.Agent, actionType string, params map[string]any) (_ *agent.Action, err error) {
	capability, ok := s.registry.Get(actionType)
	if !ok {
		return nil, &action.UnknownActionError{ActionType: actionType}
	}

	ctx, span := telemetry.StartSpan(ctx, s.tracer, "ragent.execute_action",
		telemetry.AttrAgentID.String(a.ID),
		telemetry.AttrActionType.String(actionType),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	record := agent.NewAction(actionType, params)
	a.AddAction(record)

	publish(ctx, s.events, a.ID, event.TypeActionStarted, event.ActionStartedPayload{
		AgentID:    a.ID,
		ActionID:   record.ID,
		ActionType: actionType,
		Parameters: record.Parameters,
	})
	if err := a.StartAction(record); err != nil {
		return record, err
	}

	logging.Debug().
		Add(logging.Component("execution")).
		Add(logging.AgentID(a.ID)).
		Add(logging.ActionID(record.ID)).
		Add(logging.ActionType(actionType)).
		Msg("action started")

	result, invokeErr := s.invoker.Invoke(ctx, actionType, capability, s.registry.Metadata(actionType), a, record.Parameters)
	if invokeErr != nil {
		_ = a.FailAction(record, invokeErr)
		publish(context.WithoutCancel(ctx), s.events, a.ID, event.TypeActionFailed, event.ActionFailedPayload{
			AgentID:    a.ID,
			ActionID:   record.ID,
			ActionType: actionType,
			Error:      invokeErr.Error(),
			DurationMS: record.Duration().Milliseconds(),
		})

		logging.Warn().
			Add(logging.Component("execution")).
			Add(logging.AgentID(a.ID)).
			Add(logging.ActionID(record.ID)).
			Add(logging.ActionType(actionType)).
			Add(logging.ErrorField(invokeErr)).
			Msg("action failed")

		return record, invokeErr
	}

	if err := a.CompleteAction(record, result); err != nil {
		return record, err
	}
	publish(ctx, s.events, a.ID, event.TypeActionCompleted, event.ActionCompletedPayload{
		AgentID:    a.ID,
		ActionID:   record.ID,
		ActionType: actionType,
		Result:     result,
		DurationMS: record.Duration().Milliseconds(),
	})

	logging.Debug().
		Add(logging.Component("execution")).
		Add(logging.AgentID(a.ID)).
		Add(logging.ActionID(record.ID)).
		Add(logging.ActionType(actionType)).
		Add(logging.Duration(record.Duration())).
		Msg("action completed")

	return record, nil
}

// QueryResult is the outcome of ProcessQuery.
type QueryResult struct {
	Response   string         `json:"response"`
	Sources    []string       `json:"sources"`
	Improved   bool           `json:"improved"`
	Evaluation map[string]any `json:"evaluation,omitempty"`
}

// ProcessQuery answers a query with search then generate. When an evaluate
// action is registered the answer is judged, and when the judgment asks for
// improvement and an improve action is registered the improved answer is
// returned instead.
func (s *ExecutionService) ProcessQuery(ctx context.Context, a *agent.Agent, query string) (_ QueryResult, err error) {
	if strings.TrimSpace(query) == "" {
		return QueryResult{}, ErrEmptyQuery
	}

	ctx, span := telemetry.StartSpan(ctx, s.tracer, "ragent.process_query",
		telemetry.AttrAgentID.String(a.ID),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	start := time.Now()
	a.SetMemory(agent.MemoryLastQuery, query)

	search, err := s.ExecuteAction(ctx, a, ActionSearch, map[string]any{"query": query})
	if err != nil {
		return QueryResult{}, err
	}
	sources := toStrings(search.Result)

	generated, err := s.ExecuteAction(ctx, a, ActionGenerate, map[string]any{
		"query":   query,
		"context": sources,
	})
	if err != nil {
		return QueryResult{}, err
	}
	response := toText(generated.Result)

	result := QueryResult{Response: response, Sources: sources}
	if !s.registry.IsRegistered(ActionEvaluate) {
		return result, nil
	}

	evaluated, err := s.ExecuteAction(ctx, a, ActionEvaluate, map[string]any{
		"query":    query,
		"response": response,
		"context":  sources,
	})
	if err != nil {
		return QueryResult{}, err
	}
	judgment, _ := evaluated.Result.(map[string]any)
	needsImprovement, _ := judgment["needs_improvement"].(bool)
	if !needsImprovement || !s.registry.IsRegistered(ActionImprove) {
		return result, nil
	}

	improved, err := s.ExecuteAction(ctx, a, ActionImprove, map[string]any{
		"query":      query,
		"response":   response,
		"context":    sources,
		"evaluation": judgment,
	})
	if err != nil {
		return QueryResult{}, err
	}
	if revision, ok := improved.Result.(map[string]any); ok {
		if text, ok := revision["improved_response"].(string); ok && text != "" {
			result.Response = text
		}
	}
	result.Improved = true
	result.Evaluation = judgment

	logging.Debug().
		Add(logging.Component("execution")).
		Add(logging.AgentID(a.ID)).
		Add(logging.Flag("improved", true)).
		Add(logging.Duration(time.Since(start))).
		Msg("query processed")

	return result, nil
}

// ActionInfo describes a registered action.
type ActionInfo struct {
	ActionType  string `json:"action_type"`
	Description string `json:"description"`
}

// AvailableActions lists the registered actions in name order.
func (s *ExecutionService) AvailableActions() []ActionInfo {
	names := s.registry.List()
	out := make([]ActionInfo, 0, len(names))
	for _, name := range names {
		out = append(out, ActionInfo{
			ActionType:  name,
			Description: s.registry.Metadata(name).Description,
		})
	}
	return out
}

// ActionTypes lists the registered action names.
func (s *ExecutionService) ActionTypes() []string {
	return s.registry.List()
}

// toStrings converts an action result into a string list.
func toStrings(v any) []string {
	switch vv := v.(type) {
	case nil:
		return []string{}
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			out = append(out, toText(item))
		}
		return out
	case string:
		return []string{vv}
	default:
		return []string{fmt.Sprint(vv)}
	}
}

// toText converts an action result into text.
func toText(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case fmt.Stringer:
		return vv.String()
	default:
		return fmt.Sprint(vv)
	}
}

// publish delivers one event and logs delivery problems instead of failing
// the operation that raised it.
func publish(ctx context.Context, p event.Publisher, agentID string, t event.Type, payload any) {
	e, err := event.NewEvent(agentID, t, payload)
	if err != nil {
		logging.Warn().
			Add(logging.Component("events")).
			Add(logging.EventType(string(t))).
			Add(logging.ErrorField(err)).
			Msg("encode event")
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logging.Warn().
			Add(logging.Component("events")).
			Add(logging.EventType(string(t))).
			Add(logging.ErrorField(err)).
			Msg("publish event")
	}
}

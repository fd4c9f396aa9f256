package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/ragent/domain/action"
	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/evaluation"
	"github.com/felixgeelhaar/ragent/domain/event"
	"github.com/felixgeelhaar/ragent/domain/plan"
	"github.com/felixgeelhaar/ragent/infrastructure/bus"
	"github.com/felixgeelhaar/ragent/infrastructure/lock"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// HandlerConfig contains the dependencies of the command and query handlers.
type HandlerConfig struct {
	Services    *Services
	Agents      agent.Repository
	Plans       plan.Repository
	Evaluations evaluation.Repository

	// Events backs GetAgentEvents. Optional.
	Events event.Store

	// Locker serializes commands per agent. Defaults to a lock.KeyedMutex.
	Locker lock.Locker
}

// Handlers implements the commands and queries on top of the services and
// repositories. Every command that changes an agent holds that agent's lock
// from load to save.
type Handlers struct {
	services    *Services
	agents      agent.Repository
	plans       plan.Repository
	evaluations evaluation.Repository
	events      event.Store
	locker      lock.Locker
}

// NewHandlers creates the handlers.
func NewHandlers(config HandlerConfig) (*Handlers, error) {
	switch {
	case config.Services == nil:
		return nil, fmt.Errorf("%w: services", ErrMissingDependency)
	case config.Agents == nil:
		return nil, fmt.Errorf("%w: agent repository", ErrMissingDependency)
	case config.Plans == nil:
		return nil, fmt.Errorf("%w: plan repository", ErrMissingDependency)
	case config.Evaluations == nil:
		return nil, fmt.Errorf("%w: evaluation repository", ErrMissingDependency)
	}
	h := &Handlers{
		services:    config.Services,
		agents:      config.Agents,
		plans:       config.Plans,
		evaluations: config.Evaluations,
		events:      config.Events,
		locker:      config.Locker,
	}
	if h.locker == nil {
		h.locker = lock.NewKeyedMutex()
	}
	return h, nil
}

// Register binds every command and query handler to the buses.
func (h *Handlers) Register(commands *bus.CommandBus, queries *bus.QueryBus) error {
	return errors.Join(
		bus.RegisterCommand(commands, h.CreateAgent),
		bus.RegisterCommand(commands, h.DeleteAgent),
		bus.RegisterCommand(commands, h.ExecuteAgentAction),
		bus.RegisterCommand(commands, h.ProcessAgentQuery),
		bus.RegisterCommand(commands, h.CreatePlan),
		bus.RegisterCommand(commands, h.ExecutePlan),
		bus.RegisterCommand(commands, h.EvaluateResponse),
		bus.RegisterCommand(commands, h.ImproveResponse),

		bus.RegisterQuery(queries, h.GetAgentByID),
		bus.RegisterQuery(queries, h.GetAgentByConversationID),
		bus.RegisterQuery(queries, h.ListAgents),
		bus.RegisterQuery(queries, h.GetAgentActions),
		bus.RegisterQuery(queries, h.GetPlanByID),
		bus.RegisterQuery(queries, h.ListPlansByAgentID),
		bus.RegisterQuery(queries, h.GetEvaluationByID),
		bus.RegisterQuery(queries, h.ListEvaluationsByAgentID),
		bus.RegisterQuery(queries, h.GetImprovementByID),
		bus.RegisterQuery(queries, h.GetImprovementByEvaluationID),
		bus.RegisterQuery(queries, h.GetAvailableActions),
		bus.RegisterQuery(queries, h.GetAgentEvents),
	)
}

// withAgent loads an agent under its lock and runs fn. The agent is saved
// after fn returns, even when fn fails, so a failed action stays in the
// history. Saving ignores cancellation of ctx.
func (h *Handlers) withAgent(ctx context.Context, agentID string, fn func(ctx context.Context, a *agent.Agent) error) error {
	return h.locker.WithLock(ctx, lock.AgentKey(agentID), func(ctx context.Context) error {
		a, err := h.agents.GetByID(ctx, agentID)
		if err != nil {
			return notFound(err, agentID)
		}

		runErr := fn(ctx, a)
		if err := h.agents.Save(context.WithoutCancel(ctx), a); err != nil {
			logging.Error().
				Add(logging.Component("handlers")).
				Add(logging.AgentID(agentID)).
				Add(logging.ErrorField(err)).
				Msg("save agent")
			return errors.Join(runErr, err)
		}
		return runErr
	})
}

// CreateAgent handles CreateAgent.
func (h *Handlers) CreateAgent(ctx context.Context, cmd CreateAgent) (CreateAgentResult, error) {
	a, err := h.services.Execution.CreateAgent(ctx, cmd.Name, cmd.Description, cmd.ConversationID, cmd.Config)
	if err != nil {
		return CreateAgentResult{}, err
	}
	if err := h.agents.Save(ctx, a); err != nil {
		return CreateAgentResult{}, err
	}
	return CreateAgentResult{
		AgentID:        a.ID,
		Name:           a.Name,
		ConversationID: a.ConversationID(),
	}, nil
}

// DeleteAgent handles DeleteAgent.
func (h *Handlers) DeleteAgent(ctx context.Context, cmd DeleteAgent) (DeleteAgentResult, error) {
	err := h.locker.WithLock(ctx, lock.AgentKey(cmd.AgentID), func(ctx context.Context) error {
		return notFound(h.agents.Delete(ctx, cmd.AgentID), cmd.AgentID)
	})
	if err != nil {
		return DeleteAgentResult{}, err
	}
	logging.Info().
		Add(logging.Component("handlers")).
		Add(logging.AgentID(cmd.AgentID)).
		Msg("agent deleted")
	return DeleteAgentResult{AgentID: cmd.AgentID}, nil
}

// ExecuteAgentAction handles ExecuteAgentAction. A failed capability is
// recorded and saved, and its error is returned with the result.
func (h *Handlers) ExecuteAgentAction(ctx context.Context, cmd ExecuteAgentAction) (ExecuteAgentActionResult, error) {
	if !h.services.Execution.Registry().IsRegistered(cmd.ActionType) {
		return ExecuteAgentActionResult{}, &action.UnknownActionError{ActionType: cmd.ActionType}
	}

	var out ExecuteAgentActionResult
	err := h.withAgent(ctx, cmd.AgentID, func(ctx context.Context, a *agent.Agent) error {
		record, err := h.services.Execution.ExecuteAction(ctx, a, cmd.ActionType, cmd.Parameters)
		if record != nil {
			out = ExecuteAgentActionResult{
				AgentID:    a.ID,
				ActionID:   record.ID,
				ActionType: record.Type,
				Parameters: record.Parameters,
				Result:     record.Result,
				Error:      record.Error,
				Status:     record.Status,
			}
		}
		return err
	})
	return out, err
}

// ProcessAgentQuery handles ProcessAgentQuery. With planning, the generated
// plan is persisted alongside the agent.
func (h *Handlers) ProcessAgentQuery(ctx context.Context, cmd ProcessAgentQuery) (ProcessAgentQueryResult, error) {
	out := ProcessAgentQueryResult{AgentID: cmd.AgentID, Query: cmd.Query, Sources: []string{}}
	err := h.withAgent(ctx, cmd.AgentID, func(ctx context.Context, a *agent.Agent) error {
		if !cmd.UsePlanning {
			result, err := h.services.Execution.ProcessQuery(ctx, a, cmd.Query)
			if err != nil {
				return err
			}
			out.Response = result.Response
			out.Sources = result.Sources
			out.Improved = result.Improved
			out.Evaluation = result.Evaluation
			return nil
		}

		result, err := h.services.Planning.ProcessComplexQuery(ctx, a, cmd.Query)
		if p := result.ExecutedPlan(); p != nil {
			if saveErr := h.plans.Save(context.WithoutCancel(ctx), p); saveErr != nil {
				return errors.Join(err, saveErr)
			}
		}
		if err != nil {
			return err
		}
		out.Response = toText(result.Response)
		out.Improved = result.Improved
		out.Plan = result.Plan
		out.Error = result.Error
		out.Details = result.Details
		return nil
	})
	return out, err
}

// CreatePlan handles CreatePlan.
func (h *Handlers) CreatePlan(ctx context.Context, cmd CreatePlan) (CreatePlanResult, error) {
	var out CreatePlanResult
	err := h.withAgent(ctx, cmd.AgentID, func(ctx context.Context, a *agent.Agent) error {
		p, err := h.services.Planning.CreatePlan(ctx, a, cmd.Task, cmd.Constraints)
		if err != nil {
			return err
		}
		if err := h.plans.Save(ctx, p); err != nil {
			return err
		}
		out = CreatePlanResult{
			AgentID:   a.ID,
			PlanID:    p.ID,
			Task:      p.Task,
			StepCount: len(p.Steps),
		}
		return nil
	})
	return out, err
}

// ExecutePlan handles ExecutePlan. The plan is saved with whatever progress
// it made, including after cancellation.
func (h *Handlers) ExecutePlan(ctx context.Context, cmd ExecutePlan) (ExecutePlanResult, error) {
	var out ExecutePlanResult
	err := h.withAgent(ctx, cmd.AgentID, func(ctx context.Context, a *agent.Agent) error {
		p, err := h.plans.GetByID(ctx, cmd.PlanID)
		if err != nil {
			return notFound(err, cmd.PlanID)
		}
		if p.AgentID != a.ID {
			return fmt.Errorf("%w: %s", ErrPlanAgentMismatch, p.ID)
		}

		wasTerminal := p.Status.IsTerminal()
		result, runErr := h.services.Planning.ExecutePlan(ctx, a, p)
		if !wasTerminal {
			if err := h.plans.Save(context.WithoutCancel(ctx), p); err != nil {
				return errors.Join(runErr, err)
			}
		}
		out = ExecutePlanResult{
			AgentID:        a.ID,
			PlanID:         p.ID,
			Task:           p.Task,
			Status:         p.Status,
			CompletedSteps: result.CompletedSteps,
			Results:        result.Results,
		}
		return runErr
	})
	return out, err
}

// EvaluateResponse handles EvaluateResponse.
func (h *Handlers) EvaluateResponse(ctx context.Context, cmd EvaluateResponse) (EvaluateResponseResult, error) {
	var out EvaluateResponseResult
	err := h.withAgent(ctx, cmd.AgentID, func(ctx context.Context, a *agent.Agent) error {
		e, err := h.services.Evaluation.EvaluateResponse(ctx, a, cmd.Query, cmd.Response, cmd.Context, cmd.ResponseID)
		if err != nil {
			return err
		}
		if err := h.evaluations.SaveEvaluation(ctx, e); err != nil {
			return err
		}
		out = EvaluateResponseResult{
			AgentID:          a.ID,
			EvaluationID:     e.ID,
			OverallScore:     e.OverallScore,
			CriterionScores:  e.Scores,
			NeedsImprovement: h.services.Evaluation.NeedsImprovement(e),
		}
		return nil
	})
	return out, err
}

// ImproveResponse handles ImproveResponse.
func (h *Handlers) ImproveResponse(ctx context.Context, cmd ImproveResponse) (ImproveResponseResult, error) {
	var out ImproveResponseResult
	err := h.withAgent(ctx, cmd.AgentID, func(ctx context.Context, a *agent.Agent) error {
		e, err := h.evaluations.GetEvaluationByID(ctx, cmd.EvaluationID)
		if err != nil {
			return notFound(err, cmd.EvaluationID)
		}
		improvement, err := h.services.Evaluation.ImproveResponse(ctx, a, e)
		if err != nil {
			return err
		}
		if err := h.evaluations.SaveImprovement(ctx, improvement); err != nil {
			return err
		}
		out = ImproveResponseResult{
			AgentID:          a.ID,
			EvaluationID:     e.ID,
			ImprovementID:    improvement.ID,
			OriginalResponse: improvement.OriginalResponse,
			ImprovedResponse: improvement.ImprovedResponse,
			Suggestions:      improvement.Suggestions,
		}
		return nil
	})
	return out, err
}

// GetAgentByID handles GetAgentByID.
func (h *Handlers) GetAgentByID(ctx context.Context, q GetAgentByID) (*AgentView, error) {
	a, err := h.agents.GetByID(ctx, q.AgentID)
	if err != nil {
		return nil, absent(err)
	}
	return NewAgentView(a), nil
}

// GetAgentByConversationID handles GetAgentByConversationID.
func (h *Handlers) GetAgentByConversationID(ctx context.Context, q GetAgentByConversationID) (*AgentView, error) {
	a, err := h.agents.GetByConversationID(ctx, q.ConversationID)
	if err != nil {
		return nil, absent(err)
	}
	return NewAgentView(a), nil
}

// ListAgents handles ListAgents.
func (h *Handlers) ListAgents(ctx context.Context, _ ListAgents) ([]*AgentView, error) {
	agents, err := h.agents.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*AgentView, 0, len(agents))
	for _, a := range agents {
		out = append(out, NewAgentView(a))
	}
	return out, nil
}

// GetAgentActions handles GetAgentActions. An unknown agent has no actions.
func (h *Handlers) GetAgentActions(ctx context.Context, q GetAgentActions) (AgentActionsResult, error) {
	a, err := h.agents.GetByID(ctx, q.AgentID)
	if err != nil {
		return AgentActionsResult{Actions: []ActionView{}}, absent(err)
	}

	var matched []ActionView
	for _, rec := range a.Actions() {
		if q.ActionType != "" && rec.Type != q.ActionType {
			continue
		}
		matched = append(matched, ActionView{
			ID:          rec.ID,
			ActionType:  rec.Type,
			Parameters:  rec.Parameters,
			Result:      rec.Result,
			Error:       rec.Error,
			Status:      rec.Status,
			CreatedAt:   rec.CreatedAt,
			CompletedAt: rec.CompletedAt,
		})
	}

	start, end := page(len(matched), q.Limit, q.Offset)
	actions := make([]ActionView, 0, end-start)
	actions = append(actions, matched[start:end]...)
	return AgentActionsResult{Actions: actions, Total: len(matched)}, nil
}

// GetPlanByID handles GetPlanByID.
func (h *Handlers) GetPlanByID(ctx context.Context, q GetPlanByID) (*plan.Plan, error) {
	p, err := h.plans.GetByID(ctx, q.PlanID)
	if err != nil {
		return nil, absent(err)
	}
	return p, nil
}

// ListPlansByAgentID handles ListPlansByAgentID.
func (h *Handlers) ListPlansByAgentID(ctx context.Context, q ListPlansByAgentID) ([]*plan.Plan, error) {
	plans, err := h.plans.ListByAgentID(ctx, q.AgentID)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []*plan.Plan{}
	}
	return plans, nil
}

// GetEvaluationByID handles GetEvaluationByID.
func (h *Handlers) GetEvaluationByID(ctx context.Context, q GetEvaluationByID) (*evaluation.Evaluation, error) {
	e, err := h.evaluations.GetEvaluationByID(ctx, q.EvaluationID)
	if err != nil {
		return nil, absent(err)
	}
	return e, nil
}

// ListEvaluationsByAgentID handles ListEvaluationsByAgentID.
func (h *Handlers) ListEvaluationsByAgentID(ctx context.Context, q ListEvaluationsByAgentID) (EvaluationListResult, error) {
	evaluations, err := h.evaluations.ListEvaluations(ctx, q.AgentID)
	if err != nil {
		return EvaluationListResult{Evaluations: []EvaluationSummary{}}, err
	}

	start, end := page(len(evaluations), q.Limit, q.Offset)
	out := make([]EvaluationSummary, 0, end-start)
	for _, e := range evaluations[start:end] {
		out = append(out, EvaluationSummary{
			ID:           e.ID,
			AgentID:      e.AgentID,
			ResponseID:   e.ResponseID,
			Query:        e.Query,
			OverallScore: e.OverallScore,
			CreatedAt:    e.CreatedAt,
		})
	}
	return EvaluationListResult{Evaluations: out, Total: len(evaluations)}, nil
}

// GetImprovementByID handles GetImprovementByID.
func (h *Handlers) GetImprovementByID(ctx context.Context, q GetImprovementByID) (*evaluation.Improvement, error) {
	i, err := h.evaluations.GetImprovementByID(ctx, q.ImprovementID)
	if err != nil {
		return nil, absent(err)
	}
	return i, nil
}

// GetImprovementByEvaluationID handles GetImprovementByEvaluationID.
func (h *Handlers) GetImprovementByEvaluationID(ctx context.Context, q GetImprovementByEvaluationID) (*evaluation.Improvement, error) {
	i, err := h.evaluations.GetImprovementByEvaluationID(ctx, q.EvaluationID)
	if err != nil {
		return nil, absent(err)
	}
	return i, nil
}

// GetAvailableActions handles GetAvailableActions.
func (h *Handlers) GetAvailableActions(_ context.Context, _ GetAvailableActions) ([]ActionInfo, error) {
	return h.services.Execution.AvailableActions(), nil
}

// GetAgentEvents handles GetAgentEvents. Without an event store, or with a
// store that cannot filter, the result is unfiltered or empty.
func (h *Handlers) GetAgentEvents(ctx context.Context, q GetAgentEvents) (AgentEventsResult, error) {
	if h.events == nil {
		return AgentEventsResult{Events: []event.Event{}}, nil
	}
	opts := event.QueryOptions{Types: q.Types, Limit: q.Limit, Offset: q.Offset}

	var (
		events []event.Event
		err    error
	)
	if querier, ok := h.events.(event.Querier); ok {
		events, err = querier.Query(ctx, q.AgentID, opts)
	} else {
		events, err = h.events.LoadEvents(ctx, q.AgentID)
		if err == nil {
			filtered := events[:0:0]
			for _, e := range events {
				if opts.Matches(e) {
					filtered = append(filtered, e)
				}
			}
			events = opts.Page(filtered)
		}
	}
	if err != nil {
		return AgentEventsResult{Events: []event.Event{}}, err
	}
	if events == nil {
		events = []event.Event{}
	}
	return AgentEventsResult{Events: events}, nil
}

// absent turns a repository not-found error into a nil error so queries
// report absence as a nil view.
func absent(err error) error {
	if isAbsent(err) {
		return nil
	}
	return err
}

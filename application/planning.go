package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/event"
	"github.com/felixgeelhaar/ragent/domain/plan"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
	"github.com/felixgeelhaar/ragent/infrastructure/statemachine"
	"github.com/felixgeelhaar/ragent/infrastructure/telemetry"
)

// PlanningService creates plans for tasks and executes them step by step.
type PlanningService struct {
	execution     *ExecutionService
	generator     plan.Generator
	events        event.Publisher
	tracer        trace.Tracer
	policy        plan.FailurePolicy
	maxConcurrent int
}

// NewPlanningService creates a planning service that runs steps through execution.
func NewPlanningService(config Config, execution *ExecutionService) (*PlanningService, error) {
	if execution == nil {
		return nil, fmt.Errorf("%w: execution service", ErrMissingDependency)
	}
	if config.Generator == nil {
		return nil, fmt.Errorf("%w: plan generator", ErrMissingDependency)
	}
	policy, err := plan.ParseFailurePolicy(string(config.FailurePolicy))
	if err != nil {
		return nil, err
	}

	s := &PlanningService{
		execution:     execution,
		generator:     config.Generator,
		events:        config.Events,
		tracer:        config.Tracer,
		policy:        policy,
		maxConcurrent: config.MaxConcurrentSteps,
	}
	if s.events == nil {
		s.events = event.NopPublisher{}
	}
	if s.maxConcurrent < 1 {
		s.maxConcurrent = 1
	}
	return s, nil
}

// CreatePlan asks the generator for the steps of a task and numbers them in
// order. Generator failures and unusable output return *plan.GenerationError.
func (s *PlanningService) CreatePlan(ctx context.Context, a *agent.Agent, task string, constraints []string) (_ *plan.Plan, err error) {
	if strings.TrimSpace(task) == "" {
		return nil, ErrEmptyQuery
	}

	ctx, span := telemetry.StartSpan(ctx, s.tracer, "ragent.create_plan",
		telemetry.AttrAgentID.String(a.ID),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	specs, err := s.generator.Generate(ctx, plan.GenerateRequest{
		Task:             task,
		AvailableActions: s.execution.ActionTypes(),
		Constraints:      constraints,
	})
	if err != nil {
		return nil, &plan.GenerationError{Task: task, Err: err}
	}
	if err := plan.ValidateSpecs(specs); err != nil {
		return nil, &plan.GenerationError{Task: task, Err: err}
	}
	if len(specs) == 0 {
		return nil, &plan.GenerationError{Task: task, Err: errors.New("plan has no steps")}
	}

	p := plan.New(a.ID, task, constraints)
	for _, spec := range specs {
		if _, err := p.AddStep(spec); err != nil {
			return nil, &plan.GenerationError{Task: task, Err: err}
		}
	}

	a.SetMemory(agent.MemoryCurrentPlan, p.ID)
	publish(ctx, s.events, a.ID, event.TypePlanCreated, event.PlanCreatedPayload{
		AgentID:   a.ID,
		PlanID:    p.ID,
		Task:      task,
		StepCount: len(p.Steps),
	})

	logging.Info().
		Add(logging.Component("planning")).
		Add(logging.AgentID(a.ID)).
		Add(logging.PlanID(p.ID)).
		Add(logging.StepCount(len(p.Steps))).
		Msg("plan created")

	return p, nil
}

// PlanResult is the outcome of executing a plan.
type PlanResult struct {
	PlanID         string      `json:"plan_id"`
	Task           string      `json:"task"`
	Status         plan.Status `json:"status"`
	CompletedSteps []int       `json:"completed_steps"`
	FailedSteps    []int       `json:"failed_steps,omitempty"`
	Results        map[int]any `json:"results"`
}

func resultOf(p *plan.Plan) PlanResult {
	return PlanResult{
		PlanID:         p.ID,
		Task:           p.Task,
		Status:         p.Status,
		CompletedSteps: p.CompletedSteps(),
		FailedSteps:    p.FailedSteps(),
		Results:        p.Results(),
	}
}

type stepOutcome struct {
	step   *plan.Step
	result any
	err    error
}

// ExecutePlan runs the plan's steps in dependency order until every step is
// completed or skipped, a step fails under the abort policy, or no step can
// run. A plan that already finished returns its recorded outcome without
// running anything. Step failures fail the plan but are not returned as
// errors; cancellation fails the plan and returns ctx.Err().
func (s *PlanningService) ExecutePlan(ctx context.Context, a *agent.Agent, p *plan.Plan) (_ PlanResult, err error) {
	if p.Status.IsTerminal() {
		return resultOf(p), nil
	}

	lifecycle, err := statemachine.NewLifecycle(p)
	if err != nil {
		return PlanResult{}, err
	}
	defer lifecycle.Stop()

	ctx, span := telemetry.StartSpan(ctx, s.tracer, "ragent.execute_plan",
		telemetry.AttrAgentID.String(a.ID),
		telemetry.AttrPlanID.String(p.ID),
		telemetry.AttrStepCount.Int(len(p.Steps)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if p.Status == plan.StatusCreated {
		if err := lifecycle.Start(); err != nil {
			return resultOf(p), err
		}
	}

	start := time.Now()
	logging.Info().
		Add(logging.Component("planning")).
		Add(logging.AgentID(a.ID)).
		Add(logging.PlanID(p.ID)).
		Add(logging.Str("policy", string(s.policy))).
		Msg("plan started")

	for {
		if err := ctx.Err(); err != nil {
			s.fail(ctx, a, p, lifecycle, "execution cancelled")
			return resultOf(p), err
		}

		ready := p.ReadySteps()
		if len(ready) == 0 {
			if p.AllSatisfied() {
				s.complete(ctx, a, p, lifecycle, time.Since(start))
			} else {
				s.fail(ctx, a, p, lifecycle, "no runnable steps remain")
			}
			return resultOf(p), nil
		}
		if len(ready) > s.maxConcurrent {
			ready = ready[:s.maxConcurrent]
		}

		aborted := false
		for _, outcome := range s.runWave(ctx, a, p, ready) {
			if outcome.err != nil {
				s.stepFailed(ctx, a, p, outcome)
				if s.policy == plan.FailureAbort {
					aborted = true
				}
				continue
			}
			s.stepCompleted(ctx, a, p, outcome)
		}
		p.Touch()

		if err := ctx.Err(); err != nil {
			s.fail(ctx, a, p, lifecycle, "execution cancelled")
			return resultOf(p), err
		}
		if aborted {
			s.fail(ctx, a, p, lifecycle, fmt.Sprintf("step %v failed", p.FailedSteps()))
			return resultOf(p), nil
		}
	}
}

// runWave marks the steps in progress and runs them concurrently, at most
// maxConcurrent at a time. Outcomes come back in the order of steps.
func (s *PlanningService) runWave(ctx context.Context, a *agent.Agent, p *plan.Plan, steps []*plan.Step) []stepOutcome {
	outcomes := make([]stepOutcome, len(steps))
	for i, step := range steps {
		outcomes[i].step = step
		if err := step.Start(); err != nil {
			outcomes[i].err = err
		}
	}
	p.Touch()

	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)
	for i := range outcomes {
		if outcomes[i].err != nil {
			continue
		}
		g.Go(func() error {
			step := outcomes[i].step
			record, err := s.execution.ExecuteAction(ctx, a, step.ActionType, step.Parameters)
			if err != nil {
				outcomes[i].err = err
				return nil
			}
			outcomes[i].result = record.Result
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *PlanningService) stepCompleted(ctx context.Context, a *agent.Agent, p *plan.Plan, o stepOutcome) {
	if err := o.step.Complete(o.result); err != nil {
		logging.Warn().
			Add(logging.Component("planning")).
			Add(logging.PlanID(p.ID)).
			Add(logging.StepNumber(o.step.Number)).
			Add(logging.ErrorField(err)).
			Msg("complete step")
		return
	}
	publish(ctx, s.events, a.ID, event.TypePlanStepCompleted, event.PlanStepCompletedPayload{
		AgentID:    a.ID,
		PlanID:     p.ID,
		StepNumber: o.step.Number,
		ActionType: o.step.ActionType,
		Result:     o.result,
	})

	logging.Debug().
		Add(logging.Component("planning")).
		Add(logging.PlanID(p.ID)).
		Add(logging.StepNumber(o.step.Number)).
		Add(logging.ActionType(o.step.ActionType)).
		Msg("step completed")
}

func (s *PlanningService) stepFailed(ctx context.Context, a *agent.Agent, p *plan.Plan, o stepOutcome) {
	if err := o.step.Fail(o.err.Error()); err != nil {
		logging.Warn().
			Add(logging.Component("planning")).
			Add(logging.PlanID(p.ID)).
			Add(logging.StepNumber(o.step.Number)).
			Add(logging.ErrorField(err)).
			Msg("fail step")
		return
	}
	publish(context.WithoutCancel(ctx), s.events, a.ID, event.TypePlanStepFailed, event.PlanStepFailedPayload{
		AgentID:    a.ID,
		PlanID:     p.ID,
		StepNumber: o.step.Number,
		ActionType: o.step.ActionType,
		Error:      o.err.Error(),
	})

	logging.Warn().
		Add(logging.Component("planning")).
		Add(logging.PlanID(p.ID)).
		Add(logging.StepNumber(o.step.Number)).
		Add(logging.ActionType(o.step.ActionType)).
		Add(logging.ErrorField(o.err)).
		Msg("step failed")
}

func (s *PlanningService) complete(ctx context.Context, a *agent.Agent, p *plan.Plan, lifecycle *statemachine.Lifecycle, elapsed time.Duration) {
	if err := lifecycle.Complete(); err != nil {
		s.fail(ctx, a, p, lifecycle, err.Error())
		return
	}
	publish(ctx, s.events, a.ID, event.TypePlanCompleted, finished(a, p))

	logging.Info().
		Add(logging.Component("planning")).
		Add(logging.AgentID(a.ID)).
		Add(logging.PlanID(p.ID)).
		Add(logging.Duration(elapsed)).
		Msg("plan completed")
}

// fail moves the plan to failed. Publication uses a context detached from
// cancellation so a cancelled run still records its outcome.
func (s *PlanningService) fail(ctx context.Context, a *agent.Agent, p *plan.Plan, lifecycle *statemachine.Lifecycle, reason string) {
	if err := lifecycle.Fail(reason); err != nil {
		logging.Error().
			Add(logging.Component("planning")).
			Add(logging.PlanID(p.ID)).
			Add(logging.ErrorField(err)).
			Msg("fail plan")
		return
	}
	publish(context.WithoutCancel(ctx), s.events, a.ID, event.TypePlanFailed, finished(a, p))

	logging.Warn().
		Add(logging.Component("planning")).
		Add(logging.AgentID(a.ID)).
		Add(logging.PlanID(p.ID)).
		Add(logging.Str("reason", reason)).
		Msg("plan failed")
}

func finished(a *agent.Agent, p *plan.Plan) event.PlanFinishedPayload {
	return event.PlanFinishedPayload{
		AgentID:        a.ID,
		PlanID:         p.ID,
		Task:           p.Task,
		Status:         string(p.Status),
		CompletedSteps: p.CompletedSteps(),
	}
}

// StepSummary describes one step of an executed plan.
type StepSummary struct {
	StepNumber  int             `json:"step_number"`
	ActionType  string          `json:"action_type"`
	Description string          `json:"description"`
	Status      plan.StepStatus `json:"status"`
	Result      any             `json:"result,omitempty"`
}

// PlanSummary describes an executed plan.
type PlanSummary struct {
	ID    string        `json:"id"`
	Task  string        `json:"task"`
	Steps []StepSummary `json:"steps"`
}

// SummarizePlan renders the plan and its step outcomes.
func SummarizePlan(p *plan.Plan) *PlanSummary {
	steps := make([]StepSummary, 0, len(p.Steps))
	for _, step := range p.Steps {
		steps = append(steps, StepSummary{
			StepNumber:  step.Number,
			ActionType:  step.ActionType,
			Description: step.Description,
			Status:      step.Status,
			Result:      step.Result,
		})
	}
	return &PlanSummary{ID: p.ID, Task: p.Task, Steps: steps}
}

// ComplexQueryResult is the outcome of ProcessComplexQuery. A failed plan
// leaves Response empty and reports Error with the execution Details.
type ComplexQueryResult struct {
	Response any          `json:"response,omitempty"`
	Plan     *PlanSummary `json:"plan,omitempty"`
	Improved bool         `json:"improved"`
	Error    string       `json:"error,omitempty"`
	Details  *PlanResult  `json:"details,omitempty"`

	executed *plan.Plan
}

// ExecutedPlan returns the plan created for the query.
func (r ComplexQueryResult) ExecutedPlan() *plan.Plan {
	return r.executed
}

// ProcessComplexQuery plans the query as a task and executes the plan. The
// response is the result of the highest-numbered completed step.
func (s *PlanningService) ProcessComplexQuery(ctx context.Context, a *agent.Agent, query string) (ComplexQueryResult, error) {
	p, err := s.CreatePlan(ctx, a, query, nil)
	if err != nil {
		return ComplexQueryResult{}, err
	}

	execution, err := s.ExecutePlan(ctx, a, p)
	if err != nil {
		return ComplexQueryResult{executed: p}, err
	}
	if p.Status == plan.StatusFailed {
		return ComplexQueryResult{
			Error:    "Failed to process query",
			Details:  &execution,
			executed: p,
		}, nil
	}

	out := ComplexQueryResult{Plan: SummarizePlan(p), executed: p}
	if final, ok := p.FinalStep(); ok {
		out.Response = final.Result
	}
	return out, nil
}

// Package plan provides the multi-step plan model: a dependency graph of
// steps, each invoking a registered action, and the readiness rules the
// planner executes it by.
package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle status of a plan.
type Status string

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true if the plan can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var allowedTransitions = map[Status][]Status{
	StatusCreated:    {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether a plan may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Plan is an ordered set of steps with dependencies, created for one task.
type Plan struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	Task        string    `json:"task"`
	Constraints []string  `json:"constraints"`
	Steps       []*Step   `json:"steps"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Version is the persisted revision used for optimistic concurrency.
	Version int64 `json:"version"`
}

// New creates an empty plan in the created status.
func New(agentID, task string, constraints []string) *Plan {
	if constraints == nil {
		constraints = []string{}
	}
	now := time.Now()
	return &Plan{
		ID:          uuid.NewString(),
		AgentID:     agentID,
		Task:        task,
		Constraints: constraints,
		Steps:       make([]*Step, 0),
		Status:      StatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddStep appends a step numbered after the existing ones.
func (p *Plan) AddStep(spec StepSpec) (*Step, error) {
	if p.Status != StatusCreated {
		return nil, ErrPlanSealed
	}
	params := spec.Parameters
	if params == nil {
		params = make(map[string]any)
	}
	deps := append([]int(nil), spec.Dependencies...)
	if deps == nil {
		deps = []int{}
	}
	step := &Step{
		ID:           uuid.NewString(),
		Number:       len(p.Steps) + 1,
		ActionType:   spec.ActionType,
		Description:  spec.Description,
		Parameters:   params,
		Dependencies: deps,
		Status:       StepPending,
	}
	p.Steps = append(p.Steps, step)
	p.UpdatedAt = time.Now()
	return step, nil
}

// Step returns the step with the given 1-based number.
func (p *Plan) Step(number int) (*Step, error) {
	if number < 1 || number > len(p.Steps) {
		return nil, fmt.Errorf("%w: %d", ErrStepNotFound, number)
	}
	return p.Steps[number-1], nil
}

// TransitionTo moves the plan to a new status.
func (p *Plan) TransitionTo(to Status) error {
	if !CanTransition(p.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	return nil
}

// Touch records a change to one of the plan's steps.
func (p *Plan) Touch() {
	p.UpdatedAt = time.Now()
}

// IsStepReady returns true if the step is pending and every dependency is
// completed or skipped. Unknown dependency numbers are never satisfied.
func (p *Plan) IsStepReady(step *Step) bool {
	if step.Status != StepPending {
		return false
	}
	for _, dep := range step.Dependencies {
		if dep < 1 || dep > len(p.Steps) {
			return false
		}
		if !p.Steps[dep-1].Status.Satisfied() {
			return false
		}
	}
	return true
}

// ReadySteps returns the runnable steps in ascending step order.
func (p *Plan) ReadySteps() []*Step {
	var ready []*Step
	for _, step := range p.Steps {
		if p.IsStepReady(step) {
			ready = append(ready, step)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].Number < ready[j].Number })
	return ready
}

// AllSatisfied returns true if every step is completed or skipped.
func (p *Plan) AllSatisfied() bool {
	for _, step := range p.Steps {
		if !step.Status.Satisfied() {
			return false
		}
	}
	return true
}

// CompletedSteps returns the numbers of completed steps in ascending order.
func (p *Plan) CompletedSteps() []int {
	out := make([]int, 0, len(p.Steps))
	for _, step := range p.Steps {
		if step.Status == StepCompleted {
			out = append(out, step.Number)
		}
	}
	return out
}

// Results returns the recorded result of every completed step.
func (p *Plan) Results() map[int]any {
	out := make(map[int]any)
	for _, step := range p.Steps {
		if step.Status == StepCompleted {
			out[step.Number] = step.Result
		}
	}
	return out
}

// FinalStep returns the highest-numbered completed step.
func (p *Plan) FinalStep() (*Step, bool) {
	for i := len(p.Steps) - 1; i >= 0; i-- {
		if p.Steps[i].Status == StepCompleted {
			return p.Steps[i], true
		}
	}
	return nil, false
}

// FailedSteps returns the numbers of failed steps in ascending order.
func (p *Plan) FailedSteps() []int {
	var out []int
	for _, step := range p.Steps {
		if step.Status == StepFailed {
			out = append(out, step.Number)
		}
	}
	return out
}

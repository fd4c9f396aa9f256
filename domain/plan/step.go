package plan

import (
	"fmt"
	"time"
)

// StepStatus represents the execution status of a plan step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in-progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

// Satisfied returns true if dependents of a step in this status may run.
func (s StepStatus) Satisfied() bool {
	return s == StepCompleted || s == StepSkipped
}

// IsTerminal returns true if the step will not run again.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// Step is one node of the plan graph.
type Step struct {
	ID           string         `json:"id"`
	Number       int            `json:"step_number"`
	ActionType   string         `json:"action_type"`
	Description  string         `json:"description"`
	Parameters   map[string]any `json:"parameters"`
	Dependencies []int          `json:"dependencies"`
	Status       StepStatus     `json:"status"`
	Result       any            `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// Start marks a pending step as in progress.
func (s *Step) Start() error {
	if s.Status != StepPending {
		return s.invalid(StepInProgress)
	}
	now := time.Now()
	s.Status = StepInProgress
	s.StartedAt = &now
	return nil
}

// Complete records the step result.
func (s *Step) Complete(result any) error {
	if s.Status != StepInProgress {
		return s.invalid(StepCompleted)
	}
	now := time.Now()
	s.Status = StepCompleted
	s.Result = result
	s.CompletedAt = &now
	return nil
}

// Fail records the step error.
func (s *Step) Fail(message string) error {
	if s.Status.IsTerminal() {
		return s.invalid(StepFailed)
	}
	now := time.Now()
	s.Status = StepFailed
	s.Error = message
	s.CompletedAt = &now
	return nil
}

// Skip marks a pending step as skipped; dependents treat it as satisfied.
func (s *Step) Skip() error {
	if s.Status != StepPending {
		return s.invalid(StepSkipped)
	}
	now := time.Now()
	s.Status = StepSkipped
	s.CompletedAt = &now
	return nil
}

func (s *Step) invalid(to StepStatus) error {
	return fmt.Errorf("%w: step %d %s -> %s", ErrInvalidTransition, s.Number, s.Status, to)
}

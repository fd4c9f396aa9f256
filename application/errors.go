package application

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/evaluation"
	"github.com/felixgeelhaar/ragent/domain/plan"
)

// Application errors.
var (
	// ErrMissingDependency indicates a service was built without a required collaborator.
	ErrMissingDependency = errors.New("missing required dependency")

	// ErrEmptyQuery indicates a query or task with no text.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrPlanAgentMismatch indicates a plan was executed for an agent that does not own it.
	ErrPlanAgentMismatch = errors.New("plan belongs to another agent")
)

// NotFoundError reports a command whose target entity does not exist.
// It unwraps to the repository sentinel so callers can match either.
type NotFoundError struct {
	Entity string
	ID     string
	Err    error
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the repository sentinel.
func (e *NotFoundError) Unwrap() error {
	return e.Err
}

func agentNotFound(id string) error {
	return &NotFoundError{Entity: "agent", ID: id, Err: agent.ErrAgentNotFound}
}

func planNotFound(id string) error {
	return &NotFoundError{Entity: "plan", ID: id, Err: plan.ErrPlanNotFound}
}

func evaluationNotFound(id string) error {
	return &NotFoundError{Entity: "evaluation", ID: id, Err: evaluation.ErrEvaluationNotFound}
}

// notFound converts a repository sentinel into a NotFoundError and passes
// every other error through.
func notFound(err error, id string) error {
	switch {
	case errors.Is(err, agent.ErrAgentNotFound):
		return agentNotFound(id)
	case errors.Is(err, plan.ErrPlanNotFound):
		return planNotFound(id)
	case errors.Is(err, evaluation.ErrEvaluationNotFound):
		return evaluationNotFound(id)
	default:
		return err
	}
}

// isAbsent reports whether err is one of the repository not-found sentinels.
func isAbsent(err error) bool {
	return errors.Is(err, agent.ErrAgentNotFound) ||
		errors.Is(err, plan.ErrPlanNotFound) ||
		errors.Is(err, evaluation.ErrEvaluationNotFound) ||
		errors.Is(err, evaluation.ErrImprovementNotFound)
}

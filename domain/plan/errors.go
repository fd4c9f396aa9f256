package plan

import (
	"errors"
	"fmt"
)

// Domain errors for planning.
var (
	// ErrPlanNotFound indicates the requested plan does not exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrInvalidPlanID indicates an empty or malformed plan ID.
	ErrInvalidPlanID = errors.New("invalid plan ID")

	// ErrConcurrentUpdate indicates the plan was modified by another writer.
	ErrConcurrentUpdate = errors.New("concurrent plan update")

	// ErrInvalidTransition indicates a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid plan transition")

	// ErrPlanSealed indicates steps were added after execution started.
	ErrPlanSealed = errors.New("plan steps can only be added before execution")

	// ErrStepNotFound indicates a step number outside the plan.
	ErrStepNotFound = errors.New("plan step not found")

	// ErrPlanGeneration indicates the plan generator produced unusable output.
	ErrPlanGeneration = errors.New("plan generation failed")

	// ErrUnknownFailurePolicy indicates an unrecognized failure policy name.
	ErrUnknownFailurePolicy = errors.New("unknown failure policy")
)

// GenerationError reports a plan generator failure or malformed generator output.
type GenerationError struct {
	Task string
	Err  error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrPlanGeneration, e.Err)
}

// Unwrap returns the underlying cause.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is reports whether the target is ErrPlanGeneration.
func (e *GenerationError) Is(target error) bool {
	return target == ErrPlanGeneration
}

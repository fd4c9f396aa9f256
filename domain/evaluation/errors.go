package evaluation

import "errors"

// Domain errors for evaluation.
var (
	// ErrEvaluationNotFound indicates the requested evaluation does not exist.
	ErrEvaluationNotFound = errors.New("evaluation not found")

	// ErrImprovementNotFound indicates the requested improvement does not exist.
	ErrImprovementNotFound = errors.New("improvement not found")

	// ErrUnparseable indicates a scorer or improver returned output that could
	// not be turned into a typed result.
	ErrUnparseable = errors.New("unparseable collaborator output")

	// ErrUnknownCriterion indicates a criterion name outside the known set.
	ErrUnknownCriterion = errors.New("unknown criterion")

	// ErrInvalidThreshold indicates a threshold outside [0,1].
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")

	// ErrInvalidWeight indicates a negative weight.
	ErrInvalidWeight = errors.New("weight must not be negative")
)

package evaluation

import "context"

// Repository persists evaluations and improvements. Both are immutable once
// saved; saving an existing ID overwrites it.
type Repository interface {
	SaveEvaluation(ctx context.Context, e *Evaluation) error

	// GetEvaluationByID returns ErrEvaluationNotFound if absent.
	GetEvaluationByID(ctx context.Context, id string) (*Evaluation, error)

	SaveImprovement(ctx context.Context, i *Improvement) error

	// GetImprovementByID returns ErrImprovementNotFound if absent.
	GetImprovementByID(ctx context.Context, id string) (*Improvement, error)

	// GetImprovementByEvaluationID returns the latest improvement for an
	// evaluation, or ErrImprovementNotFound.
	GetImprovementByEvaluationID(ctx context.Context, evaluationID string) (*Improvement, error)

	// ListEvaluations returns an agent's evaluations, newest first.
	ListEvaluations(ctx context.Context, agentID string) ([]*Evaluation, error)
}

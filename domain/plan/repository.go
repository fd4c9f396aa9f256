package plan

import "context"

// Repository persists plans with the same version rules as agents:
// Version 0 inserts, a matching Version updates, anything else is
// ErrConcurrentUpdate.
type Repository interface {
	// Save inserts or updates a plan.
	Save(ctx context.Context, p *Plan) error

	// GetByID retrieves a plan. Returns ErrPlanNotFound if absent.
	GetByID(ctx context.Context, id string) (*Plan, error)

	// ListByAgentID returns an agent's plans ordered by creation time.
	ListByAgentID(ctx context.Context, agentID string) ([]*Plan, error)
}

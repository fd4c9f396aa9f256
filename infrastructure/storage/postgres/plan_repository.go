package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/felixgeelhaar/ragent/domain/plan"
)

// PlanRepository is a PostgreSQL-backed implementation of plan.Repository.
type PlanRepository struct {
	store *Store
}

// Save inserts or updates a plan using optimistic versioning.
func (r *PlanRepository) Save(ctx context.Context, p *plan.Plan) error {
	if p == nil || p.ID == "" {
		return plan.ErrInvalidPlanID
	}

	previous := p.Version
	p.Version = previous + 1
	data, err := json.Marshal(p)
	if err != nil {
		p.Version = previous
		return err
	}

	table := r.store.table("plans")
	outcome, err := r.store.versionedWrite(ctx, "plans", p.ID, previous,
		fmt.Sprintf(`INSERT INTO %s (id, agent_id, status, version, data, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`, table),
		[]any{p.ID, p.AgentID, string(p.Status), p.Version, data, p.CreatedAt},
		fmt.Sprintf(`UPDATE %s SET status = $1, version = $2, data = $3
			WHERE id = $4 AND version = $5`, table),
		[]any{string(p.Status), p.Version, data, p.ID, previous},
	)

	switch {
	case err != nil:
		p.Version = previous
		return err
	case outcome == conflict:
		p.Version = previous
		return fmt.Errorf("%w: %s", plan.ErrConcurrentUpdate, p.ID)
	case outcome == missing:
		p.Version = previous
		return fmt.Errorf("%w: %s", plan.ErrPlanNotFound, p.ID)
	}
	return nil
}

// GetByID retrieves a plan by ID.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*plan.Plan, error) {
	if id == "" {
		return nil, plan.ErrInvalidPlanID
	}

	var data []byte
	err := r.store.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT data FROM %s WHERE id = $1", r.store.table("plans")), id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", plan.ErrPlanNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var p plan.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByAgentID returns an agent's plans ordered by creation time.
func (r *PlanRepository) ListByAgentID(ctx context.Context, agentID string) ([]*plan.Plan, error) {
	rows, err := r.store.pool.Query(ctx,
		fmt.Sprintf("SELECT data FROM %s WHERE agent_id = $1 ORDER BY created_at, id", r.store.table("plans")),
		agentID,
	)
	if err != nil {
		return nil, err
	}
	return collectJSON[plan.Plan](rows)
}

var _ plan.Repository = (*PlanRepository)(nil)

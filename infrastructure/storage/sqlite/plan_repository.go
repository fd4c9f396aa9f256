package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/ragent/domain/plan"
)

// PlanRepository is a SQLite-backed implementation of plan.Repository.
type PlanRepository struct {
	db *sql.DB
}

// Save inserts or updates a plan using optimistic versioning.
func (r *PlanRepository) Save(ctx context.Context, p *plan.Plan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
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

	outcome, err := versionedWrite{
		table:    "plans",
		id:       p.ID,
		previous: previous,
		insert: `INSERT INTO plans (id, agent_id, status, version, data, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
		insertArgs: []any{p.ID, p.AgentID, string(p.Status), p.Version, data, p.CreatedAt.UnixNano()},
		update: `UPDATE plans SET status = ?, version = ?, data = ?
			WHERE id = ? AND version = ?`,
		updateArgs: []any{string(p.Status), p.Version, data, p.ID, previous},
	}.exec(ctx, r.db)

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
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, plan.ErrInvalidPlanID
	}

	var data []byte
	err := r.db.QueryRowContext(ctx, "SELECT data FROM plans WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT data FROM plans WHERE agent_id = ? ORDER BY created_at, id", agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*plan.Plan
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p plan.Plan
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

var _ plan.Repository = (*PlanRepository)(nil)

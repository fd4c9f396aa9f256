package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/ragent/domain/plan"
)

// PlanRepository is a Redis-backed implementation of plan.Repository.
type PlanRepository struct {
	store *Store
}

func (r *PlanRepository) planKey(id string) string { return r.store.key("plan", id) }
func (r *PlanRepository) agentPlansKey(agentID string) string {
	return r.store.key("agent", agentID, "plans")
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

	key := r.planKey(p.ID)
	outcome, err := r.store.versionedWrite(ctx, key, previous, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, "data", data, "version", p.Version)
		if previous == 0 {
			pipe.ZAdd(ctx, r.agentPlansKey(p.AgentID), redis.Z{Score: score(p.CreatedAt), Member: p.ID})
		}
	})

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

	data, err := r.store.client.HGet(ctx, r.planKey(id), "data").Bytes()
	if errors.Is(err, redis.Nil) {
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

	ids, err := r.store.client.ZRange(ctx, r.agentPlansKey(agentID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*plan.Plan, 0, len(ids))
	for _, id := range ids {
		p, err := r.GetByID(ctx, id)
		if errors.Is(err, plan.ErrPlanNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

var _ plan.Repository = (*PlanRepository)(nil)

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/ragent/domain/plan"
)

type planEntry struct {
	data    []byte
	version int64
	agentID string
}

// PlanRepository is an in-memory implementation of plan.Repository.
type PlanRepository struct {
	plans map[string]*planEntry
	mu    sync.RWMutex
}

// NewPlanRepository creates a new in-memory plan repository.
func NewPlanRepository() *PlanRepository {
	return &PlanRepository{
		plans: make(map[string]*planEntry),
	}
}

// Save inserts or updates a plan using optimistic versioning.
func (r *PlanRepository) Save(ctx context.Context, p *plan.Plan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil || p.ID == "" {
		return plan.ErrInvalidPlanID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.plans[p.ID]
	var stored int64
	if ok {
		stored = existing.version
	}
	switch checkVersion(ok, stored, p.Version) {
	case versionConflict:
		return fmt.Errorf("%w: %s", plan.ErrConcurrentUpdate, p.ID)
	case versionMissing:
		return fmt.Errorf("%w: %s", plan.ErrPlanNotFound, p.ID)
	}

	previous := p.Version
	p.Version = previous + 1
	data, err := json.Marshal(p)
	if err != nil {
		p.Version = previous
		return err
	}

	r.plans[p.ID] = &planEntry{data: data, version: p.Version, agentID: p.AgentID}
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

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", plan.ErrPlanNotFound, id)
	}
	return decodePlan(entry.data)
}

// ListByAgentID returns an agent's plans ordered by creation time.
func (r *PlanRepository) ListByAgentID(ctx context.Context, agentID string) ([]*plan.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*plan.Plan, 0)
	for _, entry := range r.plans {
		if entry.agentID != agentID {
			continue
		}
		p, err := decodePlan(entry.data)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func decodePlan(data []byte) (*plan.Plan, error) {
	var p plan.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

var _ plan.Repository = (*PlanRepository)(nil)

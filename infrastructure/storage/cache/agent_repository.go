// Package cache provides a read-through LRU cache in front of an agent
// repository.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// ErrInvalidSize is returned for a non-positive cache size.
var ErrInvalidSize = errors.New("cache size must be positive")

// Stats reports cache effectiveness.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// AgentRepository caches agents by ID. Entries are JSON snapshots so callers
// never share state with the cache. Writes go to the backing repository
// first; the cache is only updated after they succeed.
type AgentRepository struct {
	next  agent.Repository
	cache *lru.Cache[string, []byte]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewAgentRepository wraps next with an LRU cache of the given size.
func NewAgentRepository(next agent.Repository, size int) (*AgentRepository, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	r := &AgentRepository{next: next}
	c, err := lru.NewWithEvict[string, []byte](size, r.onEvict)
	if err != nil {
		return nil, err
	}
	r.cache = c
	return r, nil
}

func (r *AgentRepository) onEvict(id string, _ []byte) {
	r.evictions.Add(1)
	logging.Trace().
		Add(logging.Component("cache")).
		Add(logging.AgentID(id)).
		Msg("agent evicted")
}

// Save writes through to the backing repository.
func (r *AgentRepository) Save(ctx context.Context, a *agent.Agent) error {
	if err := r.next.Save(ctx, a); err != nil {
		// The cached copy may be stale relative to whatever won the race.
		if a != nil && errors.Is(err, agent.ErrConcurrentUpdate) {
			r.cache.Remove(a.ID)
		}
		return err
	}
	r.put(a)
	return nil
}

// GetByID serves from the cache when possible.
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*agent.Agent, error) {
	if data, ok := r.cache.Get(id); ok {
		if a, err := decode(data); err == nil {
			r.hits.Add(1)
			return a, nil
		}
		r.cache.Remove(id)
	}
	r.misses.Add(1)

	a, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.put(a)
	return a, nil
}

// GetByConversationID always consults the backing repository.
func (r *AgentRepository) GetByConversationID(ctx context.Context, conversationID string) (*agent.Agent, error) {
	a, err := r.next.GetByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	r.put(a)
	return a, nil
}

// Delete removes the agent from both layers.
func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	r.cache.Remove(id)
	return r.next.Delete(ctx, id)
}

// ListAll always consults the backing repository.
func (r *AgentRepository) ListAll(ctx context.Context) ([]*agent.Agent, error) {
	return r.next.ListAll(ctx)
}

// Stats returns cache statistics.
func (r *AgentRepository) Stats() Stats {
	return Stats{
		Hits:      r.hits.Load(),
		Misses:    r.misses.Load(),
		Evictions: r.evictions.Load(),
		Size:      r.cache.Len(),
	}
}

// Purge empties the cache.
func (r *AgentRepository) Purge() {
	r.cache.Purge()
}

func (r *AgentRepository) put(a *agent.Agent) {
	data, err := json.Marshal(a)
	if err != nil {
		r.cache.Remove(a.ID)
		return
	}
	r.cache.Add(a.ID, data)
}

func decode(data []byte) (*agent.Agent, error) {
	var a agent.Agent
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

var _ agent.Repository = (*AgentRepository)(nil)

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

type agentEntry struct {
	data           []byte
	version        int64
	conversationID string
}

// AgentRepository is an in-memory implementation of agent.Repository.
// Agents are stored as JSON so callers never share state with the store.
type AgentRepository struct {
	agents map[string]*agentEntry
	mu     sync.RWMutex
}

// NewAgentRepository creates a new in-memory agent repository.
func NewAgentRepository() *AgentRepository {
	return &AgentRepository{
		agents: make(map[string]*agentEntry),
	}
}

// Save inserts or updates an agent using optimistic versioning.
func (r *AgentRepository) Save(ctx context.Context, a *agent.Agent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a == nil || a.ID == "" {
		return agent.ErrInvalidAgentID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.agents[a.ID]
	var stored int64
	if ok {
		stored = existing.version
	}
	switch checkVersion(ok, stored, a.Version) {
	case versionConflict:
		return fmt.Errorf("%w: %s", agent.ErrConcurrentUpdate, a.ID)
	case versionMissing:
		return fmt.Errorf("%w: %s", agent.ErrAgentNotFound, a.ID)
	}

	previous := a.Version
	a.Version = previous + 1
	data, err := json.Marshal(a)
	if err != nil {
		a.Version = previous
		return err
	}

	r.agents[a.ID] = &agentEntry{data: data, version: a.Version, conversationID: a.ConversationID()}
	return nil
}

// GetByID retrieves an agent by ID.
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*agent.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, agent.ErrInvalidAgentID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
	}
	return decodeAgent(entry.data)
}

// GetByConversationID retrieves the agent bound to a conversation.
func (r *AgentRepository) GetByConversationID(ctx context.Context, conversationID string) (*agent.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Several agents may share a conversation; the earliest created wins.
	var found *agent.Agent
	for _, entry := range r.agents {
		if entry.conversationID != conversationID {
			continue
		}
		a, err := decodeAgent(entry.data)
		if err != nil {
			return nil, err
		}
		if found == nil || createdBefore(a, found) {
			found = a
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: conversation %s", agent.ErrAgentNotFound, conversationID)
	}
	return found, nil
}

// Delete removes an agent by ID.
func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[id]; !ok {
		return fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
	}
	delete(r.agents, id)
	return nil
}

// ListAll returns every agent ordered by creation time.
func (r *AgentRepository) ListAll(ctx context.Context) ([]*agent.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*agent.Agent, 0, len(r.agents))
	for _, entry := range r.agents {
		a, err := decodeAgent(entry.data)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return createdBefore(out[i], out[j])
	})
	return out, nil
}

// createdBefore orders agents by creation time, then ID.
func createdBefore(a, b *agent.Agent) bool {
	if !a.State.CreatedAt.Equal(b.State.CreatedAt) {
		return a.State.CreatedAt.Before(b.State.CreatedAt)
	}
	return a.ID < b.ID
}

func decodeAgent(data []byte) (*agent.Agent, error) {
	var a agent.Agent
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

var _ agent.Repository = (*AgentRepository)(nil)

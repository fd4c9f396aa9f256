// Package agent provides the agent aggregate: identity, configuration and the
// mutable state (memory and action history) owned by each agent.
package agent

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Well-known memory keys written by the orchestration services.
const (
	MemoryLastQuery       = "last_query"
	MemoryCurrentPlan     = "current_plan"
	MemoryLastEvaluation  = "last_evaluation"
	MemoryLastImprovement = "last_improvement"
)

// State is the mutable memory and history of an agent.
type State struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Memory         map[string]any `json:"memory"`
	Actions        []*Action      `json:"actions"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Agent is a configured actor bound to one conversation.
// It is the aggregate root for the agent domain. State changes go through the
// methods below, which serialize concurrent writers.
type Agent struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Config      map[string]any `json:"config"`
	State       *State         `json:"state"`

	// Version is the persisted revision used for optimistic concurrency.
	Version int64 `json:"version"`

	mu sync.Mutex
}

// New creates an agent with a fresh state.
func New(name, description, conversationID string, config map[string]any) *Agent {
	if config == nil {
		config = make(map[string]any)
	}
	now := time.Now()
	return &Agent{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Config:      config,
		State: &State{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Memory:         make(map[string]any),
			Actions:        make([]*Action, 0),
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	}
}

// ConversationID returns the conversation the agent is bound to.
func (a *Agent) ConversationID() string {
	if a.State == nil {
		return ""
	}
	return a.State.ConversationID
}

// AddAction appends an action to the history.
func (a *Agent) AddAction(action *Action) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.State.Actions = append(a.State.Actions, action)
	a.touch()
}

// StartAction marks a recorded action as running.
func (a *Agent) StartAction(action *Action) error {
	return a.mutateAction(action, func() error { return action.Start() })
}

// CompleteAction records the result of a recorded action.
func (a *Agent) CompleteAction(action *Action, result any) error {
	return a.mutateAction(action, func() error { return action.Complete(result) })
}

// FailAction records the failure of a recorded action.
func (a *Agent) FailAction(action *Action, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return a.mutateAction(action, func() error { return action.Fail(msg) })
}

func (a *Agent) mutateAction(action *Action, fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.owns(action) {
		return ErrActionNotInHistory
	}
	if err := fn(); err != nil {
		return err
	}
	a.touch()
	return nil
}

func (a *Agent) owns(action *Action) bool {
	for _, existing := range a.State.Actions {
		if existing == action {
			return true
		}
	}
	return false
}

// SetMemory stores a value in the agent memory.
func (a *Agent) SetMemory(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.State.Memory == nil {
		a.State.Memory = make(map[string]any)
	}
	a.State.Memory[key] = value
	a.touch()
}

// Memory returns a value from the agent memory.
func (a *Agent) Memory(key string) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	v, ok := a.State.Memory[key]
	return v, ok
}

// MemoryKeys returns the memory keys in sorted order.
func (a *Agent) MemoryKeys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := make([]string, 0, len(a.State.Memory))
	for k := range a.State.Memory {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Actions returns a copy of the action history in execution order.
func (a *Agent) Actions() []Action {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Action, len(a.State.Actions))
	for i, action := range a.State.Actions {
		out[i] = *action
	}
	return out
}

// ActionCount returns the length of the action history.
func (a *Agent) ActionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.State.Actions)
}

// UpdatedAt returns the last time the state changed.
func (a *Agent) UpdatedAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.State.UpdatedAt
}

// touch must be called with the lock held.
func (a *Agent) touch() {
	a.State.UpdatedAt = time.Now()
}

// MarshalJSON serializes the agent while holding its lock.
func (a *Agent) MarshalJSON() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	type plain Agent
	return json.Marshal((*plain)(a))
}

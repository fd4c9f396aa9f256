// Package memory provides in-memory storage implementations.
package memory

import (
	"sort"
	"sync"

	"github.com/felixgeelhaar/ragent/domain/action"
)

type registeredAction struct {
	action   action.Action
	metadata action.Metadata
}

// ActionRegistry is an in-memory implementation of action.Registry.
type ActionRegistry struct {
	actions map[string]registeredAction
	mu      sync.RWMutex
}

// NewActionRegistry creates a new in-memory action registry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{
		actions: make(map[string]registeredAction),
	}
}

// Register adds or replaces an action. The last registration wins.
func (r *ActionRegistry) Register(name string, a action.Action, meta action.Metadata) error {
	if name == "" {
		return action.ErrEmptyName
	}
	if a == nil {
		return action.ErrNilAction
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.actions[name] = registeredAction{action: a, metadata: meta}
	return nil
}

// Get retrieves an action by name.
func (r *ActionRegistry) Get(name string) (action.Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.actions[name]
	return entry.action, ok
}

// Metadata returns the metadata of an action, or the zero value if unknown.
func (r *ActionRegistry) Metadata(name string) action.Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.actions[name].metadata
}

// List returns the registered action names in sorted order.
func (r *ActionRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if an action is registered.
func (r *ActionRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.actions[name]
	return ok
}

// Count returns the number of registered actions.
func (r *ActionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

var _ action.Registry = (*ActionRegistry)(nil)

// Package action defines the capability contract agents execute and the
// registry that maps action type names to capabilities.
package action

import (
	"context"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

// Action is a named capability an agent can invoke with parameters.
type Action interface {
	// Execute runs the capability against the agent.
	Execute(ctx context.Context, a *agent.Agent, params map[string]any) (any, error)
}

// Func adapts an ordinary function to the Action interface.
type Func func(ctx context.Context, a *agent.Agent, params map[string]any) (any, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, a *agent.Agent, params map[string]any) (any, error) {
	return f(ctx, a, params)
}

// Metadata describes a registered action.
type Metadata struct {
	// Description is a human-readable summary used in listings and planning prompts.
	Description string `json:"description,omitempty"`

	// Idempotent marks actions that are safe to retry on transient failure.
	Idempotent bool `json:"idempotent,omitempty"`

	// Extra holds free-form metadata supplied at registration.
	Extra map[string]any `json:"extra,omitempty"`
}

// Registry maps action type names to capabilities.
// This is a repository interface - implementations are in infrastructure.
type Registry interface {
	// Register adds or replaces an action. The last registration for a name wins.
	Register(name string, a Action, meta Metadata) error

	// Get retrieves an action by name.
	Get(name string) (Action, bool)

	// Metadata returns the metadata for a name, or the zero value if unknown.
	Metadata(name string) Metadata

	// List returns all registered names in sorted order.
	List() []string

	// IsRegistered checks if a name is registered.
	IsRegistered(name string) bool
}

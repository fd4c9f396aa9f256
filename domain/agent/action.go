package agent

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionStatus represents the lifecycle status of an executed action.
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"   // Recorded, not yet invoked
	ActionRunning   ActionStatus = "running"   // Capability is executing
	ActionCompleted ActionStatus = "completed" // Finished with a result
	ActionFailed    ActionStatus = "failed"    // Finished with an error
)

// IsTerminal returns true if the status can no longer change.
func (s ActionStatus) IsTerminal() bool {
	return s == ActionCompleted || s == ActionFailed
}

// Action is one execution record of a registered capability.
type Action struct {
	ID          string         `json:"id"`
	Type        string         `json:"action_type"`
	Parameters  map[string]any `json:"parameters"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Status      ActionStatus   `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// NewAction creates a pending action record.
func NewAction(actionType string, params map[string]any) *Action {
	if params == nil {
		params = make(map[string]any)
	}
	return &Action{
		ID:         uuid.NewString(),
		Type:       actionType,
		Parameters: params,
		Status:     ActionPending,
		CreatedAt:  time.Now(),
	}
}

// Start moves a pending action to running.
func (a *Action) Start() error {
	if a.Status != ActionPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, ActionRunning)
	}
	a.Status = ActionRunning
	return nil
}

// Complete records the capability result. Only a non-terminal action can complete.
func (a *Action) Complete(result any) error {
	if a.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, ActionCompleted)
	}
	now := time.Now()
	a.Status = ActionCompleted
	a.Result = result
	a.CompletedAt = &now
	return nil
}

// Fail records the capability error message.
func (a *Action) Fail(message string) error {
	if a.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, ActionFailed)
	}
	now := time.Now()
	a.Status = ActionFailed
	a.Error = message
	a.CompletedAt = &now
	return nil
}

// Duration returns how long the action took, or zero while it is still open.
func (a *Action) Duration() time.Duration {
	if a.CompletedAt == nil {
		return 0
	}
	return a.CompletedAt.Sub(a.CreatedAt)
}

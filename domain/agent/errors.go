package agent

import "errors"

// Domain errors for agent operations.
var (
	// ErrAgentNotFound indicates the requested agent does not exist.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrInvalidAgentID indicates an empty or malformed agent ID.
	ErrInvalidAgentID = errors.New("invalid agent ID")

	// ErrConcurrentUpdate indicates the agent was modified by another writer
	// since it was loaded.
	ErrConcurrentUpdate = errors.New("concurrent agent update")

	// ErrInvalidTransition indicates an action status change that would move
	// backwards or leave a terminal status.
	ErrInvalidTransition = errors.New("invalid action transition")

	// ErrActionNotInHistory indicates the action does not belong to the agent.
	ErrActionNotInHistory = errors.New("action not in agent history")
)

package action

import (
	"errors"
	"fmt"
)

// Domain errors for the action system.
var (
	// ErrEmptyName indicates an action was registered with an empty name.
	ErrEmptyName = errors.New("action name cannot be empty")

	// ErrNilAction indicates a nil capability was registered.
	ErrNilAction = errors.New("action cannot be nil")

	// ErrUnknownAction indicates the requested action type is not registered.
	ErrUnknownAction = errors.New("unknown action type")
)

// UnknownActionError reports an execution request for an unregistered action type.
type UnknownActionError struct {
	ActionType string
}

// Error implements the error interface.
func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnknownAction, e.ActionType)
}

// Is reports whether the target is ErrUnknownAction.
func (e *UnknownActionError) Is(target error) bool {
	return target == ErrUnknownAction
}

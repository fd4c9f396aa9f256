package bus

import (
	"errors"
	"fmt"
)

var (
	// ErrNoHandler indicates a request type has no registered handler.
	ErrNoHandler = errors.New("no handler registered")

	// ErrHandlerExists indicates a second handler was registered for a request type.
	ErrHandlerExists = errors.New("handler already registered")

	// ErrNilHandler indicates a nil handler was registered.
	ErrNilHandler = errors.New("handler is nil")

	// ErrUnexpectedResult indicates a handler returned a value of the wrong type.
	ErrUnexpectedResult = errors.New("unexpected handler result type")
)

// RoutingError reports a dispatch to a request type with no handler.
type RoutingError struct {
	Bus         string
	RequestType string
}

// Error implements the error interface.
func (e *RoutingError) Error() string {
	return fmt.Sprintf("%s bus: no handler registered for %s", e.Bus, e.RequestType)
}

// Is reports whether the target is ErrNoHandler.
func (e *RoutingError) Is(target error) bool {
	return target == ErrNoHandler
}

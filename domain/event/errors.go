package event

import "errors"

var (
	// ErrInvalidEvent is returned by Append for an event without a type.
	ErrInvalidEvent = errors.New("event: invalid event")
	// ErrStoreClosed is returned by a store after Close.
	ErrStoreClosed = errors.New("event: store closed")
)

// Validate reports whether e can be appended to a store.
func (e Event) Validate() error {
	if e.Type == "" {
		return ErrInvalidEvent
	}
	return nil
}

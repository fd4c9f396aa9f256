package bus

import "context"

// CommandBus routes state-changing requests to exactly one handler each.
type CommandBus struct {
	registry
}

// NewCommandBus creates an empty command bus.
func NewCommandBus() *CommandBus {
	return &CommandBus{registry: newRegistry("command")}
}

// Register binds a handler to the dynamic type of command.
func (b *CommandBus) Register(command any, h Handler) error {
	return b.register(command, h)
}

// Dispatch invokes the handler for the command's type.
func (b *CommandBus) Dispatch(ctx context.Context, command any) (any, error) {
	return b.dispatch(ctx, command)
}

// IsRegistered reports whether the command's type has a handler.
func (b *CommandBus) IsRegistered(command any) bool {
	return b.registered(command)
}

// RegisterCommand binds a typed handler function to command type C.
func RegisterCommand[C, R any](b *CommandBus, fn func(context.Context, C) (R, error)) error {
	var zero C
	return b.Register(zero, typed(fn))
}

// Send dispatches a command and returns the typed result.
func Send[R any](ctx context.Context, b *CommandBus, command any) (R, error) {
	return send[R](ctx, b, command)
}

var _ Dispatcher = (*CommandBus)(nil)

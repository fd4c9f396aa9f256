package bus

import "context"

// QueryBus routes read-only requests to exactly one handler each.
type QueryBus struct {
	registry
}

// NewQueryBus creates an empty query bus.
func NewQueryBus() *QueryBus {
	return &QueryBus{registry: newRegistry("query")}
}

// Register binds a handler to the dynamic type of query.
func (b *QueryBus) Register(query any, h Handler) error {
	return b.register(query, h)
}

// Dispatch invokes the handler for the query's type.
func (b *QueryBus) Dispatch(ctx context.Context, query any) (any, error) {
	return b.dispatch(ctx, query)
}

// RegisterQuery binds a typed handler function to query type Q.
func RegisterQuery[Q, R any](b *QueryBus, fn func(context.Context, Q) (R, error)) error {
	var zero Q
	return b.Register(zero, typed(fn))
}

// Ask dispatches a query and returns the typed result.
func Ask[R any](ctx context.Context, b *QueryBus, query any) (R, error) {
	return send[R](ctx, b, query)
}

var _ Dispatcher = (*QueryBus)(nil)

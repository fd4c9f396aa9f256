// Package bus provides in-process command, query and event dispatch.
package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// Handler handles one request type.
type Handler interface {
	Handle(ctx context.Context, request any) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, request any) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, request any) (any, error) {
	return f(ctx, request)
}

// Dispatcher routes a request to its handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, request any) (any, error)
}

// registry maps request types to exactly one handler.
type registry struct {
	name     string
	mu       sync.RWMutex
	handlers map[reflect.Type]Handler
}

func newRegistry(name string) registry {
	return registry{name: name, handlers: make(map[reflect.Type]Handler)}
}

func (r *registry) register(request any, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}
	t := reflect.TypeOf(request)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("%w: %s bus %s", ErrHandlerExists, r.name, typeName(t))
	}
	r.handlers[t] = h
	return nil
}

func (r *registry) dispatch(ctx context.Context, request any) (any, error) {
	t := reflect.TypeOf(request)

	r.mu.RLock()
	h, ok := r.handlers[t]
	r.mu.RUnlock()

	if !ok {
		return nil, &RoutingError{Bus: r.name, RequestType: typeName(t)}
	}

	logging.Trace().
		Add(logging.Component(r.name + "_bus")).
		Add(logging.Str("request", typeName(t))).
		Msg("dispatching")

	return h.Handle(ctx, request)
}

func (r *registry) registered(request any) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[reflect.TypeOf(request)]
	return ok
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// typed wraps a typed handler function into a Handler.
func typed[Req, Res any](fn func(context.Context, Req) (Res, error)) Handler {
	return HandlerFunc(func(ctx context.Context, request any) (any, error) {
		req, ok := request.(Req)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrUnexpectedResult, request)
		}
		return fn(ctx, req)
	})
}

// send dispatches a request and asserts the result type.
func send[Res any](ctx context.Context, d Dispatcher, request any) (Res, error) {
	var zero Res
	out, err := d.Dispatch(ctx, request)
	if err != nil {
		if res, ok := out.(Res); ok {
			return res, err
		}
		return zero, err
	}
	if out == nil {
		return zero, nil
	}
	res, ok := out.(Res)
	if !ok {
		return zero, fmt.Errorf("%w: %T", ErrUnexpectedResult, out)
	}
	return res, nil
}

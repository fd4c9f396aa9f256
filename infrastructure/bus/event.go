package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/ragent/domain/event"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

type subscription struct {
	eventType event.Type
	all       bool
	sub       event.Subscriber
}

// EventBus delivers events synchronously to subscribers in subscription
// order. Subscriber errors and panics are logged and never stop delivery.
type EventBus struct {
	mu    sync.RWMutex
	subs  []subscription
	store event.Store
}

// EventBusOption configures an EventBus.
type EventBusOption func(*EventBus)

// WithStore appends every published event to store before delivery.
func WithStore(store event.Store) EventBusOption {
	return func(b *EventBus) {
		b.store = store
	}
}

// NewEventBus creates an event bus.
func NewEventBus(opts ...EventBusOption) *EventBus {
	b := &EventBus{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a subscriber for one event type.
func (b *EventBus) Subscribe(t event.Type, s event.Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{eventType: t, sub: s})
}

// SubscribeAll registers a subscriber for every event type.
func (b *EventBus) SubscribeAll(s event.Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{all: true, sub: s})
}

// Publish appends the events to the store, if any, then delivers each event
// to its subscribers. It only returns an error if ctx is already done.
func (b *EventBus) Publish(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if b.store != nil {
		if err := b.store.Append(ctx, events...); err != nil {
			logging.Warn().
				Add(logging.Component("event_bus")).
				Add(logging.Count("events", len(events))).
				Add(logging.ErrorField(err)).
				Msg("event store append failed")
		}
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, e := range events {
		for i, s := range subs {
			if !s.all && s.eventType != e.Type {
				continue
			}
			if err := deliver(ctx, s.sub, e); err != nil {
				logging.Warn().
					Add(logging.Component("event_bus")).
					Add(logging.EventType(string(e.Type))).
					Add(logging.AgentID(e.AgentID)).
					Add(logging.Count("subscriber", i)).
					Add(logging.ErrorField(err)).
					Msg("subscriber failed")
			}
		}
	}
	return nil
}

func deliver(ctx context.Context, s event.Subscriber, e event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return s.Handle(ctx, e)
}

var _ event.Publisher = (*EventBus)(nil)

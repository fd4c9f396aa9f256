package event

import "context"

// Publisher delivers events to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Subscriber handles delivered events.
type Subscriber interface {
	Handle(ctx context.Context, e Event) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, e Event) error

// Handle calls f.
func (f SubscriberFunc) Handle(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, ...Event) error { return nil }

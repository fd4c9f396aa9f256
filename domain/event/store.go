package event

import "context"

// Store persists events as an append-only audit trail per agent.
type Store interface {
	// Append persists events and assigns each a per-agent sequence number
	// in order of appearance.
	Append(ctx context.Context, events ...Event) error

	// LoadEvents retrieves all events for an agent in sequence order.
	LoadEvents(ctx context.Context, agentID string) ([]Event, error)

	// LoadEventsFrom retrieves events with a sequence number of at least fromSeq.
	LoadEventsFrom(ctx context.Context, agentID string, fromSeq uint64) ([]Event, error)
}

// QueryOptions filters events returned by a Querier.
type QueryOptions struct {
	// Types filters to specific event types (empty means all).
	Types []Type

	// Limit is the maximum number of events to return (0 = no limit).
	Limit int

	// Offset is the number of matching events to skip.
	Offset int
}

// Matches reports whether an event passes the type filter.
func (o QueryOptions) Matches(e Event) bool {
	if len(o.Types) == 0 {
		return true
	}
	for _, t := range o.Types {
		if e.Type == t {
			return true
		}
	}
	return false
}

// Page applies Offset and Limit to a filtered result.
func (o QueryOptions) Page(events []Event) []Event {
	if o.Offset > 0 {
		if o.Offset >= len(events) {
			return []Event{}
		}
		events = events[o.Offset:]
	}
	if o.Limit > 0 && o.Limit < len(events) {
		events = events[:o.Limit]
	}
	return events
}

// Querier is an optional interface for stores that support filtered reads.
type Querier interface {
	Query(ctx context.Context, agentID string, opts QueryOptions) ([]Event, error)

	// ListAgents returns every agent ID with events in the store.
	ListAgents(ctx context.Context) ([]string, error)
}

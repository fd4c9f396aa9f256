package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/felixgeelhaar/ragent/domain/event"
	"github.com/google/uuid"
)

// EventStore is an in-memory implementation of event.Store.
type EventStore struct {
	events    map[string][]event.Event // agentID -> events
	sequences map[string]uint64        // agentID -> last sequence
	mu        sync.RWMutex
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		events:    make(map[string][]event.Event),
		sequences: make(map[string]uint64),
	}
}

// Append persists events atomically, assigning per-agent sequence numbers.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.sequences[e.AgentID]++
		e.Sequence = s.sequences[e.AgentID]
		s.events[e.AgentID] = append(s.events[e.AgentID], e)
	}
	return nil
}

// LoadEvents retrieves all events for an agent in sequence order.
func (s *EventStore) LoadEvents(ctx context.Context, agentID string) ([]event.Event, error) {
	return s.LoadEventsFrom(ctx, agentID, 0)
}

// LoadEventsFrom retrieves events starting from a specific sequence number.
func (s *EventStore) LoadEventsFrom(ctx context.Context, agentID string, fromSeq uint64) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]event.Event, 0, len(s.events[agentID]))
	for _, e := range s.events[agentID] {
		if e.Sequence >= fromSeq {
			result = append(result, e)
		}
	}
	return result, nil
}

// Query retrieves events matching the given options.
func (s *EventStore) Query(ctx context.Context, agentID string, opts event.QueryOptions) ([]event.Event, error) {
	events, err := s.LoadEvents(ctx, agentID)
	if err != nil {
		return nil, err
	}

	result := make([]event.Event, 0, len(events))
	for _, e := range events {
		if opts.Matches(e) {
			result = append(result, e)
		}
	}
	return opts.Page(result), nil
}

// ListAgents returns every agent ID with stored events.
func (s *EventStore) ListAgents(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

var (
	_ event.Store   = (*EventStore)(nil)
	_ event.Querier = (*EventStore)(nil)
)

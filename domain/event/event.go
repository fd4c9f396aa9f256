// Package event provides the domain events published by the orchestration
// services and the interfaces used to deliver and persist them.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// payloadVersion is stamped on every event NewEvent builds.
const payloadVersion = 1

// Event is an immutable fact about an agent. It carries IDs and a small
// terminal payload, never the entity itself.
type Event struct {
	ID        string          `json:"id"`
	AgentID   string          `json:"agent_id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`

	// Sequence orders events within one agent's stream; the store assigns
	// it on append.
	Sequence uint64 `json:"sequence"`
	Version  int    `json:"version,omitempty"`
}

// NewEvent stamps a fresh ID and time on a JSON-encoded payload.
func NewEvent(agentID string, eventType Type, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   data,
		Version:   payloadVersion,
	}, nil
}

// UnmarshalPayload decodes the payload into v.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

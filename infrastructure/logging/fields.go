package logging

import (
	"strconv"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// AgentID adds an agent ID field.
func AgentID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("agent_id", id)
	}
}

// ActionID adds an action ID field.
func ActionID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("action_id", id)
	}
}

// ActionType adds an action type field.
func ActionType(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("action_type", name)
	}
}

// PlanID adds a plan ID field.
func PlanID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("plan_id", id)
	}
}

// StepNumber adds a plan step number field.
func StepNumber(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("step", n)
	}
}

// StepCount adds a step count field.
func StepCount(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("step_count", n)
	}
}

// EvaluationID adds an evaluation ID field.
func EvaluationID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("evaluation_id", id)
	}
}

// Criterion adds an evaluation criterion field.
func Criterion(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("criterion", name)
	}
}

// Score adds a score field with two decimals.
func Score(v float64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("score", strconv.FormatFloat(v, 'f', 2, 64))
	}
}

// EventType adds a domain event type field.
func EventType(t string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("event_type", t)
	}
}

// Status adds a status field.
func Status(s string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("status", s)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Backend adds a storage or provider backend field.
func Backend(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("backend", name)
	}
}

// Count adds a generic count field.
func Count(key string, n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, n)
	}
}

// Flag adds a boolean field.
func Flag(key string, v bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool(key, v)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

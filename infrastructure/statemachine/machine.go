// Package statemachine drives the plan lifecycle with a statekit statechart.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/ragent/domain/plan"
)

// Context carries the plan through the state machine.
type Context struct {
	Plan   *plan.Plan
	Reason string

	// err holds the last error raised by a transition action.
	err error
}

// State IDs as StateID type for statekit.
const (
	stateCreated    = statekit.StateID(plan.StatusCreated)
	stateInProgress = statekit.StateID(plan.StatusInProgress)
	stateCompleted  = statekit.StateID(plan.StatusCompleted)
	stateFailed     = statekit.StateID(plan.StatusFailed)
)

// Event types understood by the plan machine.
const (
	EventStart    statekit.EventType = "START"
	EventComplete statekit.EventType = "COMPLETE"
	EventFail     statekit.EventType = "FAIL"
)

const machineID = "plan"

// NewPlanMachine creates the plan lifecycle statechart:
// created -> in-progress -> completed | failed.
func NewPlanMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context](machineID).
		WithInitial(stateCreated).
		WithContext(&Context{}).
		WithAction("applyTransition", applyTransition).
		WithGuard("hasSteps", guardHasSteps).
		WithGuard("allSatisfied", guardAllSatisfied).
		State(stateCreated).
			On(EventStart).Target(stateInProgress).Guard("hasSteps").Do("applyTransition").
			Done().
		State(stateInProgress).
			On(EventComplete).Target(stateCompleted).Guard("allSatisfied").Do("applyTransition").
			On(EventFail).Target(stateFailed).Do("applyTransition").
			Done().
		State(stateCompleted).
			Final().
			Done().
		State(stateFailed).
			Final().
			Done().
		Build()
}

// EventFor returns the event that moves a plan into the given status.
func EventFor(to plan.Status) statekit.EventType {
	switch to {
	case plan.StatusInProgress:
		return EventStart
	case plan.StatusCompleted:
		return EventComplete
	case plan.StatusFailed:
		return EventFail
	default:
		return statekit.EventType(to)
	}
}

// statusForEvent derives the target status from an event type.
func statusForEvent(eventType statekit.EventType) plan.Status {
	switch eventType {
	case EventStart:
		return plan.StatusInProgress
	case EventComplete:
		return plan.StatusCompleted
	case EventFail:
		return plan.StatusFailed
	default:
		return plan.Status(eventType)
	}
}

// applyTransition mirrors the machine transition onto the plan aggregate.
// Actions receive **Context because the machine context is a pointer.
func applyTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil || (*ctx).Plan == nil {
		return
	}
	c := *ctx
	if reason, ok := event.Payload.(string); ok {
		c.Reason = reason
	}
	c.err = c.Plan.TransitionTo(statusForEvent(event.Type))
}

func guardHasSteps(ctx *Context, _ statekit.Event) bool {
	return ctx != nil && ctx.Plan != nil && len(ctx.Plan.Steps) > 0
}

func guardAllSatisfied(ctx *Context, _ statekit.Event) bool {
	return ctx != nil && ctx.Plan != nil && ctx.Plan.AllSatisfied()
}

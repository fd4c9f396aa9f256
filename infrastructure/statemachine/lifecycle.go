package statemachine

import (
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/ragent/domain/plan"
)

// ErrTransitionRejected indicates the machine refused an event in its
// current state, either because no transition exists or a guard failed.
var ErrTransitionRejected = errors.New("plan transition rejected")

// Lifecycle wraps the statekit interpreter for a single plan.
type Lifecycle struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewLifecycle creates an interpreter bound to p, resumed at the plan's
// current status.
func NewLifecycle(p *plan.Plan) (*Lifecycle, error) {
	if p == nil {
		return nil, plan.ErrPlanNotFound
	}
	machine, err := NewPlanMachine()
	if err != nil {
		return nil, fmt.Errorf("build plan machine: %w", err)
	}

	ctx := &Context{Plan: p}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	interp.Start()

	l := &Lifecycle{interp: interp, ctx: ctx}
	if p.Status != plan.StatusCreated {
		if err := l.resume(p.Status); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Lifecycle) resume(status plan.Status) error {
	snapshot := statekit.Snapshot[*Context]{
		MachineID:    machineID,
		CurrentState: statekit.StateID(status),
		Context:      l.ctx,
		CreatedAt:    time.Now(),
	}
	if err := l.interp.Restore(snapshot); err != nil {
		return fmt.Errorf("restore plan state %s: %w", status, err)
	}
	return nil
}

// Start moves the plan from created to in-progress. A plan without steps
// cannot start.
func (l *Lifecycle) Start() error {
	return l.send(EventStart, "")
}

// Complete moves an in-progress plan to completed once every step is
// completed or skipped.
func (l *Lifecycle) Complete() error {
	return l.send(EventComplete, "")
}

// Fail moves an in-progress plan to failed.
func (l *Lifecycle) Fail(reason string) error {
	return l.send(EventFail, reason)
}

// Transition sends the event that moves the plan into to.
func (l *Lifecycle) Transition(to plan.Status, reason string) error {
	return l.send(EventFor(to), reason)
}

func (l *Lifecycle) send(eventType statekit.EventType, reason string) (err error) {
	from := l.State()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s on %s: %v", ErrTransitionRejected, eventType, from, r)
		}
	}()

	l.ctx.err = nil
	l.interp.Send(statekit.Event{Type: eventType, Payload: reason})

	if l.ctx.err != nil {
		return l.ctx.err
	}
	if l.State() == from {
		return fmt.Errorf("%w: %s on %s", ErrTransitionRejected, eventType, from)
	}
	return nil
}

// State returns the current machine state as a plan status.
func (l *Lifecycle) State() plan.Status {
	return plan.Status(l.interp.State().Value)
}

// Matches reports whether the machine is in the given status.
func (l *Lifecycle) Matches(status plan.Status) bool {
	return l.interp.Matches(statekit.StateID(status))
}

// IsTerminal reports whether the plan reached completed or failed.
func (l *Lifecycle) IsTerminal() bool {
	return l.interp.Done()
}

// Reason returns the reason attached to the last transition, if any.
func (l *Lifecycle) Reason() string {
	return l.ctx.Reason
}

// Stop stops the interpreter.
func (l *Lifecycle) Stop() {
	l.interp.Stop()
}

// Package sim provides the discrete-event core that advances bus models
// cycle by cycle.
package sim

// VTimeInSec defines the time in the simulated space in the unit of second.
type VTimeInSec float64

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	Schedule(e Event)
}

// An Event is something going to happen in the future.
//
// Secondary events are handled after all the same-time primary events are
// handled, which suits end-of-cycle bookkeeping that must observe the state
// the primary events of the cycle committed.
type Event interface {
	// Time returns the time that the event should happen.
	Time() VTimeInSec

	// Handler returns the handler that should handle the event.
	Handler() Handler

	// IsSecondary tells if the event runs after the same-time primary
	// events.
	IsSecondary() bool
}

// A Handler defines a domain for events.
//
// An event is always constrained to one Handler. It can only be scheduled by
// that handler and can only directly modify that handler's state.
type Handler interface {
	Handle(e Event) error
}

// EventBase provides the basic fields and getters for other events.
type EventBase struct {
	ID        string
	time      VTimeInSec
	handler   Handler
	secondary bool
}

// NewEventBase creates a new EventBase.
func NewEventBase(t VTimeInSec, handler Handler) *EventBase {
	return &EventBase{
		ID:      GetIDGenerator().Generate(),
		time:    t,
		handler: handler,
	}
}

// NewSecondaryEventBase creates an EventBase for an end-of-cycle event.
func NewSecondaryEventBase(t VTimeInSec, handler Handler) *EventBase {
	e := NewEventBase(t, handler)
	e.secondary = true
	return e
}

// Time returns the time that the event is going to happen.
func (e EventBase) Time() VTimeInSec {
	return e.time
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary returns true if the event runs after the same-time primary
// events.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}

package sim

import (
	"log"
	"reflect"
)

// An Engine is a unit that keeps the discrete event simulation running.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run processes all the events until no event is left.
	Run() error

	// RunUntil processes events until the given time is reached or no event
	// is left. Events scheduled exactly at the given time are still handled.
	RunUntil(t VTimeInSec) error
}

// HookPosBeforeEvent is a hook position that triggers before handling an
// event.
var HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &HookPos{Name: "AfterEvent"}

// A SerialEngine is an Engine that always runs events one after another.
//
// Primary events of a timestamp are exhausted before the secondary events of
// the same timestamp.
type SerialEngine struct {
	HookableBase

	now            VTimeInSec
	queue          EventQueue
	secondaryQueue EventQueue
}

// NewSerialEngine creates a SerialEngine.
func NewSerialEngine() *SerialEngine {
	e := new(SerialEngine)

	e.queue = NewEventQueue()
	e.secondaryQueue = NewEventQueue()

	return e
}

// Schedule registers an event to happen in the future.
func (e *SerialEngine) Schedule(evt Event) {
	if evt.Time() < e.now {
		log.Panic("scheduling an event earlier than current time")
	}

	if evt.IsSecondary() {
		e.secondaryQueue.Push(evt)
		return
	}

	e.queue.Push(evt)
}

// Run processes all the events scheduled in the SerialEngine.
func (e *SerialEngine) Run() error {
	for !e.noMoreEvent() {
		e.handleNextEvent()
	}

	return nil
}

// RunUntil processes events up to and including time t. The remaining events
// stay in the queues so that a later Run or RunUntil call can continue the
// simulation.
func (e *SerialEngine) RunUntil(t VTimeInSec) error {
	for !e.noMoreEvent() {
		if e.nextEventTime() > t {
			return nil
		}

		e.handleNextEvent()
	}

	return nil
}

func (e *SerialEngine) handleNextEvent() {
	evt := e.nextEvent()
	if evt.Time() < e.now {
		log.Panicf(
			"cannot run event in the past, evt %s @ %.10f, now %.10f",
			reflect.TypeOf(evt), evt.Time(), e.now,
		)
	}
	e.now = evt.Time()

	hookCtx := HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	handler := evt.Handler()
	_ = handler.Handle(evt)

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)
}

func (e *SerialEngine) noMoreEvent() bool {
	return e.queue.Len() == 0 && e.secondaryQueue.Len() == 0
}

func (e *SerialEngine) nextEventTime() VTimeInSec {
	if e.queue.Len() == 0 {
		return e.secondaryQueue.Peek().Time()
	}

	if e.secondaryQueue.Len() == 0 {
		return e.queue.Peek().Time()
	}

	primaryTime := e.queue.Peek().Time()
	secondaryTime := e.secondaryQueue.Peek().Time()
	if primaryTime <= secondaryTime {
		return primaryTime
	}

	return secondaryTime
}

func (e *SerialEngine) nextEvent() Event {
	if e.queue.Len() == 0 {
		return e.secondaryQueue.Pop()
	}

	if e.secondaryQueue.Len() == 0 {
		return e.queue.Pop()
	}

	if e.queue.Peek().Time() <= e.secondaryQueue.Peek().Time() {
		return e.queue.Pop()
	}

	return e.secondaryQueue.Pop()
}

// CurrentTime returns the current time at which the engine is at.
// Specifically, the run time of the current event.
func (e *SerialEngine) CurrentTime() VTimeInSec {
	return e.now
}

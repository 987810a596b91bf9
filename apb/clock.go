package apb

import (
	"log"
	"reflect"

	"github.com/openverif/apbvip/sim"
)

// An EdgeReactor is a component that performs its combinational reaction on
// every rising clock edge. OnRisingEdge returns true if the reactor made any
// progress during the cycle.
type EdgeReactor interface {
	Name() string
	OnRisingEdge() bool
}

// A ClockDomain advances every attached reactor once per clock cycle.
//
// On each edge the domain first latches the bus, so that every reactor
// observes the signal state that settled during the previous cycle, then
// steps the reactors in attach order. Because all reactors read the latched
// state and write only their owned signals, the attach order does not affect
// the outcome.
//
// The domain keeps scheduling edges while any reactor reports progress and
// goes quiet otherwise. Anything that creates new work, such as enqueueing a
// transaction on an idle driver, must wake the domain through TickLater.
type ClockDomain struct {
	*sim.TickScheduler

	name     string
	bus      *Bus
	reactors []EdgeReactor
}

// NewClockDomain creates a clock domain for the given bus.
func NewClockDomain(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	bus *Bus,
) *ClockDomain {
	d := &ClockDomain{
		name: name,
		bus:  bus,
	}
	d.TickScheduler = sim.NewTickScheduler(d, engine, freq)

	return d
}

// Name returns the name of the clock domain.
func (d *ClockDomain) Name() string {
	return d.name
}

// Bus returns the bus the domain latches every edge.
func (d *ClockDomain) Bus() *Bus {
	return d.bus
}

// Attach adds a reactor to be stepped on every edge.
func (d *ClockDomain) Attach(r EdgeReactor) {
	d.reactors = append(d.reactors, r)
}

// Handle processes one rising edge.
func (d *ClockDomain) Handle(e sim.Event) error {
	switch e.(type) {
	case sim.TickEvent:
	default:
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(e))
	}

	d.bus.Latch()

	progress := false
	for _, r := range d.reactors {
		progress = r.OnRisingEdge() || progress
	}

	if progress {
		d.TickLater()
	}

	return nil
}

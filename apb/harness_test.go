package apb

import (
	"io"
	"log"
	"math/rand"

	"github.com/openverif/apbvip/sim"
)

const period = sim.VTimeInSec(1e-9)

// fixture wires a complete single-master, single-slave bus for component
// tests.
type fixture struct {
	engine  *sim.SerialEngine
	bus     *Bus
	clock   *ClockDomain
	master  *MasterDriver
	slave   *SlaveResponder
	monitor *BusMonitor

	observed []*Transaction
}

func newFixture(
	registers []uint64,
	readyProbability, errorProbability float64,
	busOpts ...BusOption,
) *fixture {
	f := &fixture{}

	f.engine = sim.NewSerialEngine()
	f.bus = NewBus(busOpts...)
	f.clock = NewClockDomain("Clock", f.engine, 1*sim.GHz, f.bus)

	f.master = MakeMasterDriverBuilder().
		WithClockDomain(f.clock).
		Build("Master")
	f.slave = MakeSlaveResponderBuilder().
		WithClockDomain(f.clock).
		WithRegisters(registers).
		WithRandomReadyProbability(readyProbability).
		WithRandomErrorProbability(errorProbability).
		WithRand(rand.New(rand.NewSource(1))).
		WithLogger(log.New(io.Discard, "", 0)).
		Build("Slave")
	f.monitor = MakeBusMonitorBuilder().
		WithClockDomain(f.clock).
		Build("Monitor")

	f.monitor.RegisterObserver(func(t *Transaction) {
		f.observed = append(f.observed, t)
	})

	return f
}

// Package testbench composes a complete single-master, single-slave bus
// verification environment: engine, clock domain, bus, driver, responder,
// and monitor, with optional transfer recording.
package testbench

import (
	"math/rand"

	"github.com/rs/xid"

	"github.com/openverif/apbvip/apb"
	"github.com/openverif/apbvip/recording"
	"github.com/openverif/apbvip/sim"
)

// A Testbench owns one fully wired bus instance.
type Testbench struct {
	Engine  sim.Engine
	Bus     *apb.Bus
	Clock   *apb.ClockDomain
	Master  *apb.MasterDriver
	Slave   *apb.SlaveResponder
	Monitor *apb.BusMonitor

	completed []*apb.Transaction
}

// Builder builds testbenches.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq

	busWidth     int
	addressWidth int
	hasSlaveErr  bool
	hasStrobe    bool

	registers              []uint64
	randomReadyProbability float64
	randomErrorProbability float64
	seed                   int64

	recorder recording.DataRecorder
}

// MakeBuilder creates a builder with default parameters: a 1 GHz clock, a
// 32-bit bus with 12-bit addressing, 16 zeroed registers, and no randomized
// timing.
func MakeBuilder() Builder {
	return Builder{
		freq:         1 * sim.GHz,
		busWidth:     32,
		addressWidth: 12,
		hasSlaveErr:  true,
		hasStrobe:    true,
		registers:    make([]uint64, 16),
		seed:         1,
	}
}

// WithEngine injects the event engine. Without this option the builder
// creates a serial engine.
func (b Builder) WithEngine(e sim.Engine) Builder {
	b.engine = e
	return b
}

// WithFreq sets the clock frequency.
func (b Builder) WithFreq(f sim.Freq) Builder {
	b.freq = f
	return b
}

// WithBusWidth sets the data bus width in bits.
func (b Builder) WithBusWidth(w int) Builder {
	b.busWidth = w
	return b
}

// WithAddressWidth sets the address width in bits.
func (b Builder) WithAddressWidth(w int) Builder {
	b.addressWidth = w
	return b
}

// WithoutSlaveErr removes the optional slave-error line.
func (b Builder) WithoutSlaveErr() Builder {
	b.hasSlaveErr = false
	return b
}

// WithoutStrobe removes the optional byte-strobe lines.
func (b Builder) WithoutStrobe() Builder {
	b.hasStrobe = false
	return b
}

// WithRegisters sets the initial register contents of the slave.
func (b Builder) WithRegisters(registers []uint64) Builder {
	b.registers = registers
	return b
}

// WithRegisterCount sets the slave register store size, zero initialized.
func (b Builder) WithRegisterCount(n int) Builder {
	b.registers = make([]uint64, n)
	return b
}

// WithRandomReadyProbability sets the slave wait-state probability.
func (b Builder) WithRandomReadyProbability(p float64) Builder {
	b.randomReadyProbability = p
	return b
}

// WithRandomErrorProbability sets the slave error-injection probability.
func (b Builder) WithRandomErrorProbability(p float64) Builder {
	b.randomErrorProbability = p
	return b
}

// WithSeed seeds the random source that drives the slave timing decisions.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithDataRecorder records every observed transfer into the given recorder.
func (b Builder) WithDataRecorder(r recording.DataRecorder) Builder {
	b.recorder = r
	return b
}

// Build wires the testbench.
func (b Builder) Build(name string) *Testbench {
	if name == "" {
		name = "APB." + xid.New().String()
	}

	tb := &Testbench{}

	tb.Engine = b.engine
	if tb.Engine == nil {
		tb.Engine = sim.NewSerialEngine()
	}

	busOpts := []apb.BusOption{
		apb.WithBusDataWidth(b.busWidth),
		apb.WithBusAddressWidth(b.addressWidth),
	}
	if !b.hasSlaveErr {
		busOpts = append(busOpts, apb.WithoutSlaveErr())
	}
	if !b.hasStrobe {
		busOpts = append(busOpts, apb.WithoutStrobe())
	}
	tb.Bus = apb.NewBus(busOpts...)

	tb.Clock = apb.NewClockDomain(name+".Clock", tb.Engine, b.freq, tb.Bus)

	tb.Master = apb.MakeMasterDriverBuilder().
		WithClockDomain(tb.Clock).
		Build(name + ".Master")

	tb.Slave = apb.MakeSlaveResponderBuilder().
		WithClockDomain(tb.Clock).
		WithRegisters(b.registers).
		WithRandomReadyProbability(b.randomReadyProbability).
		WithRandomErrorProbability(b.randomErrorProbability).
		WithRand(rand.New(rand.NewSource(b.seed))).
		Build(name + ".Slave")

	tb.Monitor = apb.MakeBusMonitorBuilder().
		WithClockDomain(tb.Clock).
		Build(name + ".Monitor")

	tb.Monitor.RegisterObserver(func(t *apb.Transaction) {
		tb.completed = append(tb.completed, t)
	})

	if b.recorder != nil {
		tb.Monitor.RegisterObserver(
			recording.NewTransferTap(b.recorder, "transfers"))
	}

	return tb
}

// Send enqueues a transaction on the master driver.
func (tb *Testbench) Send(t *apb.Transaction, opts ...apb.SendOption) {
	tb.Master.Send(t, opts...)
}

// Drain runs the simulation until no component has pending work and returns
// the transfers the monitor observed so far. A transfer that can never
// complete makes Drain run forever; bound it with RunFor instead when that
// is a possibility under test.
func (tb *Testbench) Drain() ([]*apb.Transaction, error) {
	err := tb.Engine.Run()
	return tb.completed, err
}

// RunFor advances the simulation by the given number of cycles.
func (tb *Testbench) RunFor(cycles int) error {
	target := tb.Clock.Freq.NCyclesLater(cycles, tb.Engine.CurrentTime())
	return tb.Engine.RunUntil(target)
}

// Completed returns the transfers the monitor observed so far.
func (tb *Testbench) Completed() []*apb.Transaction {
	return tb.completed
}

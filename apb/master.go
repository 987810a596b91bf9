package apb

import (
	"log"

	"github.com/openverif/apbvip/sim"
)

type driverState int

const (
	driverIdle driverState = iota
	driverAccess
	driverSample
)

func (s driverState) String() string {
	switch s {
	case driverIdle:
		return "IDLE"
	case driverAccess:
		return "ACCESS"
	case driverSample:
		return "SAMPLE"
	}

	return "UNKNOWN"
}

// SendOption modifies how a transaction is enqueued.
type SendOption func(*sendConfig)

type sendConfig struct {
	hold bool
}

// WithHold enqueues the transaction without starting the transmit pipeline.
// The caller releases the batch later with Start. This lets tests stage
// several transactions before any bus activity begins.
func WithHold() SendOption {
	return func(c *sendConfig) {
		c.hold = true
	}
}

// A MasterDriver owns the request side of a bus. It drains an ordered
// transmit queue onto the bus with the SETUP, ACCESS, SAMPLE handshake,
// pipelining consecutive transactions with no idle cycle in between.
//
// The driver performs no internal retry. If the slave never asserts ready,
// the driver stalls in SAMPLE forever and the hang is left to the test
// harness to bound. Masking the stall here would hide protocol violations
// under test.
type MasterDriver struct {
	name  string
	bus   *Bus
	clock *ClockDomain
	queue sim.Buffer

	state   driverState
	current *Transaction
	busy    bool
	active  bool
}

// MasterDriverBuilder builds master drivers.
type MasterDriverBuilder struct {
	clock         *ClockDomain
	queue         sim.Buffer
	queueCapacity int
}

// MakeMasterDriverBuilder creates a builder with default parameters.
func MakeMasterDriverBuilder() MasterDriverBuilder {
	return MasterDriverBuilder{
		queueCapacity: 4096,
	}
}

// WithClockDomain sets the clock domain the driver belongs to. The driver
// drives the domain's bus.
func (b MasterDriverBuilder) WithClockDomain(
	d *ClockDomain,
) MasterDriverBuilder {
	b.clock = d
	return b
}

// WithTransmitQueue injects the buffer used as the transmit queue. Without
// this option the builder creates one.
func (b MasterDriverBuilder) WithTransmitQueue(
	q sim.Buffer,
) MasterDriverBuilder {
	b.queue = q
	return b
}

// WithQueueCapacity sets the capacity of the transmit queue the builder
// creates.
func (b MasterDriverBuilder) WithQueueCapacity(c int) MasterDriverBuilder {
	b.queueCapacity = c
	return b
}

// Build creates the master driver and attaches it to the clock domain.
func (b MasterDriverBuilder) Build(name string) *MasterDriver {
	if b.clock == nil {
		log.Panic("master driver requires a clock domain")
	}

	m := &MasterDriver{
		name:  name,
		bus:   b.clock.Bus(),
		clock: b.clock,
		queue: b.queue,
		state: driverIdle,
	}

	if m.queue == nil {
		m.queue = sim.NewBuffer(name+".TransmitQueue", b.queueCapacity)
	}

	b.clock.Attach(m)

	return m
}

// Name returns the name of the driver.
func (m *MasterDriver) Name() string {
	return m.name
}

// Busy reports whether a pipeline run is in flight. It turns true when a
// run starts and false only after the transmit queue has fully drained and
// the bus is quiescent again.
func (m *MasterDriver) Busy() bool {
	return m.busy
}

// QueueSize returns the number of transactions waiting for transmission.
func (m *MasterDriver) QueueSize() int {
	return m.queue.Size()
}

// Send appends a transaction to the transmit queue. Unless WithHold is
// given, it also makes sure a pipeline run is active. At most one run is
// active at a time; a running pipeline picks up new items without being
// restarted.
func (m *MasterDriver) Send(t *Transaction, opts ...SendOption) {
	cfg := sendConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	m.queue.Push(t)

	if !cfg.hold {
		m.startPipeline()
	}
}

// Start releases transactions enqueued with WithHold. It is a no-op if the
// queue is empty or a run is already active.
func (m *MasterDriver) Start() {
	if m.queue.Size() == 0 {
		return
	}

	m.startPipeline()
}

func (m *MasterDriver) startPipeline() {
	if m.active {
		return
	}

	m.active = true
	m.busy = true
	m.clock.TickLater()
}

// OnRisingEdge advances the transmit pipeline by one cycle.
func (m *MasterDriver) OnRisingEdge() bool {
	switch m.state {
	case driverIdle:
		if !m.active {
			return false
		}

		m.doSetup()
		return true

	case driverAccess:
		m.bus.Enable = true
		m.state = driverSample
		return true

	case driverSample:
		return m.doSample()
	}

	return false
}

// doSetup pops the head of the transmit queue and drives the address phase.
func (m *MasterDriver) doSetup() {
	t := m.queue.Pop().(*Transaction)
	t.StartTime = m.clock.CurrentTime()
	m.current = t

	m.bus.Select = true
	m.bus.Enable = false
	m.bus.Address = t.Address
	m.bus.Direction = t.Direction

	if m.bus.HasStrobe {
		m.bus.Strobe = t.StrobeBits()
	}

	if t.Direction == DirectionWrite {
		m.bus.WriteData = t.Data
	}

	m.state = driverAccess
}

// doSample completes the in-flight transaction once the slave is ready. A
// not-ready slave keeps the driver in SAMPLE with address, data, and enable
// held.
func (m *MasterDriver) doSample() bool {
	st := m.bus.Sampled()

	if !st.Ready {
		return true
	}

	if m.bus.HasSlaveErr && st.SlaveErr {
		m.current.Error = true
	}

	if m.current.Direction == DirectionRead {
		m.current.Data = st.ReadData
		m.current.DataValid = true
	}

	m.current = nil

	if m.queue.Size() > 0 {
		// Back-to-back: the next transaction's address phase is driven in
		// the same cycle enable is deasserted for the completed one.
		m.doSetup()
		return true
	}

	m.quiesce()
	return true
}

func (m *MasterDriver) quiesce() {
	m.bus.WriteData = 0
	m.bus.Direction = DirectionRead
	m.bus.Select = false
	m.bus.Enable = false

	if m.bus.HasStrobe {
		m.bus.Strobe = 0
	}

	m.state = driverIdle
	m.active = false
	m.busy = false
}

// MasterStatus is a point-in-time view of the driver state for inspection.
type MasterStatus struct {
	State  string `json:"state"`
	Busy   bool   `json:"busy"`
	Queued int    `json:"queued"`
}

// Status reports the driver state for external inspection.
func (m *MasterDriver) Status() interface{} {
	return MasterStatus{
		State:  m.state.String(),
		Busy:   m.busy,
		Queued: m.queue.Size(),
	}
}

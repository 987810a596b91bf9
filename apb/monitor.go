package apb

import (
	"log"

	"github.com/openverif/apbvip/sim"
)

// HookPosTransferObserved marks the monitor reporting a completed transfer.
// The hook item is the reconstructed *Transaction.
var HookPosTransferObserved = &sim.HookPos{Name: "TransferObserved"}

// A TransactionObserver is called synchronously for every completed transfer
// the monitor reconstructs. Observers must not block and must not mutate
// monitor state.
type TransactionObserver func(t *Transaction)

// A BusMonitor passively watches a bus and reconstructs completed transfers.
//
// It drives nothing. On each edge it samples the latched bus state; when
// select, enable, and ready are simultaneously asserted it synthesizes a
// Transaction and fans it out to the registered observers. Ready is a
// single-cycle acknowledgment coincident with enable, so the check fires
// exactly once per transfer as long as the driving side deasserts enable, or
// reassigns it to the next transfer's address phase, right after sampling.
type BusMonitor struct {
	sim.HookableBase

	name  string
	bus   *Bus
	clock *ClockDomain

	observers []TransactionObserver
	observed  uint64
}

// BusMonitorBuilder builds bus monitors.
type BusMonitorBuilder struct {
	clock *ClockDomain
}

// MakeBusMonitorBuilder creates a builder with default parameters.
func MakeBusMonitorBuilder() BusMonitorBuilder {
	return BusMonitorBuilder{}
}

// WithClockDomain sets the clock domain the monitor samples in.
func (b BusMonitorBuilder) WithClockDomain(d *ClockDomain) BusMonitorBuilder {
	b.clock = d
	return b
}

// Build creates the monitor and attaches it to the clock domain.
func (b BusMonitorBuilder) Build(name string) *BusMonitor {
	if b.clock == nil {
		log.Panic("bus monitor requires a clock domain")
	}

	m := &BusMonitor{
		name:  name,
		bus:   b.clock.Bus(),
		clock: b.clock,
	}

	b.clock.Attach(m)

	return m
}

// Name returns the name of the monitor.
func (m *BusMonitor) Name() string {
	return m.name
}

// RegisterObserver adds a callback invoked for every observed transfer.
func (m *BusMonitor) RegisterObserver(o TransactionObserver) {
	m.observers = append(m.observers, o)
}

// Observed returns the number of transfers reported so far.
func (m *BusMonitor) Observed() uint64 {
	return m.observed
}

// OnRisingEdge samples the bus and reports a transfer if one completed.
func (m *BusMonitor) OnRisingEdge() bool {
	st := m.bus.Sampled()

	if !st.Select || !st.Enable || !st.Ready {
		return false
	}

	t := m.reconstruct(st)
	m.observed++

	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Pos:    HookPosTransferObserved,
		Item:   t,
	})

	for _, o := range m.observers {
		o(t)
	}

	return true
}

// reconstruct synthesizes a Transaction from the sampled bus state.
func (m *BusMonitor) reconstruct(st BusState) *Transaction {
	t := &Transaction{
		ID:           sim.GetIDGenerator().Generate(),
		Address:      st.Address,
		Direction:    st.Direction,
		DataValid:    true,
		StartTime:    m.clock.CurrentTime(),
		BusWidth:     m.bus.BusWidth,
		AddressWidth: m.bus.AddressWidth,
	}

	if st.Direction == DirectionRead {
		t.Data = st.ReadData
	} else {
		t.Data = st.WriteData
	}

	t.Strobe = make([]bool, m.bus.WordSize())
	for i := range t.Strobe {
		if m.bus.HasStrobe {
			t.Strobe[i] = st.Strobe&(1<<uint(i)) != 0
		} else {
			t.Strobe[i] = true
		}
	}

	if m.bus.HasSlaveErr && st.SlaveErr {
		t.Error = true
	}

	return t
}

// MonitorStatus is a point-in-time view of the monitor for inspection.
type MonitorStatus struct {
	Observed uint64 `json:"observed"`
}

// Status reports the monitor state for external inspection.
func (m *BusMonitor) Status() interface{} {
	return MonitorStatus{Observed: m.observed}
}

package apb

// BusState is the value of every bus signal at one point in time.
type BusState struct {
	Select    bool
	Enable    bool
	Direction Direction
	Address   uint64
	WriteData uint64
	Strobe    uint64

	ReadData uint64
	Ready    bool
	SlaveErr bool
}

// A Bus is the shared signal set between one master and one slave.
//
// The request-side signals (Select, Enable, Direction, Address, WriteData,
// Strobe) are written only by the master driver. The response-side signals
// (ReadData, Ready, SlaveErr) are written only by the slave responder. The
// split is enforced by convention, not at runtime, since exactly one
// master/slave pair shares a Bus.
//
// At the start of every clock edge, the clock domain latches the signal
// values that settled during the previous cycle. Components read the latched
// state through Sampled and drive the live fields, which makes the reaction
// of every component independent of the order it is stepped in.
type Bus struct {
	BusState

	BusWidth     int
	AddressWidth int

	// HasSlaveErr and HasStrobe model the optional signals of the
	// protocol. A bus without the error line never reports slave errors.
	HasSlaveErr bool
	HasStrobe   bool

	sampled BusState
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBusDataWidth sets the data bus width in bits.
func WithBusDataWidth(w int) BusOption {
	return func(b *Bus) {
		b.BusWidth = w
	}
}

// WithBusAddressWidth sets the address width in bits.
func WithBusAddressWidth(w int) BusOption {
	return func(b *Bus) {
		b.AddressWidth = w
	}
}

// WithoutSlaveErr removes the optional slave-error line.
func WithoutSlaveErr() BusOption {
	return func(b *Bus) {
		b.HasSlaveErr = false
	}
}

// WithoutStrobe removes the optional byte-strobe lines.
func WithoutStrobe() BusOption {
	return func(b *Bus) {
		b.HasStrobe = false
	}
}

// NewBus creates a bus with a 32-bit data path and 12-bit addressing unless
// configured otherwise.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		BusWidth:     32,
		AddressWidth: 12,
		HasSlaveErr:  true,
		HasStrobe:    true,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// WordSize returns the number of bytes per bus word.
func (b *Bus) WordSize() int {
	return b.BusWidth / 8
}

// Latch records the signal values that settled during the previous cycle.
// Called by the clock domain once per rising edge, before any component is
// stepped.
func (b *Bus) Latch() {
	b.sampled = b.BusState
}

// Sampled returns the signal values as they were at the start of the current
// edge.
func (b *Bus) Sampled() BusState {
	return b.sampled
}

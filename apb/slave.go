package apb

import (
	"log"
	"math/rand"
	"os"

	"github.com/openverif/apbvip/mem"
)

type slaveState int

const (
	slaveIdle slaveState = iota
	slaveAccess
)

func (s slaveState) String() string {
	if s == slaveAccess {
		return "ACCESS"
	}

	return "IDLE"
}

// A SlaveResponder owns the response side of a bus. Each cycle it samples
// the bus and, when selected, decides through independent random draws
// whether to insert a wait state, inject a slave error, or complete the
// access against its register store.
type SlaveResponder struct {
	name  string
	bus   *Bus
	clock *ClockDomain

	storage  *mem.Storage
	initial  []uint64
	numWords int

	randomReadyProbability float64
	randomErrorProbability float64
	rng                    *rand.Rand
	logger                 *log.Logger

	state slaveState

	// waitServed records that the one wait cycle of a triggered wait-state
	// draw has already been inserted for the pending access.
	waitServed bool

	// commitOK is decided in IDLE and consumed in ACCESS. It is true only
	// for accesses that passed the bounds check without an injected error.
	commitOK        bool
	commitWordIndex uint64

	served uint64
}

// SlaveResponderBuilder builds slave responders.
type SlaveResponderBuilder struct {
	clock                  *ClockDomain
	registers              []uint64
	randomReadyProbability float64
	randomErrorProbability float64
	rng                    *rand.Rand
	logger                 *log.Logger
}

// MakeSlaveResponderBuilder creates a builder with default parameters.
func MakeSlaveResponderBuilder() SlaveResponderBuilder {
	return SlaveResponderBuilder{}
}

// WithClockDomain sets the clock domain the responder belongs to.
func (b SlaveResponderBuilder) WithClockDomain(
	d *ClockDomain,
) SlaveResponderBuilder {
	b.clock = d
	return b
}

// WithRegisters sets the initial register contents. The register store holds
// one word per entry. Reset restores this exact snapshot; later writes to
// the store never leak back into it.
func (b SlaveResponderBuilder) WithRegisters(
	registers []uint64,
) SlaveResponderBuilder {
	b.registers = registers
	return b
}

// WithRandomReadyProbability sets the per-access probability of inserting a
// wait state.
func (b SlaveResponderBuilder) WithRandomReadyProbability(
	p float64,
) SlaveResponderBuilder {
	b.randomReadyProbability = p
	return b
}

// WithRandomErrorProbability sets the per-access probability of injecting a
// slave error.
func (b SlaveResponderBuilder) WithRandomErrorProbability(
	p float64,
) SlaveResponderBuilder {
	b.randomErrorProbability = p
	return b
}

// WithRand injects the random source that drives the wait and error draws,
// so that a seeded source reproduces exact timing sequences.
func (b SlaveResponderBuilder) WithRand(rng *rand.Rand) SlaveResponderBuilder {
	b.rng = rng
	return b
}

// WithLogger sets the logger used for protocol diagnostics.
func (b SlaveResponderBuilder) WithLogger(l *log.Logger) SlaveResponderBuilder {
	b.logger = l
	return b
}

// Build creates the slave responder and attaches it to the clock domain.
func (b SlaveResponderBuilder) Build(name string) *SlaveResponder {
	if b.clock == nil {
		log.Panic("slave responder requires a clock domain")
	}

	if b.registers == nil {
		log.Panic("slave responder requires initial register contents")
	}

	s := &SlaveResponder{
		name:                   name,
		bus:                    b.clock.Bus(),
		clock:                  b.clock,
		initial:                append([]uint64(nil), b.registers...),
		numWords:               len(b.registers),
		randomReadyProbability: b.randomReadyProbability,
		randomErrorProbability: b.randomErrorProbability,
		rng:                    b.rng,
		logger:                 b.logger,
	}

	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(1))
	}

	if s.logger == nil {
		s.logger = log.New(os.Stderr, name+": ", log.LstdFlags)
	}

	s.Reset()
	b.clock.Attach(s)

	return s
}

// Name returns the name of the responder.
func (s *SlaveResponder) Name() string {
	return s.name
}

// Reset restores the register store to the initial snapshot and returns the
// response signals to their defaults, with ready asserted.
func (s *SlaveResponder) Reset() {
	s.storage = mem.NewStorage(uint64(s.numWords) * uint64(s.bus.WordSize()))
	for i, word := range s.initial {
		err := s.storage.WriteWord(uint64(i), s.bus.WordSize(), word)
		if err != nil {
			log.Panic(err)
		}
	}

	s.state = slaveIdle
	s.waitServed = false
	s.commitOK = false

	s.bus.ReadData = 0
	s.bus.Ready = true
	if s.bus.HasSlaveErr {
		s.bus.SlaveErr = false
	}
}

// Register returns the current value of the register at the given word
// index.
func (s *SlaveResponder) Register(wordIndex uint64) uint64 {
	v, err := s.storage.ReadWord(wordIndex, s.bus.WordSize())
	if err != nil {
		log.Panic(err)
	}

	return v
}

// RegisterCount returns the number of words in the register store.
func (s *SlaveResponder) RegisterCount() int {
	return s.numWords
}

// wordIndex maps a bus address to a register word index. The address is
// reduced modulo a mask one less than the full address space before the
// divide, wrapping addresses instead of rejecting them outside the literal
// mask.
func (s *SlaveResponder) wordIndex(address uint64) uint64 {
	mask := uint64(1)<<uint(s.bus.AddressWidth) - 1
	return (address % mask) / uint64(s.bus.WordSize())
}

// outOfBounds checks the register file bounds. The check is deliberately
// loose: word index registerCount+1 is still accepted, and index 0 is never
// rejected. See DESIGN.md before tightening it.
func (s *SlaveResponder) outOfBounds(wordIndex uint64) bool {
	return int64(wordIndex)-1 > int64(s.numWords)
}

// OnRisingEdge advances the responder by one cycle.
func (s *SlaveResponder) OnRisingEdge() bool {
	st := s.bus.Sampled()

	switch s.state {
	case slaveIdle:
		return s.respond(st)
	case slaveAccess:
		s.completeAccess(st)
		return true
	}

	return false
}

// respond handles the IDLE state: wait-state draw, error draw, then the
// register file access.
func (s *SlaveResponder) respond(st BusState) bool {
	if !st.Select {
		return false
	}

	if !s.waitServed && s.rng.Float64() < s.randomReadyProbability {
		// One wait cycle per triggered draw. The access proceeds on the
		// next cycle without re-drawing.
		s.bus.Ready = false
		s.waitServed = true
		return true
	}
	s.waitServed = false

	wordIndex := s.wordIndex(st.Address)
	s.commitOK = false

	switch {
	case s.rng.Float64() < s.randomErrorProbability:
		s.bus.ReadData = 0
		if s.bus.HasSlaveErr {
			s.bus.SlaveErr = true
		}

	case s.outOfBounds(wordIndex):
		s.logger.Printf(
			"invalid address 0x%X (word index %d), providing error response",
			st.Address, wordIndex)
		if s.bus.HasSlaveErr {
			s.bus.SlaveErr = true
		}

	default:
		s.commitOK = true
		s.commitWordIndex = wordIndex

		// The loose bounds check admits indexes just past the store, so
		// the physical access is additionally clamped to real capacity.
		if st.Direction == DirectionRead && wordIndex < uint64(s.numWords) {
			s.bus.ReadData = s.Register(wordIndex)
		}
	}

	s.bus.Ready = true
	s.state = slaveAccess

	return true
}

// completeAccess handles the ACCESS state: commit a write, then return the
// response signals to their defaults.
func (s *SlaveResponder) completeAccess(st BusState) {
	if s.commitOK && st.Direction == DirectionWrite &&
		s.commitWordIndex < uint64(s.numWords) {
		err := s.storage.WriteWord(
			s.commitWordIndex, s.bus.WordSize(), st.WriteData)
		if err != nil {
			log.Panic(err)
		}
	}

	s.served++

	s.bus.ReadData = 0
	s.bus.Ready = true
	if s.bus.HasSlaveErr {
		s.bus.SlaveErr = false
	}

	s.commitOK = false
	s.state = slaveIdle
}

// SlaveStatus is a point-in-time view of the responder state for inspection.
type SlaveStatus struct {
	State     string `json:"state"`
	Registers int    `json:"registers"`
	Served    uint64 `json:"served"`
}

// Status reports the responder state for external inspection.
func (s *SlaveResponder) Status() interface{} {
	return SlaveStatus{
		State:     s.state.String(),
		Registers: s.numWords,
		Served:    s.served,
	}
}

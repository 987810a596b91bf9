// Package apb models the Advanced Peripheral Bus protocol for design
// verification. It provides a master driver, a slave responder, and a passive
// bus monitor, all advanced cycle by cycle by a clock domain.
package apb

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/pkg/errors"

	"github.com/openverif/apbvip/sim"
)

// Direction tells whether a transaction reads or writes. The values match
// the encoding of the direction-select line, where 0 selects a read.
type Direction int

// The two transfer directions.
const (
	DirectionRead Direction = iota
	DirectionWrite
)

// DirectionUnspecified lets NewTransaction infer the direction from the
// presence of data.
const DirectionUnspecified Direction = -1

func (d Direction) String() string {
	switch d {
	case DirectionRead:
		return "READ"
	case DirectionWrite:
		return "WRITE"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ErrInvalidArgument is the kind of error returned for malformed
// construction input.
var ErrInvalidArgument = errors.New("invalid argument")

// A Transaction is the record of one logical read or write exchange on the
// bus.
//
// A transaction is created either by a caller, to be driven by a
// MasterDriver, or by a BusMonitor when it reconstructs a completed
// transfer. After creation it is only mutated to stamp StartTime when the
// transfer begins on the bus, and to fill in Data and Error when the
// transfer completes.
type Transaction struct {
	ID string

	Address   uint64
	Direction Direction
	Data      uint64
	DataValid bool
	Strobe    []bool
	Error     bool

	// StartTime is negative until the transfer begins on the bus.
	StartTime sim.VTimeInSec

	BusWidth     int
	AddressWidth int
}

// TransactionOption configures a transaction at construction time.
type TransactionOption func(*Transaction)

// WithBusWidth overrides the default 32-bit data bus width.
func WithBusWidth(w int) TransactionOption {
	return func(t *Transaction) {
		t.BusWidth = w
	}
}

// WithAddressWidth overrides the default 12-bit address width.
func WithAddressWidth(w int) TransactionOption {
	return func(t *Transaction) {
		t.AddressWidth = w
	}
}

// WithStrobe sets the byte-lane strobes. The slice is used as-is; it should
// hold one entry per byte lane.
func WithStrobe(strobe []bool) TransactionOption {
	return func(t *Transaction) {
		t.Strobe = strobe
	}
}

// NewTransaction creates a transaction. If data is nil, the direction is
// forced to READ and the data stays unset. If data is given without an
// explicit direction, the direction defaults to WRITE. Any direction other
// than DirectionUnspecified, DirectionRead, or DirectionWrite fails with an
// ErrInvalidArgument kind.
func NewTransaction(
	address uint64,
	data *uint64,
	direction Direction,
	opts ...TransactionOption,
) (*Transaction, error) {
	switch direction {
	case DirectionUnspecified, DirectionRead, DirectionWrite:
	default:
		return nil, errors.Wrapf(ErrInvalidArgument,
			"unsupported direction %d", int(direction))
	}

	t := &Transaction{
		ID:           sim.GetIDGenerator().Generate(),
		Address:      address,
		StartTime:    -1,
		BusWidth:     32,
		AddressWidth: 12,
	}

	if data != nil {
		t.Data = *data
		t.DataValid = true
		if direction == DirectionUnspecified {
			t.Direction = DirectionWrite
		} else {
			t.Direction = direction
		}
	} else {
		t.Direction = DirectionRead
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.Strobe == nil {
		t.Strobe = make([]bool, t.BusWidth/8)
		for i := range t.Strobe {
			t.Strobe[i] = true
		}
	}

	return t, nil
}

// NewRead creates a READ transaction. The data field stays unset until the
// transfer completes.
func NewRead(address uint64, opts ...TransactionOption) *Transaction {
	t, _ := NewTransaction(address, nil, DirectionRead, opts...)
	return t
}

// NewWrite creates a WRITE transaction carrying the given data.
func NewWrite(address, data uint64, opts ...TransactionOption) *Transaction {
	t, _ := NewTransaction(address, &data, DirectionWrite, opts...)
	return t
}

// Started reports whether the transfer has begun on the bus.
func (t *Transaction) Started() bool {
	return t.StartTime >= 0
}

// StrobeBits returns the integer encoding of the byte strobes, with bit i
// set iff lane i is asserted.
func (t *Transaction) StrobeBits() uint64 {
	bits := uint64(0)
	for i, lane := range t.Strobe {
		if lane {
			bits |= 1 << uint(i)
		}
	}

	return bits
}

// Equals compares two transactions over address, direction, and data only.
// Strobe, error, and timing are deliberately excluded so that checkers can
// match expected against observed transfers.
func (t *Transaction) Equals(other *Transaction) bool {
	if t.Address != other.Address {
		return false
	}

	if t.Direction != other.Direction {
		return false
	}

	if t.DataValid != other.DataValid {
		return false
	}

	if t.DataValid && t.Data != other.Data {
		return false
	}

	return true
}

// Randomize redraws the transaction content from the given random source.
// The direction is a fair coin flip; the address is uniform over the
// word-aligned values of the address space; each strobe lane is an
// independent fair coin. The data value of a WRITE is drawn from
// [0, busWidth] inclusive.
func (t *Transaction) Randomize(rng *rand.Rand) {
	t.Direction = Direction(rng.Intn(2))

	t.Address = uint64(rng.Int63n(int64(1)<<(t.AddressWidth-2))) * 4

	if t.Direction == DirectionWrite {
		t.Data = uint64(rng.Int63n(int64(t.BusWidth) + 1))
		t.DataValid = true
	}

	for i := range t.Strobe {
		t.Strobe[i] = rng.Intn(2) == 1
	}
}

// String renders the transaction for diagnostics.
func (t *Transaction) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "APB: address: 0x%X, direction: %s, ",
		t.Address, t.Direction)

	if t.DataValid {
		fmt.Fprintf(&sb, "data: 0x%0*X, ", t.BusWidth/4, t.Data)
	} else {
		sb.WriteString("data: <none>, ")
	}

	fmt.Fprintf(&sb, "strobe: 0x%X", t.StrobeBits())

	if t.Error {
		sb.WriteString(", ERROR")
	}

	return sb.String()
}

// Package mem provides the backing storage for bus slave models.
package mem

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// A Storage keeps the data held behind a bus slave.
//
// The storage manages its data in units so that untouched regions allocate no
// memory. It is byte-addressed; word-oriented users go through ReadWord and
// WriteWord.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity in bytes.
func NewStorage(capacity uint64) *Storage {
	return &Storage{
		unitSize: 4096,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the number of bytes the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) createOrGetUnit(address uint64) ([]byte, error) {
	if address >= s.capacity {
		return nil, errors.Errorf(
			"address 0x%X beyond the storage capacity 0x%X",
			address, s.capacity)
	}

	baseAddr, _ := s.parseAddress(address)
	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit, nil
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr
	return
}

// Read returns n bytes starting at the given address.
func (s *Storage) Read(address, n uint64) ([]byte, error) {
	res := make([]byte, n)
	offset := uint64(0)

	for offset < n {
		currAddr := address + offset
		unit, err := s.createOrGetUnit(currAddr)
		if err != nil {
			return nil, err
		}

		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		chunk := baseAddr + s.unitSize - currAddr
		if n-offset < chunk {
			chunk = n - offset
		}

		copy(res[offset:offset+chunk], unit[inUnitAddr:inUnitAddr+chunk])
		offset += chunk
	}

	return res, nil
}

// Write stores the data starting at the given address.
func (s *Storage) Write(address uint64, data []byte) error {
	offset := uint64(0)

	for offset < uint64(len(data)) {
		currAddr := address + offset
		unit, err := s.createOrGetUnit(currAddr)
		if err != nil {
			return err
		}

		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		chunk := baseAddr + s.unitSize - currAddr
		if uint64(len(data))-offset < chunk {
			chunk = uint64(len(data)) - offset
		}

		copy(unit[inUnitAddr:inUnitAddr+chunk], data[offset:offset+chunk])
		offset += chunk
	}

	return nil
}

// ReadWord reads a little-endian word of wordSize bytes at the given word
// index. wordSize must be 1, 2, 4, or 8.
func (s *Storage) ReadWord(wordIndex uint64, wordSize int) (uint64, error) {
	data, err := s.Read(wordIndex*uint64(wordSize), uint64(wordSize))
	if err != nil {
		return 0, errors.Wrap(err, "cannot read word")
	}

	return wordFromBytes(data), nil
}

// WriteWord writes a little-endian word of wordSize bytes at the given word
// index.
func (s *Storage) WriteWord(wordIndex uint64, wordSize int, value uint64) error {
	data := make([]byte, wordSize)
	wordToBytes(data, value)

	err := s.Write(wordIndex*uint64(wordSize), data)
	if err != nil {
		return errors.Wrap(err, "cannot write word")
	}

	return nil
}

func wordFromBytes(data []byte) uint64 {
	switch len(data) {
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(data))
	case 4:
		return uint64(binary.LittleEndian.Uint32(data))
	case 8:
		return binary.LittleEndian.Uint64(data)
	default:
		panic(errors.Errorf("unsupported word size %d", len(data)))
	}
}

func wordToBytes(data []byte, value uint64) {
	switch len(data) {
	case 1:
		data[0] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(data, uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(data, uint32(value))
	case 8:
		binary.LittleEndian.PutUint64(data, value)
	default:
		panic(errors.Errorf("unsupported word size %d", len(data)))
	}
}

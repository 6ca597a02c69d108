package mem

import (
	"encoding/binary"
	"errors"
	"fmt"

	amem "github.com/sarchlab/akita/v4/mem/mem"
)

// ErrOutOfRange marks physical accesses outside the backed window.
var ErrOutOfRange = errors.New("physical address out of range")

// PhysMem is byte-addressable physical memory backed by an akita
// storage. Addresses are absolute bus addresses; the backed window
// starts at base. Multi-byte accesses are little-endian.
type PhysMem struct {
	base    uint64
	size    uint64
	storage *amem.Storage
}

// NewPhysMem allocates size bytes of zeroed memory starting at the
// given bus address.
func NewPhysMem(base, size uint64) *PhysMem {
	if size == 0 {
		panic("mem: physical memory of size zero")
	}
	if base+size < base {
		panic("mem: physical memory wraps the address space")
	}
	return &PhysMem{
		base:    base,
		size:    size,
		storage: amem.NewStorage(size),
	}
}

// Base returns the lowest backed bus address.
func (m *PhysMem) Base() uint64 { return m.base }

// Size returns the backed window size in bytes.
func (m *PhysMem) Size() uint64 { return m.size }

// Contains reports whether [addr, addr+n) lies inside the window.
func (m *PhysMem) Contains(addr, n uint64) bool {
	if addr < m.base {
		return false
	}
	off := addr - m.base
	return off < m.size && m.size-off >= n
}

// ReadBytes returns n bytes starting at addr.
func (m *PhysMem) ReadBytes(addr, n uint64) ([]byte, error) {
	if !m.Contains(addr, n) {
		return nil, fmt.Errorf("%w: read of %d bytes at %#x", ErrOutOfRange, n, addr)
	}
	return m.storage.Read(addr-m.base, n)
}

// WriteBytes stores data starting at addr.
func (m *PhysMem) WriteBytes(addr uint64, data []byte) error {
	if !m.Contains(addr, uint64(len(data))) {
		return fmt.Errorf("%w: write of %d bytes at %#x", ErrOutOfRange, len(data), addr)
	}
	return m.storage.Write(addr-m.base, data)
}

// Read performs a little-endian load of 1, 2, 4, or 8 bytes. Other
// sizes are caller bugs.
func (m *PhysMem) Read(addr uint64, size int) (uint64, error) {
	checkAccessSize(size)
	b, err := m.ReadBytes(addr, uint64(size))
	if err != nil {
		return 0, err
	}
	return leUint(b), nil
}

// Write performs a little-endian store of 1, 2, 4, or 8 bytes.
func (m *PhysMem) Write(addr uint64, size int, val uint64) error {
	checkAccessSize(size)
	b := make([]byte, size)
	lePut(b, val)
	return m.WriteBytes(addr, b)
}

// Zero clears n bytes starting at addr.
func (m *PhysMem) Zero(addr, n uint64) error {
	return m.WriteBytes(addr, make([]byte, n))
}

// CopyFromHost implements the loader's memory-sink contract: copy a
// host buffer into guest physical memory at dest.
func (m *PhysMem) CopyFromHost(dest uint64, data []byte) error {
	return m.WriteBytes(dest, data)
}

func checkAccessSize(size int) {
	switch size {
	case 1, 2, 4, 8:
	default:
		panic(fmt.Sprintf("mem: unsupported access size %d", size))
	}
}

func leUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

func lePut(b []byte, val uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(val)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(val))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(val))
	default:
		binary.LittleEndian.PutUint64(b, val)
	}
}

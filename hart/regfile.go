package hart

import (
	"fmt"

	"github.com/riscv-software-src/hartsim/bits"
)

// RegFile is the general-purpose register state. Register x0 is
// hardwired to zero: writes to it vanish and reads always observe
// zero. That binding is fixed at construction and never reassigned.
type RegFile struct {
	xlen uint
	x    [32]uint64
}

// NewRegFile returns a cleared register file of the given width.
func NewRegFile(xlen uint) *RegFile {
	if xlen != 32 && xlen != 64 {
		panic(fmt.Sprintf("hart: unsupported XLEN %d", xlen))
	}
	return &RegFile{xlen: xlen}
}

// XLEN returns the register width in bits.
func (r *RegFile) XLEN() uint { return r.xlen }

func (r *RegFile) mask() uint64 {
	if r.xlen == 32 {
		return 0xFFFF_FFFF
	}
	return ^uint64(0)
}

func (r *RegFile) check(reg uint8) {
	if reg >= 32 {
		panic(fmt.Sprintf("hart: register x%d out of range", reg))
	}
}

// Read returns register reg. Reading x0 yields zero.
func (r *RegFile) Read(reg uint8) uint64 {
	r.check(reg)
	return r.x[reg]
}

// Write stores val into reg, masked to XLEN. Writes to x0 are
// silently discarded.
func (r *RegFile) Write(reg uint8, val uint64) {
	r.check(reg)
	if reg == 0 {
		return
	}
	r.x[reg] = val & r.mask()
}

// ReadValue returns register reg as a width-carrying value.
func (r *RegFile) ReadValue(reg uint8) bits.Value {
	return bits.New(r.xlen, r.Read(reg))
}

// WriteValue stores a width-carrying value, masked to XLEN.
func (r *RegFile) WriteValue(reg uint8, v bits.Value) {
	w := v
	if v.Width() > r.xlen {
		w = v.Truncate(r.xlen)
	} else if v.Width() < r.xlen {
		w = v.ZeroExtend(r.xlen)
	}
	r.Write(reg, w.Uint64())
}

// Args returns the argument registers a0-a7, the values environment
// call hooks receive.
func (r *RegFile) Args() [8]uint64 {
	var a [8]uint64
	for i := range a {
		a[i] = r.x[10+i]
	}
	return a
}

// Reset clears every register.
func (r *RegFile) Reset() {
	r.x = [32]uint64{}
}

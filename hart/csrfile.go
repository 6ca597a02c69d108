package hart

import (
	"fmt"
	"sort"

	"github.com/riscv-software-src/hartsim/bits"
	"github.com/riscv-software-src/hartsim/csr"
	"github.com/riscv-software-src/hartsim/isa"
)

// CSRFile indexes a hart's control/status registers by address and
// enforces the address-space access rules: the minimum privilege
// encoded in the address, the register's own privilege gate, and the
// read-only address region.
type CSRFile struct {
	regs map[uint16]*csr.Register
}

// NewCSRFile returns an empty CSR file.
func NewCSRFile() *CSRFile {
	return &CSRFile{regs: make(map[uint16]*csr.Register)}
}

// Add registers CSRs. Address collisions are definition bugs and
// panic.
func (f *CSRFile) Add(regs ...*csr.Register) {
	for _, r := range regs {
		if prev, dup := f.regs[r.Address()]; dup {
			panic(fmt.Sprintf("hart: CSR %#03x defined twice (%s and %s)",
				r.Address(), prev.Name(), r.Name()))
		}
		f.regs[r.Address()] = r
	}
}

// Lookup returns the register at addr, if implemented.
func (f *CSRFile) Lookup(addr uint16) (*csr.Register, bool) {
	r, ok := f.regs[addr]
	return r, ok
}

// Registers returns every register ordered by address.
func (f *CSRFile) Registers() []*csr.Register {
	out := make([]*csr.Register, 0, len(f.regs))
	for _, r := range f.regs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address() < out[j].Address() })
	return out
}

// CanRead reports whether code in mode may read the CSR at addr.
func (f *CSRFile) CanRead(addr uint16, mode isa.Mode) bool {
	r, ok := f.regs[addr]
	if !ok {
		return false
	}
	if isa.CSRMinPriv(addr) > mode.Priv() {
		return false
	}
	return mode.CanAccess(r.Mode())
}

// CanWrite additionally rejects the read-only address region.
func (f *CSRFile) CanWrite(addr uint16, mode isa.Mode) bool {
	return !isa.CSRReadOnly(addr) && f.CanRead(addr, mode)
}

// Read performs the software read of a CSR. The boolean reports access
// legality; an illegal access must become an illegal-instruction abort
// in the caller, since illegality here is an architectural outcome,
// not an error.
func (f *CSRFile) Read(addr uint16, mode isa.Mode, xlen uint) (bits.PossiblyUnknown, bool) {
	if !f.CanRead(addr, mode) {
		return bits.PossiblyUnknown{}, false
	}
	return f.regs[addr].SWRead(xlen), true
}

// Write performs the software write of a CSR. Access legality covers
// the address and privilege only: a permitted write to a register with
// no writable fields is legal and simply changes nothing, per the
// write-any rule.
func (f *CSRFile) Write(addr uint16, mode isa.Mode, xlen uint, v bits.Value) bool {
	if !f.CanWrite(addr, mode) {
		return false
	}
	f.regs[addr].SWWrite(v, xlen)
	return true
}

// Reset returns every register to architectural reset state.
func (f *CSRFile) Reset() {
	for _, r := range f.regs {
		r.Reset()
	}
}

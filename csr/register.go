package csr

import (
	"fmt"

	"github.com/riscv-software-src/hartsim/bits"
	"github.com/riscv-software-src/hartsim/isa"
)

// SWReadFunc presents a software-visible register value that differs
// from the stored bits, such as a counter fed by the platform or a
// field that reads as zero until an enabling condition holds.
type SWReadFunc func(xlen uint) bits.PossiblyUnknown

// Register models one CSR: a named, addressed, privilege-gated storage
// word whose software access rules are the composition of its fields'
// rules. Storage is at most 64 bits wide, the architectural maximum
// for a single CSR.
type Register struct {
	name  string
	addr  uint16
	mode  isa.Mode
	width uint

	value   bits.Value
	unknown uint64
	fields  []*Field
	swRead  SWReadFunc
}

// RegisterOption configures a Register at construction.
type RegisterOption func(*Register)

// WithSWRead overrides the whole-register software read view.
func WithSWRead(fn SWReadFunc) RegisterOption {
	return func(r *Register) { r.swRead = fn }
}

// NewRegister builds a register of the given storage width from the
// generator-emitted field definitions and leaves it in reset state.
// Malformed definitions (overlapping or out-of-range fields, restricted
// fields without a legalization rule, duplicate names) are construction
// errors and panic immediately.
func NewRegister(name string, addr uint16, mode isa.Mode, width uint,
	defs []FieldDef, opts ...RegisterOption) *Register {
	if width != 32 && width != 64 {
		panic(fmt.Sprintf("csr: register %s has unsupported width %d", name, width))
	}
	if !mode.Valid() {
		panic(fmt.Sprintf("csr: register %s has invalid mode", name))
	}
	r := &Register{
		name:  name,
		addr:  addr,
		mode:  mode,
		width: width,
		value: bits.Zero(width),
	}
	seen := make(map[string]bool, len(defs))
	for i := range defs {
		def := defs[i]
		if def.Name == "" {
			panic(fmt.Sprintf("csr: register %s has an unnamed field", name))
		}
		if seen[def.Name] {
			panic(fmt.Sprintf("csr: register %s duplicates field %s", name, def.Name))
		}
		seen[def.Name] = true
		r.fields = append(r.fields, &Field{def: def, reg: r})
	}
	r.validateLayout()
	for _, opt := range opts {
		opt(r)
	}
	r.Reset()
	return r
}

// validateLayout checks every field location the register can take at
// the effective widths it supports.
func (r *Register) validateLayout() {
	var xlens []uint
	if r.width >= 32 {
		xlens = append(xlens, 32)
	}
	if r.width >= 64 {
		xlens = append(xlens, 64)
	}
	for _, xlen := range xlens {
		var used uint64
		for _, f := range r.fields {
			loc := f.Location(xlen)
			if !loc.Present() {
				continue
			}
			if loc.Lsb+loc.Width > r.width {
				panic(fmt.Sprintf("csr: field %s.%s [%d:%d] exceeds register width %d",
					r.name, f.def.Name, loc.Lsb+loc.Width-1, loc.Lsb, r.width))
			}
			m := locMask(loc)
			if used&m != 0 {
				panic(fmt.Sprintf("csr: field %s.%s overlaps another field at XLEN %d",
					r.name, f.def.Name, xlen))
			}
			used |= m
			if f.Type(xlen).RestrictedValues() && f.def.Legalize == nil {
				panic(fmt.Sprintf("csr: restricted field %s.%s has no legalization rule",
					r.name, f.def.Name))
			}
		}
	}
}

// Name returns the register's architectural name.
func (r *Register) Name() string { return r.name }

// Address returns the CSR address.
func (r *Register) Address() uint16 { return r.addr }

// Mode returns the minimum privilege required to access the register.
func (r *Register) Mode() isa.Mode { return r.mode }

// Width returns the storage width in bits.
func (r *Register) Width() uint { return r.width }

// Fields returns the register's fields in definition order.
func (r *Register) Fields() []*Field { return r.fields }

// Field returns the named field and panics when it does not exist,
// since a bad name is a definition bug.
func (r *Register) Field(name string) *Field {
	for _, f := range r.fields {
		if f.def.Name == name {
			return f
		}
	}
	panic(fmt.Sprintf("csr: register %s has no field %s", r.name, name))
}

func (r *Register) span(xlen uint) uint {
	if xlen < r.width {
		return xlen
	}
	return r.width
}

// HWRead returns the stored register bits visible at the effective
// width, unknown while any of them is still reset-undefined.
func (r *Register) HWRead(xlen uint) bits.PossiblyUnknown {
	span := r.span(xlen)
	if r.unknown&spanMask(span) != 0 {
		return bits.Unknown(span)
	}
	if span == r.width {
		return bits.Known(r.value)
	}
	return bits.Known(r.value.Truncate(span))
}

// HWWrite raw-writes the bits visible at the effective width, marking
// them known. No field legality applies; this is the hardware-side
// backdoor.
func (r *Register) HWWrite(v bits.Value, xlen uint) {
	span := r.span(xlen)
	r.value = r.value.Insert(0, fitWidth(v, span))
	r.unknown &^= spanMask(span)
}

// SWRead is the value a CSR-read instruction observes.
func (r *Register) SWRead(xlen uint) bits.PossiblyUnknown {
	if r.swRead != nil {
		return r.swRead(xlen)
	}
	return r.HWRead(xlen)
}

// SWWrite distributes a software write across the fields present at the
// effective width and reports whether any field accepted it. A false
// return means the register is entirely read-only at this width and
// the write changed nothing.
func (r *Register) SWWrite(v bits.Value, xlen uint) bool {
	accepted := false
	for _, f := range r.fields {
		loc := f.Location(xlen)
		if !loc.Present() {
			continue
		}
		slice := v.Extract(loc.Lsb, loc.Width)
		if f.SWWrite(slice, xlen) {
			accepted = true
		}
	}
	return accepted
}

// Reset restores the architectural reset state: fields with defined
// reset values take them, the rest become unknown, and bits not
// covered by any field read as zero.
func (r *Register) Reset() {
	r.value = bits.Zero(r.width)
	r.unknown = 0
	for _, f := range r.fields {
		f.Reset(r.width)
	}
}

func locMask(loc Location) uint64 {
	if loc.Width >= 64 {
		return ^uint64(0) << loc.Lsb
	}
	return (uint64(1)<<loc.Width - 1) << loc.Lsb
}

func spanMask(n uint) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<n - 1
}

func (r *Register) markKnown(loc Location) { r.unknown &^= locMask(loc) }

func (r *Register) markUnknown(loc Location) { r.unknown |= locMask(loc) }

func (r *Register) unknownIn(loc Location) bool { return r.unknown&locMask(loc) != 0 }

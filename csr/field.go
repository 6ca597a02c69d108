package csr

import (
	"fmt"

	"github.com/riscv-software-src/hartsim/bits"
)

// Location places a field inside its register at a given effective
// width.
type Location struct {
	Lsb   uint
	Width uint
}

// Present reports whether the field exists at the effective width that
// produced this location. A zero width marks an absent field.
func (l Location) Present() bool { return l.Width != 0 }

// LegalizeFunc maps an attempted software write to the value actually
// committed. The rule is field-specific and supplied by the register
// definition; it must be pure and must return a legal value for every
// input, including inputs that are already legal.
type LegalizeFunc func(attempted bits.Value) bits.Value

// FieldDef is the static description of one CSR field in the shape the
// architecture generator emits.
type FieldDef struct {
	Name string

	// Loc places the field when its position is the same at every
	// effective width. LocFor overrides Loc when set; returning a
	// zero-width Location marks the field absent at that width.
	Loc    Location
	LocFor func(xlen uint) Location

	// Type classifies write legality. TypeFor overrides Type when the
	// classification depends on the effective width.
	Type    FieldType
	TypeFor func(xlen uint) FieldType

	// Legalize is consulted on software writes to restricted fields.
	// Registers with a restricted field and no rule fail construction.
	Legalize LegalizeFunc

	// ResetDefined marks fields whose reset value the architecture
	// specifies. Fields without one hold the unknown value until first
	// written.
	ResetDefined bool
	ResetValue   uint64
}

// Field binds a definition to the register that stores it.
type Field struct {
	def FieldDef
	reg *Register
}

// Name returns the field name.
func (f *Field) Name() string { return f.def.Name }

// Location returns the field's position at the given effective width.
func (f *Field) Location(xlen uint) Location {
	if f.def.LocFor != nil {
		return f.def.LocFor(xlen)
	}
	return f.def.Loc
}

// Type returns the field's classification at the given effective
// width.
func (f *Field) Type(xlen uint) FieldType {
	if f.def.TypeFor != nil {
		return f.def.TypeFor(xlen)
	}
	return f.def.Type
}

func (f *Field) view(loc Location) bits.Field {
	if !loc.Present() {
		panic(fmt.Sprintf("csr: access to absent field %s.%s", f.reg.name, f.def.Name))
	}
	return bits.NewField(&f.reg.value, loc.Lsb, loc.Width)
}

// HWRead returns the stored bits without legality checks. The result
// is unknown while any covered bit is still in reset-undefined state.
func (f *Field) HWRead(xlen uint) bits.PossiblyUnknown {
	loc := f.Location(xlen)
	if f.reg.unknownIn(loc) {
		return bits.Unknown(loc.Width)
	}
	return bits.Known(f.view(loc).Read())
}

// HWWrite stores raw bits without legality checks, marking them known.
// Hardware-side state updates and the software write path both land
// here.
func (f *Field) HWWrite(v bits.Value, xlen uint) {
	loc := f.Location(xlen)
	f.view(loc).Write(v)
	f.reg.markKnown(loc)
}

// SWRead is the value a CSR-read instruction observes, which by
// default equals HWRead. Registers with a software-visible view that
// differs from the stored bits override at the register level.
func (f *Field) SWRead(xlen uint) bits.PossiblyUnknown {
	return f.HWRead(xlen)
}

// SWWrite applies the field's legality rule and reports whether the
// write was accepted. Read-only fields reject the write and leave the
// register untouched. Restricted fields map the attempted value
// through the legalization rule, so even an illegal attempt commits a
// legal substitute and still counts as accepted.
func (f *Field) SWWrite(v bits.Value, xlen uint) bool {
	t := f.Type(xlen)
	if t.ReadOnly() {
		return false
	}
	loc := f.Location(xlen)
	attempted := fitWidth(v, loc.Width)
	if t.RestrictedValues() {
		attempted = f.def.Legalize(attempted)
	}
	f.view(loc).Write(attempted)
	f.reg.markKnown(loc)
	return true
}

// Reset restores the field's architectural reset state at the given
// storage width: a defined reset value, or unknown.
func (f *Field) Reset(xlen uint) {
	loc := f.Location(xlen)
	if !loc.Present() {
		return
	}
	f.view(loc).Write(bits.New(loc.Width, f.def.ResetValue))
	if f.def.ResetDefined {
		f.reg.markKnown(loc)
	} else {
		f.reg.markUnknown(loc)
	}
}

func fitWidth(v bits.Value, w uint) bits.Value {
	switch {
	case v.Width() > w:
		return v.Truncate(w)
	case v.Width() < w:
		return v.ZeroExtend(w)
	default:
		return v
	}
}

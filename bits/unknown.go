package bits

import (
	"fmt"
	"strings"
)

// PossiblyUnknown wraps a Value with the architectural "undefined
// until first write" state. Every operation with an unknown operand
// yields unknown, including AND with zero; comparisons against unknown
// are never true. This models reset state the architecture leaves
// unspecified, so the simulator never invents a number for it.
type PossiblyUnknown struct {
	val     Value
	unknown bool
}

// Known wraps a concrete value.
func Known(v Value) PossiblyUnknown { return PossiblyUnknown{val: v} }

// Unknown returns an unknown value of the given width.
func Unknown(width uint) PossiblyUnknown {
	return PossiblyUnknown{val: Zero(width), unknown: true}
}

// Width returns the declared bit width.
func (p PossiblyUnknown) Width() uint { return p.val.width }

// IsUnknown reports whether the value is in the unknown state.
func (p PossiblyUnknown) IsUnknown() bool { return p.unknown }

// Value returns the concrete value. Treating an unknown value as
// concrete is a caller bug, so it panics rather than guessing.
func (p PossiblyUnknown) Value() Value {
	if p.unknown {
		panic("bits: unknown value read as concrete")
	}
	return p.val
}

// ValueOr substitutes def when the value is unknown. The architecture
// leaves the choice of substitute to the caller.
func (p PossiblyUnknown) ValueOr(def Value) Value {
	if p.unknown {
		if def.width != p.val.width {
			panic(fmt.Sprintf("bits: substitute width %d does not match %d", def.width, p.val.width))
		}
		return def
	}
	return p.val
}

// Add propagates unknown-ness through addition.
func (p PossiblyUnknown) Add(q PossiblyUnknown) PossiblyUnknown {
	return PossiblyUnknown{val: p.val.Add(q.val), unknown: p.unknown || q.unknown}
}

// Sub propagates unknown-ness through subtraction.
func (p PossiblyUnknown) Sub(q PossiblyUnknown) PossiblyUnknown {
	return PossiblyUnknown{val: p.val.Sub(q.val), unknown: p.unknown || q.unknown}
}

// And propagates unknown-ness. An unknown operand makes the result
// unknown even when the other operand is zero.
func (p PossiblyUnknown) And(q PossiblyUnknown) PossiblyUnknown {
	return PossiblyUnknown{val: p.val.And(q.val), unknown: p.unknown || q.unknown}
}

// Or propagates unknown-ness through bitwise OR.
func (p PossiblyUnknown) Or(q PossiblyUnknown) PossiblyUnknown {
	return PossiblyUnknown{val: p.val.Or(q.val), unknown: p.unknown || q.unknown}
}

// Xor propagates unknown-ness through bitwise XOR.
func (p PossiblyUnknown) Xor(q PossiblyUnknown) PossiblyUnknown {
	return PossiblyUnknown{val: p.val.Xor(q.val), unknown: p.unknown || q.unknown}
}

// Not complements the value, staying unknown if it was unknown.
func (p PossiblyUnknown) Not() PossiblyUnknown {
	return PossiblyUnknown{val: p.val.Not(), unknown: p.unknown}
}

// Shl shifts left within the width, staying unknown if it was unknown.
func (p PossiblyUnknown) Shl(n uint) PossiblyUnknown {
	return PossiblyUnknown{val: p.val.Shl(n), unknown: p.unknown}
}

// Shr shifts right logically, staying unknown if it was unknown.
func (p PossiblyUnknown) Shr(n uint) PossiblyUnknown {
	return PossiblyUnknown{val: p.val.Shr(n), unknown: p.unknown}
}

// Extract slices the value, staying unknown if it was unknown.
func (p PossiblyUnknown) Extract(lsb, size uint) PossiblyUnknown {
	return PossiblyUnknown{val: p.val.Extract(lsb, size), unknown: p.unknown}
}

// Insert places field into the value. An unknown field poisons the
// result, as does an unknown receiver.
func (p PossiblyUnknown) Insert(lsb uint, field PossiblyUnknown) PossiblyUnknown {
	return PossiblyUnknown{
		val:     p.val.Insert(lsb, field.val),
		unknown: p.unknown || field.unknown,
	}
}

// ZeroExtend widens the value, staying unknown if it was unknown.
func (p PossiblyUnknown) ZeroExtend(newWidth uint) PossiblyUnknown {
	return PossiblyUnknown{val: p.val.ZeroExtend(newWidth), unknown: p.unknown}
}

// Truncate narrows the value, staying unknown if it was unknown.
func (p PossiblyUnknown) Truncate(newWidth uint) PossiblyUnknown {
	return PossiblyUnknown{val: p.val.Truncate(newWidth), unknown: p.unknown}
}

// Eq is false whenever either operand is unknown.
func (p PossiblyUnknown) Eq(q PossiblyUnknown) bool {
	if p.unknown || q.unknown {
		p.val.checkSameSign(q.val, "eq")
		return false
	}
	return p.val.Eq(q.val)
}

// Ne is false whenever either operand is unknown: with an unknown
// operand neither equality nor inequality can be established.
func (p PossiblyUnknown) Ne(q PossiblyUnknown) bool {
	if p.unknown || q.unknown {
		p.val.checkSameSign(q.val, "ne")
		return false
	}
	return p.val.Ne(q.val)
}

// String renders unknown values with a distinguishable marker instead
// of a numeric guess.
func (p PossiblyUnknown) String() string {
	if !p.unknown {
		return p.val.String()
	}
	digits := int((p.val.width + 3) / 4)
	return fmt.Sprintf("%d'h%s", p.val.width, strings.Repeat("x", digits))
}

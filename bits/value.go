// Package bits implements the width-parameterized integer values used
// for every register, CSR, and memory word in the simulator. A Value
// carries its bit width as run-time data because a hart's register
// width is fixed only after configuration is resolved. Arithmetic is
// exact within the declared width: results wrap modulo 2^width unless
// an explicitly widening operation is used, which grows the declared
// width instead of truncating.
package bits

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// MaxWidth is the widest value the model supports. Concatenation and
// replication of architectural quantities stay below it.
const MaxWidth = 256

// Value is an integer of explicit width between 1 and MaxWidth bits,
// with an unsigned or signed interpretation. Values are copied on
// assignment and never share storage.
type Value struct {
	width  uint
	signed bool
	word   uint256.Int
}

// New returns an unsigned value of the given width. The input is
// masked to the width.
func New(width uint, val uint64) Value {
	checkWidth(width)
	v := Value{width: width}
	v.word.SetUint64(val)
	v.maskSelf()
	return v
}

// NewSigned returns a signed value of the given width holding the
// two's-complement encoding of val, masked to the width.
func NewSigned(width uint, val int64) Value {
	checkWidth(width)
	v := Value{width: width, signed: true}
	v.word.SetUint64(uint64(val))
	if val < 0 {
		var hi uint256.Int
		hi.SetAllOne()
		hi.Lsh(&hi, 64)
		v.word.Or(&v.word, &hi)
	}
	v.maskSelf()
	return v
}

// FromWord returns an unsigned value of the given width taken from the
// low bits of w.
func FromWord(width uint, w *uint256.Int) Value {
	checkWidth(width)
	v := Value{width: width}
	v.word.Set(w)
	v.maskSelf()
	return v
}

// Zero returns the zero value of the given width.
func Zero(width uint) Value { return New(width, 0) }

// Ones returns the all-ones value of the given width.
func Ones(width uint) Value {
	checkWidth(width)
	v := Value{width: width}
	v.word.SetAllOne()
	v.maskSelf()
	return v
}

func checkWidth(width uint) {
	if width == 0 || width > MaxWidth {
		panic(fmt.Sprintf("bits: width %d out of range [1, %d]", width, MaxWidth))
	}
}

func maskInto(m *uint256.Int, width uint) {
	if width == MaxWidth {
		m.SetAllOne()
		return
	}
	m.SetUint64(1)
	m.Lsh(m, width)
	m.SubUint64(m, 1)
}

func (v *Value) maskSelf() {
	if v.width == MaxWidth {
		return
	}
	var m uint256.Int
	maskInto(&m, v.width)
	v.word.And(&v.word, &m)
}

func (v Value) checkSameWidth(o Value, op string) {
	if v.width != o.width {
		panic(fmt.Sprintf("bits: %s operands have widths %d and %d", op, v.width, o.width))
	}
}

func (v Value) checkSameSign(o Value, op string) {
	v.checkSameWidth(o, op)
	if v.signed != o.signed {
		panic(fmt.Sprintf("bits: %s operands have mismatched signedness", op))
	}
}

// Width returns the declared bit width.
func (v Value) Width() uint { return v.width }

// Signed reports whether the value carries a signed interpretation.
func (v Value) Signed() bool { return v.signed }

// AsSigned reinterprets the same bit pattern as signed.
func (v Value) AsSigned() Value {
	v.signed = true
	return v
}

// AsUnsigned reinterprets the same bit pattern as unsigned.
func (v Value) AsUnsigned() Value {
	v.signed = false
	return v
}

// Uint64 returns the value as a uint64 and panics if it does not fit,
// which indicates the caller lost track of widths.
func (v Value) Uint64() uint64 {
	if !v.word.IsUint64() {
		panic(fmt.Sprintf("bits: value %s does not fit in uint64", v))
	}
	return v.word.Uint64()
}

// Int64 interprets the value as two's complement in its declared width
// and panics when the magnitude does not fit an int64.
func (v Value) Int64() int64 {
	ext := v.signExtend256()
	fill := uint64(0)
	if ext[0]>>63 != 0 {
		fill = ^uint64(0)
	}
	if ext[1] != fill || ext[2] != fill || ext[3] != fill {
		panic(fmt.Sprintf("bits: value %s does not fit in int64", v))
	}
	return int64(ext[0])
}

// Word returns a copy of the backing 256-bit word.
func (v Value) Word() uint256.Int { return v.word }

// Bit reports bit i of the value.
func (v Value) Bit(i uint) bool {
	if i >= v.width {
		panic(fmt.Sprintf("bits: bit %d out of range for width %d", i, v.width))
	}
	return v.word[i/64]>>(i%64)&1 == 1
}

// IsZero reports whether every bit is clear.
func (v Value) IsZero() bool { return v.word.IsZero() }

// signExtend256 returns the backing word with everything above the
// declared width filled with copies of the width's sign bit.
func (v Value) signExtend256() uint256.Int {
	z := v.word
	if v.width < MaxWidth && v.Bit(v.width-1) {
		var hi uint256.Int
		maskInto(&hi, v.width)
		hi.Not(&hi)
		z.Or(&z, &hi)
	}
	return z
}

func (v Value) operand256() uint256.Int {
	if v.signed {
		return v.signExtend256()
	}
	return v.word
}

// Add returns v+o wrapped to the common width. The result keeps the
// receiver's signedness.
func (v Value) Add(o Value) Value {
	v.checkSameWidth(o, "add")
	v.word.Add(&v.word, &o.word)
	v.maskSelf()
	return v
}

// Sub returns v-o wrapped to the common width.
func (v Value) Sub(o Value) Value {
	v.checkSameWidth(o, "sub")
	v.word.Sub(&v.word, &o.word)
	v.maskSelf()
	return v
}

// Mul returns v*o wrapped to the common width.
func (v Value) Mul(o Value) Value {
	v.checkSameWidth(o, "mul")
	v.word.Mul(&v.word, &o.word)
	v.maskSelf()
	return v
}

// AddWidening returns the full sum of two same-width values as a value
// one bit wider than its operands, so the carry is never lost.
func (v Value) AddWidening(o Value) Value {
	v.checkSameSign(o, "widening add")
	if v.width+1 > MaxWidth {
		panic(fmt.Sprintf("bits: widening add result of %d bits exceeds %d", v.width+1, MaxWidth))
	}
	r := Value{width: v.width + 1, signed: v.signed}
	a, b := v.operand256(), o.operand256()
	r.word.Add(&a, &b)
	r.maskSelf()
	return r
}

// MulWidening returns the full product as a value as wide as both
// operands together. Operand widths may differ; signedness must match.
func (v Value) MulWidening(o Value) Value {
	if v.signed != o.signed {
		panic("bits: widening mul operands have mismatched signedness")
	}
	w := v.width + o.width
	if w > MaxWidth {
		panic(fmt.Sprintf("bits: widening mul result of %d bits exceeds %d", w, MaxWidth))
	}
	r := Value{width: w, signed: v.signed}
	a, b := v.operand256(), o.operand256()
	r.word.Mul(&a, &b)
	r.maskSelf()
	return r
}

// Div returns v/o. Operands must share signedness. Division by zero
// yields the all-ones quotient and signed overflow wraps, matching the
// architecture's divide conventions.
func (v Value) Div(o Value) Value {
	v.checkSameSign(o, "div")
	if o.word.IsZero() {
		r := Ones(v.width)
		r.signed = v.signed
		return r
	}
	r := Value{width: v.width, signed: v.signed}
	if v.signed {
		a, b := v.signExtend256(), o.signExtend256()
		r.word.SDiv(&a, &b)
	} else {
		r.word.Div(&v.word, &o.word)
	}
	r.maskSelf()
	return r
}

// Rem returns the remainder of v/o. Division by zero yields the
// dividend.
func (v Value) Rem(o Value) Value {
	v.checkSameSign(o, "rem")
	if o.word.IsZero() {
		return v
	}
	r := Value{width: v.width, signed: v.signed}
	if v.signed {
		a, b := v.signExtend256(), o.signExtend256()
		r.word.SMod(&a, &b)
	} else {
		r.word.Mod(&v.word, &o.word)
	}
	r.maskSelf()
	return r
}

// And returns the bitwise AND of two same-width values.
func (v Value) And(o Value) Value {
	v.checkSameWidth(o, "and")
	v.word.And(&v.word, &o.word)
	return v
}

// Or returns the bitwise OR of two same-width values.
func (v Value) Or(o Value) Value {
	v.checkSameWidth(o, "or")
	v.word.Or(&v.word, &o.word)
	return v
}

// Xor returns the bitwise XOR of two same-width values.
func (v Value) Xor(o Value) Value {
	v.checkSameWidth(o, "xor")
	v.word.Xor(&v.word, &o.word)
	return v
}

// Not returns the bitwise complement within the declared width.
func (v Value) Not() Value {
	v.word.Not(&v.word)
	v.maskSelf()
	return v
}

// Shl shifts left within the declared width. Bits shifted past the
// width are lost; shifting by the width or more clears the value.
func (v Value) Shl(n uint) Value {
	v.word.Lsh(&v.word, n)
	v.maskSelf()
	return v
}

// ShlWidening shifts left by n and widens the declared width by n so
// no bits are lost.
func (v Value) ShlWidening(n uint) Value {
	w := v.width + n
	if w > MaxWidth {
		panic(fmt.Sprintf("bits: widening shift to %d bits exceeds %d", w, MaxWidth))
	}
	r := Value{width: w, signed: v.signed}
	r.word.Lsh(&v.word, n)
	return r
}

// Shr shifts right, filling with zeros regardless of signedness.
func (v Value) Shr(n uint) Value {
	v.word.Rsh(&v.word, n)
	return v
}

// Sar shifts right, filling with copies of the declared width's top
// bit.
func (v Value) Sar(n uint) Value {
	ext := v.signExtend256()
	v.word.SRsh(&ext, n)
	v.maskSelf()
	return v
}

// Eq reports whether two values of the same width and signedness hold
// the same bits.
func (v Value) Eq(o Value) bool {
	v.checkSameSign(o, "eq")
	return v.word.Eq(&o.word)
}

// Ne is the negation of Eq.
func (v Value) Ne(o Value) bool { return !v.Eq(o) }

// Lt reports v < o under the shared signedness of the operands.
func (v Value) Lt(o Value) bool {
	v.checkSameSign(o, "compare")
	if v.signed {
		a, b := v.signExtend256(), o.signExtend256()
		return a.Slt(&b)
	}
	return v.word.Lt(&o.word)
}

// Gt reports v > o under the shared signedness of the operands.
func (v Value) Gt(o Value) bool {
	v.checkSameSign(o, "compare")
	if v.signed {
		a, b := v.signExtend256(), o.signExtend256()
		return a.Sgt(&b)
	}
	return v.word.Gt(&o.word)
}

// Le reports v <= o.
func (v Value) Le(o Value) bool { return !v.Gt(o) }

// Ge reports v >= o.
func (v Value) Ge(o Value) bool { return !v.Lt(o) }

// Truncate returns the low newWidth bits.
func (v Value) Truncate(newWidth uint) Value {
	checkWidth(newWidth)
	if newWidth > v.width {
		panic(fmt.Sprintf("bits: truncate from %d to %d bits grows the value", v.width, newWidth))
	}
	v.width = newWidth
	v.maskSelf()
	return v
}

// ZeroExtend widens the value to newWidth with zero fill.
func (v Value) ZeroExtend(newWidth uint) Value {
	checkWidth(newWidth)
	if newWidth < v.width {
		panic(fmt.Sprintf("bits: zero extension narrows %d to %d bits", v.width, newWidth))
	}
	v.width = newWidth
	return v
}

// SignExtend returns a newWidth-wide value in which every bit at or
// above firstExtended is a copy of bit firstExtended-1. The extension
// point is explicit and may sit below the declared width, as with a
// byte held in a register-width container and sign-extended per the
// load opcode rather than per its storage size.
func (v Value) SignExtend(firstExtended, newWidth uint) Value {
	checkWidth(newWidth)
	if firstExtended == 0 || firstExtended > v.width {
		panic(fmt.Sprintf("bits: sign-extension point %d out of range for width %d", firstExtended, v.width))
	}
	if newWidth < firstExtended {
		panic(fmt.Sprintf("bits: sign extension narrows %d to %d bits", firstExtended, newWidth))
	}
	r := Value{width: newWidth, signed: v.signed}
	r.word.Set(&v.word)
	var m uint256.Int
	maskInto(&m, firstExtended)
	r.word.And(&r.word, &m)
	if v.Bit(firstExtended - 1) {
		m.Not(&m)
		r.word.Or(&r.word, &m)
		r.maskSelf()
	}
	return r
}

// Concat joins values most-significant-first. The result width is the
// sum of the operand widths and the result is unsigned.
func Concat(vs ...Value) Value {
	if len(vs) == 0 {
		panic("bits: concat of no values")
	}
	var total uint
	for _, v := range vs {
		total += v.width
	}
	if total > MaxWidth {
		panic(fmt.Sprintf("bits: concat width %d exceeds %d", total, MaxWidth))
	}
	r := Value{width: total}
	for _, v := range vs {
		r.word.Lsh(&r.word, v.width)
		r.word.Or(&r.word, &v.word)
	}
	return r
}

// Replicate tiles the value n times into a value n times as wide.
func (v Value) Replicate(n uint) Value {
	if n == 0 {
		panic("bits: replicate count must be positive")
	}
	w := v.width * n
	if w > MaxWidth {
		panic(fmt.Sprintf("bits: replicate width %d exceeds %d", w, MaxWidth))
	}
	r := Value{width: w}
	for i := uint(0); i < n; i++ {
		r.word.Lsh(&r.word, v.width)
		r.word.Or(&r.word, &v.word)
	}
	return r
}

// Extract returns bits [lsb+size-1:lsb] as an unsigned value of the
// given size.
func (v Value) Extract(lsb, size uint) Value {
	checkWidth(size)
	if lsb+size > v.width {
		panic(fmt.Sprintf("bits: extract of [%d:%d] out of range for width %d", lsb+size-1, lsb, v.width))
	}
	r := Value{width: size}
	r.word.Rsh(&v.word, lsb)
	r.maskSelf()
	return r
}

// Insert returns a copy of v with the field's bits placed at
// [lsb+field.Width()-1:lsb]. Bits outside that range are untouched.
func (v Value) Insert(lsb uint, field Value) Value {
	if lsb+field.width > v.width {
		panic(fmt.Sprintf("bits: insert of [%d:%d] out of range for width %d", lsb+field.width-1, lsb, v.width))
	}
	var m uint256.Int
	maskInto(&m, field.width)
	m.Lsh(&m, lsb)
	var f uint256.Int
	f.Lsh(&field.word, lsb)
	m.Not(&m)
	v.word.And(&v.word, &m)
	v.word.Or(&v.word, &f)
	return v
}

// String renders the value as a width-annotated hexadecimal literal,
// for example 64'h000000000000002a.
func (v Value) String() string {
	digits := int((v.width + 3) / 4)
	hex := v.word.Hex()[2:]
	if len(hex) < digits {
		hex = strings.Repeat("0", digits-len(hex)) + hex
	}
	return fmt.Sprintf("%d'h%s", v.width, hex)
}

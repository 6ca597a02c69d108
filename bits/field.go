package bits

import "fmt"

// Field is a non-owning view over a bit range of a parent value. It
// holds a pointer to the parent, so every access observes the parent's
// current contents rather than a snapshot. Views over disjoint ranges
// of the same parent compose; overlapping views are last-write-wins
// and callers must order such writes themselves.
//
// A Field must not outlive its parent. It is meant to be constructed
// at the access site, used, and dropped.
type Field struct {
	parent *Value
	lsb    uint
	width  uint
}

// NewField binds a view to parent bits [lsb+width-1:lsb]. The range
// must lie inside the parent; a range that does not is a construction
// error, never clamped.
func NewField(parent *Value, lsb, width uint) Field {
	checkWidth(width)
	if parent == nil {
		panic("bits: field over nil parent")
	}
	if lsb+width > parent.width {
		panic(fmt.Sprintf("bits: field [%d:%d] out of range for parent width %d",
			lsb+width-1, lsb, parent.width))
	}
	return Field{parent: parent, lsb: lsb, width: width}
}

// Lsb returns the field's lowest bit position within the parent.
func (f Field) Lsb() uint { return f.lsb }

// Width returns the field's width in bits.
func (f Field) Width() uint { return f.width }

// Read extracts the field from the parent's current value, shifted
// down to bit zero.
func (f Field) Read() Value {
	return f.parent.Extract(f.lsb, f.width)
}

// Write read-modify-writes the parent, changing only the field's bits.
// The value is masked to the field width first.
func (f Field) Write(v Value) {
	masked := v
	if v.width > f.width {
		masked = v.Truncate(f.width)
	} else if v.width < f.width {
		masked = v.ZeroExtend(f.width)
	}
	*f.parent = f.parent.Insert(f.lsb, masked)
}

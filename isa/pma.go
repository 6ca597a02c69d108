package isa

import (
	"fmt"
	"strings"
)

// PMA is a set of physical memory attributes for an address range.
type PMA uint16

const (
	PMARead PMA = 1 << iota
	PMAWrite
	PMAExec
	PMAAtomic
	PMAReservable
	PMACacheable
	PMAIO

	PMANone PMA = 0
)

// PMARAM is the attribute set of ordinary main memory.
const PMARAM = PMARead | PMAWrite | PMAExec | PMAAtomic | PMAReservable | PMACacheable

// Has reports whether every attribute in want is present.
func (p PMA) Has(want PMA) bool { return p&want == want }

func (p PMA) String() string {
	if p == PMANone {
		return "none"
	}
	var b strings.Builder
	flags := []struct {
		bit  PMA
		name string
	}{
		{PMARead, "r"},
		{PMAWrite, "w"},
		{PMAExec, "x"},
		{PMAAtomic, "a"},
		{PMAReservable, "l"},
		{PMACacheable, "c"},
		{PMAIO, "io"},
	}
	for _, f := range flags {
		if p&f.bit != 0 {
			b.WriteString(f.name)
		}
	}
	return b.String()
}

// ParsePMA is the inverse of String: it reads an attribute set from
// its flag-letter form, e.g. "rwxalc" for main memory or "rwio" for a
// device window. "none" and the empty string both mean no attributes.
func ParsePMA(s string) (PMA, error) {
	if s == "" || s == "none" {
		return PMANone, nil
	}
	var p PMA
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'r':
			p |= PMARead
		case 'w':
			p |= PMAWrite
		case 'x':
			p |= PMAExec
		case 'a':
			p |= PMAAtomic
		case 'l':
			p |= PMAReservable
		case 'c':
			p |= PMACacheable
		case 'i':
			if i+1 >= len(s) || s[i+1] != 'o' {
				return PMANone, fmt.Errorf("isa: unknown memory attribute %q in %q", s[i], s)
			}
			p |= PMAIO
			i++
		default:
			return PMANone, fmt.Errorf("isa: unknown memory attribute %q in %q", s[i], s)
		}
	}
	return p, nil
}

// Fence predecessor/successor set bits, matching the encoding in the
// FENCE instruction (I, O, R, W from high to low).
const (
	FenceW uint8 = 1 << iota
	FenceR
	FenceO
	FenceI

	FenceRW   = FenceR | FenceW
	FenceIORW = FenceI | FenceO | FenceR | FenceW
)

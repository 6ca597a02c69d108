package mem

import (
	"fmt"

	"github.com/riscv-software-src/hartsim/isa"
)

// Region attaches physical memory attributes to an address range.
type Region struct {
	Name  string
	Base  uint64
	Size  uint64
	Attrs isa.PMA
}

func (r Region) contains(addr, size uint64) bool {
	if addr < r.Base {
		return false
	}
	off := addr - r.Base
	return off < r.Size && r.Size-off >= size
}

// PMATable answers attribute queries over a set of disjoint regions.
// Addresses outside every region carry no attributes, so any access
// class check against them fails.
type PMATable struct {
	regions []Region
}

// NewPMATable builds a table from the platform's memory map. Regions
// must be non-empty and disjoint; violations are construction errors.
func NewPMATable(regions ...Region) *PMATable {
	for i, r := range regions {
		if r.Size == 0 {
			panic(fmt.Sprintf("mem: PMA region %q is empty", r.Name))
		}
		if r.Base+r.Size < r.Base {
			panic(fmt.Sprintf("mem: PMA region %q wraps the address space", r.Name))
		}
		for _, prev := range regions[:i] {
			if r.Base < prev.Base+prev.Size && prev.Base < r.Base+r.Size {
				panic(fmt.Sprintf("mem: PMA regions %q and %q overlap", prev.Name, r.Name))
			}
		}
	}
	t := &PMATable{regions: make([]Region, len(regions))}
	copy(t.regions, regions)
	return t
}

// Query returns the attributes of [addr, addr+size). The span must sit
// entirely inside one region to carry that region's attributes;
// anything else returns none.
func (t *PMATable) Query(addr, size uint64) isa.PMA {
	for _, r := range t.regions {
		if r.contains(addr, size) {
			return r.Attrs
		}
	}
	return isa.PMANone
}

// Regions returns the table's regions in definition order.
func (t *PMATable) Regions() []Region {
	return t.regions
}

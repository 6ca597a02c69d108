// Package mem provides the memory subsystem the hart core runs
// against: byte-addressable physical memory, physical memory attribute
// lookup, and the software-managed translation caches. The package
// implements the hart's SoC boundary contract so a simulator can be
// assembled from a hart and a System without extra glue.
package mem

import "fmt"

// Stage identifies the translation regime a cached entry belongs to:
// plain supervisor translation, the guest's first stage, or the
// hypervisor's second stage.
type Stage uint8

const (
	StageS Stage = iota
	StageVS
	StageG

	numStages
)

func (s Stage) String() string {
	switch s {
	case StageS:
		return "S-stage"
	case StageVS:
		return "VS-stage"
	case StageG:
		return "G-stage"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}

// AccessType splits cached translations by access class, since a page
// may be walkable for reads but not for writes or execution.
type AccessType uint8

const (
	AccessRead AccessType = iota
	AccessWrite
	AccessExecute

	numAccessTypes
)

func (a AccessType) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessExecute:
		return "execute"
	default:
		return fmt.Sprintf("AccessType(%d)", uint8(a))
	}
}

// PageShift is the page granule the caches index by.
const PageShift = 12

const (
	tlbShift = 8
	// TLBEntries is the slot count of one translation cache, a power
	// of two so indexing is a shift and mask.
	TLBEntries = 1 << tlbShift
)

// Entry is one cached translation. The host offsets let the memory
// subsystem turn a hit directly into a host-pointer delta without
// repeating the walk.
type Entry struct {
	Valid  bool
	Global bool
	Stage  Stage
	ASID   uint16
	VMID   uint16
	VPN    uint64
	PPN    uint64

	HostVirtOffset uint64
	HostPhysOffset uint64
}

// Statistics holds translation cache performance counters.
type Statistics struct {
	Lookups       uint64
	Hits          uint64
	Misses        uint64
	Inserts       uint64
	Invalidations uint64
}

func (s *Statistics) add(o Statistics) {
	s.Lookups += o.Lookups
	s.Hits += o.Hits
	s.Misses += o.Misses
	s.Inserts += o.Inserts
	s.Invalidations += o.Invalidations
}

// TLB is one direct-mapped translation cache. It holds no ownership
// over page-table data: dropping it at any time costs performance,
// never correctness. A new translation simply overwrites whatever sits
// in the slot its VPN hashes to.
type TLB struct {
	entries [TLBEntries]Entry
	stats   Statistics
}

func slot(vpn uint64) int {
	h := vpn * 0x9E3779B97F4A7C15
	return int(h >> (64 - tlbShift))
}

// Lookup returns the cached translation of vpn in the given address
// space, if present. Global entries match any ASID; the VMID must
// match always.
func (t *TLB) Lookup(vpn uint64, asid, vmid uint16) (Entry, bool) {
	t.stats.Lookups++
	e := t.entries[slot(vpn)]
	if !e.Valid || e.VPN != vpn || e.VMID != vmid {
		t.stats.Misses++
		return Entry{}, false
	}
	if !e.Global && e.ASID != asid {
		t.stats.Misses++
		return Entry{}, false
	}
	t.stats.Hits++
	return e, true
}

// Insert caches a walked translation, displacing the slot's previous
// occupant.
func (t *TLB) Insert(e Entry) {
	e.Valid = true
	t.entries[slot(e.VPN)] = e
	t.stats.Inserts++
}

// InvalidateAll erases every entry.
func (t *TLB) InvalidateAll() {
	t.entries = [TLBEntries]Entry{}
	t.stats.Invalidations++
}

// InvalidateASID erases all entries tagged with the given ASID. Global
// mappings are not ASID-qualified and survive.
func (t *TLB) InvalidateASID(asid uint16) {
	t.stats.Invalidations++
	for i := range t.entries {
		e := &t.entries[i]
		if e.Valid && !e.Global && e.ASID == asid {
			e.Valid = false
		}
	}
}

// InvalidateVAddr erases the translation of one page across all
// address spaces, global mappings included.
func (t *TLB) InvalidateVAddr(vpn uint64) {
	t.stats.Invalidations++
	e := &t.entries[slot(vpn)]
	if e.Valid && e.VPN == vpn {
		e.Valid = false
	}
}

// InvalidateVAddrASID erases the exact (page, ASID) pair. Global
// mappings survive, as with any ASID-qualified invalidation.
func (t *TLB) InvalidateVAddrASID(vpn uint64, asid uint16) {
	t.stats.Invalidations++
	e := &t.entries[slot(vpn)]
	if e.Valid && !e.Global && e.VPN == vpn && e.ASID == asid {
		e.Valid = false
	}
}

// Stats returns the cache's performance counters.
func (t *TLB) Stats() Statistics {
	return t.stats
}

// ResetStats clears the performance counters.
func (t *TLB) ResetStats() {
	t.stats = Statistics{}
}

// SoftTLB bundles the nine translation caches a hart keeps, one per
// (stage, access type) pair. The structure is hart-private and
// single-threaded, so no locking is involved.
type SoftTLB struct {
	caches [numStages][numAccessTypes]TLB
}

// NewSoftTLB returns a SoftTLB with every cache empty, the state a
// hart resets into.
func NewSoftTLB() *SoftTLB {
	return &SoftTLB{}
}

// Cache returns the TLB serving one stage and access type.
func (s *SoftTLB) Cache(st Stage, at AccessType) *TLB {
	return &s.caches[st][at]
}

// InvalidateAll drops every cached translation in every regime.
func (s *SoftTLB) InvalidateAll() {
	for st := range s.caches {
		for at := range s.caches[st] {
			s.caches[st][at].InvalidateAll()
		}
	}
}

// FenceAll applies the coarsest translation fence: every entry of the
// stage goes, for every access type.
func (s *SoftTLB) FenceAll(st Stage) {
	for at := range s.caches[st] {
		s.caches[st][at].InvalidateAll()
	}
}

// FenceASID drops one address space's entries from the stage.
func (s *SoftTLB) FenceASID(st Stage, asid uint16) {
	for at := range s.caches[st] {
		s.caches[st][at].InvalidateASID(asid)
	}
}

// FenceVAddr drops one page's entries from the stage across all
// address spaces.
func (s *SoftTLB) FenceVAddr(st Stage, vaddr uint64) {
	vpn := vaddr >> PageShift
	for at := range s.caches[st] {
		s.caches[st][at].InvalidateVAddr(vpn)
	}
}

// FenceVAddrASID drops the exact (page, address space) pair from the
// stage.
func (s *SoftTLB) FenceVAddrASID(st Stage, vaddr uint64, asid uint16) {
	vpn := vaddr >> PageShift
	for at := range s.caches[st] {
		s.caches[st][at].InvalidateVAddrASID(vpn, asid)
	}
}

// Stats returns the counters of all nine caches summed together.
func (s *SoftTLB) Stats() Statistics {
	var total Statistics
	for st := range s.caches {
		for at := range s.caches[st] {
			total.add(s.caches[st][at].Stats())
		}
	}
	return total
}

// ResetStats clears the counters of every cache.
func (s *SoftTLB) ResetStats() {
	for st := range s.caches {
		for at := range s.caches[st] {
			s.caches[st][at].ResetStats()
		}
	}
}

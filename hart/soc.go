package hart

import "github.com/riscv-software-src/hartsim/isa"

// SoC is the capability contract the surrounding platform provides to
// a hart. The hart never touches memory or devices directly; it issues
// every access through this boundary, which also receives privilege
// transitions and environment-call hooks. Implementations decide what
// memory model, devices, and counters back the contract.
type SoC interface {
	// ReadPhys loads size bytes (1, 2, 4, or 8) from a physical
	// address, little-endian.
	ReadPhys(addr uint64, size int) (uint64, error)

	// WritePhys stores size bytes (1, 2, 4, or 8) to a physical
	// address, little-endian.
	WritePhys(addr uint64, size int, value uint64) error

	// CompareAndSwap atomically replaces the value at addr with
	// desired if it currently equals expected. It returns the prior
	// value and whether the swap happened. Size is 4 or 8.
	CompareAndSwap(addr uint64, size int, expected, desired uint64) (uint64, bool, error)

	// AtomicRMW atomically applies op to the value at addr and returns
	// the prior value. Size is 4 or 8.
	AtomicRMW(addr uint64, size int, op isa.AMOOp, operand uint64) (uint64, error)

	// CacheBlockZero clears the naturally aligned cache block holding
	// addr.
	CacheBlockZero(addr uint64) error

	// PrefetchInst and PrefetchData are hints; implementations may
	// ignore them.
	PrefetchInst(addr uint64)
	PrefetchData(addr uint64, forWrite bool)

	// Fence orders the predecessor access set against the successor
	// set, using the isa fence bit encoding. FenceTSO and FenceI are
	// the total-store-order and instruction-stream forms.
	Fence(pred, succ uint8)
	FenceTSO()
	FenceI()

	// The four translation-fence granularities: everything, one
	// address space, one page across address spaces, or the exact
	// pair.
	SFenceAll()
	SFenceASID(asid uint16)
	SFenceVAddr(vaddr uint64)
	SFenceVAddrASID(vaddr uint64, asid uint16)

	// SFenceWInval and SFenceInvalIR order page-table writes against
	// invalidations for platforms that split the fence.
	SFenceWInval()
	SFenceInvalIR()

	// EnvCall hooks the environment-call instruction before it becomes
	// an architectural exception. args carries a0-a7. When handled is
	// false the hart raises the ecall exception for its privilege mode.
	// When handled is true and the signal is zero, the call retires
	// with ret placed in a0; a raised signal stops the hart instead,
	// as with a guest exit.
	EnvCall(mode isa.Mode, args [8]uint64) (ret uint64, sig Signal, handled bool)

	// Breakpoint hooks the breakpoint instruction at pc, with the same
	// unhandled convention as EnvCall.
	Breakpoint(mode isa.Mode, pc uint64) Signal

	// ModeChange is notified after every privilege transition so the
	// platform can switch translation context.
	ModeChange(old, new isa.Mode)

	// PMA returns the physical memory attributes of [addr, addr+size),
	// consulted before every access to validate the access class.
	PMA(addr uint64, size int) isa.PMA

	// ReadCycle, ReadTime, and ReadHPMCounter back the unprivileged
	// counter CSRs.
	ReadCycle() uint64
	ReadTime() uint64
	ReadHPMCounter(idx int) uint64
}

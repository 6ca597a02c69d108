package hart

import (
	"errors"
	"fmt"

	"github.com/riscv-software-src/hartsim/bits"
	"github.com/riscv-software-src/hartsim/isa"
)

// ErrTracerAttached is returned when a second tracer is attached to a
// hart that already has one.
var ErrTracerAttached = errors.New("hart: a tracer is already attached")

// TrapFunc redirects an aborted instruction to the architecture's
// exception handler. It returns a zero signal when the trap was
// absorbed and execution can continue, or a raised signal that must
// surface to the run loop's caller.
type TrapFunc func(h *Hart, s Signal) Signal

// Hart is one simulated hardware thread: general-purpose registers,
// CSRs, privilege state, a retired-instruction counter, and the
// decoded-block cache. It executes strictly sequentially and owns its
// caches, so nothing here locks.
type Hart struct {
	id   uint64
	xlen uint
	soc  SoC

	regs   *RegFile
	csrs   *CSRFile
	blocks *BlockCache
	decode DecodeFunc

	pc      uint64
	mode    isa.Mode
	instret uint64

	resValid bool
	resAddr  uint64
	resSize  int
	resVal   uint64

	tracer Tracer
	trap   TrapFunc

	extensions      uint64
	vendorID        uint64
	archID          uint64
	implID          uint64
	numBlocks       int
	maxInstructions uint64
}

// HartOption configures a Hart at construction.
type HartOption func(*Hart)

// WithDecoder installs the generated instruction decoder. A hart
// cannot fetch without one.
func WithDecoder(d DecodeFunc) HartOption {
	return func(h *Hart) { h.decode = d }
}

// WithMaxInstructions bounds Run to n retired instructions. Zero means
// unbounded.
func WithMaxInstructions(n uint64) HartOption {
	return func(h *Hart) { h.maxInstructions = n }
}

// WithBlockCacheSize overrides the decoded-block cache slot count,
// which must be a power of two.
func WithBlockCacheSize(n int) HartOption {
	return func(h *Hart) { h.numBlocks = n }
}

// WithExtensions sets the ISA extension letters advertised by misa.
func WithExtensions(letters string) HartOption {
	return func(h *Hart) { h.extensions = isa.MisaExtensions(letters) }
}

// WithTrapHandler replaces machine-mode trap redirection.
func WithTrapHandler(fn TrapFunc) HartOption {
	return func(h *Hart) { h.trap = fn }
}

// WithMachineIDs sets the vendor, architecture, and implementation IDs
// reported by the identity CSRs.
func WithMachineIDs(vendor, arch, impl uint64) HartOption {
	return func(h *Hart) {
		h.vendorID, h.archID, h.implID = vendor, arch, impl
	}
}

// New builds a hart over the given SoC boundary. The hart comes up in
// machine mode at pc 0 with the standard CSR set installed; call Reset
// to position it at the platform's reset vector.
func New(id uint64, xlen uint, soc SoC, opts ...HartOption) *Hart {
	if xlen != 32 && xlen != 64 {
		panic(fmt.Sprintf("hart: unsupported XLEN %d", xlen))
	}
	if soc == nil {
		panic("hart: nil SoC boundary")
	}
	h := &Hart{
		id:         id,
		xlen:       xlen,
		soc:        soc,
		mode:       isa.ModeM,
		extensions: isa.MisaExtensions("IMASU"),
		numBlocks:  DefaultNumBlocks,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.regs = NewRegFile(xlen)
	h.blocks = NewBlockCache(h.numBlocks)
	h.csrs = NewCSRFile()
	h.csrs.Add(h.standardCSRs()...)
	if h.trap == nil {
		h.trap = (*Hart).EnterTrap
	}
	return h
}

// ID returns the hart's index, the value mhartid reports.
func (h *Hart) ID() uint64 { return h.id }

// XLEN returns the register width in bits.
func (h *Hart) XLEN() uint { return h.xlen }

// PC returns the current program counter.
func (h *Hart) PC() uint64 { return h.pc }

// SetPC repositions the program counter.
func (h *Hart) SetPC(pc uint64) { h.pc = pc }

// Instret returns the retired-instruction counter. It only ever grows.
func (h *Hart) Instret() uint64 { return h.instret }

// Regs returns the general-purpose register file.
func (h *Hart) Regs() *RegFile { return h.regs }

// CSRs returns the control/status register file.
func (h *Hart) CSRs() *CSRFile { return h.csrs }

// Blocks returns the decoded-block cache.
func (h *Hart) Blocks() *BlockCache { return h.blocks }

// SoC returns the platform boundary the hart runs against.
func (h *Hart) SoC() SoC { return h.soc }

// Mode returns the current privilege mode.
func (h *Hart) Mode() isa.Mode { return h.mode }

// SetMode is the only privilege mutator. Every transition notifies the
// SoC so it can switch translation context; setting the current mode
// again is a no-op.
func (h *Hart) SetMode(m isa.Mode) {
	if !m.Valid() {
		panic(fmt.Sprintf("hart: invalid mode %d", uint8(m)))
	}
	if m == h.mode {
		return
	}
	old := h.mode
	h.mode = m
	h.soc.ModeChange(old, m)
}

// AttachTracer installs the hart's single tracer. Attaching a second
// while one is set is an error.
func (h *Hart) AttachTracer(t Tracer) error {
	if h.tracer != nil {
		return ErrTracerAttached
	}
	h.tracer = t
	return nil
}

// FlushDecoded invalidates every decoded block. Required whenever
// decode semantics may have changed: writes to the instruction
// stream, a translation switch, or fence.i.
func (h *Hart) FlushDecoded() { h.blocks.Invalidate() }

// Reset returns the hart to power-on state in machine mode at the
// given reset vector.
func (h *Hart) Reset(resetPC uint64) {
	h.regs.Reset()
	h.csrs.Reset()
	h.blocks.Invalidate()
	h.resValid = false
	h.instret = 0
	h.SetMode(isa.ModeM)
	h.pc = resetPC
}

// Load reads size bytes from a physical address. Attribute and
// alignment failures come back as abort signals rather than errors:
// an inaccessible address is an architectural event, not a host fault.
func (h *Hart) Load(addr uint64, size int) (uint64, Signal) {
	if addr%uint64(size) != 0 {
		return 0, Abort(isa.CauseLoadAddrMisaligned, addr)
	}
	if !h.soc.PMA(addr, size).Has(isa.PMARead) {
		return 0, Abort(isa.CauseLoadAccessFault, addr)
	}
	val, err := h.soc.ReadPhys(addr, size)
	if err != nil {
		return 0, Abort(isa.CauseLoadAccessFault, addr)
	}
	if h.tracer != nil {
		h.tracer.MemRead(addr, size)
	}
	return val, OK()
}

// Store writes size bytes to a physical address, with the same
// attribute and alignment checks as Load. A store that overlaps the
// active reservation cancels it.
func (h *Hart) Store(addr uint64, size int, val uint64) Signal {
	if addr%uint64(size) != 0 {
		return Abort(isa.CauseStoreAddrMisaligned, addr)
	}
	if !h.soc.PMA(addr, size).Has(isa.PMAWrite) {
		return Abort(isa.CauseStoreAccessFault, addr)
	}
	if err := h.soc.WritePhys(addr, size, val); err != nil {
		return Abort(isa.CauseStoreAccessFault, addr)
	}
	if h.resValid && overlaps(addr, size, h.resAddr, h.resSize) {
		h.resValid = false
	}
	if h.tracer != nil {
		h.tracer.MemWrite(addr, size, val)
	}
	return OK()
}

// Amo performs an atomic read-modify-write and returns the prior
// memory value. The region must support atomics.
func (h *Hart) Amo(addr uint64, size int, op isa.AMOOp, operand uint64) (uint64, Signal) {
	if addr%uint64(size) != 0 {
		return 0, Abort(isa.CauseStoreAddrMisaligned, addr)
	}
	if !h.soc.PMA(addr, size).Has(isa.PMARead | isa.PMAWrite | isa.PMAAtomic) {
		return 0, Abort(isa.CauseStoreAccessFault, addr)
	}
	old, err := h.soc.AtomicRMW(addr, size, op, operand)
	if err != nil {
		return 0, Abort(isa.CauseStoreAccessFault, addr)
	}
	if h.resValid && overlaps(addr, size, h.resAddr, h.resSize) {
		h.resValid = false
	}
	if h.tracer != nil {
		h.tracer.MemRead(addr, size)
		h.tracer.MemWrite(addr, size, isa.ApplyAMO(op, size, old, operand))
	}
	return old, OK()
}

// LoadReserved performs the load half of a reservation pair and
// remembers the reservation. The region must be reservable.
func (h *Hart) LoadReserved(addr uint64, size int) (uint64, Signal) {
	if addr%uint64(size) != 0 {
		return 0, Abort(isa.CauseLoadAddrMisaligned, addr)
	}
	if !h.soc.PMA(addr, size).Has(isa.PMARead | isa.PMAReservable) {
		return 0, Abort(isa.CauseLoadAccessFault, addr)
	}
	val, err := h.soc.ReadPhys(addr, size)
	if err != nil {
		return 0, Abort(isa.CauseLoadAccessFault, addr)
	}
	h.resValid, h.resAddr, h.resSize, h.resVal = true, addr, size, val
	if h.tracer != nil {
		h.tracer.MemRead(addr, size)
	}
	return val, OK()
}

// StoreConditional completes the reservation pair. It stores only when
// the reservation is intact and memory still holds the reserved value,
// and reports whether the store happened. The reservation is consumed
// either way.
func (h *Hart) StoreConditional(addr uint64, size int, val uint64) (bool, Signal) {
	if addr%uint64(size) != 0 {
		return false, Abort(isa.CauseStoreAddrMisaligned, addr)
	}
	if !h.soc.PMA(addr, size).Has(isa.PMAWrite | isa.PMAReservable) {
		return false, Abort(isa.CauseStoreAccessFault, addr)
	}
	reserved := h.resValid && h.resAddr == addr && h.resSize == size
	expected := h.resVal
	h.resValid = false
	if !reserved {
		return false, OK()
	}
	_, swapped, err := h.soc.CompareAndSwap(addr, size, expected, val)
	if err != nil {
		return false, Abort(isa.CauseStoreAccessFault, addr)
	}
	if swapped && h.tracer != nil {
		h.tracer.MemWrite(addr, size, val)
	}
	return swapped, OK()
}

// FetchWord reads one 32-bit instruction word for decode. Fetch
// requires execute permission; alignment is the halfword grid, since
// compressed encodings may follow.
func (h *Hart) FetchWord(pc uint64) (uint32, Signal) {
	if pc%2 != 0 {
		return 0, Abort(isa.CauseInstAddrMisaligned, pc)
	}
	if !h.soc.PMA(pc, 4).Has(isa.PMAExec) {
		return 0, Abort(isa.CauseInstAccessFault, pc)
	}
	val, err := h.soc.ReadPhys(pc, 4)
	if err != nil {
		return 0, Abort(isa.CauseInstAccessFault, pc)
	}
	return uint32(val), OK()
}

// EnvCall routes the environment-call instruction through the SoC
// hook, falling back to the architectural exception when the platform
// leaves it unhandled. A handled call that continues places its result
// in a0 before returning a zero signal.
func (h *Hart) EnvCall() Signal {
	ret, sig, handled := h.soc.EnvCall(h.mode, h.regs.Args())
	if !handled {
		return Abort(isa.EcallCause(h.mode), 0)
	}
	if sig.Raised() {
		return sig
	}
	h.regs.Write(10, ret)
	return OK()
}

// Breakpoint routes the breakpoint instruction through the SoC hook,
// with the same fallback convention as EnvCall.
func (h *Hart) Breakpoint() Signal {
	if sig := h.soc.Breakpoint(h.mode, h.pc); sig.Raised() {
		return sig
	}
	return Abort(isa.CauseBreakpoint, h.pc)
}

// EnterTrap redirects an aborted instruction into the machine-mode
// trap handler: the faulting pc lands in mepc, cause and trap value in
// mcause and mtval, the interrupt enable stacks into MPIE, the prior
// privilege into MPP, and execution vectors to the mtvec base. The
// trap is absorbed unless the machine trap CSRs are missing, in which
// case the original signal surfaces.
func (h *Hart) EnterTrap(s Signal) Signal {
	mstatus, ok1 := h.csrs.Lookup(isa.CSRMstatus)
	mtvec, ok2 := h.csrs.Lookup(isa.CSRMtvec)
	mepc, ok3 := h.csrs.Lookup(isa.CSRMepc)
	mcause, ok4 := h.csrs.Lookup(isa.CSRMcause)
	mtval, ok5 := h.csrs.Lookup(isa.CSRMtval)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return s
	}

	xlen := h.xlen
	mepc.HWWrite(bits.New(xlen, h.pc), xlen)
	mcause.HWWrite(bits.New(xlen, uint64(s.Cause)), xlen)
	mtval.HWWrite(bits.New(xlen, s.Tval), xlen)

	ie := mstatus.Field("MIE").HWRead(xlen).Value()
	mstatus.Field("MPIE").HWWrite(ie, xlen)
	mstatus.Field("MIE").HWWrite(bits.Zero(1), xlen)
	mstatus.Field("MPP").HWWrite(bits.New(2, uint64(h.mode.Priv())), xlen)

	h.resValid = false
	h.SetMode(isa.ModeM)
	h.pc = mtvec.Field("BASE").HWRead(xlen).Value().Uint64() << 2
	return OK()
}

func overlaps(aAddr uint64, aSize int, bAddr uint64, bSize int) bool {
	return aAddr < bAddr+uint64(bSize) && bAddr < aAddr+uint64(aSize)
}

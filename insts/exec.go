package insts

import (
	"github.com/riscv-software-src/hartsim/bits"
	"github.com/riscv-software-src/hartsim/hart"
	"github.com/riscv-software-src/hartsim/isa"
)

// Size returns the encoding size in bytes. Compressed encodings are
// not implemented, so every instruction is one word.
func (i *Instruction) Size() uint64 { return 4 }

// ChangesControlFlow marks the block terminators: everything whose
// successor is not the next sequential address, plus fence.i, which
// invalidates the decoded blocks it may itself sit inside.
func (i *Instruction) ChangesControlFlow() bool {
	switch i.Op {
	case OpJAL, OpJALR,
		OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU,
		OpMRET, OpSRET, OpWFI, OpFENCEI:
		return true
	default:
		return false
	}
}

// Execute applies the instruction to the hart.
func (i *Instruction) Execute(h *hart.Hart) hart.Signal {
	switch i.Op {
	case OpUnknown:
		return hart.Abort(isa.CauseIllegalInst, uint64(i.Raw))

	case OpLUI:
		h.Regs().Write(i.Rd, uint64(i.Imm))
	case OpAUIPC:
		h.Regs().Write(i.Rd, maskXLEN(h, h.PC()+uint64(i.Imm)))

	case OpJAL:
		return i.execJAL(h)
	case OpJALR:
		return i.execJALR(h)
	case OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU:
		return i.execBranch(h)

	case OpLB, OpLH, OpLW, OpLD, OpLBU, OpLHU, OpLWU:
		return i.execLoad(h)
	case OpSB, OpSH, OpSW, OpSD:
		return i.execStore(h)

	case OpADDI, OpSLTI, OpSLTIU, OpXORI, OpORI, OpANDI, OpSLLI, OpSRLI, OpSRAI,
		OpADD, OpSUB, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpSRA, OpOR, OpAND:
		i.execALU(h)
	case OpADDIW, OpSLLIW, OpSRLIW, OpSRAIW,
		OpADDW, OpSUBW, OpSLLW, OpSRLW, OpSRAW:
		i.execALU32(h)
	case OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU:
		i.execMulDiv(h)
	case OpMULW, OpDIVW, OpDIVUW, OpREMW, OpREMUW:
		i.execMulDiv32(h)

	case OpFENCE:
		h.SoC().Fence(i.Pred, i.Succ)
	case OpFENCETSO:
		h.SoC().FenceTSO()
	case OpFENCEI:
		h.SoC().FenceI()
		h.FlushDecoded()
		h.SetPC(maskXLEN(h, h.PC()+4))

	case OpECALL:
		return h.EnvCall()
	case OpEBREAK:
		return h.Breakpoint()
	case OpMRET:
		return i.execMRET(h)
	case OpSRET:
		return i.execSRET(h)
	case OpWFI:
		return i.execWFI(h)
	case OpSFENCEVMA:
		return i.execSFenceVMA(h)

	case OpCSRRW, OpCSRRS, OpCSRRC, OpCSRRWI, OpCSRRSI, OpCSRRCI:
		return i.execCSR(h)

	case OpLR:
		return i.execLR(h)
	case OpSC:
		return i.execSC(h)
	case OpAMO:
		return i.execAMO(h)
	}
	return hart.OK()
}

func (i *Instruction) execJAL(h *hart.Hart) hart.Signal {
	link := maskXLEN(h, h.PC()+4)
	target := maskXLEN(h, h.PC()+uint64(i.Imm))
	if target%4 != 0 {
		return hart.Abort(isa.CauseInstAddrMisaligned, target)
	}
	h.SetPC(target)
	h.Regs().Write(i.Rd, link)
	return hart.OK()
}

func (i *Instruction) execJALR(h *hart.Hart) hart.Signal {
	link := maskXLEN(h, h.PC()+4)
	target := maskXLEN(h, h.Regs().Read(i.Rs1)+uint64(i.Imm)) &^ 1
	if target%4 != 0 {
		return hart.Abort(isa.CauseInstAddrMisaligned, target)
	}
	h.SetPC(target)
	h.Regs().Write(i.Rd, link)
	return hart.OK()
}

func (i *Instruction) execBranch(h *hart.Hart) hart.Signal {
	a := h.Regs().Read(i.Rs1)
	b := h.Regs().Read(i.Rs2)
	var taken bool
	switch i.Op {
	case OpBEQ:
		taken = a == b
	case OpBNE:
		taken = a != b
	case OpBLT:
		taken = signedLess(h, a, b)
	case OpBGE:
		taken = !signedLess(h, a, b)
	case OpBLTU:
		taken = a < b
	case OpBGEU:
		taken = a >= b
	}
	if !taken {
		h.SetPC(maskXLEN(h, h.PC()+4))
		return hart.OK()
	}
	target := maskXLEN(h, h.PC()+uint64(i.Imm))
	if target%4 != 0 {
		return hart.Abort(isa.CauseInstAddrMisaligned, target)
	}
	h.SetPC(target)
	return hart.OK()
}

func (i *Instruction) execLoad(h *hart.Hart) hart.Signal {
	addr := maskXLEN(h, h.Regs().Read(i.Rs1)+uint64(i.Imm))
	val, sig := h.Load(addr, i.MemSize)
	if sig.Raised() {
		return sig
	}
	switch i.Op {
	case OpLB:
		val = uint64(int64(int8(val)))
	case OpLH:
		val = uint64(int64(int16(val)))
	case OpLW:
		val = uint64(int64(int32(val)))
	}
	h.Regs().Write(i.Rd, val)
	return hart.OK()
}

func (i *Instruction) execStore(h *hart.Hart) hart.Signal {
	addr := maskXLEN(h, h.Regs().Read(i.Rs1)+uint64(i.Imm))
	return h.Store(addr, i.MemSize, h.Regs().Read(i.Rs2))
}

func (i *Instruction) execALU(h *hart.Hart) {
	a := h.Regs().Read(i.Rs1)
	var b uint64
	switch i.Op {
	case OpADDI, OpSLTI, OpSLTIU, OpXORI, OpORI, OpANDI, OpSLLI, OpSRLI, OpSRAI:
		b = uint64(i.Imm)
	default:
		b = h.Regs().Read(i.Rs2)
	}
	sh := uint(b) & (uint(h.XLEN()) - 1)

	var res uint64
	switch i.Op {
	case OpADDI, OpADD:
		res = a + b
	case OpSUB:
		res = a - b
	case OpSLTI, OpSLT:
		res = boolTo64(signedLess(h, a, b))
	case OpSLTIU, OpSLTU:
		res = boolTo64(maskXLEN(h, a) < maskXLEN(h, b))
	case OpXORI, OpXOR:
		res = a ^ b
	case OpORI, OpOR:
		res = a | b
	case OpANDI, OpAND:
		res = a & b
	case OpSLLI, OpSLL:
		res = a << sh
	case OpSRLI, OpSRL:
		res = maskXLEN(h, a) >> sh
	case OpSRAI, OpSRA:
		if h.XLEN() == 32 {
			res = uint64(uint32(int32(uint32(a)) >> sh))
		} else {
			res = uint64(int64(a) >> sh)
		}
	}
	h.Regs().Write(i.Rd, res)
}

// execALU32 handles the RV64 word-width forms: compute at 32 bits,
// sign-extend the result into the full register.
func (i *Instruction) execALU32(h *hart.Hart) {
	a := uint32(h.Regs().Read(i.Rs1))
	var b uint32
	switch i.Op {
	case OpADDIW, OpSLLIW, OpSRLIW, OpSRAIW:
		b = uint32(i.Imm)
	default:
		b = uint32(h.Regs().Read(i.Rs2))
	}
	sh := b & 31

	var res uint32
	switch i.Op {
	case OpADDIW, OpADDW:
		res = a + b
	case OpSUBW:
		res = a - b
	case OpSLLIW, OpSLLW:
		res = a << sh
	case OpSRLIW, OpSRLW:
		res = a >> sh
	case OpSRAIW, OpSRAW:
		res = uint32(int32(a) >> sh)
	}
	h.Regs().Write(i.Rd, uint64(int64(int32(res))))
}

// execMulDiv handles the M extension at full width. The high-half
// multiplies widen through the value model; division adopts its
// conventions for zero divisors and overflow.
func (i *Instruction) execMulDiv(h *hart.Hart) {
	xlen := h.XLEN()
	a := h.Regs().Read(i.Rs1)
	b := h.Regs().Read(i.Rs2)

	var res uint64
	switch i.Op {
	case OpMUL:
		res = a * b
	case OpMULH:
		res = mulHigh(xlen, a, b, true, true)
	case OpMULHSU:
		res = mulHigh(xlen, a, b, true, false)
	case OpMULHU:
		res = mulHigh(xlen, a, b, false, false)
	case OpDIV:
		res = bits.New(xlen, a).AsSigned().Div(bits.New(xlen, b).AsSigned()).Uint64()
	case OpDIVU:
		res = bits.New(xlen, a).Div(bits.New(xlen, b)).Uint64()
	case OpREM:
		res = bits.New(xlen, a).AsSigned().Rem(bits.New(xlen, b).AsSigned()).Uint64()
	case OpREMU:
		res = bits.New(xlen, a).Rem(bits.New(xlen, b)).Uint64()
	}
	h.Regs().Write(i.Rd, res)
}

// execMulDiv32 handles the RV64 word-width M forms at width 32, then
// sign-extends into the full register.
func (i *Instruction) execMulDiv32(h *hart.Hart) {
	a := uint64(uint32(h.Regs().Read(i.Rs1)))
	b := uint64(uint32(h.Regs().Read(i.Rs2)))

	var res uint64
	switch i.Op {
	case OpMULW:
		res = a * b
	case OpDIVW:
		res = bits.New(32, a).AsSigned().Div(bits.New(32, b).AsSigned()).Uint64()
	case OpDIVUW:
		res = bits.New(32, a).Div(bits.New(32, b)).Uint64()
	case OpREMW:
		res = bits.New(32, a).AsSigned().Rem(bits.New(32, b).AsSigned()).Uint64()
	case OpREMUW:
		res = bits.New(32, a).Rem(bits.New(32, b)).Uint64()
	}
	h.Regs().Write(i.Rd, uint64(int64(int32(uint32(res)))))
}

// mulHigh returns the upper half of the full product, with each
// operand sign- or zero-extended to double width as its form demands.
func mulHigh(xlen uint, a, b uint64, aSigned, bSigned bool) uint64 {
	wide := 2 * xlen
	aw := bits.New(xlen, a).ZeroExtend(wide)
	if aSigned {
		aw = bits.New(xlen, a).SignExtend(xlen, wide)
	}
	bw := bits.New(xlen, b).ZeroExtend(wide)
	if bSigned {
		bw = bits.New(xlen, b).SignExtend(xlen, wide)
	}
	return aw.Mul(bw).Extract(xlen, xlen).Uint64()
}

func (i *Instruction) execMRET(h *hart.Hart) hart.Signal {
	if h.Mode() != isa.ModeM {
		return hart.Abort(isa.CauseIllegalInst, uint64(i.Raw))
	}
	xlen := h.XLEN()
	mstatus, ok := h.CSRs().Lookup(isa.CSRMstatus)
	if !ok {
		return hart.Abort(isa.CauseIllegalInst, uint64(i.Raw))
	}
	mepc, ok := h.CSRs().Lookup(isa.CSRMepc)
	if !ok {
		return hart.Abort(isa.CauseIllegalInst, uint64(i.Raw))
	}
	target := mepc.HWRead(xlen)
	if target.IsUnknown() {
		return hart.Unpredictable("mret with mepc never written")
	}

	mpp := isa.Mode(mstatus.Field("MPP").HWRead(xlen).Value().Uint64())
	mpie := mstatus.Field("MPIE").HWRead(xlen).Value()
	mstatus.Field("MIE").HWWrite(mpie, xlen)
	mstatus.Field("MPIE").HWWrite(bits.New(1, 1), xlen)
	mstatus.Field("MPP").HWWrite(bits.Zero(2), xlen)
	if mpp != isa.ModeM {
		mstatus.Field("MPRV").HWWrite(bits.Zero(1), xlen)
	}
	h.SetMode(mpp)
	h.SetPC(target.Value().Uint64())
	return hart.OK()
}

func (i *Instruction) execSRET(h *hart.Hart) hart.Signal {
	if !h.Mode().CanAccess(isa.ModeS) {
		return hart.Abort(isa.CauseIllegalInst, uint64(i.Raw))
	}
	xlen := h.XLEN()
	mstatus, ok := h.CSRs().Lookup(isa.CSRMstatus)
	if !ok {
		return hart.Abort(isa.CauseIllegalInst, uint64(i.Raw))
	}
	if h.Mode() == isa.ModeS &&
		mstatus.Field("TSR").HWRead(xlen).Value().Uint64() == 1 {
		return hart.Abort(isa.CauseIllegalInst, uint64(i.Raw))
	}
	sstatus, ok1 := h.CSRs().Lookup(isa.CSRSstatus)
	sepc, ok2 := h.CSRs().Lookup(isa.CSRSepc)
	if !ok1 || !ok2 {
		return hart.Abort(isa.CauseIllegalInst, uint64(i.Raw))
	}
	target := sepc.HWRead(xlen)
	if target.IsUnknown() {
		return hart.Unpredictable("sret with sepc never written")
	}

	spp := sstatus.Field("SPP").HWRead(xlen).Value().Uint64()
	spie := sstatus.Field("SPIE").HWRead(xlen).Value()
	sstatus.Field("SIE").HWWrite(spie, xlen)
	sstatus.Field("SPIE").HWWrite(bits.New(1, 1), xlen)
	sstatus.Field("SPP").HWWrite(bits.Zero(1), xlen)
	// the destination is never machine mode, so the modified-privilege
	// override always drops
	mstatus.Field("MPRV").HWWrite(bits.Zero(1), xlen)

	next := isa.ModeU
	if spp == 1 {
		next = isa.ModeS
	}
	h.SetMode(next)
	h.SetPC(target.Value().Uint64())
	return hart.OK()
}

func (i *Instruction) execWFI(h *hart.Hart) hart.Signal {
	if h.Mode() != isa.ModeM {
		if mstatus, ok := h.CSRs().Lookup(isa.CSRMstatus); ok {
			tw := mstatus.Field("TW").HWRead(h.XLEN()).Value().Uint64()
			if tw == 1 {
				return hart.Abort(isa.CauseIllegalInst, uint64(i.Raw))
			}
		}
	}
	h.SetPC(maskXLEN(h, h.PC()+4))
	return hart.Wait()
}

func (i *Instruction) execSFenceVMA(h *hart.Hart) hart.Signal {
	if !h.Mode().CanAccess(isa.ModeS) {
		return hart.Abort(isa.CauseIllegalInst, uint64(i.Raw))
	}
	if h.Mode() == isa.ModeS {
		if mstatus, ok := h.CSRs().Lookup(isa.CSRMstatus); ok {
			tvm := mstatus.Field("TVM").HWRead(h.XLEN()).Value().Uint64()
			if tvm == 1 {
				return hart.Abort(isa.CauseIllegalInst, uint64(i.Raw))
			}
		}
	}
	soc := h.SoC()
	switch {
	case i.Rs1 == 0 && i.Rs2 == 0:
		soc.SFenceAll()
	case i.Rs1 == 0:
		soc.SFenceASID(uint16(h.Regs().Read(i.Rs2)))
	case i.Rs2 == 0:
		soc.SFenceVAddr(h.Regs().Read(i.Rs1))
	default:
		soc.SFenceVAddrASID(h.Regs().Read(i.Rs1), uint16(h.Regs().Read(i.Rs2)))
	}
	return hart.OK()
}

func (i *Instruction) execCSR(h *hart.Hart) hart.Signal {
	xlen := h.XLEN()
	csrs := h.CSRs()
	mode := h.Mode()

	var src uint64
	var writes bool
	switch i.Op {
	case OpCSRRW:
		src = h.Regs().Read(i.Rs1)
		writes = true
	case OpCSRRWI:
		src = uint64(i.Imm)
		writes = true
	case OpCSRRS, OpCSRRC:
		src = h.Regs().Read(i.Rs1)
		writes = i.Rs1 != 0
	case OpCSRRSI, OpCSRRCI:
		src = uint64(i.Imm)
		writes = i.Imm != 0
	}
	reads := !(i.Op == OpCSRRW || i.Op == OpCSRRWI) || i.Rd != 0

	if reads && !csrs.CanRead(i.Csr, mode) {
		return hart.Abort(isa.CauseIllegalInst, uint64(i.Raw))
	}
	if writes && !csrs.CanWrite(i.Csr, mode) {
		return hart.Abort(isa.CauseIllegalInst, uint64(i.Raw))
	}

	var old uint64
	if reads {
		pv, _ := csrs.Read(i.Csr, mode, xlen)
		// Undefined reset state reads as zero, the one place the
		// simulator substitutes a concrete value.
		old = pv.ValueOr(bits.Zero(pv.Width())).Uint64()
	}
	if writes {
		var next uint64
		switch i.Op {
		case OpCSRRW, OpCSRRWI:
			next = src
		case OpCSRRS, OpCSRRSI:
			next = old | src
		case OpCSRRC, OpCSRRCI:
			next = old &^ src
		}
		csrs.Write(i.Csr, mode, xlen, bits.New(xlen, next))
		if i.Csr == isa.CSRSatp {
			// a translation switch may change what fetch sees
			h.FlushDecoded()
		}
	}
	if reads && i.Rd != 0 {
		h.Regs().Write(i.Rd, old)
	}
	return hart.OK()
}

func (i *Instruction) execLR(h *hart.Hart) hart.Signal {
	addr := maskXLEN(h, h.Regs().Read(i.Rs1))
	val, sig := h.LoadReserved(addr, i.MemSize)
	if sig.Raised() {
		return sig
	}
	if i.MemSize == 4 {
		val = uint64(int64(int32(val)))
	}
	h.Regs().Write(i.Rd, val)
	return hart.OK()
}

func (i *Instruction) execSC(h *hart.Hart) hart.Signal {
	addr := maskXLEN(h, h.Regs().Read(i.Rs1))
	swapped, sig := h.StoreConditional(addr, i.MemSize, h.Regs().Read(i.Rs2))
	if sig.Raised() {
		return sig
	}
	if swapped {
		h.Regs().Write(i.Rd, 0)
	} else {
		h.Regs().Write(i.Rd, 1)
	}
	return hart.OK()
}

func (i *Instruction) execAMO(h *hart.Hart) hart.Signal {
	addr := maskXLEN(h, h.Regs().Read(i.Rs1))
	old, sig := h.Amo(addr, i.MemSize, i.AmoOp, h.Regs().Read(i.Rs2))
	if sig.Raised() {
		return sig
	}
	if i.MemSize == 4 {
		old = uint64(int64(int32(old)))
	}
	h.Regs().Write(i.Rd, old)
	return hart.OK()
}

// maskXLEN narrows addresses and pc values to the register width.
func maskXLEN(h *hart.Hart, v uint64) uint64 {
	if h.XLEN() == 32 {
		return v & 0xFFFF_FFFF
	}
	return v
}

// signedLess compares at the register width with the sign in the top
// bit of that width, not bit 63.
func signedLess(h *hart.Hart, a, b uint64) bool {
	if h.XLEN() == 32 {
		return int32(uint32(a)) < int32(uint32(b))
	}
	return int64(a) < int64(b)
}

func boolTo64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

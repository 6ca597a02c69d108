package insts

import (
	"fmt"

	"github.com/riscv-software-src/hartsim/hart"
	"github.com/riscv-software-src/hartsim/isa"
)

// Op identifies one RISC-V operation after decode.
type Op uint16

// RV32I/RV64I base operations plus the M, A, Zicsr, and Zifencei
// extensions. Word and doubleword atomics share an Op; MemSize carries
// the width.
const (
	OpUnknown Op = iota

	OpLUI
	OpAUIPC

	OpJAL
	OpJALR

	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU

	OpSB
	OpSH
	OpSW
	OpSD

	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW

	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW

	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU

	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	OpFENCE
	OpFENCETSO
	OpFENCEI

	OpECALL
	OpEBREAK
	OpMRET
	OpSRET
	OpWFI
	OpSFENCEVMA

	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	OpLR
	OpSC
	OpAMO
)

// Format represents an instruction encoding format.
type Format uint8

// The six base encoding formats. System and atomic encodings reuse the
// I and R shapes.
const (
	FormatUnknown Format = iota
	FormatR
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
)

// Major opcodes, bits [6:0] of the instruction word.
const (
	opcodeLoad    = 0b0000011
	opcodeMiscMem = 0b0001111
	opcodeOpImm   = 0b0010011
	opcodeAUIPC   = 0b0010111
	opcodeOpImm32 = 0b0011011
	opcodeStore   = 0b0100011
	opcodeAmo     = 0b0101111
	opcodeOp      = 0b0110011
	opcodeLUI     = 0b0110111
	opcodeOp32    = 0b0111011
	opcodeBranch  = 0b1100011
	opcodeJALR    = 0b1100111
	opcodeJAL     = 0b1101111
	opcodeSystem  = 0b1110011
)

// Instruction represents one decoded RISC-V instruction.
type Instruction struct {
	Op     Op     // Operation
	Format Format // Encoding format

	Raw uint32 // Original encoding, the trap value on illegal-instruction aborts

	Rd  uint8 // Destination register
	Rs1 uint8 // First source register
	Rs2 uint8 // Second source register

	Imm int64 // Sign-extended immediate; shift amounts and CSR uimm are zero-extended

	Csr uint16 // CSR address for the Zicsr operations

	MemSize int // Access width in bytes for loads, stores, and atomics

	AmoOp isa.AMOOp // Combining function for OpAMO
	Aq    bool      // Acquire ordering bit
	Rl    bool      // Release ordering bit

	Pred uint8 // Fence predecessor access set
	Succ uint8 // Fence successor access set
}

func (i *Instruction) String() string {
	return fmt.Sprintf("%v raw=%#08x rd=%d rs1=%d rs2=%d imm=%d",
		i.Op, i.Raw, i.Rd, i.Rs1, i.Rs2, i.Imm)
}

// Decoder decodes RISC-V machine code into instructions. Decoding is
// width-aware: encodings that exist only at XLEN 64 decode to
// OpUnknown on a 32-bit decoder and raise illegal-instruction when
// executed.
type Decoder struct {
	xlen uint
}

// NewDecoder creates a decoder for the given register width.
func NewDecoder(xlen uint) *Decoder {
	if xlen != 32 && xlen != 64 {
		panic(fmt.Sprintf("insts: unsupported XLEN %d", xlen))
	}
	return &Decoder{xlen: xlen}
}

// AsDecodeFunc adapts the decoder to the hart's fetch hook. The hook
// never fails; undecodable words become instructions that abort with
// illegal-instruction at execute time.
func (d *Decoder) AsDecodeFunc() hart.DecodeFunc {
	return func(raw uint32, pc uint64) hart.Instruction {
		return d.Decode(raw)
	}
}

// Decode decodes a 32-bit RISC-V instruction word.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{Op: OpUnknown, Format: FormatUnknown, Raw: word}

	switch word & 0x7F { // bits [6:0]
	case opcodeLUI:
		inst.Format = FormatU
		inst.Op = OpLUI
		inst.Rd = rdField(word)
		inst.Imm = immU(word)
	case opcodeAUIPC:
		inst.Format = FormatU
		inst.Op = OpAUIPC
		inst.Rd = rdField(word)
		inst.Imm = immU(word)
	case opcodeJAL:
		inst.Format = FormatJ
		inst.Op = OpJAL
		inst.Rd = rdField(word)
		inst.Imm = immJ(word)
	case opcodeJALR:
		if funct3(word) == 0 {
			inst.Format = FormatI
			inst.Op = OpJALR
			inst.Rd = rdField(word)
			inst.Rs1 = rs1Field(word)
			inst.Imm = immI(word)
		}
	case opcodeBranch:
		d.decodeBranch(word, inst)
	case opcodeLoad:
		d.decodeLoad(word, inst)
	case opcodeStore:
		d.decodeStore(word, inst)
	case opcodeOpImm:
		d.decodeOpImm(word, inst)
	case opcodeOp:
		d.decodeOp(word, inst)
	case opcodeOpImm32:
		d.decodeOpImm32(word, inst)
	case opcodeOp32:
		d.decodeOp32(word, inst)
	case opcodeMiscMem:
		d.decodeMiscMem(word, inst)
	case opcodeSystem:
		d.decodeSystem(word, inst)
	case opcodeAmo:
		d.decodeAmo(word, inst)
	}

	return inst
}

// decodeBranch decodes the conditional branch group.
// Format: imm[12|10:5] | rs2 | rs1 | funct3 | imm[4:1|11] | 1100011
func (d *Decoder) decodeBranch(word uint32, inst *Instruction) {
	var op Op
	switch funct3(word) {
	case 0b000:
		op = OpBEQ
	case 0b001:
		op = OpBNE
	case 0b100:
		op = OpBLT
	case 0b101:
		op = OpBGE
	case 0b110:
		op = OpBLTU
	case 0b111:
		op = OpBGEU
	default:
		return
	}
	inst.Format = FormatB
	inst.Op = op
	inst.Rs1 = rs1Field(word)
	inst.Rs2 = rs2Field(word)
	inst.Imm = immB(word)
}

// decodeLoad decodes the load group.
// Format: imm[11:0] | rs1 | funct3 | rd | 0000011
func (d *Decoder) decodeLoad(word uint32, inst *Instruction) {
	var op Op
	var size int
	switch funct3(word) {
	case 0b000:
		op, size = OpLB, 1
	case 0b001:
		op, size = OpLH, 2
	case 0b010:
		op, size = OpLW, 4
	case 0b011:
		if d.xlen < 64 {
			return
		}
		op, size = OpLD, 8
	case 0b100:
		op, size = OpLBU, 1
	case 0b101:
		op, size = OpLHU, 2
	case 0b110:
		if d.xlen < 64 {
			return
		}
		op, size = OpLWU, 4
	default:
		return
	}
	inst.Format = FormatI
	inst.Op = op
	inst.Rd = rdField(word)
	inst.Rs1 = rs1Field(word)
	inst.Imm = immI(word)
	inst.MemSize = size
}

// decodeStore decodes the store group.
// Format: imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | 0100011
func (d *Decoder) decodeStore(word uint32, inst *Instruction) {
	var op Op
	var size int
	switch funct3(word) {
	case 0b000:
		op, size = OpSB, 1
	case 0b001:
		op, size = OpSH, 2
	case 0b010:
		op, size = OpSW, 4
	case 0b011:
		if d.xlen < 64 {
			return
		}
		op, size = OpSD, 8
	default:
		return
	}
	inst.Format = FormatS
	inst.Op = op
	inst.Rs1 = rs1Field(word)
	inst.Rs2 = rs2Field(word)
	inst.Imm = immS(word)
	inst.MemSize = size
}

// decodeOpImm decodes the register-immediate ALU group.
// Format: imm[11:0] | rs1 | funct3 | rd | 0010011
func (d *Decoder) decodeOpImm(word uint32, inst *Instruction) {
	inst.Format = FormatI
	inst.Rd = rdField(word)
	inst.Rs1 = rs1Field(word)
	inst.Imm = immI(word)

	switch funct3(word) {
	case 0b000:
		inst.Op = OpADDI
	case 0b010:
		inst.Op = OpSLTI
	case 0b011:
		inst.Op = OpSLTIU
	case 0b100:
		inst.Op = OpXORI
	case 0b110:
		inst.Op = OpORI
	case 0b111:
		inst.Op = OpANDI
	case 0b001:
		d.decodeShift(word, inst, OpSLLI, OpUnknown)
	case 0b101:
		d.decodeShift(word, inst, OpSRLI, OpSRAI)
	}
}

// decodeShift validates a shift-immediate encoding and picks the
// logical or arithmetic form. The shift amount field is one bit wider
// at XLEN 64, so the legal funct bits depend on the decoder width.
func (d *Decoder) decodeShift(word uint32, inst *Instruction, logical, arith Op) {
	var op Op
	var shamt uint32
	if d.xlen == 64 {
		shamt = (word >> 20) & 0x3F // bits [25:20]
		switch word >> 26 {         // bits [31:26]
		case 0b000000:
			op = logical
		case 0b010000:
			op = arith
		}
	} else {
		shamt = (word >> 20) & 0x1F // bits [24:20]
		switch word >> 25 {         // bits [31:25]
		case 0b0000000:
			op = logical
		case 0b0100000:
			op = arith
		}
	}
	if op == OpUnknown {
		inst.Format = FormatUnknown
		inst.Op = OpUnknown
		return
	}
	inst.Op = op
	inst.Imm = int64(shamt)
}

// decodeOp decodes the register-register ALU group, including the M
// extension.
// Format: funct7 | rs2 | rs1 | funct3 | rd | 0110011
func (d *Decoder) decodeOp(word uint32, inst *Instruction) {
	var op Op
	switch funct7(word)<<3 | funct3(word) {
	case 0b0000000<<3 | 0b000:
		op = OpADD
	case 0b0100000<<3 | 0b000:
		op = OpSUB
	case 0b0000000<<3 | 0b001:
		op = OpSLL
	case 0b0000000<<3 | 0b010:
		op = OpSLT
	case 0b0000000<<3 | 0b011:
		op = OpSLTU
	case 0b0000000<<3 | 0b100:
		op = OpXOR
	case 0b0000000<<3 | 0b101:
		op = OpSRL
	case 0b0100000<<3 | 0b101:
		op = OpSRA
	case 0b0000000<<3 | 0b110:
		op = OpOR
	case 0b0000000<<3 | 0b111:
		op = OpAND
	case 0b0000001<<3 | 0b000:
		op = OpMUL
	case 0b0000001<<3 | 0b001:
		op = OpMULH
	case 0b0000001<<3 | 0b010:
		op = OpMULHSU
	case 0b0000001<<3 | 0b011:
		op = OpMULHU
	case 0b0000001<<3 | 0b100:
		op = OpDIV
	case 0b0000001<<3 | 0b101:
		op = OpDIVU
	case 0b0000001<<3 | 0b110:
		op = OpREM
	case 0b0000001<<3 | 0b111:
		op = OpREMU
	default:
		return
	}
	inst.Format = FormatR
	inst.Op = op
	inst.Rd = rdField(word)
	inst.Rs1 = rs1Field(word)
	inst.Rs2 = rs2Field(word)
}

// decodeOpImm32 decodes the RV64-only word-width immediate ALU group.
// Format: imm[11:0] | rs1 | funct3 | rd | 0011011
func (d *Decoder) decodeOpImm32(word uint32, inst *Instruction) {
	if d.xlen < 64 {
		return
	}
	switch funct3(word) {
	case 0b000:
		inst.Format = FormatI
		inst.Op = OpADDIW
		inst.Imm = immI(word)
	case 0b001:
		if word>>25 != 0b0000000 {
			return
		}
		inst.Format = FormatI
		inst.Op = OpSLLIW
		inst.Imm = int64((word >> 20) & 0x1F)
	case 0b101:
		switch word >> 25 { // bits [31:25]
		case 0b0000000:
			inst.Op = OpSRLIW
		case 0b0100000:
			inst.Op = OpSRAIW
		default:
			return
		}
		inst.Format = FormatI
		inst.Imm = int64((word >> 20) & 0x1F)
	default:
		return
	}
	inst.Rd = rdField(word)
	inst.Rs1 = rs1Field(word)
}

// decodeOp32 decodes the RV64-only word-width register ALU group.
// Format: funct7 | rs2 | rs1 | funct3 | rd | 0111011
func (d *Decoder) decodeOp32(word uint32, inst *Instruction) {
	if d.xlen < 64 {
		return
	}
	var op Op
	switch funct7(word)<<3 | funct3(word) {
	case 0b0000000<<3 | 0b000:
		op = OpADDW
	case 0b0100000<<3 | 0b000:
		op = OpSUBW
	case 0b0000000<<3 | 0b001:
		op = OpSLLW
	case 0b0000000<<3 | 0b101:
		op = OpSRLW
	case 0b0100000<<3 | 0b101:
		op = OpSRAW
	case 0b0000001<<3 | 0b000:
		op = OpMULW
	case 0b0000001<<3 | 0b100:
		op = OpDIVW
	case 0b0000001<<3 | 0b101:
		op = OpDIVUW
	case 0b0000001<<3 | 0b110:
		op = OpREMW
	case 0b0000001<<3 | 0b111:
		op = OpREMUW
	default:
		return
	}
	inst.Format = FormatR
	inst.Op = op
	inst.Rd = rdField(word)
	inst.Rs1 = rs1Field(word)
	inst.Rs2 = rs2Field(word)
}

// decodeMiscMem decodes the fence group.
// Format: fm | pred | succ | rs1 | funct3 | rd | 0001111
func (d *Decoder) decodeMiscMem(word uint32, inst *Instruction) {
	switch funct3(word) {
	case 0b000:
		fm := word >> 28                  // bits [31:28]
		pred := uint8((word >> 24) & 0xF) // bits [27:24]
		succ := uint8((word >> 20) & 0xF) // bits [23:20]
		inst.Format = FormatI
		inst.Pred = pred
		inst.Succ = succ
		if fm == 0b1000 && pred == isa.FenceRW && succ == isa.FenceRW {
			inst.Op = OpFENCETSO
		} else {
			inst.Op = OpFENCE
		}
	case 0b001:
		inst.Format = FormatI
		inst.Op = OpFENCEI
	}
}

// decodeSystem decodes environment calls, trap returns, wfi, the
// translation fence, and the CSR group.
// Format: funct12 | rs1 | funct3 | rd | 1110011
func (d *Decoder) decodeSystem(word uint32, inst *Instruction) {
	switch funct3(word) {
	case 0b000:
		if funct7(word) == 0b0001001 {
			if rdField(word) != 0 {
				return
			}
			inst.Format = FormatR
			inst.Op = OpSFENCEVMA
			inst.Rs1 = rs1Field(word)
			inst.Rs2 = rs2Field(word)
			return
		}
		if rs1Field(word) != 0 || rdField(word) != 0 {
			return
		}
		switch word >> 20 { // bits [31:20]
		case 0b000000000000:
			inst.Format = FormatI
			inst.Op = OpECALL
		case 0b000000000001:
			inst.Format = FormatI
			inst.Op = OpEBREAK
		case 0b001100000010:
			inst.Format = FormatI
			inst.Op = OpMRET
		case 0b000100000010:
			inst.Format = FormatI
			inst.Op = OpSRET
		case 0b000100000101:
			inst.Format = FormatI
			inst.Op = OpWFI
		}
	case 0b001, 0b010, 0b011, 0b101, 0b110, 0b111:
		d.decodeCSR(word, inst)
	}
}

// decodeCSR decodes the Zicsr group. The register forms read rs1; the
// immediate forms reuse the rs1 bits as a zero-extended 5-bit
// immediate.
func (d *Decoder) decodeCSR(word uint32, inst *Instruction) {
	var op Op
	switch funct3(word) {
	case 0b001:
		op = OpCSRRW
	case 0b010:
		op = OpCSRRS
	case 0b011:
		op = OpCSRRC
	case 0b101:
		op = OpCSRRWI
	case 0b110:
		op = OpCSRRSI
	case 0b111:
		op = OpCSRRCI
	}
	inst.Format = FormatI
	inst.Op = op
	inst.Rd = rdField(word)
	inst.Rs1 = rs1Field(word)
	inst.Csr = uint16(word >> 20) // bits [31:20]
	if op == OpCSRRWI || op == OpCSRRSI || op == OpCSRRCI {
		inst.Imm = int64(rs1Field(word))
	}
}

// decodeAmo decodes the A extension.
// Format: funct5 | aq | rl | rs2 | rs1 | funct3 | rd | 0101111
func (d *Decoder) decodeAmo(word uint32, inst *Instruction) {
	var size int
	switch funct3(word) {
	case 0b010:
		size = 4
	case 0b011:
		if d.xlen < 64 {
			return
		}
		size = 8
	default:
		return
	}

	var op Op
	var amoOp isa.AMOOp
	switch word >> 27 { // funct5, bits [31:27]
	case 0b00010:
		if rs2Field(word) != 0 {
			return
		}
		op = OpLR
	case 0b00011:
		op = OpSC
	case 0b00001:
		op, amoOp = OpAMO, isa.AMOSwap
	case 0b00000:
		op, amoOp = OpAMO, isa.AMOAdd
	case 0b00100:
		op, amoOp = OpAMO, isa.AMOXor
	case 0b01100:
		op, amoOp = OpAMO, isa.AMOAnd
	case 0b01000:
		op, amoOp = OpAMO, isa.AMOOr
	case 0b10000:
		op, amoOp = OpAMO, isa.AMOMin
	case 0b10100:
		op, amoOp = OpAMO, isa.AMOMax
	case 0b11000:
		op, amoOp = OpAMO, isa.AMOMinU
	case 0b11100:
		op, amoOp = OpAMO, isa.AMOMaxU
	default:
		return
	}

	inst.Format = FormatR
	inst.Op = op
	inst.Rd = rdField(word)
	inst.Rs1 = rs1Field(word)
	inst.Rs2 = rs2Field(word)
	inst.MemSize = size
	inst.AmoOp = amoOp
	inst.Aq = (word>>26)&1 == 1
	inst.Rl = (word>>25)&1 == 1
}

// rdField extracts the destination register, bits [11:7].
func rdField(word uint32) uint8 { return uint8((word >> 7) & 0x1F) }

// rs1Field extracts the first source register, bits [19:15].
func rs1Field(word uint32) uint8 { return uint8((word >> 15) & 0x1F) }

// rs2Field extracts the second source register, bits [24:20].
func rs2Field(word uint32) uint8 { return uint8((word >> 20) & 0x1F) }

// funct3 extracts the minor opcode, bits [14:12].
func funct3(word uint32) uint32 { return (word >> 12) & 0x7 }

// funct7 extracts the major function bits [31:25].
func funct7(word uint32) uint32 { return word >> 25 }

// immI extracts the I-type immediate, bits [31:20] sign-extended.
func immI(word uint32) int64 {
	return int64(int32(word)) >> 20
}

// immS extracts the S-type immediate, bits [31:25] and [11:7].
func immS(word uint32) int64 {
	return (int64(int32(word))>>25)<<5 | int64((word>>7)&0x1F)
}

// immB extracts the B-type immediate, bits [31|7|30:25|11:8] scaled by
// two.
func immB(word uint32) int64 {
	return (int64(int32(word))>>31)<<12 |
		int64((word>>7)&0x1)<<11 |
		int64((word>>25)&0x3F)<<5 |
		int64((word>>8)&0xF)<<1
}

// immU extracts the U-type immediate, bits [31:12] shifted into place.
func immU(word uint32) int64 {
	return int64(int32(word & 0xFFFFF000))
}

// immJ extracts the J-type immediate, bits [31|19:12|20|30:21] scaled
// by two.
func immJ(word uint32) int64 {
	return (int64(int32(word))>>31)<<20 |
		int64((word>>12)&0xFF)<<12 |
		int64((word>>20)&0x1)<<11 |
		int64((word>>21)&0x3FF)<<1
}

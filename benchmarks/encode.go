package benchmarks

import "encoding/binary"

// Instruction encoding helpers for building benchmark programs without
// a toolchain. RV64 only; register numbers are the raw x-indices.

// BuildProgram assembles instruction words into a byte slice.
func BuildProgram(instrs ...uint32) []byte {
	program := make([]byte, 0, len(instrs)*4)
	for _, inst := range instrs {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, inst)
		program = append(program, buf...)
	}
	return program
}

func encodeR(opcode, funct3, funct7 uint32, rd, rs1, rs2 uint8) uint32 {
	return funct7<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		funct3<<12 | uint32(rd&0x1F)<<7 | opcode
}

func encodeI(opcode, funct3 uint32, rd, rs1 uint8, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | uint32(rs1&0x1F)<<15 |
		funct3<<12 | uint32(rd&0x1F)<<7 | opcode
}

// EncodeADDI encodes addi rd, rs1, imm.
func EncodeADDI(rd, rs1 uint8, imm int32) uint32 {
	return encodeI(0b0010011, 0b000, rd, rs1, imm)
}

// EncodeADD encodes add rd, rs1, rs2.
func EncodeADD(rd, rs1, rs2 uint8) uint32 {
	return encodeR(0b0110011, 0b000, 0b0000000, rd, rs1, rs2)
}

// EncodeSUB encodes sub rd, rs1, rs2.
func EncodeSUB(rd, rs1, rs2 uint8) uint32 {
	return encodeR(0b0110011, 0b000, 0b0100000, rd, rs1, rs2)
}

// EncodeMUL encodes mul rd, rs1, rs2.
func EncodeMUL(rd, rs1, rs2 uint8) uint32 {
	return encodeR(0b0110011, 0b000, 0b0000001, rd, rs1, rs2)
}

// EncodeDIVU encodes divu rd, rs1, rs2.
func EncodeDIVU(rd, rs1, rs2 uint8) uint32 {
	return encodeR(0b0110011, 0b101, 0b0000001, rd, rs1, rs2)
}

// EncodeREMU encodes remu rd, rs1, rs2.
func EncodeREMU(rd, rs1, rs2 uint8) uint32 {
	return encodeR(0b0110011, 0b111, 0b0000001, rd, rs1, rs2)
}

// EncodeLUI encodes lui rd, imm, taking the upper-20 value already
// shifted down (lui a0, 0x80000 loads 0x8000_0000).
func EncodeLUI(rd uint8, imm20 uint32) uint32 {
	return imm20<<12 | uint32(rd&0x1F)<<7 | 0b0110111
}

// EncodeLD encodes ld rd, imm(rs1).
func EncodeLD(rd, rs1 uint8, imm int32) uint32 {
	return encodeI(0b0000011, 0b011, rd, rs1, imm)
}

// EncodeSD encodes sd rs2, imm(rs1).
func EncodeSD(rs2, rs1 uint8, imm int32) uint32 {
	i := uint32(imm)
	return (i>>5&0x7F)<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		0b011<<12 | (i&0x1F)<<7 | 0b0100011
}

func encodeB(funct3 uint32, rs1, rs2 uint8, offset int32) uint32 {
	imm := uint32(offset)
	return (imm>>12&1)<<31 | (imm>>5&0x3F)<<25 | uint32(rs2&0x1F)<<20 |
		uint32(rs1&0x1F)<<15 | funct3<<12 | (imm>>1&0xF)<<8 |
		(imm>>11&1)<<7 | 0b1100011
}

// EncodeBEQ encodes beq rs1, rs2, offset (pc-relative bytes).
func EncodeBEQ(rs1, rs2 uint8, offset int32) uint32 {
	return encodeB(0b000, rs1, rs2, offset)
}

// EncodeBNE encodes bne rs1, rs2, offset.
func EncodeBNE(rs1, rs2 uint8, offset int32) uint32 {
	return encodeB(0b001, rs1, rs2, offset)
}

// EncodeBLT encodes blt rs1, rs2, offset.
func EncodeBLT(rs1, rs2 uint8, offset int32) uint32 {
	return encodeB(0b100, rs1, rs2, offset)
}

// EncodeJAL encodes jal rd, offset (pc-relative bytes).
func EncodeJAL(rd uint8, offset int32) uint32 {
	imm := uint32(offset)
	return (imm>>20&1)<<31 | (imm>>1&0x3FF)<<21 | (imm>>11&1)<<20 |
		(imm>>12&0xFF)<<12 | uint32(rd&0x1F)<<7 | 0b1101111
}

// EncodeJALR encodes jalr rd, imm(rs1).
func EncodeJALR(rd, rs1 uint8, imm int32) uint32 {
	return encodeI(0b1100111, 0b000, rd, rs1, imm)
}

// EncodeECALL encodes the environment call.
func EncodeECALL() uint32 { return 0x0000_0073 }

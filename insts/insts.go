// Package insts provides RISC-V instruction definitions, decoding, and
// execution semantics.
//
// The decoder turns 32-bit machine words into structured instructions
// covering the RV32I/RV64I base sets plus the M, A, Zicsr, and
// Zifencei extensions. Decoding is width-aware and never fails: a word
// with no legal interpretation at the decoder's XLEN becomes an
// OpUnknown instruction that raises illegal-instruction when executed.
//
// Usage:
//
//	decoder := insts.NewDecoder(64)
//	inst := decoder.Decode(0x02A00513) // addi a0, zero, 42
//	fmt.Printf("Op: %v, Rd: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Imm)
package insts

package hart

// Instruction is one decoded instruction as the block cache stores it.
// Concrete implementations come from the generated instruction set.
//
// The program counter contract: instructions that report
// ChangesControlFlow must set the hart's pc to the next instruction
// address themselves (a not-taken branch sets the fall-through);
// instructions that do not must leave the pc alone, and the run loop
// advances it by Size.
type Instruction interface {
	// Execute applies the instruction to the hart. A zero signal means
	// the instruction retired.
	Execute(h *Hart) Signal

	// Size returns the encoding size in bytes.
	Size() uint64

	// ChangesControlFlow marks instructions that end a basic block:
	// jumps, branches, traps, returns, and anything else whose
	// successor is not the next sequential address.
	ChangesControlFlow() bool
}

// DecodeFunc turns a raw instruction word fetched at pc into an
// executable instruction. Decoders must always return an instruction;
// an undecodable word becomes one that raises the illegal-instruction
// exception when executed, so decode errors surface at the
// architecturally correct moment.
type DecodeFunc func(raw uint32, pc uint64) Instruction

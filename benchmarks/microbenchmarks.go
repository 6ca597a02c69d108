package benchmarks

import (
	"github.com/riscv-software-src/hartsim/hart"
	"github.com/riscv-software-src/hartsim/mem"
)

// GetMicrobenchmarks returns the standard set of microbenchmarks.
// Each benchmark targets a specific execution characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		loopSum(),
		mulDiv(),
		functionCalls(),
		vectorAdd(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for
// quick validation: a real loop, a memory access pattern, and
// call-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSum(),
		vectorAdd(),
		functionCalls(),
	}
}

// 1. Arithmetic Sequential - independent ALU operations
func arithmeticSequential() Benchmark {
	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 independent ADDI operations - measures straight-line throughput",
		Program: BuildProgram(
			// 4 rounds over 5 registers; no round has an internal dependency
			EncodeADDI(10, 10, 1),
			EncodeADDI(11, 11, 1),
			EncodeADDI(12, 12, 1),
			EncodeADDI(13, 13, 1),
			EncodeADDI(14, 14, 1),
			EncodeADDI(10, 10, 1),
			EncodeADDI(11, 11, 1),
			EncodeADDI(12, 12, 1),
			EncodeADDI(13, 13, 1),
			EncodeADDI(14, 14, 1),
			EncodeADDI(10, 10, 1),
			EncodeADDI(11, 11, 1),
			EncodeADDI(12, 12, 1),
			EncodeADDI(13, 13, 1),
			EncodeADDI(14, 14, 1),
			EncodeADDI(10, 10, 1),
			EncodeADDI(11, 11, 1),
			EncodeADDI(12, 12, 1),
			EncodeADDI(13, 13, 1),
			EncodeADDI(14, 14, 1),
			EncodeADDI(17, 0, 93), // a7 = exit
			EncodeECALL(),
		),
		ExpectedExit: 4, // a0 = 0 + 4*1 = 4
	}
}

// 2. Dependency Chain - RAW hazard on every instruction
func dependencyChain() Benchmark {
	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDIs (a0 = a0 + 1) - serial data dependency",
		Program:      buildDependencyChain(20),
		ExpectedExit: 20, // a0 = 0 + 20*1 = 20
	}
}

func buildDependencyChain(n int) []byte {
	instrs := make([]uint32, 0, n+2)
	for i := 0; i < n; i++ {
		instrs = append(instrs, EncodeADDI(10, 10, 1))
	}
	instrs = append(instrs, EncodeADDI(17, 0, 93), EncodeECALL())
	return BuildProgram(instrs...)
}

// 3. Memory Sequential - store/load round trips
func memorySequential() Benchmark {
	return Benchmark{
		Name:        "memory_sequential",
		Description: "10 store/load pairs to sequential addresses - memory round trips",
		Setup: func(h *hart.Hart, system *mem.System) {
			h.Regs().Write(10, 42)       // a0 = value to store/load
			h.Regs().Write(11, DataBase) // a1 = buffer address
		},
		Program: BuildProgram(
			// Store a0 to [a1+off], load it back, next offset
			EncodeSD(10, 11, 0), EncodeLD(10, 11, 0),
			EncodeSD(10, 11, 8), EncodeLD(10, 11, 8),
			EncodeSD(10, 11, 16), EncodeLD(10, 11, 16),
			EncodeSD(10, 11, 24), EncodeLD(10, 11, 24),
			EncodeSD(10, 11, 32), EncodeLD(10, 11, 32),
			EncodeSD(10, 11, 40), EncodeLD(10, 11, 40),
			EncodeSD(10, 11, 48), EncodeLD(10, 11, 48),
			EncodeSD(10, 11, 56), EncodeLD(10, 11, 56),
			EncodeSD(10, 11, 64), EncodeLD(10, 11, 64),
			EncodeSD(10, 11, 72), EncodeLD(10, 11, 72),
			EncodeADDI(17, 0, 93),
			EncodeECALL(),
		),
		// a0 starts at 42 and every load brings the stored value back.
		ExpectedExit: 42,
	}
}

// 4. Loop Sum - a real counted loop with a backward branch
func loopSum() Benchmark {
	return Benchmark{
		Name:        "loop_sum",
		Description: "10-iteration BNE loop summing 0..9 - exercises block replay",
		// for i := 0; i < 10; i++ { sum += i }
		Program: BuildProgram(
			EncodeADDI(5, 0, 0),   // 0x00: i = 0
			EncodeADDI(6, 0, 10),  // 0x04: limit = 10
			EncodeADDI(10, 0, 0),  // 0x08: sum = 0
			EncodeADD(10, 10, 5),  // 0x0C: loop: sum += i
			EncodeADDI(5, 5, 1),   // 0x10: i++
			EncodeBNE(5, 6, -8),   // 0x14: back to 0x0C while i != limit
			EncodeADDI(17, 0, 93), // 0x18: exit
			EncodeECALL(),         // 0x1C
		),
		ExpectedExit: 45, // 0 + 1 + ... + 9
	}
}

// 5. Mul/Div - M-extension arithmetic
func mulDiv() Benchmark {
	return Benchmark{
		Name:        "mul_div",
		Description: "MUL, DIVU and REMU - integer multiply/divide unit",
		Program: BuildProgram(
			EncodeADDI(5, 0, 6),   // x5 = 6
			EncodeADDI(6, 0, 7),   // x6 = 7
			EncodeMUL(7, 5, 6),    // x7 = 42
			EncodeADDI(8, 0, 5),   // x8 = 5
			EncodeDIVU(9, 7, 8),   // x9 = 42 / 5 = 8
			EncodeREMU(10, 7, 8),  // a0 = 42 % 5 = 2
			EncodeMUL(11, 9, 8),   // x11 = 8 * 5 = 40
			EncodeADD(10, 11, 10), // a0 = 40 + 2 = 42
			EncodeADDI(17, 0, 93),
			EncodeECALL(),
		),
		ExpectedExit: 42, // quotient*divisor + remainder recomposes the product
	}
}

// 6. Function Calls - JAL/JALR call and return pairs
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "5 function calls (JAL + JALR pairs) - call/return overhead",
		Program: BuildProgram(
			// main: call add_one 5 times
			EncodeJAL(1, 24), // 0x00: jal ra, add_one
			EncodeJAL(1, 20), // 0x04
			EncodeJAL(1, 16), // 0x08
			EncodeJAL(1, 12), // 0x0C
			EncodeJAL(1, 8),  // 0x10
			EncodeJAL(0, 12), // 0x14: jump over the function body

			// add_one (at 0x18)
			EncodeADDI(10, 10, 1), // a0 += 1
			EncodeJALR(0, 1, 0),   // ret

			// exit (at 0x20)
			EncodeADDI(17, 0, 93),
			EncodeECALL(),
		),
		ExpectedExit: 5, // 5 calls * 1 add = 5
	}
}

// 7. Vector Add - load/compute/store over small arrays
func vectorAdd() Benchmark {
	return Benchmark{
		Name:        "vector_add",
		Description: "Element-wise add of two 4-element arrays - memory access pattern",
		Setup: func(h *hart.Hart, system *mem.System) {
			phys := system.Phys()

			// Array A: [10, 20, 30, 40]
			h.Regs().Write(11, DataBase)
			_ = phys.Write(DataBase, 8, 10)
			_ = phys.Write(DataBase+8, 8, 20)
			_ = phys.Write(DataBase+16, 8, 30)
			_ = phys.Write(DataBase+24, 8, 40)

			// Array B: [1, 2, 3, 4]
			h.Regs().Write(12, DataBase+0x100)
			_ = phys.Write(DataBase+0x100, 8, 1)
			_ = phys.Write(DataBase+0x108, 8, 2)
			_ = phys.Write(DataBase+0x110, 8, 3)
			_ = phys.Write(DataBase+0x118, 8, 4)

			// Array C (result)
			h.Regs().Write(13, DataBase+0x200)
		},
		// C[i] = A[i] + B[i], then sum C for the exit code
		Program: BuildProgram(
			// Load A into x5-x8
			EncodeLD(5, 11, 0),  // A[0] = 10
			EncodeLD(6, 11, 8),  // A[1] = 20
			EncodeLD(7, 11, 16), // A[2] = 30
			EncodeLD(8, 11, 24), // A[3] = 40

			// Load B into x20-x23
			EncodeLD(20, 12, 0),
			EncodeLD(21, 12, 8),
			EncodeLD(22, 12, 16),
			EncodeLD(23, 12, 24),

			// C[i] = A[i] + B[i]
			EncodeADD(24, 5, 20), // 11
			EncodeADD(25, 6, 21), // 22
			EncodeADD(26, 7, 22), // 33
			EncodeADD(27, 8, 23), // 44

			// Store C
			EncodeSD(24, 13, 0),
			EncodeSD(25, 13, 8),
			EncodeSD(26, 13, 16),
			EncodeSD(27, 13, 24),

			// Sum C: 11 + 22 + 33 + 44 = 110
			EncodeADD(10, 24, 25), // a0 = 33
			EncodeADD(10, 10, 26), // a0 = 66
			EncodeADD(10, 10, 27), // a0 = 110

			EncodeADDI(17, 0, 93),
			EncodeECALL(),
		),
		ExpectedExit: 110,
	}
}

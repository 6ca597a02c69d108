package isa

import "fmt"

// AMOOp selects the combining function of an atomic read-modify-write.
type AMOOp uint8

const (
	AMOSwap AMOOp = iota
	AMOAdd
	AMOXor
	AMOAnd
	AMOOr
	AMOMin
	AMOMax
	AMOMinU
	AMOMaxU
)

func (op AMOOp) String() string {
	switch op {
	case AMOSwap:
		return "amoswap"
	case AMOAdd:
		return "amoadd"
	case AMOXor:
		return "amoxor"
	case AMOAnd:
		return "amoand"
	case AMOOr:
		return "amoor"
	case AMOMin:
		return "amomin"
	case AMOMax:
		return "amomax"
	case AMOMinU:
		return "amominu"
	case AMOMaxU:
		return "amomaxu"
	default:
		return fmt.Sprintf("AMOOp(%d)", uint8(op))
	}
}

// ApplyAMO computes the value an atomic read-modify-write stores, given
// the prior memory value and the instruction operand. Word-sized ops
// compare and combine on the low 32 bits; results come back
// zero-extended, matching what lands in memory.
func ApplyAMO(op AMOOp, size int, old, operand uint64) uint64 {
	if size == 4 {
		return uint64(applyAMO32(op, uint32(old), uint32(operand)))
	}
	switch op {
	case AMOSwap:
		return operand
	case AMOAdd:
		return old + operand
	case AMOXor:
		return old ^ operand
	case AMOAnd:
		return old & operand
	case AMOOr:
		return old | operand
	case AMOMin:
		if int64(old) < int64(operand) {
			return old
		}
		return operand
	case AMOMax:
		if int64(old) > int64(operand) {
			return old
		}
		return operand
	case AMOMinU:
		if old < operand {
			return old
		}
		return operand
	case AMOMaxU:
		if old > operand {
			return old
		}
		return operand
	default:
		panic(fmt.Sprintf("isa: unknown AMO op %d", uint8(op)))
	}
}

func applyAMO32(op AMOOp, old, operand uint32) uint32 {
	switch op {
	case AMOSwap:
		return operand
	case AMOAdd:
		return old + operand
	case AMOXor:
		return old ^ operand
	case AMOAnd:
		return old & operand
	case AMOOr:
		return old | operand
	case AMOMin:
		if int32(old) < int32(operand) {
			return old
		}
		return operand
	case AMOMax:
		if int32(old) > int32(operand) {
			return old
		}
		return operand
	case AMOMinU:
		if old < operand {
			return old
		}
		return operand
	case AMOMaxU:
		if old > operand {
			return old
		}
		return operand
	default:
		panic(fmt.Sprintf("isa: unknown AMO op %d", uint8(op)))
	}
}

// Package isa defines architectural constants shared by every layer of
// the simulator: privilege modes, trap causes, CSR addresses, physical
// memory attributes, and fence ordering sets. It has no dependencies so
// that any package can import it without cycles.
package isa

import "fmt"

// Mode identifies a privilege mode. The low two bits carry the
// architectural privilege encoding (U=00, S=01, M=11); bit 2 marks the
// virtualized variants used when the hypervisor extension is active.
type Mode uint8

const (
	ModeU  Mode = 0b000
	ModeS  Mode = 0b001
	ModeM  Mode = 0b011
	ModeVU Mode = 0b100
	ModeVS Mode = 0b101
)

// Priv returns the two-bit architectural privilege encoding, which is
// what CSR address checks and mstatus.MPP compare against.
func (m Mode) Priv() uint8 { return uint8(m) & 0b11 }

// Virtualized reports whether the mode runs under the hypervisor
// extension's guest view.
func (m Mode) Virtualized() bool { return m&0b100 != 0 }

// CanAccess reports whether code running in m may touch a resource that
// requires at least the given mode. Virtualized modes never satisfy a
// non-virtualized requirement above their base privilege.
func (m Mode) CanAccess(required Mode) bool {
	return m.Priv() >= required.Priv()
}

func (m Mode) String() string {
	switch m {
	case ModeU:
		return "U"
	case ModeS:
		return "S"
	case ModeM:
		return "M"
	case ModeVU:
		return "VU"
	case ModeVS:
		return "VS"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Valid reports whether m is one of the five recognized modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeU, ModeS, ModeM, ModeVU, ModeVS:
		return true
	}
	return false
}

// TrapCause is a synchronous exception cause code as written to
// mcause/scause. Interrupt causes set the interrupt flag bit, which is
// XLEN-dependent and composed by the trap handler, not stored here.
type TrapCause uint64

const (
	CauseInstAddrMisaligned  TrapCause = 0
	CauseInstAccessFault     TrapCause = 1
	CauseIllegalInst         TrapCause = 2
	CauseBreakpoint          TrapCause = 3
	CauseLoadAddrMisaligned  TrapCause = 4
	CauseLoadAccessFault     TrapCause = 5
	CauseStoreAddrMisaligned TrapCause = 6
	CauseStoreAccessFault    TrapCause = 7
	CauseEcallFromU          TrapCause = 8
	CauseEcallFromS          TrapCause = 9
	CauseEcallFromVS         TrapCause = 10
	CauseEcallFromM          TrapCause = 11
	CauseInstPageFault       TrapCause = 12
	CauseLoadPageFault       TrapCause = 13
	CauseStorePageFault      TrapCause = 15
	CauseInstGuestPageFault  TrapCause = 20
	CauseLoadGuestPageFault  TrapCause = 21
	CauseVirtualInst         TrapCause = 22
	CauseStoreGuestPageFault TrapCause = 23
)

func (c TrapCause) String() string {
	switch c {
	case CauseInstAddrMisaligned:
		return "instruction address misaligned"
	case CauseInstAccessFault:
		return "instruction access fault"
	case CauseIllegalInst:
		return "illegal instruction"
	case CauseBreakpoint:
		return "breakpoint"
	case CauseLoadAddrMisaligned:
		return "load address misaligned"
	case CauseLoadAccessFault:
		return "load access fault"
	case CauseStoreAddrMisaligned:
		return "store/AMO address misaligned"
	case CauseStoreAccessFault:
		return "store/AMO access fault"
	case CauseEcallFromU:
		return "environment call from U-mode"
	case CauseEcallFromS:
		return "environment call from S-mode"
	case CauseEcallFromVS:
		return "environment call from VS-mode"
	case CauseEcallFromM:
		return "environment call from M-mode"
	case CauseInstPageFault:
		return "instruction page fault"
	case CauseLoadPageFault:
		return "load page fault"
	case CauseStorePageFault:
		return "store/AMO page fault"
	case CauseInstGuestPageFault:
		return "instruction guest-page fault"
	case CauseLoadGuestPageFault:
		return "load guest-page fault"
	case CauseVirtualInst:
		return "virtual instruction"
	case CauseStoreGuestPageFault:
		return "store/AMO guest-page fault"
	default:
		return fmt.Sprintf("cause %d", uint64(c))
	}
}

// EcallCause returns the environment-call cause raised from the given
// privilege mode.
func EcallCause(m Mode) TrapCause {
	switch m {
	case ModeU, ModeVU:
		return CauseEcallFromU
	case ModeVS:
		return CauseEcallFromVS
	case ModeS:
		return CauseEcallFromS
	default:
		return CauseEcallFromM
	}
}

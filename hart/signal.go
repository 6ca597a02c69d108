// Package hart implements the execution engine of one simulated
// hardware thread: architectural register state, privilege tracking,
// the decoded-block cache, the trap path, and the run loop. The hart
// is generic over the SoC boundary, so platform concerns like memory,
// devices, and counters stay outside.
package hart

import (
	"fmt"

	"github.com/riscv-software-src/hartsim/isa"
)

// SignalKind discriminates the control-flow outcomes an instruction
// raises when it cannot complete normally.
type SignalKind uint8

const (
	// SignalNone is the zero value: the instruction retired.
	SignalNone SignalKind = iota
	// SignalAbort unwinds the current instruction with a synchronous
	// architectural exception. The run loop redirects to the trap
	// handler and continues.
	SignalAbort
	// SignalWait stalls fetch/execute until an external event. State
	// the instruction committed before stalling stays committed.
	SignalWait
	// SignalUnpredictable is fatal: the architecture declares no
	// defined behavior for the current combination of state and
	// inputs, so continuing would simulate nothing real.
	SignalUnpredictable
	// SignalExit is a program-requested termination carrying an exit
	// code.
	SignalExit
)

func (k SignalKind) String() string {
	switch k {
	case SignalNone:
		return "none"
	case SignalAbort:
		return "abort"
	case SignalWait:
		return "wait"
	case SignalUnpredictable:
		return "unpredictable"
	case SignalExit:
		return "exit"
	default:
		return fmt.Sprintf("SignalKind(%d)", uint8(k))
	}
}

// Signal is the result of executing one instruction. The zero value
// means normal completion; anything else unwinds the current
// instruction only, never the whole run loop.
type Signal struct {
	Kind SignalKind

	// Cause and Tval describe aborts, in mcause/mtval terms.
	Cause isa.TrapCause
	Tval  uint64

	// Code is the exit status carried by SignalExit.
	Code int64

	// Reason is human-readable context for exits and unpredictable
	// outcomes.
	Reason string
}

// Raised reports whether the signal is anything but normal completion.
func (s Signal) Raised() bool { return s.Kind != SignalNone }

func (s Signal) String() string {
	switch s.Kind {
	case SignalNone:
		return "ok"
	case SignalAbort:
		return fmt.Sprintf("abort: %v (tval=%#x)", s.Cause, s.Tval)
	case SignalWait:
		return "wait for interrupt"
	case SignalUnpredictable:
		return "unpredictable: " + s.Reason
	case SignalExit:
		return fmt.Sprintf("exit %d: %s", s.Code, s.Reason)
	default:
		return s.Kind.String()
	}
}

// OK is the normal-completion signal.
func OK() Signal { return Signal{} }

// Abort raises a synchronous exception with the given cause and trap
// value.
func Abort(cause isa.TrapCause, tval uint64) Signal {
	return Signal{Kind: SignalAbort, Cause: cause, Tval: tval}
}

// Wait asks the run loop to stall until an external event.
func Wait() Signal { return Signal{Kind: SignalWait} }

// Unpredictable reports that the architecture defines no behavior for
// what the program just did.
func Unpredictable(reason string) Signal {
	return Signal{Kind: SignalUnpredictable, Reason: reason}
}

// Exit requests simulator termination with a status code and a
// human-readable reason.
func Exit(code int64, reason string) Signal {
	return Signal{Kind: SignalExit, Code: code, Reason: reason}
}

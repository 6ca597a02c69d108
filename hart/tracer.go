package hart

import (
	"fmt"
	"io"

	"github.com/riscv-software-src/hartsim/isa"
)

// Tracer observes architectural events: synchronous exceptions and
// physical memory traffic. A hart carries at most one tracer.
type Tracer interface {
	// Exception fires when an instruction aborts, before the trap is
	// redirected.
	Exception(pc uint64, cause isa.TrapCause, tval uint64)

	// MemRead fires after a successful physical load.
	MemRead(addr uint64, size int)

	// MemWrite fires after a successful physical store, carrying the
	// stored value.
	MemWrite(addr uint64, size int, value uint64)
}

// WriterTracer renders events as text lines on a writer, one line per
// event.
type WriterTracer struct {
	W io.Writer
}

func (t *WriterTracer) Exception(pc uint64, cause isa.TrapCause, tval uint64) {
	fmt.Fprintf(t.W, "exception pc=%#x cause=%v tval=%#x\n", pc, cause, tval)
}

func (t *WriterTracer) MemRead(addr uint64, size int) {
	fmt.Fprintf(t.W, "mem read  addr=%#x size=%d\n", addr, size)
}

func (t *WriterTracer) MemWrite(addr uint64, size int, value uint64) {
	fmt.Fprintf(t.W, "mem write addr=%#x size=%d value=%#x\n", addr, size, value)
}

package hart_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/riscv-software-src/hartsim/bits"
	"github.com/riscv-software-src/hartsim/hart"
	"github.com/riscv-software-src/hartsim/isa"
)

// fakeInst is a scriptable decoded instruction.
type fakeInst struct {
	exec func(h *hart.Hart) hart.Signal
	cf   bool
}

func (f fakeInst) Execute(h *hart.Hart) hart.Signal {
	if f.exec != nil {
		return f.exec(h)
	}
	return hart.OK()
}

func (f fakeInst) Size() uint64             { return 4 }
func (f fakeInst) ChangesControlFlow() bool { return f.cf }

type exceptionEvent struct {
	pc    uint64
	cause isa.TrapCause
	tval  uint64
}

// recordingTracer keeps exception events for inspection.
type recordingTracer struct {
	exceptions []exceptionEvent
}

func (t *recordingTracer) Exception(pc uint64, cause isa.TrapCause, tval uint64) {
	t.exceptions = append(t.exceptions, exceptionEvent{pc, cause, tval})
}

func (t *recordingTracer) MemRead(addr uint64, size int)                {}
func (t *recordingTracer) MemWrite(addr uint64, size int, value uint64) {}

var _ = Describe("Step and Run", func() {
	var (
		soc      *scriptSoC
		h        *hart.Hart
		program  map[uint64]hart.Instruction
		executed []uint64
		decodes  int
	)

	newHart := func(opts ...hart.HartOption) *hart.Hart {
		opts = append([]hart.HartOption{
			hart.WithDecoder(func(raw uint32, pc uint64) hart.Instruction {
				decodes++
				if inst, ok := program[pc]; ok {
					return inst
				}
				return fakeInst{cf: true, exec: func(*hart.Hart) hart.Signal {
					return hart.Abort(isa.CauseIllegalInst, uint64(raw))
				}}
			}),
		}, opts...)
		return hart.New(0, 64, soc, opts...)
	}

	// plain retires and lets the run loop advance the pc.
	plain := func() hart.Instruction {
		return fakeInst{exec: func(h *hart.Hart) hart.Signal {
			executed = append(executed, h.PC())
			return hart.OK()
		}}
	}

	// jump retires and repositions the pc itself.
	jump := func(target uint64) hart.Instruction {
		return fakeInst{cf: true, exec: func(h *hart.Hart) hart.Signal {
			executed = append(executed, h.PC())
			h.SetPC(target)
			return hart.OK()
		}}
	}

	BeforeEach(func() {
		soc = newScriptSoC()
		program = make(map[uint64]hart.Instruction)
		executed = nil
		decodes = 0
		h = newHart()
	})

	Describe("Step", func() {
		It("should decode a block once and execute it in order", func() {
			program[0] = plain()
			program[4] = plain()
			program[8] = jump(0x100)

			sig := h.Step()

			Expect(sig.Raised()).To(BeFalse())
			Expect(executed).To(Equal([]uint64{0, 4, 8}))
			Expect(h.PC()).To(Equal(uint64(0x100)))
			Expect(h.Instret()).To(Equal(uint64(3)))
			Expect(decodes).To(Equal(3))
		})

		It("should replay a cached block without decoding again", func() {
			h.SetPC(0x1000)
			program[0x1000] = plain()
			program[0x1004] = plain()
			program[0x1008] = plain()
			program[0x100C] = jump(0x1000)

			Expect(h.Step().Raised()).To(BeFalse())
			Expect(h.Step().Raised()).To(BeFalse())

			Expect(decodes).To(Equal(4), "the loop body decodes once")
			Expect(executed).To(Equal([]uint64{
				0x1000, 0x1004, 0x1008, 0x100C,
				0x1000, 0x1004, 0x1008, 0x100C,
			}))
			Expect(h.Instret()).To(Equal(uint64(8)))

			blk := h.Blocks().Get(0x1000)
			Expect(blk.StartPC()).To(Equal(uint64(0x1000)))
			Expect(blk.Size()).To(Equal(4))
			Expect(blk.Complete()).To(BeTrue(), "the branch terminated the block")
		})

		It("should count hits and misses in the block cache", func() {
			program[0] = plain()
			program[4] = jump(0)

			h.Step()
			h.Step()

			stats := h.Blocks().Stats()
			Expect(stats.Lookups).To(Equal(uint64(2)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
		})

		It("should decode again after a flush", func() {
			program[0] = plain()
			program[4] = jump(0)

			h.Step()
			h.FlushDecoded()
			h.Step()

			Expect(decodes).To(Equal(4))
		})

		It("should stop at the faulting instruction and leave the pc on it", func() {
			program[0] = plain()
			program[4] = fakeInst{exec: func(*hart.Hart) hart.Signal {
				return hart.Abort(isa.CauseLoadAddrMisaligned, 0x201)
			}}

			sig := h.Step()

			Expect(sig.Kind).To(Equal(hart.SignalAbort))
			Expect(sig.Cause).To(Equal(isa.CauseLoadAddrMisaligned))
			Expect(sig.Tval).To(Equal(uint64(0x201)))
			Expect(h.PC()).To(Equal(uint64(4)), "the faulting instruction did not retire")
			Expect(h.Instret()).To(Equal(uint64(1)))
		})

		It("should surface a fetch fault at the block start", func() {
			soc.pma = func(addr uint64, size int) isa.PMA {
				return isa.PMARead | isa.PMAWrite
			}
			h.SetPC(0x1000)

			sig := h.Step()

			Expect(sig.Cause).To(Equal(isa.CauseInstAccessFault))
			Expect(sig.Tval).To(Equal(uint64(0x1000)))
			Expect(h.Instret()).To(Equal(uint64(0)))
		})

		It("should run a block cut short by a fetch fault up to the fault", func() {
			// execute permission ends at 0x8; the block holds two
			// instructions and the refetch at 0x8 faults on its own
			soc.pma = func(addr uint64, size int) isa.PMA {
				if addr >= 8 {
					return isa.PMARead | isa.PMAWrite
				}
				return isa.PMARAM
			}
			program[0] = plain()
			program[4] = plain()

			sig := h.Step()
			Expect(sig.Raised()).To(BeFalse())
			Expect(executed).To(Equal([]uint64{0, 4}))
			Expect(h.PC()).To(Equal(uint64(8)))

			sig = h.Step()
			Expect(sig.Cause).To(Equal(isa.CauseInstAccessFault))
		})

		It("should retire a wait instruction before parking", func() {
			program[0] = plain()
			program[4] = fakeInst{cf: true, exec: func(h *hart.Hart) hart.Signal {
				h.SetPC(h.PC() + 4)
				return hart.Wait()
			}}

			sig := h.Step()

			Expect(sig.Kind).To(Equal(hart.SignalWait))
			Expect(h.Instret()).To(Equal(uint64(2)))
			Expect(h.PC()).To(Equal(uint64(8)), "execution resumes past the wait")
		})

		It("should stop mid-block when the budget runs out", func() {
			h = newHart(hart.WithMaxInstructions(2))
			program[0] = plain()
			program[4] = plain()
			program[8] = jump(0)

			sig := h.Step()

			Expect(sig.Raised()).To(BeFalse())
			Expect(h.Instret()).To(Equal(uint64(2)))
			Expect(executed).To(Equal([]uint64{0, 4}))
		})
	})

	Describe("Run", func() {
		It("should stop on a guest exit and report its payload", func() {
			program[0] = plain()
			program[4] = fakeInst{cf: true, exec: func(*hart.Hart) hart.Signal {
				return hart.Exit(42, "guest exit call")
			}}

			res := h.Run()

			Expect(res.Kind).To(Equal(hart.SignalExit))
			Expect(res.ExitCode).To(Equal(int64(42)))
			Expect(res.Reason).To(Equal("guest exit call"))
			Expect(res.PC).To(Equal(uint64(4)))
			Expect(res.Instret).To(Equal(uint64(1)))
		})

		It("should stop when the instruction budget is spent", func() {
			h = newHart(hart.WithMaxInstructions(5))
			program[0] = plain()
			program[4] = plain()
			program[8] = jump(0)

			res := h.Run()

			Expect(res.Kind).To(Equal(hart.SignalNone))
			Expect(res.Instret).To(Equal(uint64(5)))
			Expect(executed).To(Equal([]uint64{0, 4, 8, 0, 4}))
		})

		It("should absorb aborts through the trap handler and continue", func() {
			mtvec, _ := h.CSRs().Lookup(isa.CSRMtvec)
			mtvec.SWWrite(bits.New(64, 0x2000), 64)
			program[0] = fakeInst{exec: func(*hart.Hart) hart.Signal {
				return hart.Abort(isa.CauseIllegalInst, 0x5555)
			}}
			program[0x2000] = fakeInst{cf: true, exec: func(*hart.Hart) hart.Signal {
				return hart.Exit(1, "handler reached")
			}}

			res := h.Run()

			Expect(res.Kind).To(Equal(hart.SignalExit))
			Expect(res.Reason).To(Equal("handler reached"))

			mepc, _ := h.CSRs().Lookup(isa.CSRMepc)
			Expect(mepc.HWRead(64).Value().Uint64()).To(Equal(uint64(0)))
			mcause, _ := h.CSRs().Lookup(isa.CSRMcause)
			Expect(mcause.HWRead(64).Value().Uint64()).
				To(Equal(uint64(isa.CauseIllegalInst)))
			mtval, _ := h.CSRs().Lookup(isa.CSRMtval)
			Expect(mtval.HWRead(64).Value().Uint64()).To(Equal(uint64(0x5555)))
		})

		It("should stop when the trap handler cannot absorb the abort", func() {
			h = newHart(hart.WithTrapHandler(
				func(_ *hart.Hart, s hart.Signal) hart.Signal { return s },
			))
			program[0] = plain()
			program[4] = fakeInst{exec: func(*hart.Hart) hart.Signal {
				return hart.Abort(isa.CauseLoadAccessFault, 0xBAD)
			}}

			res := h.Run()

			Expect(res.Kind).To(Equal(hart.SignalAbort))
			Expect(res.PC).To(Equal(uint64(4)))
			Expect(res.Instret).To(Equal(uint64(1)))
		})

		It("should report exceptions to the tracer before handling them", func() {
			h = newHart(hart.WithTrapHandler(
				func(_ *hart.Hart, s hart.Signal) hart.Signal { return s },
			))
			tr := &recordingTracer{}
			Expect(h.AttachTracer(tr)).To(Succeed())
			program[0] = fakeInst{exec: func(*hart.Hart) hart.Signal {
				return hart.Abort(isa.CauseBreakpoint, 0)
			}}

			h.Run()

			Expect(tr.exceptions).To(Equal([]exceptionEvent{
				{pc: 0, cause: isa.CauseBreakpoint, tval: 0},
			}))
		})

		It("should stop on unpredictable state", func() {
			program[0] = fakeInst{exec: func(*hart.Hart) hart.Signal {
				return hart.Unpredictable("write to a reserved encoding")
			}}

			res := h.Run()

			Expect(res.Kind).To(Equal(hart.SignalUnpredictable))
			Expect(res.Reason).To(Equal("write to a reserved encoding"))
		})
	})
})

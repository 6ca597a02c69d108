package hart

// RunResult says why Run stopped. A zero Kind means the instruction
// budget ran out; the other kinds carry the stopping signal's payload.
type RunResult struct {
	Kind     SignalKind
	ExitCode int64
	Reason   string
	PC       uint64
	Instret  uint64
}

// Step replays the decoded block at the current pc, filling the slot
// first on a miss. It returns the first raised signal, or a zero
// signal when the whole block retired. The pc always names the next
// instruction to execute when Step returns, which on an abort is the
// faulting instruction itself.
func (h *Hart) Step() Signal {
	blk := h.blocks.Get(h.pc)
	if blk.StartPC() != h.pc || blk.Size() == 0 {
		if sig := h.fill(blk); sig.Raised() {
			return sig
		}
	}
	blk.Rewind()
	for !blk.Exhausted() {
		if h.maxInstructions != 0 && h.instret >= h.maxInstructions {
			return OK()
		}
		inst := blk.Next()
		sig := inst.Execute(h)
		if sig.Raised() {
			if sig.Kind == SignalWait {
				// wfi retires before the hart parks
				h.instret++
			}
			return sig
		}
		h.instret++
		if !inst.ChangesControlFlow() {
			h.pc += uint64(inst.Size())
		}
	}
	return OK()
}

// fill recycles the slot for the block starting at the current pc and
// decodes straight-line instructions into it until a control-flow
// changer or capacity stops it. A fetch fault on the first instruction
// surfaces immediately; a later one leaves a shorter block whose
// replay reaches the faulting pc naturally and refaults there.
func (h *Hart) fill(blk *Block) Signal {
	if h.decode == nil {
		panic("hart: no decoder installed")
	}
	blk.Recycle(h.pc)
	pc := h.pc
	for !blk.Complete() {
		word, sig := h.FetchWord(pc)
		if sig.Raised() {
			if blk.Size() == 0 {
				return sig
			}
			break
		}
		inst := h.decode(word, pc)
		blk.Append(inst)
		pc += uint64(inst.Size())
	}
	return OK()
}

// Run executes blocks until something stops the hart: a guest exit, a
// wait with no wakeup source, unpredictable state, or the configured
// instruction budget. Aborts are redirected through the trap handler
// and only stop the run when the handler cannot absorb them.
func (h *Hart) Run() RunResult {
	for {
		if h.maxInstructions != 0 && h.instret >= h.maxInstructions {
			return h.result(Signal{})
		}
		sig := h.Step()
		if !sig.Raised() {
			continue
		}
		switch sig.Kind {
		case SignalAbort:
			if h.tracer != nil {
				h.tracer.Exception(h.pc, sig.Cause, sig.Tval)
			}
			if surfaced := h.trap(h, sig); surfaced.Raised() {
				return h.result(surfaced)
			}
		default:
			return h.result(sig)
		}
	}
}

func (h *Hart) result(s Signal) RunResult {
	return RunResult{
		Kind:     s.Kind,
		ExitCode: s.Code,
		Reason:   s.Reason,
		PC:       h.pc,
		Instret:  h.instret,
	}
}

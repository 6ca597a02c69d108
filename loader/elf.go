// Package loader reads RISC-V ELF executables into the shape the
// simulator consumes: an entry point, loadable segments, the covered
// address range, and a symbol lookup. It is a thin wrapper over the
// standard object-file library; all policy about where segments land
// lives with the memory sink the caller supplies.
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
)

// Typed loader failures. Callers match these with errors.Is; the
// wrapped message carries the path or symbol involved.
var (
	// ErrNotRISCV marks ELF files built for another machine.
	ErrNotRISCV = errors.New("not a RISC-V ELF file")

	// ErrNoLoadableSegments marks ELF files with no PT_LOAD program
	// headers, which leave nothing to run.
	ErrNoLoadableSegments = errors.New("no loadable segments")

	// ErrSymbolNotFound marks symbol lookups that matched nothing.
	ErrSymbolNotFound = errors.New("symbol not found")
)

// Class is the ELF word width of the loaded file.
type Class uint8

const (
	// Class32 marks RV32 executables.
	Class32 Class = 32
	// Class64 marks RV64 executables.
	Class64 Class = 64
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// MemorySink receives segment bytes during CopyTo. Physical memory,
// a sparse test buffer, or anything else byte-addressable fits.
type MemorySink interface {
	// CopyFromHost copies a host buffer into the sink at dest.
	CopyFromHost(dest uint64, data []byte) error
}

// Program represents a loaded ELF executable ready to be placed into
// simulator memory.
type Program struct {
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Class records whether the file is RV32 or RV64.
	Class Class
	// Segments contains all loadable segments in file order.
	Segments []Segment
	// LowAddr and HighAddr bound the loadable image: the lowest byte
	// any segment touches and one past the highest.
	LowAddr  uint64
	HighAddr uint64

	symbols map[string]uint64
}

// Load parses a RISC-V ELF executable. Malformed files, files for
// other machines, and files with nothing to load come back as typed
// errors with the path in the message.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("%s: %w (machine type: %v)", path, ErrNotRISCV, f.Machine)
	}

	prog := &Program{
		EntryPoint: f.Entry,
		Class:      Class64,
	}
	if f.Class == elf.ELFCLASS32 {
		prog.Class = Class32
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD || phdr.Memsz == 0 {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})

		if len(prog.Segments) == 1 || phdr.Vaddr < prog.LowAddr {
			prog.LowAddr = phdr.Vaddr
		}
		if end := phdr.Vaddr + phdr.Memsz; end > prog.HighAddr {
			prog.HighAddr = end
		}
	}

	if len(prog.Segments) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoLoadableSegments)
	}

	// Symbol tables are optional; a stripped binary simply resolves
	// nothing.
	prog.symbols = make(map[string]uint64)
	if syms, err := f.Symbols(); err == nil {
		for _, s := range syms {
			if s.Name != "" {
				prog.symbols[s.Name] = s.Value
			}
		}
	}

	return prog, nil
}

// Symbol resolves a symbol name to its address.
func (p *Program) Symbol(name string) (uint64, error) {
	addr, ok := p.symbols[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	}
	return addr, nil
}

// CopyTo copies every loadable segment into the sink, zero-filling
// the BSS tail of segments whose memory size exceeds their file size.
func (p *Program) CopyTo(sink MemorySink) error {
	for _, seg := range p.Segments {
		if len(seg.Data) > 0 {
			if err := sink.CopyFromHost(seg.VirtAddr, seg.Data); err != nil {
				return fmt.Errorf("failed to copy segment at 0x%x: %w", seg.VirtAddr, err)
			}
		}
		if tail := seg.MemSize - uint64(len(seg.Data)); tail > 0 {
			if err := sink.CopyFromHost(seg.VirtAddr+uint64(len(seg.Data)), make([]byte, tail)); err != nil {
				return fmt.Errorf("failed to zero BSS at 0x%x: %w", seg.VirtAddr+uint64(len(seg.Data)), err)
			}
		}
	}
	return nil
}

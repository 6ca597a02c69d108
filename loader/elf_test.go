package loader_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/riscv-software-src/hartsim/loader"
)

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "elf-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("with a valid RV64 ELF binary", func() {
			var elfPath string

			BeforeEach(func() {
				elfPath = filepath.Join(tempDir, "test.elf")
				writeELF(elfPath, elfFixture{
					entry: 0x8000_0080,
					segments: []elfSegment{codeSegment(0x8000_0000, []byte{
						// addi a0, zero, 42; ecall
						0x13, 0x05, 0xa0, 0x02,
						0x73, 0x00, 0x00, 0x00,
					})},
				})
			})

			It("should load without error", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog).NotTo(BeNil())
			})

			It("should extract the entry point and class", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint64(0x8000_0080)))
				Expect(prog.Class).To(Equal(loader.Class64))
			})

			It("should report the loadable address range", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.LowAddr).To(Equal(uint64(0x8000_0000)))
				Expect(prog.HighAddr).To(Equal(uint64(0x8000_0008)))
			})

			It("should load segment contents verbatim", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(1))
				Expect(prog.Segments[0].Data).To(Equal([]byte{
					0x13, 0x05, 0xa0, 0x02,
					0x73, 0x00, 0x00, 0x00,
				}))
				Expect(prog.Segments[0].Flags & loader.SegmentFlagExecute).NotTo(BeZero())
			})
		})

		Context("with an RV32 ELF binary", func() {
			It("should record the 32-bit class", func() {
				elfPath := filepath.Join(tempDir, "rv32.elf")
				writeELF32(elfPath, 0x8000_0000, []byte{0x13, 0x00, 0x00, 0x00})

				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Class).To(Equal(loader.Class32))
			})
		})

		Context("with an invalid file", func() {
			It("should return an error for a non-existent file", func() {
				_, err := loader.Load("/nonexistent/path/to/file.elf")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to open"))
			})

			It("should return an error for a non-ELF file", func() {
				notElfPath := filepath.Join(tempDir, "not-elf.bin")
				Expect(os.WriteFile(notElfPath, []byte("not an elf file"), 0644)).To(Succeed())

				_, err := loader.Load(notElfPath)
				Expect(err).To(HaveOccurred())
			})

			It("should return an error for an empty file", func() {
				emptyPath := filepath.Join(tempDir, "empty.elf")
				Expect(os.WriteFile(emptyPath, []byte{}, 0644)).To(Succeed())

				_, err := loader.Load(emptyPath)
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with an ELF built for another machine", func() {
			It("should return ErrNotRISCV", func() {
				elfPath := filepath.Join(tempDir, "x86.elf")
				writeELF(elfPath, elfFixture{
					machine:  62, // x86-64
					segments: []elfSegment{codeSegment(0x400000, []byte{0x90})},
				})

				_, err := loader.Load(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(errors.Is(err, loader.ErrNotRISCV)).To(BeTrue())
			})
		})

		Context("with no loadable segments", func() {
			It("should return ErrNoLoadableSegments", func() {
				elfPath := filepath.Join(tempDir, "no-load.elf")
				writeELF(elfPath, elfFixture{
					entry: 0x400000,
					segments: []elfSegment{{
						ptype: 4, // PT_NOTE
						flags: 0x4,
						data:  []byte{0, 0, 0, 0},
					}},
				})

				_, err := loader.Load(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(errors.Is(err, loader.ErrNoLoadableSegments)).To(BeTrue())
			})
		})

		Context("with multiple PT_LOAD segments", func() {
			It("should load all of them and span the address range", func() {
				elfPath := filepath.Join(tempDir, "multi.elf")
				code := []byte{0x13, 0x00, 0x00, 0x00}
				data := []byte{0x01, 0x02, 0x03, 0x04}
				writeELF(elfPath, elfFixture{
					entry: 0x8000_0000,
					segments: []elfSegment{
						codeSegment(0x8000_0000, code),
						dataSegment(0x8001_0000, data, uint64(len(data))),
					},
				})

				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(2))
				Expect(prog.LowAddr).To(Equal(uint64(0x8000_0000)))
				Expect(prog.HighAddr).To(Equal(uint64(0x8001_0004)))
				Expect(prog.Segments[1].Data).To(Equal(data))
				Expect(prog.Segments[1].Flags & loader.SegmentFlagWrite).NotTo(BeZero())
			})
		})

		Context("with a BSS tail", func() {
			It("should record a memory size larger than the file data", func() {
				elfPath := filepath.Join(tempDir, "bss.elf")
				initial := []byte{0x11, 0x22}
				writeELF(elfPath, elfFixture{
					entry: 0x8000_0000,
					segments: []elfSegment{
						dataSegment(0x8002_0000, initial, 64),
					},
				})

				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments[0].Data).To(Equal(initial))
				Expect(prog.Segments[0].MemSize).To(Equal(uint64(64)))
			})
		})
	})

	Describe("Symbol", func() {
		var prog *loader.Program

		BeforeEach(func() {
			elfPath := filepath.Join(tempDir, "syms.elf")
			writeELF(elfPath, elfFixture{
				entry:    0x8000_0000,
				segments: []elfSegment{codeSegment(0x8000_0000, []byte{0x13, 0, 0, 0})},
				symbols: []elfSymbol{
					{name: "_start", value: 0x8000_0000},
					{name: "tohost", value: 0x8100_0000},
				},
			})
			var err error
			prog, err = loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should resolve symbols from the symbol table", func() {
			addr, err := prog.Symbol("tohost")
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(Equal(uint64(0x8100_0000)))
		})

		It("should return ErrSymbolNotFound for unknown names", func() {
			_, err := prog.Symbol("no_such_symbol")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, loader.ErrSymbolNotFound)).To(BeTrue())
		})
	})

	Describe("CopyTo", func() {
		It("should copy segment bytes into the sink", func() {
			elfPath := filepath.Join(tempDir, "copy.elf")
			code := []byte{0xDE, 0xAD, 0xBE, 0xEF}
			writeELF(elfPath, elfFixture{
				entry:    0x8000_0000,
				segments: []elfSegment{codeSegment(0x8000_0000, code)},
			})
			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			sink := newMemSink()
			Expect(prog.CopyTo(sink)).To(Succeed())
			for i, b := range code {
				Expect(sink.bytes[0x8000_0000+uint64(i)]).To(Equal(b))
			}
		})

		It("should zero-fill the BSS tail", func() {
			elfPath := filepath.Join(tempDir, "bss-copy.elf")
			writeELF(elfPath, elfFixture{
				entry: 0x8000_0000,
				segments: []elfSegment{
					dataSegment(0x8002_0000, []byte{0xAA}, 8),
				},
			})
			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			sink := newMemSink()
			// pre-stain the BSS range so the zero fill is observable
			for i := uint64(0); i < 8; i++ {
				sink.bytes[0x8002_0000+i] = 0xFF
			}
			Expect(prog.CopyTo(sink)).To(Succeed())

			Expect(sink.bytes[0x8002_0000]).To(Equal(byte(0xAA)))
			for i := uint64(1); i < 8; i++ {
				Expect(sink.bytes[0x8002_0000+i]).To(Equal(byte(0)), "BSS byte %d", i)
			}
		})

		It("should surface sink failures", func() {
			elfPath := filepath.Join(tempDir, "fail.elf")
			writeELF(elfPath, elfFixture{
				entry:    0x8000_0000,
				segments: []elfSegment{codeSegment(0x8000_0000, []byte{0x13})},
			})
			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			sink := newMemSink()
			sink.fail = errors.New("window too small")
			Expect(prog.CopyTo(sink)).To(MatchError(sink.fail))
		})
	})
})

// memSink is a sparse in-memory MemorySink.
type memSink struct {
	bytes map[uint64]byte
	fail  error
}

func newMemSink() *memSink {
	return &memSink{bytes: make(map[uint64]byte)}
}

func (s *memSink) CopyFromHost(dest uint64, data []byte) error {
	if s.fail != nil {
		return s.fail
	}
	for i, b := range data {
		s.bytes[dest+uint64(i)] = b
	}
	return nil
}

const emRISCV = 243

// elfSegment describes one program header in a fixture. A zero ptype
// means PT_LOAD.
type elfSegment struct {
	ptype uint32
	flags uint32
	vaddr uint64
	data  []byte
	memsz uint64
}

func codeSegment(vaddr uint64, code []byte) elfSegment {
	return elfSegment{flags: 0x5, vaddr: vaddr, data: code, memsz: uint64(len(code))}
}

func dataSegment(vaddr uint64, data []byte, memsz uint64) elfSegment {
	return elfSegment{flags: 0x6, vaddr: vaddr, data: data, memsz: memsz}
}

type elfSymbol struct {
	name  string
	value uint64
}

type elfFixture struct {
	machine  uint16 // zero means RISC-V
	entry    uint64
	segments []elfSegment
	symbols  []elfSymbol
}

// writeELF builds a minimal ELF64 executable: header, program headers,
// segment data, and (when symbols are given) a symtab/strtab section
// pair so debug/elf can resolve names.
func writeELF(path string, fx elfFixture) {
	machine := fx.machine
	if machine == 0 {
		machine = emRISCV
	}

	const (
		ehSize = 64
		phSize = 56
		shSize = 64
	)
	phnum := len(fx.segments)
	dataOff := uint64(ehSize + phSize*phnum)

	// Segment data is laid out back to back after the headers.
	segOffsets := make([]uint64, phnum)
	off := dataOff
	for i, seg := range fx.segments {
		segOffsets[i] = off
		off += uint64(len(seg.data))
	}

	// Optional symbol sections follow the segment data.
	var strtab, symtab, shstrtab []byte
	var strtabOff, symtabOff, shstrtabOff, shOff uint64
	shnum := 0
	if len(fx.symbols) > 0 {
		strtab = []byte{0}
		symtab = make([]byte, 24) // the null symbol entry
		for _, sym := range fx.symbols {
			nameOff := uint32(len(strtab))
			strtab = append(strtab, sym.name...)
			strtab = append(strtab, 0)

			ent := make([]byte, 24)
			binary.LittleEndian.PutUint32(ent[0:4], nameOff)
			ent[4] = 0x12                                   // GLOBAL, FUNC
			binary.LittleEndian.PutUint16(ent[6:8], 0xFFF1) // SHN_ABS
			binary.LittleEndian.PutUint64(ent[8:16], sym.value)
			symtab = append(symtab, ent...)
		}
		shstrtab = []byte("\x00.symtab\x00.strtab\x00.shstrtab\x00")

		symtabOff = off
		off += uint64(len(symtab))
		strtabOff = off
		off += uint64(len(strtab))
		shstrtabOff = off
		off += uint64(len(shstrtab))
		shOff = off
		shnum = 4
	}

	buf := make([]byte, ehSize)
	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // little endian
	buf[6] = 1 // version
	binary.LittleEndian.PutUint16(buf[16:18], 2) // ET_EXEC
	binary.LittleEndian.PutUint16(buf[18:20], machine)
	binary.LittleEndian.PutUint32(buf[20:24], 1)
	binary.LittleEndian.PutUint64(buf[24:32], fx.entry)
	binary.LittleEndian.PutUint64(buf[32:40], ehSize) // phoff
	binary.LittleEndian.PutUint64(buf[40:48], shOff)
	binary.LittleEndian.PutUint16(buf[52:54], ehSize)
	binary.LittleEndian.PutUint16(buf[54:56], phSize)
	binary.LittleEndian.PutUint16(buf[56:58], uint16(phnum))
	binary.LittleEndian.PutUint16(buf[58:60], shSize)
	binary.LittleEndian.PutUint16(buf[60:62], uint16(shnum))
	binary.LittleEndian.PutUint16(buf[62:64], 3) // shstrndx

	for i, seg := range fx.segments {
		ptype := seg.ptype
		if ptype == 0 {
			ptype = 1 // PT_LOAD
		}
		ph := make([]byte, phSize)
		binary.LittleEndian.PutUint32(ph[0:4], ptype)
		binary.LittleEndian.PutUint32(ph[4:8], seg.flags)
		binary.LittleEndian.PutUint64(ph[8:16], segOffsets[i])
		binary.LittleEndian.PutUint64(ph[16:24], seg.vaddr)
		binary.LittleEndian.PutUint64(ph[24:32], seg.vaddr)
		binary.LittleEndian.PutUint64(ph[32:40], uint64(len(seg.data)))
		binary.LittleEndian.PutUint64(ph[40:48], seg.memsz)
		binary.LittleEndian.PutUint64(ph[48:56], 0x1000)
		buf = append(buf, ph...)
	}

	for _, seg := range fx.segments {
		buf = append(buf, seg.data...)
	}

	if shnum > 0 {
		buf = append(buf, symtab...)
		buf = append(buf, strtab...)
		buf = append(buf, shstrtab...)

		sh := func(nameOff, shtype uint32, off, size uint64, link, info uint32, entsize uint64) []byte {
			b := make([]byte, shSize)
			binary.LittleEndian.PutUint32(b[0:4], nameOff)
			binary.LittleEndian.PutUint32(b[4:8], shtype)
			binary.LittleEndian.PutUint64(b[24:32], off)
			binary.LittleEndian.PutUint64(b[32:40], size)
			binary.LittleEndian.PutUint32(b[40:44], link)
			binary.LittleEndian.PutUint32(b[44:48], info)
			binary.LittleEndian.PutUint64(b[48:56], 1) // addralign
			binary.LittleEndian.PutUint64(b[56:64], entsize)
			return b
		}
		buf = append(buf, make([]byte, shSize)...) // SHT_NULL
		buf = append(buf, sh(1, 2, symtabOff, uint64(len(symtab)), 2, 1, 24)...)
		buf = append(buf, sh(9, 3, strtabOff, uint64(len(strtab)), 0, 0, 0)...)
		buf = append(buf, sh(17, 3, shstrtabOff, uint64(len(shstrtab)), 0, 0, 0)...)
	}

	Expect(os.WriteFile(path, buf, 0644)).To(Succeed())
}

// writeELF32 builds a minimal ELF32 RISC-V executable with one code
// segment.
func writeELF32(path string, loadAddr uint64, code []byte) {
	const (
		ehSize = 52
		phSize = 32
	)
	buf := make([]byte, ehSize)
	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = 1 // ELFCLASS32
	buf[5] = 1
	buf[6] = 1
	binary.LittleEndian.PutUint16(buf[16:18], 2)
	binary.LittleEndian.PutUint16(buf[18:20], emRISCV)
	binary.LittleEndian.PutUint32(buf[20:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(loadAddr)) // entry
	binary.LittleEndian.PutUint32(buf[28:32], ehSize)           // phoff
	binary.LittleEndian.PutUint16(buf[40:42], ehSize)
	binary.LittleEndian.PutUint16(buf[42:44], phSize)
	binary.LittleEndian.PutUint16(buf[44:46], 1) // phnum

	ph := make([]byte, phSize)
	binary.LittleEndian.PutUint32(ph[0:4], 1) // PT_LOAD
	binary.LittleEndian.PutUint32(ph[4:8], ehSize+phSize)
	binary.LittleEndian.PutUint32(ph[8:12], uint32(loadAddr))
	binary.LittleEndian.PutUint32(ph[12:16], uint32(loadAddr))
	binary.LittleEndian.PutUint32(ph[16:20], uint32(len(code))) // filesz
	binary.LittleEndian.PutUint32(ph[20:24], uint32(len(code))) // memsz
	binary.LittleEndian.PutUint32(ph[24:28], 0x5)               // flags
	binary.LittleEndian.PutUint32(ph[28:32], 0x1000)            // align

	buf = append(buf, ph...)
	buf = append(buf, code...)
	Expect(os.WriteFile(path, buf, 0644)).To(Succeed())
}

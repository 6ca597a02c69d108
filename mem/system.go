package mem

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/riscv-software-src/hartsim/hart"
	"github.com/riscv-software-src/hartsim/isa"
)

// Proxy-kernel call numbers the system services directly, following
// the Linux RISC-V numbering. Everything else falls through to the
// architectural exception.
const (
	sysOpenat = 56
	sysClose  = 57
	sysLseek  = 62
	sysRead   = 63
	sysWrite  = 64
	sysFstat  = 80
	sysExit   = 93
	sysBrk    = 214
)

// Linux error numbers, returned to the guest as -errno.
const (
	errnoENOENT = 2
	errnoEIO    = 5
	errnoEBADF  = 9
	errnoEFAULT = 14
	errnoEINVAL = 22
)

// Linux open(2) flag bits as the RISC-V ABI defines them.
const (
	linuxOCreat  = 0x40
	linuxOExcl   = 0x80
	linuxOTrunc  = 0x200
	linuxOAppend = 0x400
)

// cacheBlockBytes is the naturally aligned granule CacheBlockZero
// clears.
const cacheBlockBytes = 64

// System assembles physical memory, the attribute map, and the
// translation caches into the SoC boundary a hart runs against. One
// System serves one hart; nothing here locks.
type System struct {
	phys *PhysMem
	pmas *PMATable
	tlbs *SoftTLB
	fdt  *FDTable

	console io.Writer
	stdin   io.Reader
	brk     uint64
	clock   uint64
	timeDiv uint64
}

// SystemOption configures a System at construction.
type SystemOption func(*System)

// WithConsole directs guest writes to fd 1 and 2 at the given writer.
// Without one, write calls to those descriptors fall through to the
// architectural trap.
func WithConsole(w io.Writer) SystemOption {
	return func(s *System) { s.console = w }
}

// WithStdin feeds guest reads of fd 0 from the given reader. Without
// one, such reads return end of file.
func WithStdin(r io.Reader) SystemOption {
	return func(s *System) { s.stdin = r }
}

// WithInitialBrk sets the program break the brk call starts from,
// normally the end of the loaded image.
func WithInitialBrk(addr uint64) SystemOption {
	return func(s *System) { s.brk = addr }
}

// WithTimeDivisor sets how many cycles advance one tick of the time
// counter.
func WithTimeDivisor(div uint64) SystemOption {
	return func(s *System) {
		if div == 0 {
			panic("mem: time divisor of zero")
		}
		s.timeDiv = div
	}
}

// NewSystem builds a System over the given memory and attribute map.
func NewSystem(phys *PhysMem, pmas *PMATable, opts ...SystemOption) *System {
	if phys == nil {
		panic("mem: nil physical memory")
	}
	if pmas == nil {
		panic("mem: nil PMA table")
	}
	s := &System{
		phys:    phys,
		pmas:    pmas,
		tlbs:    NewSoftTLB(),
		fdt:     NewFDTable(),
		timeDiv: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phys returns the physical memory window, the loader's copy-in
// target.
func (s *System) Phys() *PhysMem { return s.phys }

// TLBs returns the translation caches the translation fences operate
// on.
func (s *System) TLBs() *SoftTLB { return s.tlbs }

// FDs returns the descriptor table behind the proxied file calls.
func (s *System) FDs() *FDTable { return s.fdt }

// Clock returns the cycle count. Every physical access costs one
// cycle; Tick adds whatever else the platform wants to account.
func (s *System) Clock() uint64 { return s.clock }

// Tick advances the cycle counter by n.
func (s *System) Tick(n uint64) { s.clock += n }

func (s *System) ReadPhys(addr uint64, size int) (uint64, error) {
	s.clock++
	return s.phys.Read(addr, size)
}

func (s *System) WritePhys(addr uint64, size int, value uint64) error {
	s.clock++
	return s.phys.Write(addr, size, value)
}

// CompareAndSwap is a plain read-compare-write: the System serves a
// single hart, so no stronger atomicity exists to violate.
func (s *System) CompareAndSwap(addr uint64, size int, expected, desired uint64) (uint64, bool, error) {
	s.clock++
	old, err := s.phys.Read(addr, size)
	if err != nil {
		return 0, false, err
	}
	if old != expected {
		return old, false, nil
	}
	if err := s.phys.Write(addr, size, desired); err != nil {
		return 0, false, err
	}
	return old, true, nil
}

func (s *System) AtomicRMW(addr uint64, size int, op isa.AMOOp, operand uint64) (uint64, error) {
	s.clock++
	old, err := s.phys.Read(addr, size)
	if err != nil {
		return 0, err
	}
	if err := s.phys.Write(addr, size, isa.ApplyAMO(op, size, old, operand)); err != nil {
		return 0, err
	}
	return old, nil
}

func (s *System) CacheBlockZero(addr uint64) error {
	s.clock++
	return s.phys.Zero(addr&^uint64(cacheBlockBytes-1), cacheBlockBytes)
}

// Prefetches are hints and the memory model is flat, so they only
// cost time.
func (s *System) PrefetchInst(addr uint64) { s.clock++ }

func (s *System) PrefetchData(addr uint64, forWrite bool) { s.clock++ }

// Ordering fences are no-ops for a single in-order hart; they only
// cost time.
func (s *System) Fence(pred, succ uint8) { s.clock++ }

func (s *System) FenceTSO() { s.clock++ }

// FenceI orders the instruction stream. The hart flushes its own
// decoded blocks; nothing is cached here.
func (s *System) FenceI() { s.clock++ }

// The translation fences map one-to-one onto the cache invalidation
// granularities, applied to the plain supervisor stage.
func (s *System) SFenceAll() { s.tlbs.FenceAll(StageS) }

func (s *System) SFenceASID(asid uint16) { s.tlbs.FenceASID(StageS, asid) }

func (s *System) SFenceVAddr(vaddr uint64) { s.tlbs.FenceVAddr(StageS, vaddr) }

func (s *System) SFenceVAddrASID(vaddr uint64, asid uint16) {
	s.tlbs.FenceVAddrASID(StageS, vaddr, asid)
}

// The split invalidation fences are served conservatively: the whole
// stage goes.
func (s *System) SFenceWInval() { s.tlbs.FenceAll(StageS) }

func (s *System) SFenceInvalIR() { s.tlbs.FenceAll(StageS) }

// EnvCall services the proxy-kernel calls the system implements
// directly: exit stops the run with the guest's status, and the file
// calls are forwarded to the console, stdin, or the descriptor table.
// Failures inside a handled call return -errno the Linux way. Call
// numbers outside the proxy set are unhandled and trap architecturally.
func (s *System) EnvCall(mode isa.Mode, args [8]uint64) (uint64, hart.Signal, bool) {
	switch args[7] {
	case sysExit:
		return 0, hart.Exit(int64(args[0]), "guest exit call"), true
	case sysRead:
		return s.callRead(args[0], args[1], args[2])
	case sysWrite:
		return s.callWrite(args[0], args[1], args[2])
	case sysOpenat:
		return s.callOpenat(args[1], args[2], args[3])
	case sysClose:
		return s.callClose(args[0])
	case sysLseek:
		return s.callLseek(args[0], args[1], args[2])
	case sysFstat:
		return s.callFstat(args[0], args[1])
	case sysBrk:
		return s.callBrk(args[0])
	default:
		return 0, hart.OK(), false
	}
}

func (s *System) callRead(fd, ptr, count uint64) (uint64, hart.Signal, bool) {
	if fd == 1 || fd == 2 {
		return errnoValue(errnoEBADF), hart.OK(), true
	}
	if !s.phys.Contains(ptr, count) {
		return errnoValue(errnoEFAULT), hart.OK(), true
	}

	var src io.Reader
	if fd == 0 {
		if s.stdin == nil {
			return 0, hart.OK(), true // end of file
		}
		src = s.stdin
	} else {
		entry, ok := s.fdt.Get(fd)
		if !ok || entry.HostFile == nil {
			return errnoValue(errnoEBADF), hart.OK(), true
		}
		src = entry.HostFile
	}

	buf := make([]byte, count)
	n, err := src.Read(buf)
	if n == 0 && err != nil {
		if err == io.EOF {
			return 0, hart.OK(), true
		}
		return errnoValue(errnoEIO), hart.OK(), true
	}
	if err := s.phys.WriteBytes(ptr, buf[:n]); err != nil {
		return errnoValue(errnoEFAULT), hart.OK(), true
	}
	return uint64(n), hart.OK(), true
}

func (s *System) callWrite(fd, ptr, count uint64) (uint64, hart.Signal, bool) {
	if fd == 1 || fd == 2 {
		if s.console == nil {
			return 0, hart.OK(), false
		}
		buf, err := s.phys.ReadBytes(ptr, count)
		if err != nil {
			return errnoValue(errnoEFAULT), hart.OK(), true
		}
		n, err := s.console.Write(buf)
		if err != nil {
			return errnoValue(errnoEIO), hart.OK(), true
		}
		return uint64(n), hart.OK(), true
	}

	if fd == 0 || !s.fdt.IsOpen(fd) {
		return errnoValue(errnoEBADF), hart.OK(), true
	}
	buf, err := s.phys.ReadBytes(ptr, count)
	if err != nil {
		return errnoValue(errnoEFAULT), hart.OK(), true
	}
	n, err := s.fdt.Write(fd, buf)
	if err != nil {
		return errnoValue(errnoEIO), hart.OK(), true
	}
	return uint64(n), hart.OK(), true
}

// callOpenat ignores the directory descriptor: relative paths resolve
// against the host working directory, the way a proxy kernel runs.
func (s *System) callOpenat(pathPtr, flags, mode uint64) (uint64, hart.Signal, bool) {
	path, err := s.readCString(pathPtr)
	if err != nil {
		return errnoValue(errnoEFAULT), hart.OK(), true
	}
	fd, err := s.fdt.Open(path, openFlags(flags), os.FileMode(mode&0o777))
	if err != nil {
		return errnoValue(errnoENOENT), hart.OK(), true
	}
	return fd, hart.OK(), true
}

func (s *System) callClose(fd uint64) (uint64, hart.Signal, bool) {
	if err := s.fdt.Close(fd); err != nil {
		return errnoValue(errnoEBADF), hart.OK(), true
	}
	return 0, hart.OK(), true
}

func (s *System) callLseek(fd, offset, whence uint64) (uint64, hart.Signal, bool) {
	if !s.fdt.IsOpen(fd) {
		return errnoValue(errnoEBADF), hart.OK(), true
	}
	if whence > 2 {
		return errnoValue(errnoEINVAL), hart.OK(), true
	}
	pos, err := s.fdt.Seek(fd, int64(offset), int(whence))
	if err != nil {
		return errnoValue(errnoEINVAL), hart.OK(), true
	}
	return uint64(pos), hart.OK(), true
}

func (s *System) callFstat(fd, statPtr uint64) (uint64, hart.Signal, bool) {
	fi, err := s.fdt.Stat(fd)
	if err != nil {
		return errnoValue(errnoEBADF), hart.OK(), true
	}
	if err := s.phys.WriteBytes(statPtr, encodeStat(fi)); err != nil {
		return errnoValue(errnoEFAULT), hart.OK(), true
	}
	return 0, hart.OK(), true
}

// callBrk serves the minimal break protocol: zero queries the current
// break, anything inside physical memory moves it. A refused move
// returns the unchanged break, which is how Linux signals failure.
func (s *System) callBrk(addr uint64) (uint64, hart.Signal, bool) {
	if addr != 0 && s.phys.Contains(addr, 0) {
		s.brk = addr
	}
	return s.brk, hart.OK(), true
}

// readCString pulls a NUL-terminated string out of guest memory. Paths
// longer than the Linux maximum are refused rather than chased across
// the address space.
func (s *System) readCString(addr uint64) (string, error) {
	const pathMax = 4096
	var buf []byte
	for i := uint64(0); i < pathMax; i++ {
		b, err := s.phys.ReadBytes(addr+i, 1)
		if err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(buf), nil
		}
		buf = append(buf, b[0])
	}
	return "", fmt.Errorf("unterminated string at %#x", addr)
}

// errnoValue encodes a failed call's return, -errno in two's
// complement.
func errnoValue(errno int64) uint64 { return uint64(-errno) }

// openFlags translates Linux open(2) flags into the host's. The access
// mode bits map one-to-one.
func openFlags(linux uint64) int {
	flags := int(linux & 0x3)
	if linux&linuxOCreat != 0 {
		flags |= os.O_CREATE
	}
	if linux&linuxOExcl != 0 {
		flags |= os.O_EXCL
	}
	if linux&linuxOTrunc != 0 {
		flags |= os.O_TRUNC
	}
	if linux&linuxOAppend != 0 {
		flags |= os.O_APPEND
	}
	return flags
}

// Sizes of the Linux struct stat as the RISC-V ABI lays it out.
const (
	statSize      = 128
	statBlockSize = 4096
)

// encodeStat fills the fields a guest libc actually consults: mode,
// link count, size, and block geometry. Timestamps stay zero.
func encodeStat(fi os.FileInfo) []byte {
	buf := make([]byte, statSize)
	binary.LittleEndian.PutUint32(buf[16:], unixMode(fi))
	binary.LittleEndian.PutUint32(buf[20:], 1)
	binary.LittleEndian.PutUint64(buf[48:], uint64(fi.Size()))
	binary.LittleEndian.PutUint32(buf[56:], statBlockSize)
	binary.LittleEndian.PutUint64(buf[64:], uint64((fi.Size()+511)/512))
	return buf
}

// unixMode folds a host file mode into POSIX mode bits.
func unixMode(fi os.FileInfo) uint32 {
	mode := uint32(fi.Mode().Perm())
	switch {
	case fi.IsDir():
		mode |= 0o040000
	case fi.Mode()&os.ModeCharDevice != 0:
		mode |= 0o020000
	default:
		mode |= 0o100000
	}
	return mode
}

// Breakpoint leaves ebreak to the architecture.
func (s *System) Breakpoint(mode isa.Mode, pc uint64) hart.Signal {
	return hart.OK()
}

// ModeChange has nothing to switch: translation context is read from
// satp on every walk, and the caches tag entries by address space.
func (s *System) ModeChange(old, new isa.Mode) {}

func (s *System) PMA(addr uint64, size int) isa.PMA {
	return s.pmas.Query(addr, uint64(size))
}

func (s *System) ReadCycle() uint64 { return s.clock }

func (s *System) ReadTime() uint64 { return s.clock / s.timeDiv }

// ReadHPMCounter backs the optional performance counters, none of
// which this platform implements.
func (s *System) ReadHPMCounter(idx int) uint64 { return 0 }

var _ hart.SoC = (*System)(nil)

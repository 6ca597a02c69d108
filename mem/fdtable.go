package mem

import (
	"os"
	"time"
)

// FileDescriptor is one slot in the guest's descriptor table.
type FileDescriptor struct {
	HostFile *os.File // backing host file, nil for the standard streams
	Path     string
	Flags    int
	Open     bool
}

// FDTable maps guest file descriptors onto host files for the
// proxied environment calls. Descriptors 0 through 2 come pre-opened
// as the standard streams; allocation starts at 3. Like the rest of
// the System the table serves a single hart, so nothing locks.
type FDTable struct {
	fds    map[uint64]*FileDescriptor
	nextFD uint64
}

// NewFDTable returns a table with the standard streams open.
func NewFDTable() *FDTable {
	t := &FDTable{
		fds:    make(map[uint64]*FileDescriptor),
		nextFD: 3,
	}
	t.fds[0] = &FileDescriptor{Path: "stdin", Open: true}
	t.fds[1] = &FileDescriptor{Path: "stdout", Open: true}
	t.fds[2] = &FileDescriptor{Path: "stderr", Open: true}
	return t
}

// Open opens path on the host and binds it to a fresh descriptor.
func (t *FDTable) Open(path string, flags int, mode os.FileMode) (uint64, error) {
	hostFile, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return 0, err
	}

	fd := t.nextFD
	t.nextFD++
	t.fds[fd] = &FileDescriptor{
		HostFile: hostFile,
		Path:     path,
		Flags:    flags,
		Open:     true,
	}
	return fd, nil
}

// Close releases a descriptor. The standard streams can be closed from
// the guest's point of view without touching anything on the host.
func (t *FDTable) Close(fd uint64) error {
	entry, ok := t.fds[fd]
	if !ok || !entry.Open {
		return os.ErrInvalid
	}

	if fd <= 2 {
		entry.Open = false
		return nil
	}

	if entry.HostFile != nil {
		if err := entry.HostFile.Close(); err != nil {
			return err
		}
	}
	entry.HostFile = nil
	entry.Open = false
	return nil
}

// Get returns the entry behind an open descriptor.
func (t *FDTable) Get(fd uint64) (*FileDescriptor, bool) {
	entry, ok := t.fds[fd]
	if !ok || !entry.Open {
		return nil, false
	}
	return entry, true
}

// IsOpen reports whether the descriptor is open.
func (t *FDTable) IsOpen(fd uint64) bool {
	entry, ok := t.fds[fd]
	return ok && entry.Open
}

// Read fills buf from the descriptor's host file. The standard input
// belongs to the System, not the table.
func (t *FDTable) Read(fd uint64, buf []byte) (int, error) {
	entry, ok := t.fds[fd]
	if !ok || !entry.Open || entry.HostFile == nil {
		return 0, os.ErrInvalid
	}
	return entry.HostFile.Read(buf)
}

// Write sends buf to the descriptor's host file. The standard output
// streams belong to the System, not the table.
func (t *FDTable) Write(fd uint64, buf []byte) (int, error) {
	entry, ok := t.fds[fd]
	if !ok || !entry.Open || entry.HostFile == nil {
		return 0, os.ErrInvalid
	}
	return entry.HostFile.Write(buf)
}

// Stat describes the file behind the descriptor. The standard streams
// report as character devices.
func (t *FDTable) Stat(fd uint64) (os.FileInfo, error) {
	entry, ok := t.fds[fd]
	if !ok || !entry.Open {
		return nil, os.ErrInvalid
	}
	if fd <= 2 {
		return &stdioFileInfo{name: entry.Path}, nil
	}
	if entry.HostFile == nil {
		return nil, os.ErrInvalid
	}
	return entry.HostFile.Stat()
}

// Seek repositions the descriptor. The standard streams cannot seek.
func (t *FDTable) Seek(fd uint64, offset int64, whence int) (int64, error) {
	entry, ok := t.fds[fd]
	if !ok || !entry.Open || entry.HostFile == nil {
		return 0, os.ErrInvalid
	}
	return entry.HostFile.Seek(offset, whence)
}

// stdioFileInfo stands in for the standard streams, which have no host
// file to stat.
type stdioFileInfo struct {
	name string
}

func (f *stdioFileInfo) Name() string       { return f.name }
func (f *stdioFileInfo) Size() int64        { return 0 }
func (f *stdioFileInfo) Mode() os.FileMode  { return os.ModeCharDevice | 0666 }
func (f *stdioFileInfo) ModTime() time.Time { return time.Time{} }
func (f *stdioFileInfo) IsDir() bool        { return false }
func (f *stdioFileInfo) Sys() interface{}   { return nil }

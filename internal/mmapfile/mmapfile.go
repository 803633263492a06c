// Package mmapfile manages a single growable, file-backed memory
// mapping: allocate, grow by fixed increment, shrink to an exact
// size, and finalize (unmap and truncate to the write offset) or
// release the mapping without truncating. It
// wraps golang.org/x/sys/unix the way internal/uring wraps raw
// io_uring/mmap syscalls in the teacher (see minimal.go's
// unix.Mmap-backed submission/completion ring setup), generalized
// here to a file-backed region that must grow and shrink in place
// rather than a fixed-size anonymous ring buffer.
package mmapfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Map is a growable mmap'd view onto a regular file opened for
// read-write. Offset tracks the number of meaningful bytes written
// so far; it is always <= len(data), the current mapped-region size.
type Map struct {
	file   *os.File
	data   []byte
	offset int64
}

// New maps the first initialSize bytes of f, which must already be
// ftruncate'd to at least that length.
func New(f *os.File, initialSize int64) (*Map, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(initialSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: mmap: %w", err)
	}
	return &Map{file: f, data: data}, nil
}

// OpenReadOnly maps the first size bytes of f read-only, for read-mode shards.
func OpenReadOnly(f *os.File, size int64) (*Map, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: mmap: %w", err)
	}
	return &Map{file: f, data: data, offset: size}, nil
}

// Bytes returns the full mapped region. Len(Bytes()) is the mapped
// capacity, not the write offset; use Offset for the latter.
func (m *Map) Bytes() []byte { return m.data }

// Offset returns the byte offset of the next write (the repurposed
// "size" field in the design: the mapped region's true capacity is
// len(m.data), which may exceed Offset until Finalize shrinks it).
func (m *Map) Offset() int64 { return m.offset }

// Len is the current mapped-region length in bytes.
func (m *Map) Len() int64 { return int64(len(m.data)) }

// EnsureCapacity grows the mapping in fixed increments of growth
// bytes until it can hold n more bytes past the current offset. It
// returns an error if the grow fails.
func (m *Map) EnsureCapacity(n int, growth int64) error {
	need := m.offset + int64(n)
	if need <= int64(len(m.data)) {
		return nil
	}
	newSize := int64(len(m.data))
	for newSize < need {
		newSize += growth
	}
	return m.growTo(newSize)
}

// growTo resizes the backing file to newSize and remaps, preserving
// existing contents. golang.org/x/sys/unix does not expose mremap on
// all platforms this module targets, so growth here follows the
// design note's fallback: ftruncate, unmap, remap — contents below
// the old length survive because the file itself (not just the
// mapping) holds them.
func (m *Map) growTo(newSize int64) error {
	if err := m.file.Truncate(newSize); err != nil {
		return fmt.Errorf("mmapfile: truncate: %w", err)
	}
	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("mmapfile: munmap during grow: %w", err)
	}
	data, err := unix.Mmap(int(m.file.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmapfile: remap: %w", err)
	}
	m.data = data
	return nil
}

// Write appends p at the current offset, growing the mapping first
// if needed, and advances the offset.
func (m *Map) Write(p []byte, growth int64) error {
	if err := m.EnsureCapacity(len(p), growth); err != nil {
		return err
	}
	copy(m.data[m.offset:], p)
	m.offset += int64(len(p))
	return nil
}

// Finalize shrinks the mapping to the exact write offset (truncating
// the backing file to that length) and unmaps it. Call before
// closing the underlying file.
func (m *Map) Finalize() error {
	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("mmapfile: munmap: %w", err)
	}
	m.data = nil
	if err := m.file.Truncate(m.offset); err != nil {
		return fmt.Errorf("mmapfile: final truncate: %w", err)
	}
	return nil
}

// Unmap releases the mapping without truncating the file, restoring
// "size" semantics for callers (e.g. a read-only SG accessor close
// routine) that expect the mapped length unchanged.
func (m *Map) Unmap() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	if err != nil {
		return fmt.Errorf("mmapfile: munmap: %w", err)
	}
	return nil
}

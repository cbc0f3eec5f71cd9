// Package arena provides the growable write buffer backing a buffered zone
// file. Unlike a conventional suballocator, there is exactly one live
// allocation per Buffer: the logical prefix of bytes a WAL write stream has
// accepted, indexed by file offset from zero. Capacity grows geometrically,
// aligned up to a 1KiB boundary with a 4KiB floor, and is backed by an
// anonymous mmap when available so large buffers don't pressure the Go heap.
package arena

import (
	"errors"
	"sync"

	"znswal/internal/arch"
	"znswal/internal/mmap"
)

const (
	// floorSize is the smallest capacity ever allocated for a buffer.
	floorSize = 4 * 1024
	// alignSize is the boundary every grown capacity is rounded up to.
	alignSize = 1024
	// maxSize caps how large a single buffer may grow. A write stream
	// demanding more than this is almost certainly a corrupt offset rather
	// than a legitimate unflushed WAL prefix, so Ensure refuses to even
	// attempt the allocation. Kept under 1<<32 so it still fits a 32-bit
	// uint on the arch32 build.
	maxSize = 1 << 30 // 1 GiB
)

// ErrOutOfMemory is returned by Ensure when the requested capacity exceeds
// maxSize.
var ErrOutOfMemory = errors.New("arena: allocation exceeds maximum buffer size")

// Buffer is a growable byte buffer. Len tracks the valid logical prefix;
// bytes beyond Len are unspecified leftovers from a previous grow and must
// not be read by callers.
type Buffer struct {
	length  arch.AtomicUint
	buf     []byte
	mmapped bool
	closed  sync.Once
	mu      sync.Mutex
}

// New returns an empty Buffer. Backing storage is not allocated until the
// first call to Ensure, matching the lazy-allocation contract of a fresh
// buffered zone file handle.
func New() *Buffer {
	return &Buffer{}
}

// growTo computes the next capacity that accommodates need bytes.
func growTo(current, need uint) uint {
	size := current * 2
	if size < need {
		size = need
	}
	if size < floorSize {
		size = floorSize
	}
	return (size + alignSize - 1) &^ (alignSize - 1)
}

// Ensure grows the buffer's capacity to at least need bytes, preserving the
// existing logical prefix. It is a no-op if the capacity is already
// sufficient.
func (b *Buffer) Ensure(need uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if uint(len(b.buf)) >= need {
		return nil
	}
	if need > maxSize {
		return ErrOutOfMemory
	}

	newCap := growTo(uint(len(b.buf)), need)
	newBuf, err := mmap.New(int(newCap))
	mmapped := true
	if err != nil {
		newBuf = make([]byte, newCap)
		mmapped = false
	}
	copy(newBuf, b.buf)

	old, oldMmapped := b.buf, b.mmapped
	b.buf = newBuf
	b.mmapped = mmapped
	if oldMmapped && old != nil {
		_ = mmap.Free(old)
	}
	return nil
}

// Write copies p into the buffer starting at offset, growing capacity first
// if necessary. The caller is responsible for updating Len.
func (b *Buffer) Write(p []byte, offset uint) error {
	if err := b.Ensure(offset + uint(len(p))); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.buf[offset:], p)
	return nil
}

// Slice returns the backing bytes in [start, end). The caller must not
// retain the slice past the next Ensure call, which may reallocate.
func (b *Buffer) Slice(start, end uint) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf[start:end]
}

// Len returns the valid logical prefix length. Safe to call without holding
// any other lock; backed by an atomic counter so file-size reporting never
// blocks on a concurrent write.
func (b *Buffer) Len() uint {
	return uint(b.length.Load())
}

// SetLen updates the valid logical prefix length.
func (b *Buffer) SetLen(n uint) {
	b.length.Store(arch.UintToArchSize(n))
}

// Close releases the backing storage. Safe to call multiple times.
func (b *Buffer) Close() error {
	var err error
	b.closed.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.mmapped && b.buf != nil {
			err = mmap.Free(b.buf)
		}
		b.buf = nil
	})
	return err
}

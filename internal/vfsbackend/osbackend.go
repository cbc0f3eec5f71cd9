package vfsbackend

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// NewOSBackend returns the reference pass-through Backend: plain os.File
// I/O against the real filesystem. It stands in for the host OS backend
// spec §1 treats as an external collaborator — the engine's own VFS layer
// in production, a fake in tests.
func NewOSBackend() Backend {
	return &osBackend{}
}

type osBackend struct {
	mu        sync.Mutex
	lastError error
}

func (b *osBackend) toOSFlags(flags OpenFlags) int {
	var f int
	switch {
	case flags.Has(OpenReadWrite):
		f = os.O_RDWR
	default:
		f = os.O_RDONLY
	}
	if flags.Has(OpenCreate) {
		f |= os.O_CREATE
	}
	return f
}

func (b *osBackend) Open(name string, flags OpenFlags) (File, OpenFlags, error) {
	f, err := os.OpenFile(name, b.toOSFlags(flags), 0644)
	if err != nil {
		b.setLastError(err)
		return nil, 0, err
	}
	if flags.Has(OpenDeleteOnClose) {
		// Best effort: unlink immediately so the inode is reclaimed on
		// close even if the caller never calls Delete explicitly.
		_ = os.Remove(name)
	}
	return &osFile{f: f, path: name}, flags, nil
}

func (b *osBackend) Delete(name string, syncDir bool) error {
	if err := os.Remove(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		b.setLastError(err)
		return err
	}
	if syncDir {
		dir, err := os.Open(filepath.Dir(name))
		if err != nil {
			return nil
		}
		defer func() { _ = dir.Close() }()
		_ = dir.Sync()
	}
	return nil
}

func (b *osBackend) Access(name string, mode AccessMode) (bool, error) {
	info, err := os.Stat(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if mode == AccessReadWrite {
		return info.Mode().Perm()&0200 != 0, nil
	}
	return true, nil
}

func (b *osBackend) FullPathname(name string) (string, error) {
	return filepath.Abs(name)
}

func (b *osBackend) DlOpen(path string) (Handle, error) {
	return 0, fmt.Errorf("vfsbackend: dynamic loading not supported")
}

func (b *osBackend) DlError() string { return "" }

func (b *osBackend) DlSym(h Handle, sym string) (uintptr, error) {
	return 0, fmt.Errorf("vfsbackend: dynamic loading not supported")
}

func (b *osBackend) DlClose(h Handle) {}

func (b *osBackend) Randomness(buf []byte) int {
	n, _ := rand.Read(buf)
	return n
}

func (b *osBackend) Sleep(d time.Duration) time.Duration {
	time.Sleep(d)
	return d
}

func (b *osBackend) CurrentTime() time.Time { return time.Now() }

func (b *osBackend) CurrentTimeUnixMilli() int64 { return time.Now().UnixMilli() }

func (b *osBackend) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastError
}

func (b *osBackend) setLastError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastError = err
}

// osFile is a thin delegate over *os.File — the non-ZNS handle shape spec
// §3 calls for: "a thin wrapper holding only inner and path; every method
// delegates."
type osFile struct {
	f       *os.File
	path    string
	shmMu   sync.Mutex
	shmPage [][]byte
}

func (f *osFile) Close() error { return f.f.Close() }

func (f *osFile) ReadAt(p []byte, off int64) (int, error) { return f.f.ReadAt(p, off) }

func (f *osFile) WriteAt(p []byte, off int64) (int, error) { return f.f.WriteAt(p, off) }

func (f *osFile) Truncate(size int64) error { return f.f.Truncate(size) }

func (f *osFile) Sync(flags SyncFlag) error { return f.f.Sync() }

func (f *osFile) Size() (int64, error) {
	info, err := f.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (f *osFile) Lock(level LockLevel) error {
	how := syscall.LOCK_SH
	if level >= LockReserved {
		how = syscall.LOCK_EX
	}
	return syscall.Flock(int(f.f.Fd()), how|syscall.LOCK_NB)
}

func (f *osFile) Unlock(level LockLevel) error {
	if level == LockNone {
		return syscall.Flock(int(f.f.Fd()), syscall.LOCK_UN)
	}
	return nil
}

func (f *osFile) CheckReservedLock() (bool, error) {
	// A best-effort probe: try a non-blocking exclusive lock; if it would
	// block, something else holds at least a reserved lock.
	fd := int(f.f.Fd())
	if err := syscall.Flock(fd, syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return true, nil
		}
		return false, err
	}
	_ = syscall.Flock(fd, syscall.LOCK_UN)
	return false, nil
}

func (f *osFile) FileControl(op FcntlOp, arg any) (any, error) {
	switch op {
	case FcntlFileDescriptor:
		return f.f.Fd(), nil
	default:
		return nil, nil
	}
}

func (f *osFile) SectorSize() int { return 4096 }

func (f *osFile) DeviceCharacteristics() DeviceCharacteristic { return 0 }

// ShmMap backs each shared-memory page with its own anonymous mapping. A
// real multi-process shared-memory index would need a file-backed mapping
// shared across processes, but spec §1 places shared-memory index files
// out of scope beyond pass-through, so this reference backend only needs
// single-process-correct storage for the index it stands in for.
func (f *osFile) ShmMap(page, pageSize int, extend bool) ([]byte, error) {
	f.shmMu.Lock()
	defer f.shmMu.Unlock()

	for len(f.shmPage) <= page {
		if !extend {
			return nil, nil
		}
		buf, err := mmapAnon(pageSize)
		if err != nil {
			return nil, err
		}
		f.shmPage = append(f.shmPage, buf)
	}
	return f.shmPage[page], nil
}

func (f *osFile) ShmLock(offset, n int, flags ShmLockFlag) error { return nil }

func (f *osFile) ShmBarrier() {}

func (f *osFile) ShmUnmap(delete bool) error {
	f.shmMu.Lock()
	defer f.shmMu.Unlock()
	for _, page := range f.shmPage {
		_ = munmapAnon(page)
	}
	f.shmPage = nil
	return nil
}

func (f *osFile) Fetch(off int64, amt int) ([]byte, error) { return nil, nil }

func (f *osFile) Unfetch(off int64, p []byte) error { return nil }

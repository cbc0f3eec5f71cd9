// Package vfsbackend defines the storage-backend plugin surface this module
// interposes on: a Backend that opens/deletes/probes named files, and the
// File method table each open handle exposes. It is the Go shape of the
// SQL engine's VFS plugin interface (spec §6) — open, per-file I/O, locking,
// shared memory, and the housekeeping methods (dynamic loader, randomness,
// clock, last error) a real engine also expects from its storage layer.
package vfsbackend

import (
	"io"
	"time"
)

// OpenFlags mirrors the engine's open-time flag bitmask. Only the bits this
// module inspects or strips are named; callers are free to set others.
type OpenFlags uint32

const (
	OpenReadOnly OpenFlags = 1 << iota
	OpenReadWrite
	OpenCreate
	OpenDeleteOnClose
	OpenExclusive
	OpenWAL // the engine sets this when opening a write-ahead log file
)

// Has reports whether all bits in mask are set.
func (f OpenFlags) Has(mask OpenFlags) bool { return f&mask == mask }

// AccessMode is the permission class probed by Backend.Access.
type AccessMode int

const (
	AccessExists AccessMode = iota
	AccessReadWrite
	AccessRead
)

// SyncFlag mirrors the engine's sync-call flags (normal vs. full fsync,
// data-only vs. data+metadata). The shim does not interpret these; it
// forwards them to the real backend's Sync.
type SyncFlag int

const (
	SyncNormal SyncFlag = iota
	SyncFull
	SyncDataOnly
)

// LockLevel is the engine's graduated lock scheme (none/shared/reserved/
// pending/exclusive), delegated entirely to the underlying backend per
// spec §5 — this module adds no locking of its own.
type LockLevel int

const (
	LockNone LockLevel = iota
	LockShared
	LockReserved
	LockPending
	LockExclusive
)

// FcntlOp identifies a file-control opcode. Opcodes this module recognizes
// get named constants; anything else passes through as-is.
type FcntlOp int

const (
	FcntlFileDescriptor FcntlOp = iota
	FcntlWALCheckpoint
	FcntlJournalPointer
)

// ShmLockFlag mirrors the shared-memory lock flag bitmask (lock/unlock,
// shared/exclusive).
type ShmLockFlag int

const (
	ShmLock ShmLockFlag = 1 << iota
	ShmUnlock
	ShmShared
	ShmExclusive
)

// DeviceCharacteristic is a bitmask of storage properties a File advertises
// to the engine (e.g. sequential-write-only, safe partial append). Spec
// §4.2/§9: buffered ZNS WAL files deliberately never advertise Sequential or
// SafeAppend, since buffering already absorbs the sequential-write
// constraint and the engine must keep rewriting WAL header/checksum bytes.
type DeviceCharacteristic uint32

const (
	Sequential DeviceCharacteristic = 1 << iota
	SafeAppend
	PowerSafeOverwrite
)

// Handle is an opaque dynamic-library handle, passed through unchanged.
type Handle uintptr

// Backend is the storage-backend plugin interface the engine drives every
// file-system operation through. Non-WAL paths (and WAL paths when ZNS mode
// is disabled) flow to a Backend implementation unmodified; this module's
// Interceptor wraps one Backend to redirect WAL paths onto zone files.
type Backend interface {
	Open(name string, flags OpenFlags) (File, OpenFlags, error)
	Delete(name string, syncDir bool) error
	Access(name string, mode AccessMode) (bool, error)
	FullPathname(name string) (string, error)

	DlOpen(path string) (Handle, error)
	DlError() string
	DlSym(h Handle, sym string) (uintptr, error)
	DlClose(h Handle)

	Randomness(buf []byte) int
	Sleep(d time.Duration) time.Duration
	CurrentTime() time.Time
	LastError() error
}

// OptionalBackend is implemented by a Backend that also supports the
// higher-resolution clock. Go interfaces have no optional methods, so
// Interceptor type-asserts for this the way the original VFS nil-checks
// xCurrentTimeInt64 on the wrapped vtable (original_source/src/os_zns.c).
type OptionalBackend interface {
	CurrentTimeUnixMilli() int64
}

// File is the per-open-handle method table (spec §6). Every method not
// given ZNS-specific behavior by zonefile.File delegates to the real
// handle unchanged.
type File interface {
	io.Closer

	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Truncate(size int64) error
	Sync(flags SyncFlag) error
	Size() (int64, error)

	Lock(level LockLevel) error
	Unlock(level LockLevel) error
	CheckReservedLock() (bool, error)

	FileControl(op FcntlOp, arg any) (any, error)
	SectorSize() int
	DeviceCharacteristics() DeviceCharacteristic

	ShmMap(page, pageSize int, extend bool) ([]byte, error)
	ShmLock(offset, n int, flags ShmLockFlag) error
	ShmBarrier()
	ShmUnmap(delete bool) error

	Fetch(off int64, amt int) ([]byte, error)
	Unfetch(off int64, p []byte) error
}

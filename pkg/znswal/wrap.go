package znswal

import (
	"errors"
	"fmt"

	"znswal/internal/arena"
	"znswal/internal/interceptor"
	"znswal/internal/vfsbackend"
	"znswal/internal/zonefile"
	"znswal/internal/zreset"
)

// translateErr maps the internal sentinel errors the Interceptor, the
// Buffered Zone File, and the Zone Reset Driver can return onto the public
// spec §7 sentinels in errors.go, the same way Enable already translates
// config.ErrCannotOpen/config.ErrMisuse. Any other error (including nil)
// passes through unchanged.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, interceptor.ErrResourceExhausted):
		return fmt.Errorf("%w: %v", ErrResourceExhausted, err)
	case errors.Is(err, zonefile.ErrWriteGap):
		return fmt.Errorf("%w: %v", ErrWriteGap, err)
	case errors.Is(err, zonefile.ErrFlushFailed):
		return fmt.Errorf("%w: %v", ErrFlushFailed, err)
	case errors.Is(err, zreset.ErrResetFailed):
		return fmt.Errorf("%w: %v", ErrResetFailed, err)
	case errors.Is(err, arena.ErrOutOfMemory):
		return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	default:
		return err
	}
}

// backend wraps the vfsbackend.Backend Wrap constructs (an *interceptor.
// Interceptor, in practice) so every error it returns, and every File it
// hands back, passes through translateErr.
type backend struct {
	vfsbackend.Backend
}

func wrapBackend(b vfsbackend.Backend) vfsbackend.Backend {
	return &backend{Backend: b}
}

func (b *backend) Open(name string, flags vfsbackend.OpenFlags) (vfsbackend.File, vfsbackend.OpenFlags, error) {
	f, gotFlags, err := b.Backend.Open(name, flags)
	if err != nil {
		return nil, gotFlags, translateErr(err)
	}
	return wrapFile(f), gotFlags, nil
}

func (b *backend) Delete(name string, syncDir bool) error {
	return translateErr(b.Backend.Delete(name, syncDir))
}

func (b *backend) Access(name string, mode vfsbackend.AccessMode) (bool, error) {
	ok, err := b.Backend.Access(name, mode)
	return ok, translateErr(err)
}

// CurrentTimeUnixMilli forwards the Interceptor's own OptionalBackend
// support so Wrap's return value keeps version-gating the high-resolution
// clock the same way the Interceptor does for its own fallback.
func (b *backend) CurrentTimeUnixMilli() int64 {
	if opt, ok := b.Backend.(vfsbackend.OptionalBackend); ok {
		return opt.CurrentTimeUnixMilli()
	}
	return b.Backend.CurrentTime().UnixMilli()
}

var (
	_ vfsbackend.Backend         = (*backend)(nil)
	_ vfsbackend.OptionalBackend = (*backend)(nil)
)

// file wraps a vfsbackend.File so write/flush/reset failures surface as the
// public sentinels.
type file struct {
	vfsbackend.File
}

func wrapFile(f vfsbackend.File) vfsbackend.File {
	return &file{File: f}
}

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	n, err := f.File.WriteAt(p, off)
	return n, translateErr(err)
}

func (f *file) Sync(flags vfsbackend.SyncFlag) error {
	return translateErr(f.File.Sync(flags))
}

func (f *file) Truncate(size int64) error {
	return translateErr(f.File.Truncate(size))
}

var _ vfsbackend.File = (*file)(nil)

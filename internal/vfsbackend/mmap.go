package vfsbackend

import "znswal/internal/mmap"

// mmapAnon and munmapAnon back each ShmMap page. Adapted from the arena
// allocator's use of anonymous mmap: same syscall, same all-or-nothing
// fallback is unnecessary here since a failed mmap should surface as an
// error rather than silently degrade to heap memory — shared-memory pages
// are meant to be mapped, not merely allocated.
func mmapAnon(size int) ([]byte, error) {
	return mmap.New(size)
}

func munmapAnon(buf []byte) error {
	return mmap.Free(buf)
}

//go:build linux

package zreset

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/ncw/directio"
	"golang.org/x/sys/unix"
)

// blkResetZone is BLKRESETZONE, _IOW(0x12, 103, struct blk_zone_range).
// golang.org/x/sys/unix does not expose this constant, so it is computed
// the same way the kernel header does (matching the #ifndef fallback in
// original_source/src/os_zns.c rather than copying the raw integer).
const blkResetZone = (1 << 30) | (0x12 << 8) | 103 | (16 << 16)

// blkZoneRange mirrors struct blk_zone_range from linux/blkzoned.h: a zone
// start sector and sector count, both in 512-byte sector units.
type blkZoneRange struct {
	sector uint64
	count  uint64
}

// resetZone reopens zonePath via directio (so the reopen itself doesn't
// populate the page cache with zone content) purely to obtain a file
// descriptor to ioctl against — no byte-level Read/Write happens through
// this handle, so the block-alignment padding directio applies to I/O never
// enters the picture here (see DESIGN.md for why the byte-exact flush path
// does not use directio).
func resetZone(zonePath string) error {
	f, err := directio.OpenFile(zonePath, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("%w: reopen %s: %v", ErrResetFailed, zonePath, err)
	}
	defer func() { _ = f.Close() }()

	// A zero sector/count range tells the kernel to reset starting at this
	// file's own zone, covering it in full — the driver never needs to
	// know the zone's absolute sector offset or length itself.
	rng := blkZoneRange{sector: 0, count: 0}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(blkResetZone), uintptr(unsafe.Pointer(&rng)))
	if errno != 0 {
		return fmt.Errorf("%w: ioctl %s: %v", ErrResetFailed, zonePath, errno)
	}
	return nil
}

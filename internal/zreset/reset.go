// Package zreset implements the Zone Reset Driver (spec §4.3): the single
// operation that reclaims a zone's write pointer to the start of the zone so
// it can be handed back to the Zone Manager as Free.
package zreset

import "errors"

var (
	// ErrResetFailed wraps any failure encountered while resetting a zone,
	// whether from the reopen step or the ioctl itself.
	ErrResetFailed = errors.New("zreset: zone reset failed")
	// ErrUnsupportedPlatform is wrapped, together with ErrResetFailed, in
	// the error Reset returns on platforms without a zone-reset ioctl,
	// matching the build-tag split used by the teacher's direct I/O helpers.
	ErrUnsupportedPlatform = errors.New("zreset: zone reset unsupported on this platform")
)

// Driver issues BLKRESETZONE against zone files. The zero value is usable.
type Driver struct{}

// New returns a ready-to-use Driver.
func New() *Driver { return &Driver{} }

// Reset reopens zonePath and resets its write pointer to the start of the
// zone (spec §4.3 "Reset"). It is implemented per-platform in reset_linux.go
// / reset_other.go.
func (d *Driver) Reset(zonePath string) error {
	return resetZone(zonePath)
}

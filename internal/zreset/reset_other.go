//go:build !linux

package zreset

import "fmt"

func resetZone(zonePath string) error {
	return fmt.Errorf("%w: %s: %w", ErrResetFailed, zonePath, ErrUnsupportedPlatform)
}

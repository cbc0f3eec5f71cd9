package znswal

import "errors"

// Sentinel errors surfaced across the public API, matching spec §7's error
// kinds.
var (
	ErrResourceExhausted = errors.New("znswal: no free zone available")
	ErrWriteGap          = errors.New("znswal: write would introduce a gap")
	ErrFlushFailed       = errors.New("znswal: buffer flush failed")
	ErrResetFailed       = errors.New("znswal: zone reset failed")
	ErrOutOfMemory       = errors.New("znswal: allocation failed")
	ErrCannotOpen        = errors.New("znswal: cannot open configured path")
	ErrMisuse            = errors.New("znswal: misuse")
)

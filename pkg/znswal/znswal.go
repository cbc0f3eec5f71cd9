// Package znswal is the public entry point for the ZNS-SSD-aware WAL
// storage-backend shim: a Configuration Gate plus a VFS Interceptor that
// can be layered in front of any vfsbackend.Backend.
package znswal

import (
	"errors"
	"fmt"

	"znswal/internal/config"
	"znswal/internal/interceptor"
	"znswal/internal/metrics"
	"znswal/internal/vfsbackend"
	"znswal/internal/zreset"
)

// Shim owns the Configuration Gate and Zone Reset Driver backing one or
// more Wrap'd backends. The zero value is not usable; construct one with
// New.
type Shim struct {
	gate        *config.Gate
	reset       *zreset.Driver
	metrics     *metrics.Registry
	initialRoot string
}

// New constructs a Shim, applying any Options. The Shim starts disabled
// unless WithRoot is given, in which case New enables it against that root.
func New(opts ...Option) (*Shim, error) {
	s := &Shim{
		gate:    config.New(),
		reset:   zreset.New(),
		metrics: metrics.DefaultRegistry(),
	}
	for _, opt := range opts {
		opt.apply(s)
	}
	if s.initialRoot != "" {
		if err := s.Enable(s.initialRoot); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Enable turns ZNS-WAL redirection on against root, validating it as an
// existing directory and (re)discovering its zone files (spec §4.5).
func (s *Shim) Enable(root string) error {
	if err := s.gate.Enable(root); err != nil {
		switch {
		case errors.Is(err, config.ErrCannotOpen):
			return fmt.Errorf("%w: %v", ErrCannotOpen, err)
		case errors.Is(err, config.ErrMisuse):
			return fmt.Errorf("%w: %v", ErrMisuse, err)
		default:
			return err
		}
	}
	return nil
}

// Disable turns ZNS-WAL redirection off and drops the owned zone registry.
func (s *Shim) Disable() {
	s.gate.Disable()
}

// IsEnabled reports whether ZNS-WAL mode is currently on.
func (s *Shim) IsEnabled() bool {
	return s.gate.IsEnabled()
}

// Wrap returns a vfsbackend.Backend that redirects classified WAL paths
// onto zone files managed by this Shim, and passes everything else to
// fallback unchanged. Errors surfaced through the returned Backend/File are
// translated to this package's sentinel errors (errors.go) so callers can
// errors.Is against the public API without reaching into internal packages.
func (s *Shim) Wrap(fallback vfsbackend.Backend) vfsbackend.Backend {
	ic := interceptor.New(fallback, s.gate, s.reset).WithRegistry(s.metrics)
	return wrapBackend(ic)
}

// Metrics returns the Prometheus registry this Shim reports to.
func (s *Shim) Metrics() *metrics.Registry {
	return s.metrics
}

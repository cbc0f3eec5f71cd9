// Package interceptor implements the VFS Interceptor (spec §4.4): it
// classifies every file-system operation the engine issues and redirects
// WAL traffic onto zone files, passing everything else straight through to
// the wrapped backend.
package interceptor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"znswal/internal/config"
	"znswal/internal/metrics"
	"znswal/internal/vfsbackend"
	"znswal/internal/zone"
	"znswal/internal/zonefile"
	"znswal/internal/zreset"
)

// ErrResourceExhausted is returned by Open when every zone is Allocated.
var ErrResourceExhausted = errors.New("interceptor: no free zone available")

// Interceptor implements vfsbackend.Backend, redirecting classified WAL
// paths onto zone files and delegating everything else to fallback.
type Interceptor struct {
	fallback vfsbackend.Backend
	gate     *config.Gate
	reset    *zreset.Driver
	metrics  *metrics.Registry
}

var _ vfsbackend.Backend = (*Interceptor)(nil)

// New wraps fallback with ZNS-WAL redirection, gated by gate and resetting
// zones via reset. Metrics are recorded against metrics.DefaultRegistry();
// use WithRegistry to point at a different one (tests typically do).
func New(fallback vfsbackend.Backend, gate *config.Gate, reset *zreset.Driver) *Interceptor {
	return &Interceptor{fallback: fallback, gate: gate, reset: reset, metrics: metrics.DefaultRegistry()}
}

// WithRegistry overrides the metrics registry Interceptor reports to.
func (i *Interceptor) WithRegistry(r *metrics.Registry) *Interceptor {
	i.metrics = r
	return i
}

func (i *Interceptor) refreshZoneStats(zones *zone.Manager) {
	s := zones.Stats()
	i.metrics.UpdateZoneStats(metrics.ZoneStats{Zones: s.Zones, Free: s.Free, Allocated: s.Allocated})
}

// classify implements is_zns_wal_path for the open path: the WAL-open flag
// bit, gated on the configuration being enabled (spec §4.4).
func (i *Interceptor) classify(path string, flags vfsbackend.OpenFlags) bool {
	if path == "" || !i.gate.IsEnabled() {
		return false
	}
	return flags.Has(vfsbackend.OpenWAL)
}

// classifyBySuffix implements is_zns_wal_path for delete/access: a
// case-insensitive "-wal" suffix, gated on the configuration being enabled
// (spec §4.4).
func (i *Interceptor) classifyBySuffix(path string) bool {
	if path == "" || !i.gate.IsEnabled() {
		return false
	}
	return strings.HasSuffix(strings.ToLower(path), "-wal")
}

// Open acquires a zone for classified WAL opens and wraps it in a
// zonefile.File, rolling back the zone allocation on any failure along the
// way (spec §4.4 "Open" steps 1-5).
func (i *Interceptor) Open(name string, flags vfsbackend.OpenFlags) (vfsbackend.File, vfsbackend.OpenFlags, error) {
	if !i.classify(name, flags) {
		return i.fallback.Open(name, flags)
	}

	zones := i.gate.Zones()
	if zones == nil {
		i.metrics.RecordOpenResourceExhausted()
		return nil, 0, ErrResourceExhausted
	}

	zonePath, ok := zones.Acquire(filepath.Base(name))
	if !ok {
		i.metrics.RecordOpenResourceExhausted()
		return nil, 0, ErrResourceExhausted
	}
	i.refreshZoneStats(zones)

	openFlags := flags &^ (vfsbackend.OpenCreate | vfsbackend.OpenDeleteOnClose)

	inner, gotFlags, err := i.fallback.Open(zonePath, openFlags)
	if err != nil {
		zones.Release(zonePath)
		i.refreshZoneStats(zones)
		return nil, 0, err
	}

	zf, err := zonefile.Open(inner, zonePath, zones, i.reset)
	if err != nil {
		result := multierror.Append(fmt.Errorf("interceptor: %w", err))
		if closeErr := inner.Close(); closeErr != nil {
			result = multierror.Append(result, closeErr)
		}
		zones.Release(zonePath)
		i.refreshZoneStats(zones)
		return nil, 0, result.ErrorOrNil()
	}
	zf.SetRecorder(i.metrics)

	return zf, gotFlags, nil
}

// Delete resets and unconditionally releases the zone mapped to name's WAL
// basename, succeeding regardless of the reset's own outcome (spec §4.4
// "Delete"). Unmapped names pass through to the fallback.
func (i *Interceptor) Delete(name string, syncDir bool) error {
	if !i.classifyBySuffix(name) {
		return i.fallback.Delete(name, syncDir)
	}

	zones := i.gate.Zones()
	if zones == nil {
		return i.fallback.Delete(name, syncDir)
	}

	zonePath, ok := zones.LookupByWAL(filepath.Base(name))
	if !ok {
		return i.fallback.Delete(name, syncDir)
	}

	resetErr := i.reset.Reset(zonePath)
	i.metrics.RecordZoneReset(resetErr)
	zones.Release(zonePath)
	i.refreshZoneStats(zones)
	return nil
}

// Access delegates to the mapped zone path when one exists; otherwise it
// reports the WAL as absent from the ZNS namespace (spec §4.4 "Access").
func (i *Interceptor) Access(name string, mode vfsbackend.AccessMode) (bool, error) {
	if !i.classifyBySuffix(name) {
		return i.fallback.Access(name, mode)
	}

	zones := i.gate.Zones()
	if zones == nil {
		return false, nil
	}

	zonePath, ok := zones.LookupByWAL(filepath.Base(name))
	if !ok {
		return false, nil
	}
	return i.fallback.Access(zonePath, mode)
}

func (i *Interceptor) FullPathname(name string) (string, error) { return i.fallback.FullPathname(name) }

func (i *Interceptor) DlOpen(path string) (vfsbackend.Handle, error) { return i.fallback.DlOpen(path) }

func (i *Interceptor) DlError() string { return i.fallback.DlError() }

func (i *Interceptor) DlSym(h vfsbackend.Handle, sym string) (uintptr, error) {
	return i.fallback.DlSym(h, sym)
}

func (i *Interceptor) DlClose(h vfsbackend.Handle) { i.fallback.DlClose(h) }

func (i *Interceptor) Randomness(buf []byte) int { return i.fallback.Randomness(buf) }

func (i *Interceptor) Sleep(d time.Duration) time.Duration { return i.fallback.Sleep(d) }

func (i *Interceptor) CurrentTime() time.Time { return i.fallback.CurrentTime() }

// CurrentTimeUnixMilli version-gates on the fallback's optional higher-
// resolution clock, matching the nil-checked xCurrentTimeInt64 pattern of
// original_source/src/os_zns.c — Go has no optional interface methods, so
// this type-asserts for vfsbackend.OptionalBackend instead.
func (i *Interceptor) CurrentTimeUnixMilli() int64 {
	if opt, ok := i.fallback.(vfsbackend.OptionalBackend); ok {
		return opt.CurrentTimeUnixMilli()
	}
	return i.fallback.CurrentTime().UnixMilli()
}

func (i *Interceptor) LastError() error { return i.fallback.LastError() }

// Package config implements the Configuration Gate (spec §4.5): the single
// process-wide enable/disable switch that owns the Zone Manager's lifecycle.
package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"

	"znswal/internal/zone"
)

var (
	// ErrCannotOpen is returned when Enable's path cannot be validated as an
	// existing directory.
	ErrCannotOpen = errors.New("config: cannot open path")
	// ErrMisuse is returned when Enable's path exists but is not a
	// directory.
	ErrMisuse = errors.New("config: path is not a directory")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("dir", func(fl validator.FieldLevel) bool {
		info, err := os.Stat(fl.Field().String())
		return err == nil && info.IsDir()
	})
	return v
}

// Options is validated before Enable commits to a path. The stock validator
// tag set has no existing-directory check, so "dir" is a custom tag
// registered in newValidator.
type Options struct {
	Root string `validate:"required,dir"`
}

// Gate is the single process-wide lazily-initialized structure guarding the
// ZNS-WAL enable flag, path, and owned Zone Manager behind one mutex (spec
// §9 "Process-wide state").
type Gate struct {
	mu      sync.Mutex
	enabled bool
	path    string
	zones   *zone.Manager
}

// New returns a disabled Gate. Callers typically hold a single process-wide
// instance.
func New() *Gate {
	return &Gate{}
}

// Enable validates path as an existing directory, (re)discovers zones
// against it, and flips the gate on. A failed init reverts to disabled and
// returns the init error (spec §4.5). Re-enabling with the same path is a
// cheap no-op; a different path tears down and rediscovers.
func (g *Gate) Enable(path string) error {
	if path == "" {
		g.Disable()
		return nil
	}

	opts := Options{Root: path}
	if err := validate.Struct(opts); err != nil {
		if info, statErr := os.Stat(path); statErr == nil {
			if !info.IsDir() {
				return fmt.Errorf("%w: %s", ErrMisuse, path)
			}
		}
		return fmt.Errorf("%w: %s: %v", ErrCannotOpen, path, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.enabled && g.path == path {
		return nil
	}

	zones, err := zone.Discover(path)
	if err != nil {
		g.enabled = false
		g.path = ""
		g.zones = nil
		return err
	}

	g.enabled = true
	g.path = path
	g.zones = zones
	return nil
}

// Disable clears the enabled flag and path and drops the owned Zone
// Manager (spec §4.5 "Disable").
func (g *Gate) Disable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = false
	g.path = ""
	g.zones = nil
}

// IsEnabled reports whether ZNS-WAL mode is currently on.
func (g *Gate) IsEnabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Path returns the currently configured root, or "" if disabled.
func (g *Gate) Path() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.path
}

// Zones returns the owned Zone Manager, or nil if disabled. Interceptor
// calls this on every classified operation, so callers must tolerate a nil
// result: Interceptor's Open then fails with ErrResourceExhausted, Access
// reports the WAL absent, and Delete passes through to the fallback.
func (g *Gate) Zones() *zone.Manager {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.zones
}

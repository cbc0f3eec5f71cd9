// Package zone implements the process-wide Zone Manager (spec §4.1): it
// discovers the fixed set of zone files under a root directory and mediates
// which WAL base name, if any, each zone is currently allocated to.
package zone

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"znswal/internal/arch"
)

// zoneNamePattern matches the zonefs sequential-file naming convention:
// four lowercase hex digits (spec §6, §4.1).
var zoneNamePattern = regexp.MustCompile(`^[0-9a-f]{4}$`)

var (
	// ErrNotInitialized names the state of a Manager that was never
	// successfully discovered. No Manager method returns it: a Manager only
	// exists after a successful Discover.
	ErrNotInitialized = errors.New("zone: manager not initialized")
	// ErrCannotOpen is returned when the configured root cannot be opened
	// as a directory during discovery.
	ErrCannotOpen = errors.New("zone: cannot open root directory")
)

type state int

const (
	stateFree state = iota
	stateAllocated
)

type record struct {
	path      string
	state     state
	mappedWAL string
}

// Stats is a point-in-time snapshot of zone allocation, read without taking
// the Manager's mutation mutex.
type Stats struct {
	Zones      int
	Free       int
	Allocated  int
}

// Manager is the process-wide zone registry. The zero value is not usable;
// construct one with Discover.
type Manager struct {
	root  string
	zones []record

	mu sync.Mutex

	allocated arch.AtomicInt // lock-free mirror of len(Allocated), for metrics
}

// Discover enumerates zoneNamePattern-matching regular (or unknown-type,
// since some pseudo-filesystems don't populate d_type) entries under root
// and builds the fixed zone set, all initially Free. Every call returns a
// new Manager and never touches an existing one; skipping rediscovery for
// an unchanged root is config.Gate.Enable's job, which calls Discover only
// when the root differs from the active one.
func Discover(root string) (*Manager, error) {
	dir, err := os.Open(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCannotOpen, root, err)
	}
	defer func() { _ = dir.Close() }()

	entries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCannotOpen, root, err)
	}

	m := &Manager{root: root}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if !zoneNamePattern.MatchString(entry.Name()) {
			continue
		}
		m.zones = append(m.zones, record{
			path:  filepath.Join(root, entry.Name()),
			state: stateFree,
		})
	}
	return m, nil
}

// Root returns the directory this Manager was discovered against.
func (m *Manager) Root() string { return m.root }

// Acquire returns the zone path mapped to walBaseName, allocating the
// lowest-index Free zone if no mapping exists yet. ok is false on
// exhaustion (spec §4.1 step 3).
func (m *Manager) Acquire(walBaseName string) (path string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.zones {
		if m.zones[i].state == stateAllocated && m.zones[i].mappedWAL == walBaseName {
			return m.zones[i].path, true
		}
	}

	for i := range m.zones {
		if m.zones[i].state == stateFree {
			m.zones[i].mappedWAL = walBaseName
			m.zones[i].state = stateAllocated
			m.allocated.Add(1)
			slog.Debug("zone: acquired", "zone", m.zones[i].path, "wal", walBaseName, "request", uuid.New().String())
			return m.zones[i].path, true
		}
	}

	return "", false
}

// Release clears the mapping for the zone at path, if any, returning it to
// Free. Releasing an already-free or unknown zone is a no-op logged as a
// warning (spec §4.1, §7).
func (m *Manager) Release(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.zones {
		if m.zones[i].path != path {
			continue
		}
		if m.zones[i].state != stateAllocated {
			slog.Warn("zone: release of already-free zone", "zone", path)
			return
		}
		slog.Debug("zone: released", "zone", path, "wal", m.zones[i].mappedWAL, "request", uuid.New().String())
		m.zones[i].mappedWAL = ""
		m.zones[i].state = stateFree
		m.allocated.Add(-1)
		return
	}
	slog.Warn("zone: release of unknown zone", "zone", path)
}

// LookupByWAL returns the zone path currently allocated to walBaseName, if
// any.
func (m *Manager) LookupByWAL(walBaseName string) (path string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.zones {
		if m.zones[i].state == stateAllocated && m.zones[i].mappedWAL == walBaseName {
			return m.zones[i].path, true
		}
	}
	return "", false
}

// Stats reports zone counts. Zones and the lock-free Allocated mirror are
// safe to read concurrently with Acquire/Release; Free is derived and may
// be off by one mid-mutation, which is acceptable for a metrics gauge.
func (m *Manager) Stats() Stats {
	total := len(m.zones)
	allocated := int(m.allocated.Load())
	if allocated < 0 {
		allocated = 0
	}
	return Stats{Zones: total, Allocated: allocated, Free: total - allocated}
}

package zone

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZones(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	return dir
}

func TestDiscover(t *testing.T) {
	// Scenario 1 (spec §8): root contains 0000, 0001, 0002, readme.txt.
	// After init, manager reports 3 zones, all Free.
	dir := writeZones(t, "0000", "0001", "0002", "readme.txt")

	m, err := Discover(dir)
	require.NoError(t, err)

	stats := m.Stats()
	assert.Equal(t, 3, stats.Zones)
	assert.Equal(t, 3, stats.Free)
	assert.Equal(t, 0, stats.Allocated)
}

func TestDiscoverCannotOpen(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrCannotOpen)
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	// Scenario 2 (spec §8).
	dir := writeZones(t, "0000", "0001")
	m, err := Discover(dir)
	require.NoError(t, err)

	zone0 := filepath.Join(dir, "0000")

	path, ok := m.Acquire("main-wal")
	require.True(t, ok)
	assert.Equal(t, zone0, path)

	// Re-acquiring the same WAL name returns the same mapping.
	path, ok = m.Acquire("main-wal")
	require.True(t, ok)
	assert.Equal(t, zone0, path)

	m.Release(zone0)

	path, ok = m.Acquire("other-wal")
	require.True(t, ok)
	assert.Equal(t, zone0, path)
}

func TestAcquirePrefersLowestIndexFreeZone(t *testing.T) {
	dir := writeZones(t, "0000", "0001", "0002")
	m, err := Discover(dir)
	require.NoError(t, err)

	p1, _ := m.Acquire("wal-a")
	assert.Equal(t, filepath.Join(dir, "0000"), p1)

	p2, _ := m.Acquire("wal-b")
	assert.Equal(t, filepath.Join(dir, "0001"), p2)

	m.Release(p1)

	p3, _ := m.Acquire("wal-c")
	assert.Equal(t, filepath.Join(dir, "0000"), p3)
}

func TestAcquireExhaustion(t *testing.T) {
	// Scenario 6 (spec §8): single zone root.
	dir := writeZones(t, "0000")
	m, err := Discover(dir)
	require.NoError(t, err)

	_, ok := m.Acquire("a-wal")
	require.True(t, ok)

	_, ok = m.Acquire("b-wal")
	assert.False(t, ok)
}

func TestReleaseAlreadyFreeIsNoop(t *testing.T) {
	dir := writeZones(t, "0000")
	m, err := Discover(dir)
	require.NoError(t, err)

	zone0 := filepath.Join(dir, "0000")
	m.Release(zone0) // never allocated; must not panic

	path, ok := m.Acquire("wal")
	require.True(t, ok)
	assert.Equal(t, zone0, path)
}

func TestLookupByWAL(t *testing.T) {
	dir := writeZones(t, "0000")
	m, err := Discover(dir)
	require.NoError(t, err)

	_, ok := m.LookupByWAL("db-wal")
	assert.False(t, ok)

	path, _ := m.Acquire("db-wal")

	found, ok := m.LookupByWAL("db-wal")
	require.True(t, ok)
	assert.Equal(t, path, found)
}

func TestInvariantMappedWALUniqueAndStateConsistent(t *testing.T) {
	dir := writeZones(t, "0000", "0001")
	m, err := Discover(dir)
	require.NoError(t, err)

	_, _ = m.Acquire("wal-a")
	_, _ = m.Acquire("wal-b")

	seen := map[string]bool{}
	for _, r := range m.zones {
		assert.Equal(t, r.state == stateAllocated, r.mappedWAL != "")
		if r.mappedWAL != "" {
			assert.False(t, seen[r.mappedWAL], "mapped WAL name reused across zones")
			seen[r.mappedWAL] = true
		}
	}
}

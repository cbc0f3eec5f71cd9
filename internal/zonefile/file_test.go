package zonefile

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"znswal/internal/vfsbackend"
)

// memFile is a minimal in-memory vfsbackend.File stand-in for a zone file,
// used so these tests exercise only the buffering contract, not a real
// filesystem.
type memFile struct {
	data   []byte
	fail   bool
	closed bool
}

var _ vfsbackend.File = (*memFile)(nil)

func (m *memFile) Close() error {
	m.closed = true
	return nil
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.data[off:])
	return n, nil
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if m.fail {
		return 0, errors.New("simulated write failure")
	}
	end := int(off) + len(p)
	if end > len(m.data) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:], p)
	return len(p), nil
}

func (m *memFile) Truncate(size int64) error {
	if int(size) <= len(m.data) {
		m.data = m.data[:size]
	}
	return nil
}

func (m *memFile) Sync(flags vfsbackend.SyncFlag) error { return nil }
func (m *memFile) Size() (int64, error)                 { return int64(len(m.data)), nil }

func (m *memFile) Lock(vfsbackend.LockLevel) error   { return nil }
func (m *memFile) Unlock(vfsbackend.LockLevel) error { return nil }
func (m *memFile) CheckReservedLock() (bool, error)  { return false, nil }

func (m *memFile) FileControl(vfsbackend.FcntlOp, any) (any, error) { return nil, nil }
func (m *memFile) SectorSize() int                                 { return 4096 }
func (m *memFile) DeviceCharacteristics() vfsbackend.DeviceCharacteristic {
	return 0
}

func (m *memFile) ShmMap(int, int, bool) ([]byte, error)           { return nil, nil }
func (m *memFile) ShmLock(int, int, vfsbackend.ShmLockFlag) error  { return nil }
func (m *memFile) ShmBarrier()                                     {}
func (m *memFile) ShmUnmap(bool) error                             { return nil }
func (m *memFile) Fetch(int64, int) ([]byte, error)                { return nil, nil }
func (m *memFile) Unfetch(int64, []byte) error                     { return nil }

type fakeReleaser struct{ released []string }

func (f *fakeReleaser) Release(path string) { f.released = append(f.released, path) }

type fakeResetter struct{ calls []string }

func (f *fakeResetter) Reset(zonePath string) error {
	f.calls = append(f.calls, zonePath)
	return nil
}

func newTestFile(t *testing.T, releaser Releaser, resetter Resetter) (*File, *memFile) {
	t.Helper()
	inner := &memFile{}
	f, err := Open(inner, "zone-path", releaser, resetter)
	require.NoError(t, err)
	return f, inner
}

func TestBufferedWriteSequenceAndSync(t *testing.T) {
	// Scenario 3 (spec §8): write 32 bytes at offset 0, write 8 bytes at
	// offset 24 (overwrite tail). file_size -> 32. sync -> OK. Physical
	// zone file size becomes 32 with merged bytes.
	f, inner := newTestFile(t, nil, nil)

	data := make([]byte, 32)
	for i := range data {
		data[i] = byte(i)
	}
	n, err := f.WriteAt(data, 0)
	require.NoError(t, err)
	assert.Equal(t, 32, n)

	tail := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	_, err = f.WriteAt(tail, 24)
	require.NoError(t, err)

	size, err := f.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 32, size)

	require.NoError(t, f.Sync(0))

	assert.Len(t, inner.data, 32)
	want := append(append([]byte{}, data[:24]...), tail...)
	assert.Equal(t, want, inner.data)
}

func TestTruncateZeroIsIdempotentAndResets(t *testing.T) {
	// Scenario 4 (spec §8).
	resetter := &fakeResetter{}
	f, _ := newTestFile(t, nil, resetter)

	_, err := f.WriteAt(make([]byte, 32), 0)
	require.NoError(t, err)
	require.NoError(t, f.Sync(0))

	require.NoError(t, f.Truncate(0))
	size, _ := f.Size()
	assert.EqualValues(t, 0, size)
	assert.Equal(t, []string{"zone-path"}, resetter.calls)

	// idempotent: second truncate(0) also succeeds, state stays zeroed.
	require.NoError(t, f.Truncate(0))
	size, _ = f.Size()
	assert.EqualValues(t, 0, size)
	assert.Len(t, resetter.calls, 2)
}

func TestTruncateNonZeroIsNoop(t *testing.T) {
	f, _ := newTestFile(t, nil, &fakeResetter{})

	_, err := f.WriteAt(make([]byte, 32), 0)
	require.NoError(t, err)

	require.NoError(t, f.Truncate(16))
	size, _ := f.Size()
	assert.EqualValues(t, 32, size, "non-zero truncate must not change logical size")
}

func TestWriteGapRejected(t *testing.T) {
	f, _ := newTestFile(t, nil, nil)

	_, err := f.WriteAt(make([]byte, 10), 0)
	require.NoError(t, err)

	// Append exactly at logical_size is accepted.
	_, err = f.WriteAt([]byte{1}, 10)
	require.NoError(t, err)

	// One byte beyond is a gap.
	_, err = f.WriteAt([]byte{1}, 12)
	assert.ErrorIs(t, err, ErrWriteGap)
}

func TestWriteAtZeroOverwritesBuffer(t *testing.T) {
	f, _ := newTestFile(t, nil, nil)

	_, err := f.WriteAt([]byte{1, 2, 3, 4}, 0)
	require.NoError(t, err)

	_, err = f.WriteAt([]byte{9, 9}, 0)
	require.NoError(t, err)

	size, _ := f.Size()
	assert.EqualValues(t, 4, size)
}

func TestCloseReleasesZoneAndClosesInner(t *testing.T) {
	releaser := &fakeReleaser{}
	f, inner := newTestFile(t, releaser, nil)

	require.NoError(t, f.Close())
	assert.Equal(t, []string{"zone-path"}, releaser.released)
	assert.True(t, inner.closed)
}

func TestFlushFailureLeavesFlushedUnchangedForRetry(t *testing.T) {
	inner := &memFile{}
	f, err := Open(inner, "zone-path", nil, nil)
	require.NoError(t, err)

	_, err = f.WriteAt([]byte{1, 2, 3}, 0)
	require.NoError(t, err)

	inner.fail = true
	err = f.Sync(0)
	assert.Error(t, err)

	inner.fail = false
	require.NoError(t, f.Sync(0))
	assert.Equal(t, []byte{1, 2, 3}, inner.data)
}

type fakeRecorder struct {
	buffered, flushed uint64
	flushes           int
	deleted           bool
}

func (r *fakeRecorder) SetHandleBytes(zonePath string, buffered, flushed uint64) {
	r.buffered, r.flushed = buffered, flushed
}

func (r *fakeRecorder) DeleteHandle(zonePath string) { r.deleted = true }

func (r *fakeRecorder) RecordFlush(d time.Duration) { r.flushes++ }

func TestRecorderTracksBufferedFlushedAndClose(t *testing.T) {
	f, _ := newTestFile(t, nil, nil)
	rec := &fakeRecorder{}
	f.SetRecorder(rec)

	_, err := f.WriteAt([]byte{1, 2, 3, 4}, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 4, rec.buffered)
	assert.EqualValues(t, 0, rec.flushed)

	require.NoError(t, f.Sync(0))
	assert.EqualValues(t, 4, rec.flushed)
	assert.Equal(t, 1, rec.flushes)

	require.NoError(t, f.Close())
	assert.True(t, rec.deleted)
}

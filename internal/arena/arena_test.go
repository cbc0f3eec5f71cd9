package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureGrowsAndPreservesPrefix(t *testing.T) {
	b := New()
	require.NoError(t, b.Ensure(8))
	require.NoError(t, b.Write([]byte{1, 2, 3, 4}, 0))

	require.NoError(t, b.Ensure(4097))
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Slice(0, 4))
}

func TestEnsureRejectsRunawaySize(t *testing.T) {
	b := New()
	err := b.Ensure(maxSize + 1)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestLenSetLenRoundTrip(t *testing.T) {
	b := New()
	require.NoError(t, b.Ensure(16))
	b.SetLen(10)
	assert.EqualValues(t, 10, b.Len())
}

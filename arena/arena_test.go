package arena

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManageOSMemoryRegistersArena(t *testing.T) {
	m, _, _ := newTestManager(Options{})

	a, id, err := manageBlocks(m, 8, false, -1, false)
	require.NoError(t, err)
	assert.Equal(t, ID(1), id)
	assert.Equal(t, uint(8), a.BlockCount())
	assert.Equal(t, uint(1), a.fieldCount)
	assert.True(t, a.allowDecommit, "uncommitted regions allow decommit")
	assert.NotNil(t, a.committed)
	assert.NotNil(t, a.purge)
	assert.Equal(t, -1, a.NumaNode())

	start, size := m.Area(id)
	assert.Equal(t, a.Start(), start)
	assert.Equal(t, uintptr(8)*BlockSize, size)
}

func TestManageOSMemoryTrailingBitsClaimed(t *testing.T) {
	m, _, _ := newTestManager(Options{})

	a, _, err := manageBlocks(m, 8, false, -1, false)
	require.NoError(t, err)

	// bits 8..63 of the single field are permanently in use
	var mask0 uint64 = ^uint64(0)
	mask0 <<= 8
	assert.Equal(t, mask0, a.inuse[0].Load())

	// a 70-block arena leaves 58 guard bits in the second field
	a2, _, err := manageBlocks(m, 70, false, -1, false)
	require.NoError(t, err)
	assert.Equal(t, uint(2), a2.fieldCount)
	assert.Zero(t, a2.inuse[0].Load())
	var mask1 uint64 = ^uint64(0)
	mask1 <<= 6
	assert.Equal(t, mask1, a2.inuse[1].Load())
}

func TestManageOSMemoryCommittedRegion(t *testing.T) {
	m, _, _ := newTestManager(Options{})

	a, _, err := manageBlocks(m, 4, true, -1, false)
	require.NoError(t, err)
	assert.False(t, a.allowDecommit, "committed regions cannot decommit")
	assert.Nil(t, a.committed)
	assert.Nil(t, a.purge)
}

func TestManageOSMemoryRejectsSubBlockRegion(t *testing.T) {
	m, _, _ := newTestManager(Options{})

	_, err := m.ManageOSMemory(0x1000000, BlockSize-1, false, false, true, -1, false)
	assert.ErrorIs(t, err, ErrTooSmall)
	assert.Zero(t, m.Count())
}

func TestRegistryOverflowDoesNotLeakSlot(t *testing.T) {
	m, _, _ := newTestManager(Options{})

	for i := 0; i < MaxArenas; i++ {
		_, id, err := manageBlocks(m, 1, true, -1, false)
		require.NoError(t, err)
		require.Equal(t, ID(i+1), id)
	}
	require.Equal(t, MaxArenas, m.Count())

	_, _, err := manageBlocks(m, 1, true, -1, false)
	assert.ErrorIs(t, err, ErrTooManyArenas)
	assert.Equal(t, MaxArenas, m.Count(), "failed registration must hand its slot back")
}

func TestRegistryIDsAreStable(t *testing.T) {
	m, _, _ := newTestManager(Options{})

	var starts []uintptr
	for i := 0; i < 5; i++ {
		a, id, err := manageBlocks(m, 1, true, -1, false)
		require.NoError(t, err)
		require.Equal(t, ID(i+1), id)
		starts = append(starts, a.Start())
	}
	for i, want := range starts {
		got, _ := m.Area(ID(i + 1))
		assert.Equal(t, want, got, "arena %d moved", i+1)
	}
}

func TestAreaUnknownArena(t *testing.T) {
	m, _, _ := newTestManager(Options{})
	for _, id := range []ID{None, 1, MaxArenas + 1, -3} {
		p, size := m.Area(id)
		assert.Zero(t, p, fmt.Sprintf("id=%d", id))
		assert.Zero(t, size)
	}
}

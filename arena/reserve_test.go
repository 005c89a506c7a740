package arena

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveOSMemoryRoundsUpAndRegisters(t *testing.T) {
	m, os, _ := newTestManager(Options{})

	id, err := m.ReserveOSMemory(BlockSize+1, false, false, false)
	require.NoError(t, err)
	require.Equal(t, ID(1), id)

	_, size := m.Area(id)
	assert.Equal(t, uintptr(2)*BlockSize, size, "size rounds up to whole blocks")
	require.Len(t, os.allocs, 1)
	assert.Equal(t, uintptr(2)*BlockSize, os.allocs[0].size)
}

func TestReserveOSMemoryFreesRegionWhenRegistryFull(t *testing.T) {
	m, os, _ := newTestManager(Options{})
	for i := 0; i < MaxArenas; i++ {
		_, _, err := manageBlocks(m, 1, true, -1, false)
		require.NoError(t, err)
	}

	_, err := m.ReserveOSMemory(BlockSize, false, false, false)
	assert.ErrorIs(t, err, ErrTooManyArenas)
	require.Len(t, os.frees, 1, "backing region returned to the OS")
	assert.Equal(t, os.allocs[0], os.frees[0])
}

func TestReserveOSMemoryOSRefusal(t *testing.T) {
	m, os, _ := newTestManager(Options{})
	os.failAlloc = true

	_, err := m.ReserveOSMemory(BlockSize, false, false, false)
	assert.ErrorIs(t, err, ErrNoMemory)
	assert.Zero(t, m.Count())
}

func TestReserveHugePagesAtRegistersLargeArena(t *testing.T) {
	m, os, _ := newTestManager(Options{})
	os.hugeGrant = 64 // plenty

	id, err := m.ReserveHugePagesAt(2, 0, 0, false)
	require.NoError(t, err)

	a := m.arenaAt(id.index())
	require.NotNil(t, a)
	assert.True(t, a.Large())
	assert.False(t, a.allowDecommit, "huge pages are always committed")
	assert.Equal(t, 0, a.NumaNode())
	assert.Equal(t, uint(2<<30/BlockSize), a.BlockCount())

	// large arenas only serve requests that allow large pages
	_, err = m.AllocAligned(Request{Size: BlockSize, Arena: id})
	assert.ErrorIs(t, err, ErrNoMemory)

	alloc, err := m.AllocAligned(Request{Size: BlockSize, AllowLarge: true, Arena: id})
	require.NoError(t, err)
	assert.True(t, alloc.Large)
	assert.True(t, alloc.Pinned)
	assert.True(t, alloc.Committed)
}

func TestReserveHugePagesPartialReservation(t *testing.T) {
	m, os, _ := newTestManager(Options{})
	os.hugeGrant = 1 // grant less than requested

	id, err := m.ReserveHugePagesAt(4, -1, 50*time.Millisecond, false)
	require.NoError(t, err, "a partial reservation is a success")

	_, size := m.Area(id)
	assert.Equal(t, uintptr(1)<<30, size, "arena sized to what was reserved")
}

func TestReserveHugePagesRefused(t *testing.T) {
	m, os, _ := newTestManager(Options{})
	os.hugeGrant = 0

	_, err := m.ReserveHugePagesAt(2, 0, 0, false)
	assert.ErrorIs(t, err, ErrNoMemory)
	assert.Zero(t, m.Count())
}

func TestReserveHugePagesNodeNormalized(t *testing.T) {
	m, os, _ := newTestManager(Options{})
	os.hugeGrant = 64
	os.numaCount = 2

	_, err := m.ReserveHugePagesAt(1, 5, 0, false)
	require.NoError(t, err)
	require.Len(t, os.hugeCalls, 1)
	assert.Equal(t, 1, os.hugeCalls[0].node, "node wraps modulo the node count")

	_, err = m.ReserveHugePagesAt(1, -7, 0, false)
	require.NoError(t, err)
	assert.Equal(t, -1, os.hugeCalls[1].node)
}

func TestInterleaveSplitsPagesAndTimeout(t *testing.T) {
	m, os, _ := newTestManager(Options{})
	os.hugeGrant = 64
	os.numaCount = 3

	require.NoError(t, m.ReserveHugePagesInterleave(7, 0, 900*time.Millisecond))

	require.Len(t, os.hugeCalls, 3)
	// 7 pages over 3 nodes: 3, 2, 2 — the first pages%n nodes get one extra
	assert.Equal(t, 3, os.hugeCalls[0].pages)
	assert.Equal(t, 2, os.hugeCalls[1].pages)
	assert.Equal(t, 2, os.hugeCalls[2].pages)
	for i, c := range os.hugeCalls {
		assert.Equal(t, i, c.node)
		assert.Equal(t, 900*time.Millisecond/3+50*time.Millisecond, c.timeout)
	}
	assert.Equal(t, 3, m.Count())
}

func TestInterleaveZeroPagesIsNoOp(t *testing.T) {
	m, os, _ := newTestManager(Options{})
	require.NoError(t, m.ReserveHugePagesInterleave(0, 2, time.Second))
	assert.Empty(t, os.hugeCalls)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, uintptr(1)<<30, opts.ArenaReserve)
	assert.Equal(t, 10*time.Millisecond, opts.PurgeDelay)
	assert.False(t, opts.ResetDecommits)
	assert.False(t, opts.LimitOSAlloc)
}

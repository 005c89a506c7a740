package arena

import (
	"github.com/joshuapare/arenakit/internal/bitmap"
	"github.com/joshuapare/arenakit/pkg/memid"
)

// Free returns an allocation to its arena, or to the OS for direct OS
// memory. For decommittable arenas the run is scheduled for purge before
// the inuse bits clear: while inuse is still set the purge engine cannot
// touch the run, so the blocks can never be decommitted out from under a
// racing allocator.
//
// An unknown arena or out-of-range block index yields ErrBadMemID and the
// free is a no-op. Freeing blocks that were not in use yields ErrDoubleFree;
// the bits that were set are still cleared.
func (m *Manager) Free(p, size, alignment, alignOffset uintptr, id memid.ID, allCommitted bool) error {
	if p == 0 || size == 0 {
		return nil
	}
	if id.IsOS() {
		// direct OS allocation, pass through
		m.os.FreeAligned(p, size, alignment, alignOffset, allCommitted)
		return nil
	}

	a := m.arenaAt(id.ArenaID() - 1)
	idx := bitmap.Index(id.Block())
	bcount := blockCountOf(size)

	if a == nil {
		errorf("trying to free from non-existent arena: %#x, size %d, memid %#x", p, size, uintptr(id))
		m.stats.invalidFrees.Add(1)
		return ErrBadMemID
	}
	if idx.Field() >= a.fieldCount {
		errorf("trying to free a non-existent arena block: %#x, size %d, memid %#x", p, size, uintptr(id))
		m.stats.invalidFrees.Add(1)
		return ErrBadMemID
	}

	if a.allowDecommit && a.purge != nil {
		m.schedulePurge(a, idx, bcount)
	}

	// make the run available to others again
	if !a.inuse.UnclaimAcross(bcount, idx) {
		errorf("trying to free an already freed block: %#x, size %d", p, size)
		m.stats.doubleFrees.Add(1)
		return ErrDoubleFree
	}
	m.stats.blocksFreed.Add(int64(bcount))
	return nil
}

package arena

import (
	"time"

	"github.com/joshuapare/arenakit/internal/bitmap"
)

// ManageOSMemory registers a caller-provided OS region as an arena. The
// region is used in whole blocks (the tail of a partial block is ignored)
// and must hold at least one. Large-page regions are always committed;
// decommit is only allowed for initially uncommitted regions. numaNode -1
// lets any node allocate here.
func (m *Manager) ManageOSMemory(start, size uintptr, isCommitted, isLarge, isZero bool, numaNode int, exclusive bool) (ID, error) {
	if size < BlockSize {
		return None, ErrTooSmall
	}
	if isLarge {
		isCommitted = true
	}
	allowDecommit := !isLarge && !isCommitted

	bcount := uint(size / BlockSize)
	fields := (bcount + bitmap.FieldBits - 1) / bitmap.FieldBits
	nbitmaps := uint(2)
	if allowDecommit {
		nbitmaps = 4
	}

	// one contiguous backing array carved into the per-state bitmaps
	backing := bitmap.New(nbitmaps * fields)
	a := &Arena{
		exclusive:     exclusive,
		start:         start,
		blockCount:    bcount,
		fieldCount:    fields,
		numaNode:      numaNode,
		zeroInit:      isZero,
		large:         isLarge,
		allowDecommit: allowDecommit,
		inuse:         backing[0:fields],
		dirty:         backing[fields : 2*fields],
	}
	if allowDecommit {
		a.committed = backing[2*fields : 3*fields]
		a.purge = backing[3*fields : 4*fields]
	}
	if a.committed != nil && isCommitted {
		for i := range a.committed {
			a.committed[i].Store(^uint64(0))
		}
	}

	// permanently claim the leftover bits of the last field so no run
	// can ever extend past block_count
	if post := fields*bitmap.FieldBits - bcount; post > 0 {
		a.inuse.ClaimAcross(post, bitmap.NewIndex(fields-1, bitmap.FieldBits-post))
	}

	id, ok := m.add(a)
	if !ok {
		return None, ErrTooManyArenas
	}
	return id, nil
}

// ReserveOSMemory reserves a fresh aligned OS region (rounded up to whole
// blocks) and registers it as an arena. The region is freed again when
// registration fails.
func (m *Manager) ReserveOSMemory(size uintptr, commit, allowLarge, exclusive bool) (ID, error) {
	size = alignUp(size, BlockSize) // whole blocks
	large := allowLarge
	start, err := m.os.AllocAligned(size, SegmentAlign, 0, commit, &large)
	if err != nil || start == 0 {
		return None, ErrNoMemory
	}
	id, err := m.ManageOSMemory(start, size, large || commit, large, true, -1, exclusive)
	if err != nil {
		m.os.FreeAligned(start, size, SegmentAlign, 0, commit || large)
		allocLogf("failed to reserve %d KiB memory", size/1024)
		return None, err
	}
	suffix := ""
	if large {
		suffix = " (in large os pages)"
	}
	allocLogf("reserved %d KiB memory%s", size/1024, suffix)
	return id, nil
}

// ReserveHugePagesAt reserves huge OS pages on one NUMA node and registers
// them as an always-committed large arena. Timeout expiry is a partial
// success: the arena covers however many pages were actually reserved.
func (m *Manager) ReserveHugePagesAt(pages, numaNode int, timeout time.Duration, exclusive bool) (ID, error) {
	if pages == 0 {
		return None, nil
	}
	if numaNode < -1 {
		numaNode = -1
	}
	if numaNode >= 0 {
		numaNode %= m.os.NumaNodeCount()
	}
	p, reserved, hsize, err := m.os.AllocHugePages(pages, numaNode, timeout)
	if err != nil || p == 0 || reserved == 0 {
		errorf("failed to reserve %d GiB huge pages", pages)
		return None, ErrNoMemory
	}
	allocLogf("numa node %d: reserved %d GiB huge pages (of the %d GiB requested)",
		numaNode, reserved, pages)

	id, err := m.ManageOSMemory(p, hsize, true, true, true, numaNode, exclusive)
	if err != nil {
		m.os.FreeHugePages(p, hsize)
		return None, err
	}
	return id, nil
}

// ReserveHugePagesInterleave spreads a huge-page reservation evenly over
// numaNodes nodes (0 means all detected nodes): each node gets
// pages/n, the first pages%n nodes one extra, and a per-node slice of the
// timeout plus a little slack.
func (m *Manager) ReserveHugePagesInterleave(pages, numaNodes int, timeout time.Duration) error {
	if pages == 0 {
		return nil
	}
	numaCount := numaNodes
	if numaCount <= 0 {
		numaCount = m.os.NumaNodeCount()
	}
	if numaCount <= 0 {
		numaCount = 1
	}
	pagesPer := pages / numaCount
	pagesMod := pages % numaCount
	var timeoutPer time.Duration
	if timeout != 0 {
		timeoutPer = timeout/time.Duration(numaCount) + 50*time.Millisecond
	}

	for node := 0; node < numaCount && pages > 0; node++ {
		nodePages := pagesPer // can be 0
		if node < pagesMod {
			nodePages++
		}
		if _, err := m.ReserveHugePagesAt(nodePages, node, timeoutPer, false); err != nil {
			return err
		}
		if pages < nodePages {
			pages = 0
		} else {
			pages -= nodePages
		}
	}
	return nil
}

package arena

import "github.com/joshuapare/arenakit/internal/bitmap"

// osPurge releases the physical backing of [p, p+size): decommit when the
// option asks for it (and the process is past preloading), reset
// otherwise. Reports whether the range was decommitted. OS failures leave
// the bitmaps untouched so the run is retried on a later cycle.
func (m *Manager) osPurge(p, size uintptr) bool {
	if m.opts.ResetDecommits && !m.os.Preloading() {
		if err := m.os.Decommit(p, size); err != nil {
			return false
		}
		m.stats.decommits.Add(1)
		return true
	}
	if err := m.os.Reset(p, size); err == nil {
		m.stats.resets.Add(1)
	}
	return false
}

// purgeNow purges a run immediately. A decommit clears the committed and
// purge bits; a reset leaves them (the memory stays committed, contents
// discardable, dirty bits conservatively set).
func (m *Manager) purgeNow(a *Arena, idx bitmap.Index, count uint) {
	p := a.start + uintptr(idx)*BlockSize
	size := uintptr(count) * BlockSize
	purgeLogf("purging %d block(s) at %#x in arena %d", count, p, a.id)
	if m.osPurge(p, size) {
		a.committed.UnclaimAcross(count, idx)
		a.purge.UnclaimAcross(count, idx)
	}
}

// schedulePurge marks a run for deferred purging, or purges immediately
// when deferral is disabled. A first pending purge sets the expiry to
// now+delay; later ones nudge it by delay/10 so bursts of frees coalesce
// into one pass.
func (m *Manager) schedulePurge(a *Arena, idx bitmap.Index, count uint) {
	delay := m.opts.PurgeDelay.Milliseconds()
	if m.os.Preloading() || delay == 0 {
		m.purgeNow(a, idx, count)
		return
	}
	if a.purgeExpire.Load() != 0 {
		a.purgeExpire.Add(delay / 10)
	} else {
		a.purgeExpire.Store(m.clock.NowMS() + delay)
	}
	a.purge.ClaimAcross(count, idx)
}

// purgeRange purges every run of set purge bits inside
// [startBit, startBit+bitLen) of field fieldIdx, using the caller's fresh
// snapshot of the purge field. Returns whether the whole range purged.
func (m *Manager) purgeRange(a *Arena, fieldIdx, startBit, bitLen uint, purge uint64) bool {
	end := startBit + bitLen
	bit := startBit
	all := false
	for bit < end {
		count := uint(0)
		for bit+count < end && purge&(uint64(1)<<(bit+count)) != 0 {
			count++
		}
		if count > 0 {
			m.purgeNow(a, bitmap.NewIndex(fieldIdx, bit), count)
			if count == bitLen {
				all = true
			}
		}
		bit += count + 1
	}
	return all
}

// tryPurge runs at most one purge pass over a single arena. Returns
// whether anything was purged.
//
// For each run of pending purge bits the engine first claims the matching
// inuse bits, shrinking the run until the claim succeeds: blocks a
// concurrent allocation re-acquired since scheduling are excluded and must
// not be touched. With the protective claim held the purge field is read
// again — an allocator that won the race cleared its purge bits under its
// own claim — and only the intersection is purged. The protective inuse
// bits are released as the final act.
func (m *Manager) tryPurge(a *Arena, now int64, force bool) bool {
	if !a.allowDecommit || a.purge == nil {
		return false
	}
	expire := a.purgeExpire.Load()
	if expire == 0 {
		return false
	}
	if !force && expire > now {
		return false
	}

	// reset expire (if not already reset concurrently)
	a.purgeExpire.CompareAndSwap(expire, 0)

	anyPurged := false
	for i := uint(0); i < a.fieldCount; i++ {
		purge := a.purge[i].Load()
		if purge == 0 {
			continue
		}
		bitIdx := uint(0)
		for bitIdx < bitmap.FieldBits {
			bitLen := uint(1)
			if purge&(uint64(1)<<bitIdx) != 0 {
				for bitIdx+bitLen < bitmap.FieldBits &&
					purge&(uint64(1)<<(bitIdx+bitLen)) != 0 {
					bitLen++
				}
				// try to claim the longest prefix of the run in inuse
				idx := bitmap.NewIndex(i, bitIdx)
				claimed := bitLen
				for claimed > 0 {
					if a.inuse.TryClaim(claimed, idx) {
						break
					}
					claimed--
				}
				if claimed > 0 {
					// re-read purge now that we hold the inuse bits
					purge = a.purge[i].Load()
					m.purgeRange(a, i, bitIdx, claimed, purge)
					anyPurged = true
					// release the protective claim
					a.inuse.UnclaimAcross(claimed, idx)
					bitLen = claimed
				} else {
					bitLen = 1 // make progress
				}
			}
			bitIdx += bitLen
		}
	}
	return anyPurged
}

// TryPurgeAll visits arenas with pending purges. At most one goroutine
// purges a manager's arenas at a time; concurrent callers on the same
// manager return immediately. The guard is per Manager, so separate
// managers can purge concurrently.
// With visitAll false the pass stops after the first arena that did useful
// work, bounding per-call latency while many calls still make progress
// everywhere. force purges runs whose deferral has not yet expired.
// Reports whether anything was purged.
func (m *Manager) TryPurgeAll(force, visitAll bool) bool {
	if m.os.Preloading() || m.opts.PurgeDelay == 0 {
		return false // nothing is ever scheduled
	}
	max := m.Count()
	if max == 0 {
		return false
	}

	// allow only one purger at a time
	if !m.purging.CompareAndSwap(false, true) {
		return false
	}
	defer m.purging.Store(false)

	now := m.clock.NowMS()
	budget := 1
	if visitAll {
		budget = max
	}
	any := false
	for i := 0; i < max; i++ {
		a := m.arenas[i].Load()
		if a == nil {
			break
		}
		if m.tryPurge(a, now, force) {
			any = true
			if budget <= 1 {
				break
			}
			budget--
		}
	}
	m.stats.purgePasses.Add(1)
	return any
}

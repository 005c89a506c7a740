package arena

import (
	"github.com/joshuapare/arenakit/internal/bitmap"
	"github.com/joshuapare/arenakit/pkg/memid"
)

// Request describes an allocation. The zero value asks for nothing; Size
// must be set. The current goroutine's NUMA node steers arena selection.
type Request struct {
	Size        uintptr
	Alignment   uintptr
	AlignOffset uintptr

	// Commit asks for the run to be physically committed before return.
	Commit bool

	// AllowLarge permits huge/large-page arenas (and huge-page OS
	// fallback) to serve the request.
	AllowLarge bool

	// Arena binds the request to one specific arena. None walks the
	// registry.
	Arena ID
}

// Allocation is the outcome of a successful request.
type Allocation struct {
	Ptr   uintptr
	MemID memid.ID

	// Committed reports whether the whole run is physically committed.
	Committed bool

	// Large reports huge/large OS page backing.
	Large bool

	// Pinned means the run can never be decommitted while allocated.
	Pinned bool

	// Zero reports that the run is known to be zero-filled.
	Zero bool
}

// Alloc allocates size bytes in whole blocks with SegmentAlign alignment,
// the strongest alignment an arena block run honors.
func (m *Manager) Alloc(size uintptr, commit, allowLarge bool, req ID) (Allocation, error) {
	return m.AllocAligned(Request{
		Size:       size,
		Alignment:  SegmentAlign,
		Commit:     commit,
		AllowLarge: allowLarge,
		Arena:      req,
	})
}

// AllocAligned allocates a contiguous run of blocks from an arena, or from
// the OS when no arena fits. Requests below MinObjSize, with alignment
// above SegmentAlign, or with a nonzero alignment offset always go to the
// OS. Returns ErrNoMemory when nothing can satisfy the request.
func (m *Manager) AllocAligned(req Request) (Allocation, error) {
	if req.Size == 0 {
		return Allocation{}, ErrTooSmall
	}

	if req.Size >= MinObjSize && req.Alignment <= SegmentAlign && req.AlignOffset == 0 {
		numa := m.os.CurrentNumaNode()
		if out, ok := m.allocate(numa, req); ok {
			return out, nil
		}

		// no arena fits: eagerly reserve a fresh one and retry, unless
		// the registry is already three-quarters full
		reserve := alignUp(m.opts.ArenaReserve, BlockSize)
		if reserve > 0 && reserve >= req.Size &&
			req.Arena == None &&
			m.Count() < 3*(MaxArenas/4) {
			if id, err := m.ReserveOSMemory(reserve, false, req.AllowLarge, false); err == nil {
				if out, ok := m.allocIn(id, numa, req); ok {
					return out, nil
				}
			}
		}
	}

	// finally, fall back to the OS
	if m.opts.LimitOSAlloc || req.Arena != None {
		return Allocation{}, ErrNoMemory
	}
	large := req.AllowLarge
	p, err := m.os.AllocAligned(req.Size, req.Alignment, req.AlignOffset, req.Commit, &large)
	if err != nil || p == 0 {
		return Allocation{}, ErrNoMemory
	}
	return Allocation{
		Ptr:       p,
		MemID:     memid.OS,
		Committed: req.Commit || large,
		Large:     large,
		Pinned:    large,
		Zero:      true,
	}, nil
}

// allocate walks the candidate arenas: a bound request tries only its
// arena; otherwise NUMA-local arenas are tried before remote ones. Large
// arenas are skipped unless the caller allows large pages.
func (m *Manager) allocate(numa int, req Request) (Allocation, bool) {
	max := m.Count()
	if max == 0 {
		return Allocation{}, false
	}
	bcount := blockCountOf(req.Size)

	if idx := req.Arena.index(); idx < MaxArenas {
		a := m.arenaAt(idx)
		if a == nil {
			return Allocation{}, false
		}
		if a.numaNode >= 0 && a.numaNode != numa {
			return Allocation{}, false
		}
		if a.large && !req.AllowLarge {
			return Allocation{}, false
		}
		return m.allocFrom(a, bcount, req)
	}

	// first pass: NUMA-local (or unpinned) arenas
	for i := 0; i < max; i++ {
		a := m.arenas[i].Load()
		if a == nil {
			break // publisher not yet visible: end reached
		}
		if (a.numaNode < 0 || a.numaNode == numa) && (req.AllowLarge || !a.large) {
			if out, ok := m.allocFrom(a, bcount, req); ok {
				return out, true
			}
		}
	}
	// second pass: arenas pinned to a foreign node
	for i := 0; i < max; i++ {
		a := m.arenas[i].Load()
		if a == nil {
			break
		}
		if (a.numaNode >= 0 && a.numaNode != numa) && (req.AllowLarge || !a.large) {
			if out, ok := m.allocFrom(a, bcount, req); ok {
				return out, true
			}
		}
	}
	return Allocation{}, false
}

// allocIn tries exactly one arena by id.
func (m *Manager) allocIn(id ID, numa int, req Request) (Allocation, bool) {
	a := m.arenaAt(id.index())
	if a == nil {
		return Allocation{}, false
	}
	if a.numaNode >= 0 && a.numaNode != numa {
		return Allocation{}, false
	}
	if a.large && !req.AllowLarge {
		return Allocation{}, false
	}
	return m.allocFrom(a, blockCountOf(req.Size), req)
}

// allocFrom claims a run of bcount blocks in one arena and settles the
// dirty/purge/commit state for the claimed run.
func (m *Manager) allocFrom(a *Arena, bcount uint, req Request) (Allocation, bool) {
	if !isSuitable(a.id, a.exclusive, req.Arena) {
		return Allocation{}, false
	}

	hint := bitmap.Index(a.searchIdx.Load())
	idx, ok := a.inuse.TryFindFromClaimAcross(hint.Field(), bcount)
	if !ok {
		return Allocation{}, false
	}
	// claimed it; start the next search here
	a.searchIdx.Store(uint64(idx))

	out := Allocation{
		Ptr:    a.start + uintptr(idx)*BlockSize,
		MemID:  memid.Encode(int(a.id), a.exclusive, uint(idx)),
		Large:  a.large,
		Pinned: a.large || !a.allowDecommit,
	}

	// none of the claimed blocks may stay scheduled for purge. Safe
	// against a concurrent purger: it only decommits blocks whose inuse
	// bits it can claim, and ours are already set.
	if a.purge != nil {
		a.purge.UnclaimAcross(bcount, idx)
	}

	// the run is zero iff every block was still unwritten
	allClean, _ := a.dirty.ClaimAcross(bcount, idx)
	out.Zero = allClean

	switch {
	case a.committed == nil:
		// arena is always committed
		out.Committed = true
	case req.Commit:
		_, anyUncommitted := a.committed.ClaimAcross(bcount, idx)
		if anyUncommitted {
			zeroed, err := m.os.Commit(out.Ptr, uintptr(bcount)*BlockSize)
			if err == nil {
				m.stats.commits.Add(1)
				if zeroed {
					out.Zero = true
				}
			}
		}
		out.Committed = true
	default:
		// no commit requested: report whether the run already is
		out.Committed = a.committed.IsClaimedAcross(bcount, idx)
	}

	m.stats.blocksClaimed.Add(int64(bcount))
	allocLogf("claimed %d block(s) at %#x in arena %d (zero=%v committed=%v)",
		bcount, out.Ptr, a.id, out.Zero, out.Committed)
	return out, true
}

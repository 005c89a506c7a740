// Package arena manages fixed areas of OS memory from which large block
// runs (>= 16 MiB) are allocated concurrently by higher-level allocators.
//
// # Overview
//
// An arena is a contiguous OS region carved into 32 MiB blocks. Per-block
// state lives in parallel atomic bitmaps: in-use (authoritative), dirty
// (written since last known zero state), and — for regions that may be
// decommitted — committed and purge-pending. Arenas are shared between
// goroutines and all coordination is via atomic operations; the manager
// never takes a lock on the allocation or free path.
//
// # Manager
//
// A Manager owns a bounded, append-only registry of arenas plus a
// single-purger guard. Arenas are registered once and live for the life of
// the process:
//
//	m := arena.NewManager(osmem.New(), osmem.NewClock(), arena.DefaultOptions())
//	id, err := m.ReserveOSMemory(1<<30, false, false, false)
//
// or use the shared Default() manager.
//
// # Allocation
//
//	alloc, err := m.AllocAligned(arena.Request{
//		Size:   64 << 20,
//		Commit: true,
//	})
//
// The returned Allocation carries the block run's address, an opaque
// memid.ID recording its provenance, and the commit/zero/pinned state of
// the run. Requests smaller than MinObjSize, with alignment above
// SegmentAlign, or with a nonzero alignment offset bypass arenas and go
// straight to the OS.
//
// # Freeing and purging
//
// Free returns a run to its arena. For decommittable arenas the run is
// first scheduled for a deferred purge; after the configured delay a
// maintenance call to TryPurgeAll decommits (or resets) the blocks and
// returns the physical pages to the OS. At most one purger runs at a time
// per Manager; separate managers do not share the guard.
//
// # Huge pages
//
// ReserveHugePagesAt and ReserveHugePagesInterleave reserve 1 GiB OS huge
// pages, optionally spread across NUMA nodes, and register them as
// always-committed arenas.
//
// # Related packages
//
//   - github.com/joshuapare/arenakit/internal/bitmap: the atomic claim primitive
//   - github.com/joshuapare/arenakit/internal/osmem: the OS memory backend
//   - github.com/joshuapare/arenakit/pkg/memid: the provenance token
package arena

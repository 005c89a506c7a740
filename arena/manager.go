package arena

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshuapare/arenakit/internal/osmem"
)

// OS is the operating-system memory collaborator consumed by the manager.
// internal/osmem provides the production implementation; tests substitute
// fakes.
type OS interface {
	// AllocAligned maps a region such that p+alignOffset is aligned to
	// align. With commit false the region is reserved but holds no
	// physical pages. *large asks for huge/large OS pages and is cleared
	// when the OS falls back to normal pages.
	AllocAligned(size, align, alignOffset uintptr, commit bool, large *bool) (uintptr, error)
	FreeAligned(p, size, align, alignOffset uintptr, committed bool)

	// Commit materialises physical pages; zeroed reports whether the OS
	// guarantees the committed range reads as zero.
	Commit(p, size uintptr) (zeroed bool, err error)
	Decommit(p, size uintptr) error
	Reset(p, size uintptr) error

	// AllocHugePages reserves up to pages 1 GiB huge pages; expiry of the
	// timeout yields a partial reservation, visible through reserved.
	AllocHugePages(pages, numaNode int, timeout time.Duration) (p uintptr, reserved int, hsize uintptr, err error)
	FreeHugePages(p, size uintptr)

	NumaNodeCount() int
	CurrentNumaNode() int

	// Preloading reports dynamic-linker early startup, during which
	// decommit is unsafe.
	Preloading() bool
}

// Clock provides monotonic millisecond timestamps for purge expiry.
type Clock interface {
	NowMS() int64
}

// Options are the tunables the manager consults. Storage and defaulting
// live with the caller; the manager only reads them.
type Options struct {
	// ArenaReserve is the size of eagerly-reserved new arenas when no
	// existing arena can satisfy a request. 0 disables eager reservation.
	ArenaReserve uintptr

	// PurgeDelay defers decommit of freed blocks. 0 purges immediately
	// on free.
	PurgeDelay time.Duration

	// ResetDecommits makes purging decommit instead of reset.
	ResetDecommits bool

	// LimitOSAlloc disables the direct-OS fallback.
	LimitOSAlloc bool
}

// DefaultOptions returns the stock tuning: 1 GiB eager reserves and a
// short purge deferral.
func DefaultOptions() Options {
	return Options{
		ArenaReserve: 1 << 30,
		PurgeDelay:   10 * time.Millisecond,
	}
}

// Manager owns the arena registry and its single-purger guard.
// The registry is append-only: a slot, once published, never changes.
type Manager struct {
	os    OS
	clock Clock
	opts  Options
	stats Stats

	arenas [MaxArenas]atomic.Pointer[Arena]
	count  atomic.Int64

	purging atomic.Bool // single-purger guard
}

// NewManager creates a manager over the given OS collaborator and clock.
func NewManager(os OS, clock Clock, opts Options) *Manager {
	return &Manager{os: os, clock: clock, opts: opts}
}

var defaultManager = sync.OnceValue(func() *Manager {
	return NewManager(osmem.New(), osmem.NewClock(), DefaultOptions())
})

// Default returns the lazily-created process-wide manager backed by the
// real OS.
func Default() *Manager { return defaultManager() }

// Count returns the number of registered arenas.
func (m *Manager) Count() int {
	n := int(m.count.Load())
	if n > MaxArenas {
		n = MaxArenas
	}
	return n
}

// arenaAt returns the arena at a registry index, or nil.
func (m *Manager) arenaAt(index int) *Arena {
	if index < 0 || index >= MaxArenas {
		return nil
	}
	return m.arenas[index].Load()
}

// add reserves a registry slot and publishes the arena. The slot index is
// taken by fetch-add so registration never blocks; on overflow the slot is
// handed back.
func (m *Manager) add(a *Arena) (ID, bool) {
	i := m.count.Add(1) - 1
	if i >= MaxArenas {
		m.count.Add(-1)
		return None, false
	}
	a.id = ID(i + 1)
	m.arenas[i].Store(a)
	return a.id, true
}

// Area returns the start address and size of a registered arena, or 0s.
func (m *Manager) Area(id ID) (uintptr, uintptr) {
	a := m.arenaAt(id.index())
	if a == nil {
		return 0, 0
	}
	return a.start, a.Size()
}

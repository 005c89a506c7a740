package arena

import (
	"sync/atomic"

	"github.com/joshuapare/arenakit/internal/bitmap"
)

const (
	// SegmentAlign is the strongest alignment an arena allocation honors.
	SegmentAlign = 8 << 20

	// BlockSize is the arena allocation unit.
	BlockSize = 4 * SegmentAlign // 32 MiB

	// MinObjSize is the smallest request served from an arena; anything
	// smaller goes straight to the OS.
	MinObjSize = BlockSize / 2

	// MaxArenas bounds the registry. The memid encoding reserves 7 bits
	// for arena ids, so this may be raised to 126 at most.
	MaxArenas = 64
)

// ID names a registered arena. The zero ID ("None") means no specific
// arena: allocations may come from any non-exclusive arena or the OS.
type ID int

// None is the unbound arena id.
const None ID = 0

// index converts an ID to its registry slot, or MaxArenas when unbound.
func (id ID) index() int {
	if id <= None {
		return MaxArenas
	}
	return int(id) - 1
}

// isSuitable reports whether an arena with the given id and exclusivity may
// serve a request bound to reqID. Unbound requests may only use
// non-exclusive arenas; a bound request matches exactly its arena.
func isSuitable(id ID, exclusive bool, reqID ID) bool {
	return (!exclusive && reqID == None) || id == reqID
}

// Arena describes one registered OS region. The layout fields are
// immutable after registration; only the atomic control words and bitmaps
// mutate.
type Arena struct {
	id         ID
	exclusive  bool
	start      uintptr
	blockCount uint
	fieldCount uint
	numaNode   int // -1 means any node
	zeroInit   bool
	large      bool // huge/large OS pages, always committed
	// allowDecommit is mutually exclusive with large and only set for
	// initially uncommitted regions.
	allowDecommit bool

	searchIdx   atomic.Uint64 // rotating hint: bit index of the last claim; its field seeds the next search
	purgeExpire atomic.Int64  // 0 = no purge pending, else earliest purge time (ms)

	// Parallel per-block bitmaps, carved from one contiguous backing
	// array. committed and purge are nil unless allowDecommit.
	inuse     bitmap.Bitmap // authoritative: bit set <=> block allocated
	dirty     bitmap.Bitmap // bit set <=> block written since last OS zeroing
	committed bitmap.Bitmap
	purge     bitmap.Bitmap
}

// ID returns the arena's registry id (1-based).
func (a *Arena) ID() ID { return a.id }

// Start returns the address of the arena's region.
func (a *Arena) Start() uintptr { return a.start }

// Size returns the region size in bytes.
func (a *Arena) Size() uintptr { return uintptr(a.blockCount) * BlockSize }

// BlockCount returns the number of blocks in the arena.
func (a *Arena) BlockCount() uint { return a.blockCount }

// NumaNode returns the arena's NUMA node, or -1 when unpinned.
func (a *Arena) NumaNode() int { return a.numaNode }

// Exclusive reports whether only requests naming this arena may use it.
func (a *Arena) Exclusive() bool { return a.exclusive }

// Large reports whether the arena is backed by huge/large OS pages.
func (a *Arena) Large() bool { return a.large }

// ZeroInit reports whether the region was zero-initialized at registration.
func (a *Arena) ZeroInit() bool { return a.zeroInit }

// blockCountOf returns the number of blocks needed for size bytes.
func blockCountOf(size uintptr) uint {
	return uint((size + BlockSize - 1) / BlockSize)
}

func alignUp(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

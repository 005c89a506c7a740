package arena

import (
	"errors"
	"sync"
	"time"
)

// rangeCall records one OS call against a memory range.
type rangeCall struct {
	p    uintptr
	size uintptr
}

// fakeOS is an in-memory stand-in for the OS collaborator. Addresses it
// hands out are never dereferenced by the manager, only used for
// arithmetic, so plain counters suffice.
type fakeOS struct {
	mu sync.Mutex

	numaCount   int
	currentNode int
	preloading  bool

	failAlloc bool // refuse AllocAligned
	zeroOnCommit bool

	next uintptr // next fake address to hand out

	allocs    []rangeCall
	frees     []rangeCall
	commits   []rangeCall
	decommits []rangeCall
	resets    []rangeCall

	hugeGrant int // pages granted per AllocHugePages call (0 = refuse)
	hugeCalls []struct {
		pages, node int
		timeout     time.Duration
	}
}

func newFakeOS() *fakeOS {
	return &fakeOS{
		numaCount: 1,
		next:      0x10_0000_0000, // arbitrary, SegmentAlign-aligned
		hugeGrant: 0,
	}
}

func (f *fakeOS) AllocAligned(size, align, alignOffset uintptr, commit bool, large *bool) (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAlloc {
		return 0, errors.New("fakeOS: allocation refused")
	}
	if large != nil {
		*large = false // fake OS has no large pages on the normal path
	}
	if align == 0 {
		align = 1
	}
	p := (f.next + align - 1) &^ (align - 1)
	f.next = p + size
	f.allocs = append(f.allocs, rangeCall{p, size})
	return p, nil
}

func (f *fakeOS) FreeAligned(p, size, align, alignOffset uintptr, committed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frees = append(f.frees, rangeCall{p, size})
}

func (f *fakeOS) Commit(p, size uintptr) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, rangeCall{p, size})
	return f.zeroOnCommit, nil
}

func (f *fakeOS) Decommit(p, size uintptr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decommits = append(f.decommits, rangeCall{p, size})
	return nil
}

func (f *fakeOS) Reset(p, size uintptr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, rangeCall{p, size})
	return nil
}

func (f *fakeOS) AllocHugePages(pages, numaNode int, timeout time.Duration) (uintptr, int, uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hugeCalls = append(f.hugeCalls, struct {
		pages, node int
		timeout     time.Duration
	}{pages, numaNode, timeout})
	grant := f.hugeGrant
	if grant > pages {
		grant = pages
	}
	if grant == 0 {
		return 0, 0, 0, errors.New("fakeOS: no huge pages")
	}
	hsize := uintptr(grant) << 30
	p := (f.next + (1 << 30) - 1) &^ (uintptr(1<<30) - 1)
	f.next = p + hsize
	return p, grant, hsize, nil
}

func (f *fakeOS) FreeHugePages(p, size uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frees = append(f.frees, rangeCall{p, size})
}

func (f *fakeOS) NumaNodeCount() int { return f.numaCount }

func (f *fakeOS) CurrentNumaNode() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentNode
}

func (f *fakeOS) Preloading() bool { return f.preloading }

func (f *fakeOS) setNode(n int) {
	f.mu.Lock()
	f.currentNode = n
	f.mu.Unlock()
}

func (f *fakeOS) callCounts() (allocs, commits, decommits, resets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.allocs), len(f.commits), len(f.decommits), len(f.resets)
}

// fakeClock is a hand-advanced monotonic clock.
type fakeClock struct {
	mu sync.Mutex
	ms int64
}

func (c *fakeClock) NowMS() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.ms += d.Milliseconds()
	c.mu.Unlock()
}

// newTestManager wires a manager over fakes. The zero Options disable
// eager reserve and purge deferral unless the test overrides them.
func newTestManager(opts Options) (*Manager, *fakeOS, *fakeClock) {
	os := newFakeOS()
	clock := &fakeClock{ms: 1000}
	return NewManager(os, clock, opts), os, clock
}

// manageBlocks registers a fake region of n blocks and returns the arena.
func manageBlocks(m *Manager, n uint, committed bool, numaNode int, exclusive bool) (*Arena, ID, error) {
	start := uintptr(0x20_0000_0000) + uintptr(m.Count())*uintptr(MaxArenas)*BlockSize
	id, err := m.ManageOSMemory(start, uintptr(n)*BlockSize, committed, false, true, numaNode, exclusive)
	if err != nil {
		return nil, None, err
	}
	return m.arenaAt(id.index()), id, nil
}

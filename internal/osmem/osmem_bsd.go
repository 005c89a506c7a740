//go:build darwin || freebsd

package osmem

import "golang.org/x/sys/unix"

const (
	mapNoReserve  = 0
	hugePageAlign = uintptr(1 << 21)
)

// mmapHuge is unsupported here; callers fall back to normal pages.
func mmapHuge(size uintptr) (uintptr, error) {
	return 0, unix.ENOTSUP
}

func mapHugePageAt(at, size uintptr) error {
	return unix.ENOTSUP
}

func bindToNode(p, size uintptr, node int) {}

// NumaNodeCount reports a single node; these kernels expose no NUMA API
// to userland worth consulting for placement.
func (*Memory) NumaNodeCount() int { return 1 }

// CurrentNumaNode always reports node 0.
func (*Memory) CurrentNumaNode() int { return 0 }

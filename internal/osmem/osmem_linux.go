//go:build linux

package osmem

import (
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	mapNoReserve  = unix.MAP_NORESERVE
	hugePageAlign = uintptr(1 << 21) // 2 MiB transparent-huge-page boundary
)

// mmapHuge maps a committed huge-page region (MAP_HUGETLB).
func mmapHuge(size uintptr) (uintptr, error) {
	flags := unix.MAP_HUGETLB
	if size%hugePageSize == 0 {
		flags |= unix.MAP_HUGE_1GB
	}
	return mmapAnon(size, unix.PROT_READ|unix.PROT_WRITE, flags)
}

// mapHugePageAt maps one committed 1 GiB huge page at a fixed address
// inside an already-reserved virtual range.
func mapHugePageAt(at, size uintptr) error {
	flags := unix.MAP_PRIVATE | unix.MAP_ANON | unix.MAP_FIXED | unix.MAP_HUGETLB | unix.MAP_HUGE_1GB
	_, err := unix.MmapPtr(-1, 0, unsafe.Pointer(at), size, unix.PROT_READ|unix.PROT_WRITE, flags)
	return err
}

// bindToNode binds the physical placement of [p, p+size) to a NUMA node.
// Best-effort: the pages stay usable when mbind is refused.
func bindToNode(p, size uintptr, node int) {
	const mpolBind = 2 // MPOL_BIND
	if node < 0 || node > 63 {
		return
	}
	nodemask := uint64(1) << uint(node)
	_, _, _ = unix.Syscall6(unix.SYS_MBIND,
		p, size, mpolBind,
		uintptr(unsafe.Pointer(&nodemask)), 64, 0)
}

// NumaNodeCount returns the number of NUMA nodes, per sysfs.
func (*Memory) NumaNodeCount() int {
	entries, err := os.ReadDir("/sys/devices/system/node")
	if err != nil {
		return 1
	}
	count := 0
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "node") && len(name) > 4 && name[4] >= '0' && name[4] <= '9' {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

// CurrentNumaNode returns the NUMA node the calling thread runs on.
// x/sys/unix does not wrap getcpu(2), so the syscall is issued raw. On
// failure this degrades to node 0: there is no error return to surface
// it through, and node 0 keeps the caller on the normal selection path
// (arenas pinned elsewhere are still reachable via the remote pass).
func (*Memory) CurrentNumaNode() int {
	var cpu, node uint32
	_, _, errno := unix.Syscall(unix.SYS_GETCPU,
		uintptr(unsafe.Pointer(&cpu)), uintptr(unsafe.Pointer(&node)), 0)
	if errno != 0 {
		return 0
	}
	return int(node)
}

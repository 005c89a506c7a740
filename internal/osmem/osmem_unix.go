//go:build linux || darwin || freebsd

package osmem

import (
	"errors"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// hugePageSize is the size of one huge OS page reservation unit (1 GiB).
const hugePageSize = 1 << 30

func memSlice(p, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), size)
}

func mmapAnon(size uintptr, prot, extraFlags int) (uintptr, error) {
	flags := unix.MAP_PRIVATE | unix.MAP_ANON | extraFlags
	addr, err := unix.MmapPtr(-1, 0, nil, size, prot, flags)
	if err != nil {
		return 0, err
	}
	return uintptr(addr), nil
}

func munmap(p, size uintptr) error {
	return unix.MunmapPtr(unsafe.Pointer(p), size)
}

// AllocAligned maps an anonymous region of size bytes such that
// p+alignOffset is aligned to align. With commit false the region is mapped
// PROT_NONE and holds no physical pages until Commit. If *large is true a
// huge-page mapping is attempted first; *large is cleared when the kernel
// refuses and a normal mapping is used instead.
func (*Memory) AllocAligned(size, align, alignOffset uintptr, commit bool, large *bool) (uintptr, error) {
	if size == 0 {
		return 0, unix.EINVAL
	}
	prot := unix.PROT_NONE
	if commit {
		prot = unix.PROT_READ | unix.PROT_WRITE
	}

	if large != nil && *large {
		// huge-page mappings must be committed and naturally aligned
		if p, err := mmapHuge(size); err == nil {
			if align <= hugePageAlign || (p+alignOffset)%align == 0 {
				return p, nil
			}
			_ = munmap(p, size)
		}
		*large = false
	}

	if align <= pageSize() {
		return mmapAnon(size, prot, 0)
	}

	// over-allocate and trim so that p+alignOffset lands on the alignment
	full := size + align
	raw, err := mmapAnon(full, prot, 0)
	if err != nil {
		return 0, err
	}
	p := alignUp(raw+alignOffset, align) - alignOffset
	if head := p - raw; head > 0 {
		_ = munmap(raw, head)
	}
	if tail := (raw + full) - (p + size); tail > 0 {
		_ = munmap(p+size, tail)
	}
	return p, nil
}

// FreeAligned releases a region returned by AllocAligned.
func (*Memory) FreeAligned(p, size, align, alignOffset uintptr, committed bool) {
	_ = align
	_ = alignOffset
	_ = committed
	if p == 0 || size == 0 {
		return
	}
	_ = munmap(p, size)
}

// Commit makes [p, p+size) accessible. The zeroed result is conservative:
// freshly-faulted anonymous pages are zero, but pages that survived a Reset
// keep their contents, and we cannot tell the cases apart here.
func (*Memory) Commit(p, size uintptr) (zeroed bool, err error) {
	err = unix.Mprotect(memSlice(p, size), unix.PROT_READ|unix.PROT_WRITE)
	return false, err
}

// Decommit drops the physical pages backing [p, p+size) and removes access.
func (*Memory) Decommit(p, size uintptr) error {
	b := memSlice(p, size)
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return err
	}
	return unix.Mprotect(b, unix.PROT_NONE)
}

// Reset tells the kernel the contents of [p, p+size) are disposable while
// keeping the range committed and accessible.
func (*Memory) Reset(p, size uintptr) error {
	b := memSlice(p, size)
	if err := unix.Madvise(b, unix.MADV_FREE); err != nil {
		// MADV_FREE needs 4.5+ kernels; fall back to dropping the pages
		return unix.Madvise(b, unix.MADV_DONTNEED)
	}
	return nil
}

// AllocHugePages reserves up to pages huge pages (1 GiB units), binding them
// to numaNode when it is >= 0. Pages are acquired one at a time so a timeout
// or exhaustion yields a partial reservation: reserved reports how many
// pages were obtained and hsize the usable region size.
func (*Memory) AllocHugePages(pages, numaNode int, timeout time.Duration) (p uintptr, reserved int, hsize uintptr, err error) {
	if pages <= 0 {
		return 0, 0, 0, unix.EINVAL
	}
	total := uintptr(pages) * hugePageSize

	// reserve the whole virtual range first so the pages end up contiguous
	base, err := mmapAnon(total, unix.PROT_NONE, mapNoReserve)
	if err != nil {
		return 0, 0, 0, err
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for reserved < pages {
		at := base + uintptr(reserved)*hugePageSize
		if err := mapHugePageAt(at, hugePageSize); err != nil {
			break
		}
		if numaNode >= 0 {
			bindToNode(at, hugePageSize, numaNode)
		}
		reserved++
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
	}

	if reserved == 0 {
		_ = munmap(base, total)
		return 0, 0, 0, errors.New("osmem: no huge pages available")
	}
	hsize = uintptr(reserved) * hugePageSize
	if hsize < total {
		_ = munmap(base+hsize, total-hsize)
	}
	return base, reserved, hsize, nil
}

// FreeHugePages releases a huge-page region.
func (*Memory) FreeHugePages(p, size uintptr) {
	if p == 0 || size == 0 {
		return
	}
	_ = munmap(p, size)
}

func pageSize() uintptr {
	return uintptr(unix.Getpagesize())
}

func alignUp(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

package main

import "unsafe"

// touch writes one byte into each block of the run so the pages fault in.
func touch(p, size uintptr) {
	const stride = 32 << 20
	for off := uintptr(0); off < size; off += stride {
		*(*byte)(unsafe.Pointer(p + off)) = 0xA5
	}
}

// Package osmem implements the OS memory primitives behind the arena
// manager: aligned anonymous mappings, commit/decommit/reset, huge-page
// reservation and NUMA queries.
//
// The unix implementation maps uncommitted regions PROT_NONE and commits
// by mprotect; decommit drops physical pages with madvise and removes
// access again. Platform differences are isolated in build-tagged files.
package osmem

import "time"

// Memory is the production OS memory collaborator.
type Memory struct{}

// New returns the OS memory collaborator for this platform.
func New() *Memory { return &Memory{} }

// Preloading reports whether the process is still inside dynamic-linker
// early startup. Go programs are never called before the runtime is up,
// so this is constantly false; it exists because purge policy consults it.
func (*Memory) Preloading() bool { return false }

// Clock provides monotonic millisecond timestamps.
type Clock struct {
	base time.Time
}

// NewClock returns a monotonic clock anchored at the current instant.
func NewClock() *Clock { return &Clock{base: time.Now()} }

// NowMS returns milliseconds elapsed on the monotonic clock.
func (c *Clock) NowMS() int64 { return time.Since(c.base).Milliseconds() }

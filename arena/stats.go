package arena

import "sync/atomic"

// Stats holds manager-wide counters, all updated atomically.
type Stats struct {
	blocksClaimed atomic.Int64
	blocksFreed   atomic.Int64
	commits       atomic.Int64
	decommits     atomic.Int64
	resets        atomic.Int64
	purgePasses   atomic.Int64
	doubleFrees   atomic.Int64
	invalidFrees  atomic.Int64
}

// Snapshot is a point-in-time copy of the manager's counters.
type Snapshot struct {
	Arenas        int
	BlocksClaimed int64
	BlocksFreed   int64
	Commits       int64
	Decommits     int64
	Resets        int64
	PurgePasses   int64
	DoubleFrees   int64
	InvalidFrees  int64
}

// Snapshot returns the current counter values.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		Arenas:        m.Count(),
		BlocksClaimed: m.stats.blocksClaimed.Load(),
		BlocksFreed:   m.stats.blocksFreed.Load(),
		Commits:       m.stats.commits.Load(),
		Decommits:     m.stats.decommits.Load(),
		Resets:        m.stats.resets.Load(),
		PurgePasses:   m.stats.purgePasses.Load(),
		DoubleFrees:   m.stats.doubleFrees.Load(),
		InvalidFrees:  m.stats.invalidFrees.Load(),
	}
}

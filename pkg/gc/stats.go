package gc

import "sync"

// Stats is a point-in-time snapshot of collector activity. It exists so
// a host embedder can build its own profiler/telemetry on top of this
// core without the core shipping one itself; Stats is the minimal read
// surface such a collaborator needs.
type Stats struct {
	MinorCollections   uint64
	MajorCollections   uint64
	Slices             uint64
	CellsMarked        uint64
	CellsSwept         uint64
	CellsPromoted      uint64
	CellsRelocated     uint64
	OOMRetries         uint64
	StoreBufferDrains  uint64
	SweepGroupsFormed  uint64
}

type statsCounter struct {
	mu sync.Mutex
	s  Stats
}

func (sc *statsCounter) add(f func(*Stats)) {
	sc.mu.Lock()
	f(&sc.s)
	sc.mu.Unlock()
}

func (sc *statsCounter) snapshot() Stats {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.s
}

// Stats returns a copy of the collector's current statistics.
func (gc *GC) Stats() Stats {
	return gc.stats.snapshot()
}

package gc

import "sync"

// sweepActionFn pairs a sweep function with a kind, curried over kind:
// each entry in a sweepPhase's action list already knows which kind it
// sweeps.
type sweepActionFn func(gc *GC, zone *Zone, k Kind) bool

type sweepAction struct {
	name string
	kind Kind
	fn   sweepActionFn
}

type sweepPhase struct {
	name    string
	actions []sweepAction
}

// sweepPhases is computed once at package init. Phase 0 sweeps every
// weak map registered on the zone, while mark colors are still intact;
// foreground kinds are finalized synchronously in phase 1;
// background-finalizable kinds are only queued for the helper thread in
// phase 2 (their actual reclaim happens on the worker goroutine — see
// runFinalize below). Phases 1 and 2 reset survivors to white.
var sweepPhases = buildSweepPhases()

func buildSweepPhases() []sweepPhase {
	var foreground, background []sweepAction
	for k := Kind(0); k < kindCount; k++ {
		if IsBackgroundFinalizable(k) {
			background = append(background, sweepAction{name: "bg-finalize", kind: k, fn: sweepKindBackground})
		} else {
			foreground = append(foreground, sweepAction{name: "fg-finalize", kind: k, fn: sweepKindForeground})
		}
	}
	return []sweepPhase{
		{name: "WeakMapSweep", actions: []sweepAction{{name: "weak-maps", kind: KindObject0, fn: sweepWeakMaps}}},
		{name: "ForegroundFinalize", actions: foreground},
		{name: "BackgroundFinalizeKickoff", actions: background},
	}
}

// sweepKindForeground reclaims every unmarked (white) cell of kind k in
// zone synchronously, and resets survivors back to white for the next
// collection cycle.
func sweepKindForeground(gc *GC, zone *Zone, k Kind) bool {
	for _, r := range zone.regions.RegionsOfKind(k) {
		for _, c := range r.Cells() {
			if c.Color() == ColorWhite {
				r.reclaim(c)
				gc.fireFinalized(c)
				gc.stats.add(func(s *Stats) { s.CellsSwept++ })
			} else {
				SetColor(c, ColorWhite)
			}
		}
	}
	return true
}

// sweepKindBackground hands every unmarked cell of kind k in zone to the
// background finalizer queue instead of reclaiming it inline; survivors
// are reset to white immediately since that part is thread-safe and
// cheap. The actual region.reclaim happens on the helper goroutine.
func sweepKindBackground(gc *GC, zone *Zone, k Kind) bool {
	for _, r := range zone.regions.RegionsOfKind(k) {
		for _, c := range r.Cells() {
			if c.Color() == ColorWhite {
				gc.finalizer.enqueue(r, c)
			} else {
				SetColor(c, ColorWhite)
			}
		}
	}
	return true
}

func sweepWeakMaps(gc *GC, zone *Zone, _ Kind) bool {
	zone.mu.Lock()
	maps := append([]*WeakMap{}, zone.weakMaps...)
	zone.mu.Unlock()
	for _, wm := range maps {
		wm.sweep()
	}
	return true
}

// sweepStep performs one action's worth of work at the driver's current
// (group, phase, zone, action) cursor and advances it. It returns true
// once every sweep group has been fully processed, which is the
// Sweep -> Finalize transition condition. Suspension is only ever
// observed between actions, so each call does exactly one action and
// returns.
func (gc *GC) sweepStep() bool {
	d := gc.driver
	for {
		if d.sweepGroupIdx >= len(d.sweepGroups) {
			return true
		}
		zones := d.sweepGroups[d.sweepGroupIdx]

		if d.sweepPhaseIndex >= len(sweepPhases) {
			d.sweepGroupIdx++
			d.sweepPhaseIndex, d.sweepZoneIdx, d.sweepActionIdx = 0, 0, 0
			continue
		}
		phase := sweepPhases[d.sweepPhaseIndex]

		if d.sweepZoneIdx >= len(zones) {
			d.sweepPhaseIndex++
			d.sweepZoneIdx, d.sweepActionIdx = 0, 0
			continue
		}
		zone := zones[d.sweepZoneIdx]
		zone.setSweeping(true)

		if d.sweepActionIdx >= len(phase.actions) {
			zone.setSweeping(false)
			d.sweepZoneIdx++
			d.sweepActionIdx = 0
			continue
		}

		action := phase.actions[d.sweepActionIdx]
		finished := action.fn(gc, zone, action.kind)
		if finished {
			d.sweepActionIdx++
		}
		return false
	}
}

// finishCurrentSweepGroup drives sweepStep to completion for whichever
// sweep group the driver is currently on, used by Reset's mid-Sweep
// rule: a mid-Sweep reset must complete the current sweep group before
// resetting.
func (gc *GC) finishCurrentSweepGroup() {
	d := gc.driver
	if d.sweepGroupIdx >= len(d.sweepGroups) {
		return
	}
	target := d.sweepGroupIdx
	for d.sweepGroupIdx == target {
		if gc.sweepStep() {
			return
		}
	}
}

// runFinalize waits for the background finalizer worker to drain
// whatever was queued during Sweep: finalization for
// background-finalizable kinds runs on its own goroutine, and the next
// slice must wait on it before touching the same arenas. Modeled here as
// a synchronous wait inside the Finalize state rather than a cross-slice
// wait, which is simpler but preserves the same ordering guarantee — no
// code past Finalize ever observes a pending background reclaim.
func (gc *GC) runFinalize() {
	gc.finalizer.drainAndWait()
}

// backgroundFinalizeQueueEntry is one cell queued for off-thread reclaim.
type backgroundFinalizeQueueEntry struct {
	region *Region
	cell   *Cell
}

// finalizerWorker runs background finalization on a dedicated goroutine
// with no access to the mutator heap beyond the explicit finalize-safe
// regions it was handed.
type finalizerWorker struct {
	gc *GC

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []backgroundFinalizeQueueEntry
	draining bool
}

func newFinalizerWorker() *finalizerWorker {
	f := &finalizerWorker{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *finalizerWorker) enqueue(r *Region, c *Cell) {
	f.mu.Lock()
	f.pending = append(f.pending, backgroundFinalizeQueueEntry{region: r, cell: c})
	f.mu.Unlock()
}

// drainAndWait reclaims every queued entry and blocks until done. The
// finalizer contract forbids raising: a fault during a finalizer is a
// fatal assertion, so panics here propagate to the caller rather than
// being recovered.
func (f *finalizerWorker) drainAndWait() {
	f.mu.Lock()
	entries := f.pending
	f.pending = nil
	f.draining = true
	f.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, e := range entries {
			e.region.reclaim(e.cell)
			if f.gc != nil {
				f.gc.fireFinalized(e.cell)
			}
		}
	}()
	wg.Wait()

	f.mu.Lock()
	f.draining = false
	f.cond.Broadcast()
	f.mu.Unlock()
}

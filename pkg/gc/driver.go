package gc

import (
	"sync"
	"sync/atomic"
	"time"
)

// DriverState is one node of the incremental driver's state machine:
//
//	NotActive -> MarkRoots -> Mark -> Sweep -> Finalize -> Compact -> Decommit -> NotActive
type DriverState int

const (
	StateNotActive DriverState = iota
	StateMarkRoots
	StateMark
	StateSweep
	StateFinalize
	StateCompact
	StateDecommit
)

func (s DriverState) String() string {
	names := [...]string{"NotActive", "MarkRoots", "Mark", "Sweep", "Finalize", "Compact", "Decommit"}
	if int(s) < 0 || int(s) >= len(names) {
		return "DriverState(invalid)"
	}
	return names[s]
}

// GCReason records why a collection started or why a slice was
// requested, for logging and for Reset's hard-blocker check.
type GCReason int

const (
	ReasonAPI GCReason = iota
	ReasonAllocTrigger
	ReasonCompartmentRevived
	ReasonEvict
	ReasonZeal
	ReasonShutdown
)

func (r GCReason) String() string {
	names := [...]string{"API", "AllocTrigger", "CompartmentRevived", "Evict", "Zeal", "Shutdown"}
	if int(r) < 0 || int(r) >= len(names) {
		return "GCReason(invalid)"
	}
	return names[r]
}

// Budget is a slice's time-or-work bound. A zero value for a field
// means "unbounded on that axis"; at least one axis must be nonzero for
// Finish's effectively-unlimited drive to terminate in finite slices
// (Finish sets Work to a very large number).
type Budget struct {
	Work   int64         // units: one per mark-stack entry (a value-array chunk costs its slot count), one per sweep action (one kind in one zone), one per compaction step; cells swept are not counted one by one
	Time   time.Duration // wall-clock bound, monotonic clock
}

func (b Budget) exceeded(start time.Time, workUsed int64) bool {
	if b.Time > 0 && time.Since(start) >= b.Time {
		return true
	}
	if b.Work > 0 && workUsed >= b.Work {
		return true
	}
	return false
}

// Driver is the incremental state machine (C11).
type Driver struct {
	gc *GC

	mu              sync.Mutex
	state           DriverState
	reason          GCReason
	lastMarkSlice   bool // one more root-marking slice may be owed before Mark->Sweep
	currentGroups   []*ZoneGroup
	sweepGroups     [][]*Zone
	sweepGroupIdx   int
	sweepPhaseIndex int
	sweepZoneIdx    int
	sweepActionIdx  int
	resetAfterGroup bool // mid-Sweep reset: finish the current sweep group, then go NotActive

	compact compactState

	sliceActive     atomic.Bool
	abortRequested  atomic.Bool
	sliceCount      uint64
}

func newDriver(gc *GC) *Driver {
	return &Driver{gc: gc}
}

// State returns the driver's current state.
func (d *Driver) State() DriverState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start begins a collection if the driver is NotActive; idempotent if a
// collection is already in a compatible (non-NotActive) state.
func (d *Driver) Start(reason GCReason, budget Budget) {
	d.mu.Lock()
	if d.state != StateNotActive {
		d.mu.Unlock()
		return
	}
	d.reason = reason
	d.state = StateMarkRoots
	d.currentGroups = d.gc.allGroups()
	d.mu.Unlock()
	// Atom bitmaps name only the atoms reached during this collection.
	for _, g := range d.currentGroups {
		for _, z := range g.Zones() {
			z.mu.Lock()
			z.atomBitmap = make(map[CellID]struct{})
			z.mu.Unlock()
		}
	}
	d.gc.cfg.logf("gc: driver Start reason=%v", reason)
	d.Slice(reason, budget)
}

// Slice advances the state machine by budget's worth of work, returning
// control to the mutator on exhaustion. It is idempotent when the
// driver is NotActive (a no-op).
func (d *Driver) Slice(reason GCReason, budget Budget) {
	d.mu.Lock()
	if d.state == StateNotActive {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	d.sliceActive.Store(true)
	defer d.sliceActive.Store(false)
	atomic.AddUint64(&d.sliceCount, 1)

	start := time.Now()
	var workUsed int64

	for {
		if d.abortRequested.Load() {
			d.handleAbort()
			return
		}

		state := d.State()
		if state == StateNotActive {
			return
		}

		exceeded := budget.exceeded(start, workUsed)
		multiSlice := d.gc.cfg.Zeal.has(ZealMultiSliceIGC) && state == StateMark
		if exceeded && !multiSlice {
			d.gc.cfg.logf("gc: slice budget exhausted in state %v", state)
			return
		}
		if exceeded && multiSlice {
			// Zeal forces at least one more unit of mark work per call
			// even once the nominal budget is spent, then yields.
			d.stepOnce(&workUsed)
			return
		}

		finishedPhase := d.stepOnce(&workUsed)
		if finishedPhase && d.State() == StateNotActive {
			return
		}
	}
}

// stepOnce performs one suspension-point-bounded unit of work in the
// current state and returns true if that unit completed the current
// phase (causing a state transition).
func (d *Driver) stepOnce(workUsed *int64) bool {
	switch d.State() {
	case StateMarkRoots:
		d.runMarkRoots()
		*workUsed++
		d.setState(StateMark)
		return true

	case StateMark:
		progressed, cost := d.gc.marker.drainOne()
		if cost == 0 {
			cost = 1
		}
		*workUsed += cost
		if progressed {
			return false
		}
		d.finishMarkPhase()
		return true

	case StateSweep:
		done := d.gc.sweepStep()
		*workUsed++
		if !done {
			return false
		}
		d.setState(StateFinalize)
		return true

	case StateFinalize:
		d.gc.runFinalize()
		d.setState(StateCompact)
		return true

	case StateCompact:
		done := d.gc.compactStep()
		*workUsed++
		if !done {
			return false
		}
		d.setState(StateDecommit)
		return true

	case StateDecommit:
		d.gc.runDecommit()
		d.finishCollection()
		return true
	}
	return true
}

func (d *Driver) setState(s DriverState) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
	d.gc.cfg.logf("gc: driver -> %v", s)
}

func (d *Driver) runMarkRoots() {
	for _, g := range d.currentGroups {
		for _, z := range g.Zones() {
			z.setMarking(true)
			z.setCollecting(true)
		}
	}
	t := &markingTracer{marker: d.gc.marker}
	d.gc.roots.traceRoots(t, traceRootModeMark)
}

// finishMarkPhase implements the Mark -> Sweep transition: once the mark
// stack (and delayed list) are empty, atoms bitmaps are updated and gray
// roots are integrated. lastMarkSlice accounts for new black roots that
// may have been registered by an embedding tracer during this very
// slice, so one more root trace is owed before the mark stack's
// emptiness can be trusted.
func (d *Driver) finishMarkPhase() {
	if !d.lastMarkSlice {
		d.lastMarkSlice = true
		d.runMarkRoots()
		if !d.gc.marker.Empty() {
			d.lastMarkSlice = false
			return // more work surfaced; stay in Mark
		}
	}
	d.lastMarkSlice = false

	d.gc.updateAtomBitmaps()
	d.gc.integrateGrayRoots(d.currentGroups)

	groups := d.gc.scheduleSweepGroups(d.currentGroups)
	d.sweepGroups = groups
	d.sweepGroupIdx = 0
	d.sweepPhaseIndex = 0
	d.sweepZoneIdx = 0
	d.sweepActionIdx = 0

	for _, g := range d.currentGroups {
		for _, z := range g.Zones() {
			z.setMarking(false)
			z.drainIncomingGray() // consumed by scheduleSweepGroups above
		}
	}
	d.setState(StateSweep)
}

func (d *Driver) finishCollection() {
	for _, g := range d.currentGroups {
		for _, z := range g.Zones() {
			z.setCollecting(false)
		}
	}
	d.mu.Lock()
	d.state = StateNotActive
	d.currentGroups = nil
	d.sweepGroups = nil
	d.compact = compactState{}
	d.mu.Unlock()
	d.gc.stats.add(func(s *Stats) { s.MajorCollections++ })
	d.gc.cfg.logf("gc: collection finished")
}

// Finish drives the state machine to completion in one call: a
// non-incremental "do it all now" call.
func (d *Driver) Finish(reason GCReason) {
	if d.State() == StateNotActive {
		d.Start(reason, Budget{Work: 1 << 40})
		return
	}
	for d.State() != StateNotActive {
		d.Slice(reason, Budget{Work: 1 << 40})
	}
}

// Abort sets the group-external abort flag consulted at every
// suspension point. Abort during Mark discards marking state; abort
// during Sweep finishes the current sweep group first.
func (d *Driver) Abort() {
	d.abortRequested.Store(true)
}

func (d *Driver) handleAbort() {
	d.abortRequested.Store(false)
	if d.State() == StateSweep {
		d.gc.finishCurrentSweepGroup() // finish the current sweep group before going inactive
	}
	d.resetToNotActive()
}

// Reset forces the driver back to NotActive on a hard blocker; any
// state may be reset to NotActive this way. Mid-Sweep resets complete
// the current sweep group first.
func (d *Driver) Reset(reason GCReason) error {
	if d.State() == StateSweep {
		d.gc.finishCurrentSweepGroup()
	}
	d.resetToNotActive()
	d.gc.cfg.logf("gc: driver reset (%v)", reason)
	return ErrResetIncremental
}

func (d *Driver) resetToNotActive() {
	d.mu.Lock()
	groups := d.currentGroups
	d.state = StateNotActive
	d.currentGroups = nil
	d.sweepGroups = nil
	d.lastMarkSlice = false
	d.resetAfterGroup = false
	d.compact = compactState{}
	d.mu.Unlock()
	for _, g := range groups {
		for _, z := range g.Zones() {
			z.setMarking(false)
			z.setCollecting(false)
		}
	}
}

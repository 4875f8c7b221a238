package gc

// PreBarrier is invoked before overwriting a slot that holds a GC
// pointer. Its condition is "the
// owning zone is marking and the heap is not currently collecting" —
// i.e. it only does work when a mutator thread is running concurrently
// with an in-progress incremental mark (between slices), not when the
// collector's own engine is performing the write from inside a slice
// (gc.driver.sliceActive is true exactly then).
//
// Effect: mark old black, snapshotting it as of this slice's beginning
// (I3). The barrier additionally pushes old onto the active marker's
// stack so its children get scanned too — marking just the cell itself
// would satisfy "not swept" but could leave SATB's children guarantee
// unmet.
//
// Idempotent: calling this on an already-marked (non-white) cell is a
// no-op (mark idempotence).
func (gc *GC) PreBarrier(old *Cell) {
	if old == nil {
		return
	}
	old = Resolve(old)
	z := old.zone
	if z == nil {
		return // nursery cells are not subject to the tenured marking protocol
	}
	if gc.driver.sliceActive.Load() {
		return // the collector engine itself is writing; it already knows the color
	}
	if !z.isMarking() {
		return
	}
	if MarkIfUnmarked(old, ColorBlack) {
		gc.marker.pushCell(old)
	}
	if gc.cfg.Zeal.has(ZealVerifyPreBarrier) {
		gc.verifyPreBarrierInvariant(old)
	}
}

// verifyPreBarrierInvariant is the zeal-mode assertion that a cell this
// barrier just marked is not left pointing, unmarked, to an unmarked
// child while the cell itself is black — catching pre-barrier bugs
// immediately rather than at the end of the slice.
func (gc *GC) verifyPreBarrierInvariant(c *Cell) {
	if c.Color() != ColorBlack {
		return
	}
	traceChildren(c, &invariantCheckTracer{gc: gc, from: c})
}

type invariantCheckTracer struct {
	gc   *GC
	from *Cell
}

func (invariantCheckTracer) Mode() TraceMode { return traceModeMark }

func (t *invariantCheckTracer) OnEdge(slot *Slot, kind Kind, name string) {
	child := slot.Get()
	if child == nil || child.zone == nil {
		return
	}
	if child.Color() == ColorWhite && t.from.zone == child.zone && child.zone.isCollecting() {
		fatalf("gc: zeal verify-pre-barrier: black cell %p points at unmarked %p in a collecting zone", t.from, child)
	}
}

// PostBarrier is invoked after writing a GC pointer into a slot.
// Condition: the slot resides in a tenured cell and the new value is a
// nursery cell. Effect: enqueue the slot address into the store buffer.
func (gc *GC) PostBarrier(slot *Slot, newValue *Cell) {
	if newValue == nil || slot == nil || slot.Owner == nil {
		return
	}
	if slot.Owner.zone == nil {
		return // owner is itself in the nursery; I4 clause (a) covers this via direct root tracing
	}
	if !newValue.inNursery {
		return
	}
	slot.Owner.zone.Group.storeBuffer.InsertSlot(slot)
}

// ReadBarrierWeak covers the weak-reference read path: reading a
// weak-referenced cell while its zone is sweeping may require
// resurrecting it by marking it black, so that a weak table lookup
// racing the sweeper never observes a half-collected value.
func (gc *GC) ReadBarrierWeak(c *Cell) *Cell {
	if c == nil {
		return nil
	}
	c = Resolve(c)
	if c.zone != nil && c.zone.sweepInProgress() && c.Color() == ColorWhite {
		if MarkIfUnmarked(c, ColorBlack) {
			gc.marker.pushCell(c)
		}
	}
	return c
}

// ReadBarrierGray covers the gray-to-black read path: reading a gray
// cell from mutator code must recursively mark it and every outgoing
// descendant in its compartment group black (the "gray unmark"
// recursion).
func (gc *GC) ReadBarrierGray(c *Cell) *Cell {
	if c == nil {
		return nil
	}
	c = Resolve(c)
	if c.Color() == ColorGray {
		gc.grayUnmarkRecursive(c)
	}
	return c
}

// grayUnmarkRecursive walks c and its descendants, turning every gray
// cell reachable from c black. It is bounded by the same monotonicity
// argument as the marker: each cell transitions out of gray at most
// once, so the recursion always terminates even on cyclic graphs.
func (gc *GC) grayUnmarkRecursive(c *Cell) {
	if c == nil || c.Color() != ColorGray {
		return
	}
	SetColor(c, ColorBlack)
	traceChildren(c, &grayUnmarkTracer{gc: gc})
}

type grayUnmarkTracer struct{ gc *GC }

func (grayUnmarkTracer) Mode() TraceMode { return traceModeMark }

func (t *grayUnmarkTracer) OnEdge(slot *Slot, kind Kind, name string) {
	t.gc.grayUnmarkRecursive(slot.Get())
}

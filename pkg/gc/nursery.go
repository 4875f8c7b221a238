package gc

import "sync"

// defaultNurserySize is the bump-allocation capacity (in abstract byte
// units, matching Kind size classes) a fresh ZoneGroup's nursery gets
// absent an explicit Config override.
const defaultNurserySize = 1 << 20 // 1 MiB

// Nursery is the young generation: a linear bump-allocation region.
// One Nursery is owned by each ZoneGroup.
type Nursery struct {
	group *ZoneGroup

	mu       sync.Mutex
	capacity uint32
	used     uint32
	cells    []*Cell // allocation order, used as the promotion worklist
	disabled bool    // true when Config.GenerationalGC is false
}

func newNursery(g *ZoneGroup, capacity uint32) *Nursery {
	return &Nursery{group: g, capacity: capacity}
}

// tryAlloc attempts the nursery fast path for a cell of kind k. It
// returns nil if the kind is not nursery-allocable, the nursery is
// disabled, or there is insufficient headroom — in all three cases the
// caller must fall back to the tenured path.
func (n *Nursery) tryAlloc(k Kind) *Cell {
	if n.disabled || !IsNurseryAllocable(k) {
		return nil
	}
	size := SizeOf(k)
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.used+size > n.capacity {
		return nil
	}
	n.used += size
	c := newCell(k, nil, true)
	n.cells = append(n.cells, c)
	return c
}

// full reports whether the nursery has used at least the given fraction
// of its capacity (used by the allocator's "check_allocator_state" to
// decide whether to request a slice before the bump pointer actually
// runs out).
func (n *Nursery) full(numer, denom uint32) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.used*denom >= n.capacity*numer
}

// liveCells returns a snapshot of every cell currently in the nursery,
// in allocation order — the root set minor GC starts tracing from after
// store-buffer roots.
func (n *Nursery) liveCells() []*Cell {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Cell, len(n.cells))
	copy(out, n.cells)
	return out
}

// reset implements minor GC's sweep step: reset the bump pointer and
// drop the allocation-order list. Cells that were promoted
// are now reachable only via their forwarding overlay at their old
// nursery address (which Go retains as a live object purely because the
// forwardTo pointer it holds is still referenced from wherever we have
// not yet rewritten) — or, for unpromoted (dead) cells, simply become
// unreachable garbage for Go's own allocator to reclaim.
func (n *Nursery) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.used = 0
	n.cells = nil
}

// MinorGC runs a synchronous minor collection of n's group. It is safe
// to call even when the nursery is empty.
func (gc *GC) MinorGC(group *ZoneGroup, reason string) {
	gc.minorGCLocked(group, reason)
}

func (gc *GC) minorGCLocked(group *ZoneGroup, reason string) {
	n := group.nursery
	if n.disabled {
		return
	}
	gc.cfg.logf("gc: minor GC start (%s)", reason)

	tracer := newTenuringTracer(gc, group)

	// Step 1: mark all store-buffer roots into the nursery.
	n.group.storeBuffer.drain(tracer)

	// Stack/persistent/embedding roots that might point directly into
	// the nursery (not captured by the store buffer because they are not
	// tenured slots) are also scanned: the root set's visit covers both
	// generations, and promotion is a no-op for cells that are already
	// tenured.
	gc.roots.traceRoots(tracer, traceRootModeTenuring)

	// Step 2 happens inside tracer.OnEdge as cells are discovered: see
	// tenuringTracer.promote in tracer.go.

	// Step 3: sweep the nursery.
	n.reset()

	// Step 4: discard the store buffer (already drained above).

	gc.stats.add(func(s *Stats) { s.MinorCollections++ })
	gc.cfg.logf("gc: minor GC done, %d cells promoted", tracer.promoted)
}

// promoteCell copies c (a nursery cell) into a fresh tenured cell of the
// same kind in group's first zone, writes the forwarding overlay into
// the old location, and returns the tenured copy. It does not recurse
// into children; the caller's tracer drives that via the edge visitor.
//
// The destination's kind header is written before the forwarding
// pointer is published: a concurrent reader that observes the
// forwarding bit on the old cell always sees a destination whose kind
// is already valid.
func promoteCell(gc *GC, group *ZoneGroup, c *Cell) *Cell {
	if !c.inNursery {
		return c // already tenured, nothing to do
	}
	if c.IsForwarded() {
		return ForwardedTarget(c)
	}
	k := c.Kind()
	z := group.Zones()[0]
	dst := newCell(k, z, false)
	// Kind is already set by newCell above (publication-before-forward
	// per the ordering note above). Copy the rest of the payload shape.
	dst.IsRope = c.IsRope
	dst.RopeLeft = c.RopeLeft
	dst.RopeRight = c.RopeRight
	dst.Parent = c.Parent
	dst.Slots = c.Slots
	dst.Payload = c.Payload
	SetColor(dst, ColorBlack)

	r := z.regions.regionFor(k)
	r.insert(dst)

	SetForwarded(c, dst)
	gc.stats.add(func(s *Stats) { s.CellsPromoted++ })
	return dst
}

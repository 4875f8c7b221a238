package gc

// fragmentationThreshold: a region is selected as a relocation source
// once its free list is at least as long as its live set, i.e. it is at
// most half full — the heaviest-fragmented regions of compactable kinds.
const fragmentationThreshold = 1

// compactableKind reports whether cells of kind k may be relocated.
// Kinds with external raw-pointer aliases outside the heap (none in
// this model) would be excluded here; every kind in this table is
// compactable.
func compactableKind(k Kind) bool { return true }

// compactState accumulates the driver's position across compactStep
// calls.
type compactState struct {
	sources    []*Region
	srcIdx     int
	cellIdx    int
	relocating bool

	rewritePhase   int // 0: shapes, 1: object groups, 2: everything else
	rewriteRegions []*Region
	rewriteIdx     int
	rewriteStarted bool
}

// selectRelocationSources picks every region across groups' zones whose
// free list is at least fragmentationThreshold times its live count.
func selectRelocationSources(groups []*ZoneGroup) []*Region {
	var out []*Region
	for _, g := range groups {
		for _, z := range g.Zones() {
			for _, r := range z.regions.AllRegions() {
				if !compactableKind(r.Kind) {
					continue
				}
				if len(r.free) >= fragmentationThreshold*max1(r.liveCount()) {
					out = append(out, r)
				}
			}
		}
	}
	return out
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// compactStep performs one bounded unit of compaction work: either
// relocating a single cell (no suspension allowed within that) or
// advancing one region's worth of edge rewriting. It returns true once
// compaction has entirely finished.
func (gc *GC) compactStep() bool {
	d := gc.driver
	cs := &d.compact

	if !cs.relocating && !cs.rewriteStarted && cs.sources == nil {
		cs.sources = selectRelocationSources(d.currentGroups)
		cs.relocating = true
		if len(cs.sources) == 0 {
			cs.relocating = false
		}
	}

	if cs.relocating {
		if cs.srcIdx >= len(cs.sources) {
			cs.relocating = false
			return false
		}
		src := cs.sources[cs.srcIdx]
		cells := src.Cells()
		if cs.cellIdx >= len(cells) {
			cs.srcIdx++
			cs.cellIdx = 0
			return false
		}
		gc.relocateCell(src, cells[cs.cellIdx])
		cs.cellIdx++
		return false
	}

	if !cs.rewriteStarted {
		cs.rewriteStarted = true
		cs.rewriteRegions = allRegionsOf(d.currentGroups)
		cs.rewriteIdx = 0
		cs.rewritePhase = 0
	}

	return gc.rewriteStep(cs)
}

func allRegionsOf(groups []*ZoneGroup) []*Region {
	var out []*Region
	for _, g := range groups {
		for _, z := range g.Zones() {
			out = append(out, z.regions.AllRegions()...)
		}
	}
	return out
}

// rewriteStep advances the three-phase edge-update pass: (1) shapes,
// (2) typed-object descriptors (object groups in this kind set),
// (3) everything else — because phases 2 and 3 read fields that phase 1
// may have just updated (a shape's own parent-shape chain must be
// current before anything that embeds a shape pointer is rewritten).
func (gc *GC) rewriteStep(cs *compactState) bool {
	phaseKind := func(k Kind) bool {
		switch cs.rewritePhase {
		case 0:
			tk := TraceKindOf(k)
			return tk == TraceShape || tk == TraceAccessorShape || tk == TraceBaseShape
		case 1:
			return TraceKindOf(k) == TraceObjectGroup
		default:
			tk := TraceKindOf(k)
			return tk != TraceShape && tk != TraceAccessorShape && tk != TraceBaseShape && tk != TraceObjectGroup
		}
	}

	for cs.rewriteIdx < len(cs.rewriteRegions) {
		r := cs.rewriteRegions[cs.rewriteIdx]
		if !phaseKind(r.Kind) {
			cs.rewriteIdx++
			continue
		}
		for _, c := range r.Cells() {
			rewriteCellEdges(c)
		}
		cs.rewriteIdx++
		return false
	}

	if cs.rewritePhase < 2 {
		cs.rewritePhase++
		cs.rewriteIdx = 0
		return false
	}

	// All three phases done.
	cs.sources = nil
	cs.srcIdx, cs.cellIdx = 0, 0
	cs.rewriteStarted = false
	cs.rewritePhase = 0
	cs.rewriteRegions = nil
	cs.rewriteIdx = 0
	return true
}

// relocateCell moves c to a fresh cell in a new region of the same kind
// and installs the forwarding overlay at the old location. No
// suspension point exists between these steps: relocating a single cell
// is atomic with respect to the driver's slice budget.
func (gc *GC) relocateCell(src *Region, c *Cell) {
	if c.IsForwarded() {
		return
	}
	k := c.Kind()
	dst := newCell(k, c.zone, false)
	dst.IsRope = c.IsRope
	dst.RopeLeft = c.RopeLeft
	dst.RopeRight = c.RopeRight
	dst.Parent = c.Parent
	dst.Slots = c.Slots
	dst.Payload = c.Payload
	SetColor(dst, c.Color())

	freshRegion := newRegion(k, c.zone)
	freshRegion.insert(dst)
	c.zone.regions.regions[k] = append(c.zone.regions.regions[k], freshRegion)

	src.reclaim(c)
	SetForwarded(c, dst)
	gc.stats.add(func(s *Stats) { s.CellsRelocated++ })
}

// rewriteCellEdges resolves every forwarding-stale edge c owns to its
// post-compaction target. This is the generic edge-visitor pass: iterate
// every cell of every kind and rewrite every outgoing edge.
func rewriteCellEdges(c *Cell) {
	for _, s := range c.Slots {
		if v := s.RawGet(); v != nil && v.IsForwarded() {
			s.rawSet(ForwardedTarget(v))
		}
	}
	if c.Parent != nil {
		if v := c.Parent.RawGet(); v != nil && v.IsForwarded() {
			c.Parent.rawSet(ForwardedTarget(v))
		}
	}
	if c.RopeLeft != nil {
		if v := c.RopeLeft.RawGet(); v != nil && v.IsForwarded() {
			c.RopeLeft.rawSet(ForwardedTarget(v))
		}
	}
	if c.RopeRight != nil {
		if v := c.RopeRight.RawGet(); v != nil && v.IsForwarded() {
			c.RopeRight.rawSet(ForwardedTarget(v))
		}
	}
}

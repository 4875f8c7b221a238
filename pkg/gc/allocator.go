package gc

// HeapHint lets a caller force the tenured path even for a kind that
// would otherwise take the nursery fast path.
type HeapHint int

const (
	HeapHintDefault HeapHint = iota
	HeapHintTenured
)

// AllocState is the result of checkAllocatorState.
type AllocState int

const (
	allocOK AllocState = iota
	allocFailure
)

// checkAllocatorState runs before every allocation. It refuses to
// allocate while any zone of the target group is mid-sweep or inside an
// unsafe-GC region, and otherwise may trigger a GC (via maybeGC) once the
// nursery is at least 80% full. Tenured-heap occupancy is not checked.
func (gc *GC) checkAllocatorState(group *ZoneGroup, k Kind) AllocState {
	if gc.unsafeRegion.Load() {
		return allocFailure
	}
	for _, z := range group.Zones() {
		if z.isCollecting() && z.sweepInProgress() {
			return allocFailure
		}
	}
	if group.nursery.full(8, 10) {
		gc.maybeGC(group, "nursery-pressure")
	}
	return allocOK
}

// Allocate allocates a cell of kind k. Nursery-allocable kinds take the
// nursery fast path; other kinds (or a HeapHintTenured override) take
// the tenured path. On a failing allocation the allocator (1) calls the
// maybe-GC entry of the driver, (2) retries once, and (3) returns ErrOOM
// if the retry also fails.
func (gc *GC) Allocate(group *ZoneGroup, zone *Zone, k Kind, extraSlots int, hint HeapHint) (*Cell, error) {
	if !k.Valid() {
		fatalf("gc: Allocate: invalid kind %d", k)
	}
	if gc.checkAllocatorState(group, k) == allocFailure {
		return nil, ErrOOM
	}
	c, err := gc.tryAllocateOnce(group, zone, k, extraSlots, hint)
	if err == nil {
		return c, nil
	}
	gc.maybeGC(group, "alloc-retry")
	c, err = gc.tryAllocateOnce(group, zone, k, extraSlots, hint)
	if err != nil {
		gc.stats.add(func(s *Stats) { s.OOMRetries++ })
		gc.cfg.logf("gc: allocation of %v failed after one retry", k)
		return nil, ErrOOM
	}
	return c, nil
}

func (gc *GC) tryAllocateOnce(group *ZoneGroup, zone *Zone, k Kind, extraSlots int, hint HeapHint) (*Cell, error) {
	if hint == HeapHintDefault {
		if c := group.nursery.tryAlloc(k); c != nil {
			c.Slots = make([]*Slot, 0, extraSlots)
			gc.maybeZealTrigger(group)
			return c, nil
		}
	}
	// Tenured slow path.
	if zone == nil {
		zones := group.Zones()
		if len(zones) == 0 {
			fatalf("gc: Allocate: zone group %d has no zones", group.ID)
		}
		zone = zones[0]
	}
	c := newCell(k, zone, false)
	c.Slots = make([]*Slot, 0, extraSlots)
	r := zone.regions.regionFor(k)
	if !r.cap() {
		return nil, ErrOOM // host allocator out of backing pages; external collaborator's concern in a real build
	}
	r.insert(c)
	gc.maybeZealTrigger(group)
	return c, nil
}

// maybeZealTrigger implements the ZealAllocTrigger debug mode: every
// ZealFreq allocations, force a GC slice deterministically.
func (gc *GC) maybeZealTrigger(group *ZoneGroup) {
	if !gc.cfg.Zeal.has(ZealAllocTrigger) {
		return
	}
	n := gc.allocCount.Add(1)
	freq := int64(gc.cfg.ZealFreq)
	if freq <= 0 {
		freq = 1
	}
	if n%uint64(freq) == 0 {
		gc.maybeGC(group, "zeal-alloc-trigger")
	}
}

// maybeGC is the "maybe GC" entry point the allocator calls on OOM or
// nursery pressure. It advances the driver by one slice if no
// collection is active, or runs a minor GC if generational collection
// would relieve the pressure.
func (gc *GC) maybeGC(group *ZoneGroup, reason string) {
	if gc.cfg.GenerationalGC && group.nursery.full(1, 1) {
		gc.MinorGC(group, reason)
		return
	}
	if gc.driver.State() == StateNotActive {
		gc.driver.Start(ReasonAllocTrigger, Budget{Work: 1000})
		return
	}
	gc.driver.Slice(ReasonAllocTrigger, Budget{Work: 1000})
}

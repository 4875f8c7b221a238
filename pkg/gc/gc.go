package gc

import (
	"sync"
	"sync/atomic"
)

// ZoneSpec selects how NewCompartment places its compartment.
type ZoneSpec int

const (
	// ZoneSpecSystem places the compartment in the collector's dedicated
	// system zone, created lazily on first use.
	ZoneSpecSystem ZoneSpec = iota
	// ZoneSpecExisting places the compartment in a caller-supplied zone.
	ZoneSpecExisting
	// ZoneSpecNewZoneInNewGroup creates a fresh zone in a fresh zone
	// group.
	ZoneSpecNewZoneInNewGroup
	// ZoneSpecNewZoneInSystemGroup creates a fresh zone inside the
	// collector's system zone group.
	ZoneSpecNewZoneInSystemGroup
	// ZoneSpecNewZoneInExistingGroup creates a fresh zone inside a
	// caller-supplied zone group.
	ZoneSpecNewZoneInExistingGroup
)

// GC is the top-level handle an embedder holds, wiring together the
// zones/groups, roots, marker, driver and finalizer. Of the three
// mutexes below only mu is acquired anywhere in this package;
// exclusiveMu and helperMu are declared but never locked, so no lock
// order among them is exercised.
type GC struct {
	cfg Config

	mu          sync.Mutex // guards groups/zones bookkeeping below
	exclusiveMu sync.Mutex // not acquired by any code in this package
	helperMu    sync.Mutex // not acquired; finalizerWorker guards its handoff state with its own mutex

	groups    []*ZoneGroup
	zones     []*Zone
	atomsZone *Zone
	systemGroup *ZoneGroup
	systemZone  *Zone

	nextGroupID int
	nextZoneID  int
	idCounter   atomic.Uint64

	roots     *RootSet
	marker    *Marker
	driver    *Driver
	finalizer *finalizerWorker

	stats        statsCounter
	allocCount   atomic.Uint64
	unsafeRegion atomic.Bool

	onFinalize         []func(*Cell)
	onWeakPointerZone   []func(*Zone)
	onGCSlice           []func(DriverState, GCReason)
}

// New constructs a collector with the given configuration, creating its
// always-present atoms zone (I7) eagerly so UniqueID/atom bookkeeping
// never has to special-case a nil atomsZone after construction.
func New(cfg Config) *GC {
	gc := &GC{cfg: cfg}
	gc.roots = newRootSet()
	gc.marker = newMarker(gc, cfg.MarkStackMax, cfg.Zeal.has(ZealVerifyPreBarrier))
	gc.driver = newDriver(gc)
	gc.finalizer = newFinalizerWorker()
	gc.finalizer.gc = gc

	atomsGroup := gc.NewZoneGroup()
	gc.atomsZone = gc.NewZone(atomsGroup, "atoms")
	return gc
}

// NewZoneGroup creates and registers a fresh zone group, sized from the
// collector's configuration.
func (gc *GC) NewZoneGroup() *ZoneGroup {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	id := gc.nextGroupID
	gc.nextGroupID++
	g := newZoneGroup(id, gc.cfg.NurserySize, gc.cfg.StoreBufferCapacity)
	g.nursery.disabled = !gc.cfg.GenerationalGC
	g.storeBuffer.onOverflow = func() { gc.MinorGC(g, "store-buffer-overflow") }
	gc.groups = append(gc.groups, g)
	return g
}

// NewZone creates and registers a fresh zone inside group.
func (gc *GC) NewZone(group *ZoneGroup, name string) *Zone {
	gc.mu.Lock()
	id := gc.nextZoneID
	gc.nextZoneID++
	gc.mu.Unlock()
	z := newZone(id, name, group)
	group.addZone(z)
	gc.mu.Lock()
	gc.zones = append(gc.zones, z)
	gc.mu.Unlock()
	return z
}

// systemZoneGroup lazily creates the collector-owned system zone group
// and zone used by ZoneSpecSystem / ZoneSpecNewZoneInSystemGroup.
func (gc *GC) systemZoneGroup() (*ZoneGroup, *Zone) {
	gc.mu.Lock()
	g, z := gc.systemGroup, gc.systemZone
	gc.mu.Unlock()
	if g != nil {
		return g, z
	}
	g = gc.NewZoneGroup()
	z = gc.NewZone(g, "system")
	gc.mu.Lock()
	gc.systemGroup, gc.systemZone = g, z
	gc.mu.Unlock()
	return g, z
}

// NewCompartment places a fresh Compartment according to spec, creating
// whatever zones/groups that placement requires.
func (gc *GC) NewCompartment(spec ZoneSpec, existingZone *Zone, existingGroup *ZoneGroup, name string) *Compartment {
	switch spec {
	case ZoneSpecSystem:
		_, z := gc.systemZoneGroup()
		return z.NewCompartment(name)
	case ZoneSpecExisting:
		if existingZone == nil {
			fatalf("gc: NewCompartment: ZoneSpecExisting requires existingZone")
		}
		return existingZone.NewCompartment(name)
	case ZoneSpecNewZoneInNewGroup:
		g := gc.NewZoneGroup()
		z := gc.NewZone(g, name)
		return z.NewCompartment(name)
	case ZoneSpecNewZoneInSystemGroup:
		g, _ := gc.systemZoneGroup()
		z := gc.NewZone(g, name)
		return z.NewCompartment(name)
	case ZoneSpecNewZoneInExistingGroup:
		if existingGroup == nil {
			fatalf("gc: NewCompartment: ZoneSpecNewZoneInExistingGroup requires existingGroup")
		}
		z := gc.NewZone(existingGroup, name)
		return z.NewCompartment(name)
	default:
		fatalf("gc: NewCompartment: invalid zone spec %d", spec)
		return nil
	}
}

// allGroups returns a snapshot of every registered zone group.
func (gc *GC) allGroups() []*ZoneGroup {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	out := make([]*ZoneGroup, len(gc.groups))
	copy(out, gc.groups)
	return out
}

// nextCellID hands out the next stable logical cell identity.
func (gc *GC) nextCellID() CellID {
	return CellID(gc.idCounter.Add(1))
}

// Roots exposes the root registry so embedders can register and
// unregister stack/persistent roots and tracer callbacks.
func (gc *GC) Roots() *RootSet { return gc.roots }

// Driver exposes the incremental state machine for embedders that want
// explicit slice control instead of relying on allocation-triggered
// collection.
func (gc *GC) Driver() *Driver { return gc.driver }

// StartGC begins an incremental collection and runs its first slice. It
// does no collection work if one is already in progress; use GCSlice to
// advance an active collection.
func (gc *GC) StartGC(reason GCReason, budget Budget) {
	gc.driver.Start(reason, budget)
	gc.fireGCSlice(reason)
}

// GCSlice advances an in-progress collection by budget's worth of work.
func (gc *GC) GCSlice(reason GCReason, budget Budget) {
	gc.driver.Slice(reason, budget)
	gc.fireGCSlice(reason)
}

// FinishGC drives any in-progress collection (starting one if needed) to
// completion.
func (gc *GC) FinishGC(reason GCReason) {
	gc.driver.Finish(reason)
	gc.fireGCSlice(reason)
}

func (gc *GC) fireGCSlice(reason GCReason) {
	gc.mu.Lock()
	hooks := append([]func(DriverState, GCReason){}, gc.onGCSlice...)
	gc.mu.Unlock()
	state := gc.driver.State()
	for _, h := range hooks {
		h(state, reason)
	}
}

// AbortGC aborts any in-progress collection.
func (gc *GC) AbortGC() { gc.driver.Abort() }

// ResetGC forces the driver back to NotActive on a hard blocker.
func (gc *GC) ResetGC(reason GCReason) error { return gc.driver.Reset(reason) }

// OnFinalize registers fn to be called once per finalized cell. It is
// invoked synchronously from the goroutine that ran the finalizer: the
// sweeping goroutine for foreground kinds, and finalizerWorker's
// background goroutine for background-finalizable kinds.
func (gc *GC) OnFinalize(fn func(*Cell)) {
	gc.mu.Lock()
	gc.onFinalize = append(gc.onFinalize, fn)
	gc.mu.Unlock()
}

// OnWeakPointerZone registers fn to be called for every zone swept this
// cycle.
func (gc *GC) OnWeakPointerZone(fn func(*Zone)) {
	gc.mu.Lock()
	gc.onWeakPointerZone = append(gc.onWeakPointerZone, fn)
	gc.mu.Unlock()
}

// OnGCSlice registers fn to be called after every slice with the
// driver's resulting state, for embedders that drive their own
// scheduling off collector progress.
func (gc *GC) OnGCSlice(fn func(DriverState, GCReason)) {
	gc.mu.Lock()
	gc.onGCSlice = append(gc.onGCSlice, fn)
	gc.mu.Unlock()
}

func (gc *GC) fireFinalized(c *Cell) {
	gc.mu.Lock()
	hooks := append([]func(*Cell){}, gc.onFinalize...)
	gc.mu.Unlock()
	for _, h := range hooks {
		h(c)
	}
}

func (gc *GC) fireWeakPointerZone(z *Zone) {
	gc.mu.Lock()
	hooks := append([]func(*Zone){}, gc.onWeakPointerZone...)
	gc.mu.Unlock()
	for _, h := range hooks {
		h(z)
	}
}

// SetZeal installs mode/freq directly.
func (gc *GC) SetZeal(mode ZealMode, freq int) {
	gc.cfg.Zeal = mode
	gc.cfg.ZealFreq = freq
}

// ParseAndSetZeal parses spec via ParseZealSpec and installs the result.
func (gc *GC) ParseAndSetZeal(spec string) error {
	mode, freq, err := ParseZealSpec(spec)
	if err != nil {
		return err
	}
	gc.SetZeal(mode, freq)
	return nil
}

// EnterUnsafeRegion and LeaveUnsafeRegion bracket mutator code that must
// never trigger or observe a GC; checkAllocatorState consults this flag
// to refuse allocation while it is set.
func (gc *GC) EnterUnsafeRegion() { gc.unsafeRegion.Store(true) }
func (gc *GC) LeaveUnsafeRegion() { gc.unsafeRegion.Store(false) }

// updateAtomBitmaps performs the Mark->Sweep transition's atoms-bitmap
// refresh: any atom cell that was reached this cycle from at least one
// zone's marking is kept black regardless of whether the atoms zone's
// own mark phase reached it directly, since an atom interned by one
// zone must survive as long as any other zone still names it.
func (gc *GC) updateAtomBitmaps() {
	if gc.atomsZone == nil {
		return
	}
	gc.mu.Lock()
	zones := append([]*Zone{}, gc.zones...)
	gc.mu.Unlock()

	for _, k := range [...]Kind{KindAtom, KindInlineAtom} {
		for _, r := range gc.atomsZone.regions.RegionsOfKind(k) {
			for _, c := range r.Cells() {
				id := c.UniqueID(gc)
				for _, z := range zones {
					if z.atomReachable(id) {
						SetColor(c, ColorBlack)
						break
					}
				}
			}
		}
	}
}

// integrateGrayRoots drives any embedding gray-tracer callback once per
// collection, feeding newly-discovered gray edges into their target
// zones' incoming-gray lists. It is a no-op when no embedder has called
// SetGrayTracer.
func (gc *GC) integrateGrayRoots(groups []*ZoneGroup) {
	t := &grayIntegrationTracer{gc: gc}
	gc.roots.traceRootsBusy(t, traceRootModeMark, false)
}

type grayIntegrationTracer struct{ gc *GC }

func (grayIntegrationTracer) Mode() TraceMode { return traceModeCallback }

func (t *grayIntegrationTracer) OnEdge(slot *Slot, kind Kind, name string) {
	c := slot.Get()
	if c == nil || c.zone == nil || slot.Owner == nil {
		return
	}
	if MarkIfUnmarked(c, ColorGray) {
		c.zone.addIncomingGray(slot.Owner)
		traceChildren(c, t)
	}
}

// runDecommit is the post-sweep decommit step: every region left with
// zero live cells across the groups this collection covered is
// released, and OnWeakPointerZone fires once per zone, once that zone's
// sweep has fully completed.
func (gc *GC) runDecommit() {
	for _, g := range gc.driver.currentGroups {
		for _, z := range g.Zones() {
			freed := z.regions.decommitEmpty()
			if freed > 0 {
				gc.cfg.logf("gc: decommitted %d empty regions in zone %s", freed, z.Name)
			}
			gc.fireWeakPointerZone(z)
		}
	}
}

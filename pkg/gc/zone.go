package gc

import "sync"

// Compartment is a security/isolation scope within a Zone. Edges that
// cross compartment boundaries are tracked explicitly so the scheduler
// (C10) can account for them without walking the whole heap.
type Compartment struct {
	Zone *Zone
	Name string

	mu sync.Mutex
	// incomingGray holds wrapper cells that refer into this compartment
	// across a zone-group boundary and were not followed during marking
	// (C9 gray marking discipline).
	incomingGray []*Cell
	// crossWrappers maps a wrapped cell's CellID to the wrapper cell
	// that represents it in this compartment.
	crossWrappers map[CellID]*Cell
}

func newCompartment(z *Zone, name string) *Compartment {
	return &Compartment{
		Zone:          z,
		Name:          name,
		crossWrappers: make(map[CellID]*Cell),
	}
}

func (c *Compartment) addIncomingGray(wrapper *Cell) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incomingGray = append(c.incomingGray, wrapper)
}

func (c *Compartment) drainIncomingGray() []*Cell {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.incomingGray
	c.incomingGray = nil
	return out
}

// WeakMap is a weak-keyed map registered against a zone; it is swept
// when its zone is swept (scenario 6, P7's neighbor property for weak
// references).
type WeakMap struct {
	mu      sync.Mutex
	entries map[*Cell]*Cell // key cell -> value cell
}

// NewWeakMap creates an empty weak map and registers it with z so that
// full/zone GCs sweep it.
func NewWeakMap(z *Zone) *WeakMap {
	wm := &WeakMap{entries: make(map[*Cell]*Cell)}
	z.mu.Lock()
	z.weakMaps = append(z.weakMaps, wm)
	z.mu.Unlock()
	return wm
}

// Set installs key->value. Both must already be live cells; the map
// does not itself keep key or value alive.
func (w *WeakMap) Set(key, value *Cell) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[key] = value
}

// Get looks up key, returning (value, true) if present.
func (w *WeakMap) Get(key *Cell) (*Cell, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.entries[key]
	return v, ok
}

// Len reports the number of entries currently in the map.
func (w *WeakMap) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// sweep removes entries whose key did not survive the just-finished
// mark phase.
func (w *WeakMap) sweep() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k := range w.entries {
		if Resolve(k).Color() == ColorWhite {
			delete(w.entries, k)
		}
	}
}

// Zone is a partition of the tenured heap. It is the unit at which GC
// decisions (collecting or not, sweep ordering) are made.
type Zone struct {
	ID   int
	Name string

	Group *ZoneGroup

	mu          sync.Mutex
	collecting  bool
	marking     bool      // true between the MarkRoots and Sweep driver states
	sweeping    bool      // true while the driver's sweep cursor is positioned on this zone
	markColor   MarkColor // the color new marks use while this zone is active (black for normal, gray during cross-group marking)
	compartments []*Compartment

	// incomingGray mirrors Compartment.incomingGray but at zone
	// granularity, for wrappers that do not belong to a named
	// compartment.
	incomingGray []*Cell

	sweepIndex int
	weakMaps   []*WeakMap

	uniqueIDs map[CellID]*Cell

	// atomBitmap names the atoms this zone keeps alive (I7).
	atomBitmap map[CellID]struct{}

	regions *RegionSet

	nextInGroup *Zone // intrusive link used by ZoneGroup's zone list
}

func newZone(id int, name string, group *ZoneGroup) *Zone {
	z := &Zone{
		ID:         id,
		Name:       name,
		Group:      group,
		uniqueIDs:  make(map[CellID]*Cell),
		atomBitmap: make(map[CellID]struct{}),
	}
	z.regions = newRegionSet(z)
	return z
}

func (z *Zone) recordUniqueID(id CellID, c *Cell) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.uniqueIDs[id] = c
}

func (z *Zone) markAtomReachable(id CellID) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.atomBitmap[id] = struct{}{}
}

func (z *Zone) atomReachable(id CellID) bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	_, ok := z.atomBitmap[id]
	return ok
}

// NewCompartment creates a compartment inside z.
func (z *Zone) NewCompartment(name string) *Compartment {
	c := newCompartment(z, name)
	z.mu.Lock()
	z.compartments = append(z.compartments, c)
	z.mu.Unlock()
	return c
}

func (z *Zone) addIncomingGray(wrapper *Cell) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.incomingGray = append(z.incomingGray, wrapper)
}

func (z *Zone) drainIncomingGray() []*Cell {
	z.mu.Lock()
	defer z.mu.Unlock()
	out := z.incomingGray
	z.incomingGray = nil
	return out
}

func (z *Zone) setCollecting(v bool) {
	z.mu.Lock()
	z.collecting = v
	z.mu.Unlock()
}

func (z *Zone) isCollecting() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.collecting
}

func (z *Zone) setMarking(v bool) {
	z.mu.Lock()
	z.marking = v
	z.mu.Unlock()
}

func (z *Zone) isMarking() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.marking
}

func (z *Zone) setSweeping(v bool) {
	z.mu.Lock()
	z.sweeping = v
	z.mu.Unlock()
}

// sweepInProgress reports whether the driver's sweep cursor currently
// sits on this zone. Read barriers consult this, not isCollecting,
// since a zone can be "collecting" for most of Mark without yet being
// the one under the sweeper's cursor.
func (z *Zone) sweepInProgress() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.sweeping
}

// ZoneGroup is an exclusive-access domain holding one or more zones plus
// the nursery they share. At most one cooperating thread may be inside
// a group at a time; Enter/Exit implement the reentrant mutex the
// cooperating-context abstraction needs.
type ZoneGroup struct {
	ID int

	mu          sync.Mutex
	owner       uint64 // goroutine-ish owner token, 0 = unowned
	depth       int    // reentrancy count
	zones       []*Zone
	nursery     *Nursery
	storeBuffer *StoreBuffer
	jitGroup    any // opaque JIT zone group handle, out of scope to trace
}

func newZoneGroup(id int, nurserySize uint32, sbCap int) *ZoneGroup {
	g := &ZoneGroup{ID: id}
	g.nursery = newNursery(g, nurserySize)
	g.storeBuffer = newStoreBuffer(g, sbCap)
	return g
}

// Enter acquires exclusive access to the group for token (reentrant: the
// same token may Enter again without blocking).
func (g *ZoneGroup) Enter(token uint64) {
	g.mu.Lock()
	for g.owner != 0 && g.owner != token {
		g.mu.Unlock()
		g.mu.Lock() // cooperative spin; the real scheduler would park here
	}
	g.owner = token
	g.depth++
	g.mu.Unlock()
}

// Exit releases one level of reentrancy; the group becomes free again
// once depth reaches zero.
func (g *ZoneGroup) Exit(token uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owner != token {
		panic("gc: ZoneGroup.Exit called by non-owner")
	}
	g.depth--
	if g.depth == 0 {
		g.owner = 0
	}
}

func (g *ZoneGroup) addZone(z *Zone) {
	g.mu.Lock()
	defer g.mu.Unlock()
	z.nextInGroup = nil
	if len(g.zones) > 0 {
		g.zones[len(g.zones)-1].nextInGroup = z
	}
	g.zones = append(g.zones, z)
}

// Zones returns a snapshot of the group's zone list.
func (g *ZoneGroup) Zones() []*Zone {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Zone, len(g.zones))
	copy(out, g.zones)
	return out
}

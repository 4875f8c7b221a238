package gc

import "testing"

// TestBarrierSoundness exercises P1: a pre-barrier fired while a
// zone is mid-mark must blacken the overwritten value and schedule it,
// so a concurrent mutator can never cause a reachable-at-slice-start
// cell to be left unmarked and swept.
func TestBarrierSoundness(t *testing.T) {
	g := New(DefaultConfig())
	group := g.NewZoneGroup()
	zone := g.NewZone(group, "z")

	old := newCell(KindObject2, zone, false)
	owner := newCell(KindObject2, zone, false)
	slot := NewSlot(owner, "field")
	slot.rawSet(old)

	zone.setMarking(true)
	defer zone.setMarking(false)

	g.PreBarrier(slot.RawGet())

	if old.Color() != ColorBlack {
		t.Fatalf("PreBarrier must blacken the old value while its zone is marking, got %v", old.Color())
	}
	if g.marker.Empty() {
		t.Fatalf("PreBarrier must push the blackened cell onto the marker so its children are scanned")
	}
}

func TestPreBarrierNoOpWhenNotMarking(t *testing.T) {
	g := New(DefaultConfig())
	zone := g.NewZone(g.NewZoneGroup(), "z")
	old := newCell(KindObject2, zone, false)

	g.PreBarrier(old)

	if old.Color() != ColorWhite {
		t.Fatalf("PreBarrier outside a marking zone must be a no-op, got %v", old.Color())
	}
}

func TestPreBarrierIdempotent(t *testing.T) {
	g := New(DefaultConfig())
	zone := g.NewZone(g.NewZoneGroup(), "z")
	old := newCell(KindObject2, zone, false)
	zone.setMarking(true)

	g.PreBarrier(old)
	g.marker.drainOne() // settle the first push

	before := old.Color()
	g.PreBarrier(old)
	if old.Color() != before {
		t.Fatalf("a second PreBarrier on an already-marked cell must not change its color (P6)")
	}
}

// TestPostBarrierBuffersTenuredToNurseryEdge exercises I4 clause (b):
// a tenured slot written with a nursery value must be recorded in its
// zone group's store buffer.
func TestPostBarrierBuffersTenuredToNurseryEdge(t *testing.T) {
	g := New(DefaultConfig())
	group := g.NewZoneGroup()
	zone := g.NewZone(group, "z")

	owner := newCell(KindObject2, zone, false)
	slot := NewSlot(owner, "field")

	nurseryCell := newCell(KindObject2, nil, true)
	g.PostBarrier(slot, nurseryCell)

	if group.storeBuffer.Len() != 1 {
		t.Fatalf("PostBarrier must enqueue exactly one store-buffer entry for a tenured->nursery edge, got %d", group.storeBuffer.Len())
	}
}

func TestPostBarrierIgnoresTenuredToTenuredEdge(t *testing.T) {
	g := New(DefaultConfig())
	group := g.NewZoneGroup()
	zone := g.NewZone(group, "z")

	owner := newCell(KindObject2, zone, false)
	slot := NewSlot(owner, "field")
	tenuredValue := newCell(KindObject2, zone, false)

	g.PostBarrier(slot, tenuredValue)

	if group.storeBuffer.Len() != 0 {
		t.Fatalf("PostBarrier must not buffer a tenured->tenured edge, got %d entries", group.storeBuffer.Len())
	}
}

func TestReadBarrierGrayUnmarksDescendants(t *testing.T) {
	g := New(DefaultConfig())
	zone := g.NewZone(g.NewZoneGroup(), "z")

	parent := newCell(KindObject2, zone, false)
	child := newCell(KindObject2, zone, false)
	parent.Slots = []*Slot{NewSlot(parent, "child")}
	parent.Slots[0].rawSet(child)

	SetColor(parent, ColorGray)
	SetColor(child, ColorGray)

	g.ReadBarrierGray(parent)

	if parent.Color() != ColorBlack || child.Color() != ColorBlack {
		t.Fatalf("ReadBarrierGray must turn a gray cell and its descendants black, got parent=%v child=%v", parent.Color(), child.Color())
	}
}

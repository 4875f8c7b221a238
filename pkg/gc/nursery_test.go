package gc

import "testing"

// TestNurseryPromotion covers end-to-end scenario 1: allocate a small
// object graph entirely in the nursery, root only the head, and verify
// that a minor GC promotes the reachable chain and leaves the rest for
// Go's own allocator to reclaim (nothing to assert about the latter
// directly, but the promoted count must match the reachable chain).
func TestNurseryPromotion(t *testing.T) {
	g := New(DefaultConfig())
	group := g.NewZoneGroup()
	zone := g.NewZone(group, "z")
	_ = zone

	const chainLen = 5
	cells := make([]*Cell, chainLen)
	for i := 0; i < chainLen; i++ {
		c, err := g.Allocate(group, nil, KindObject2, 1, HeapHintDefault)
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		cells[i] = c
	}
	for i := 0; i < chainLen-1; i++ {
		cells[i].Slots = []*Slot{NewSlot(cells[i], "next")}
		cells[i].Slots[0].rawSet(cells[i+1])
	}
	cells[chainLen-1].Slots = []*Slot{}

	rootSlot := NewSlot(nil, "root")
	rootSlot.rawSet(cells[0])
	elem := g.Roots().AddPersistent(KindObject2, rootSlot)
	defer g.Roots().RemovePersistent(KindObject2, elem)

	// Detach an unrooted cell to confirm it is not what gets promoted.
	garbage, err := g.Allocate(group, nil, KindObject2, 0, HeapHintDefault)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	g.MinorGC(group, "test")

	head := Resolve(cells[0])
	if head.inNursery {
		t.Fatalf("rooted chain head must be promoted out of the nursery")
	}
	if head.zone == nil {
		t.Fatalf("a promoted cell must have a tenured zone")
	}
	if !garbage.inNursery {
		t.Fatalf("unrooted cell must not be promoted by a minor GC")
	}

	stats := g.Stats()
	if stats.MinorCollections != 1 {
		t.Fatalf("expected exactly one minor collection, got %d", stats.MinorCollections)
	}
	if stats.CellsPromoted < chainLen {
		t.Fatalf("expected at least %d cells promoted, got %d", chainLen, stats.CellsPromoted)
	}
}

func TestGenerationalGCDisabledSkipsNursery(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GenerationalGC = false
	g := New(cfg)
	group := g.NewZoneGroup()
	g.NewZone(group, "z")

	c, err := g.Allocate(group, nil, KindObject2, 0, HeapHintDefault)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if c.inNursery {
		t.Fatalf("with GenerationalGC disabled, every allocation must take the tenured path")
	}
}

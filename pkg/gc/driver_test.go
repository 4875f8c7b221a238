package gc

import (
	"testing"
	"time"
)

// TestIncrementalCycle covers end-to-end scenario 2: a one-unit first
// slice must not finish the collection, FinishGC must then leave the
// driver NotActive, the garbage must be reclaimed while the rooted
// survivor stays live, and exactly one major collection is counted.
func TestIncrementalCycle(t *testing.T) {
	g := New(DefaultConfig())
	group := g.NewZoneGroup()
	zone := g.NewZone(group, "z")

	live, err := g.Allocate(group, zone, KindScript, 0, HeapHintTenured)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	garbage, err := g.Allocate(group, zone, KindScript, 0, HeapHintTenured)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	rootSlot := NewSlot(nil, "root")
	rootSlot.rawSet(live)
	elem := g.Roots().AddPersistent(KindScript, rootSlot)
	defer g.Roots().RemovePersistent(KindScript, elem)

	g.StartGC(ReasonAPI, Budget{Work: 1})
	if g.Driver().State() == StateNotActive {
		t.Fatalf("a one-unit-budget slice on a two-cell heap must not finish the whole collection")
	}

	g.FinishGC(ReasonAPI)
	if g.Driver().State() != StateNotActive {
		t.Fatalf("FinishGC must drive the collection to completion, got state %v", g.Driver().State())
	}

	// A compacting phase may have relocated the survivor, so resolve
	// through the root slot (which follows forwarding) rather than
	// comparing against the original *Cell identity.
	survivor := Resolve(rootSlot.RawGet())

	for _, r := range zone.regions.RegionsOfKind(KindScript) {
		for _, c := range r.Cells() {
			if Resolve(c) == garbage {
				t.Fatalf("unrooted cell must have been swept, found still resident")
			}
		}
	}

	found := false
	for _, r := range zone.regions.RegionsOfKind(KindScript) {
		for _, c := range r.Cells() {
			if c == survivor {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("rooted cell must survive the collection")
	}

	stats := g.Stats()
	if stats.MajorCollections != 1 {
		t.Fatalf("expected exactly one major collection, got %d", stats.MajorCollections)
	}
}

// TestResetMidMark covers end-to-end scenario 5: resetting a collection
// mid-Mark must return the driver to NotActive and unmark every zone,
// without panicking or leaving the zone stuck in a marking state.
func TestResetMidMark(t *testing.T) {
	g := New(DefaultConfig())
	group := g.NewZoneGroup()
	zone := g.NewZone(group, "z")

	for i := 0; i < 20; i++ {
		if _, err := g.Allocate(group, zone, KindScript, 0, HeapHintTenured); err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
	}

	g.StartGC(ReasonAPI, Budget{Work: 1})
	if g.Driver().State() != StateMark {
		t.Fatalf("expected driver in Mark after one slice over a 20-cell heap, got %v", g.Driver().State())
	}

	err := g.ResetGC(ReasonAPI)
	if err != ErrResetIncremental {
		t.Fatalf("ResetGC must return ErrResetIncremental, got %v", err)
	}
	if g.Driver().State() != StateNotActive {
		t.Fatalf("ResetGC must leave the driver NotActive, got %v", g.Driver().State())
	}
	if zone.isMarking() {
		t.Fatalf("ResetGC must clear the zone's marking flag")
	}
	if zone.isCollecting() {
		t.Fatalf("ResetGC must clear the zone's collecting flag")
	}
}

func TestSliceRespectsTimeBudget(t *testing.T) {
	g := New(DefaultConfig())
	group := g.NewZoneGroup()
	zone := g.NewZone(group, "z")
	for i := 0; i < 5000; i++ {
		if _, err := g.Allocate(group, zone, KindScript, 0, HeapHintTenured); err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
	}

	g.StartGC(ReasonAPI, Budget{Time: time.Nanosecond})
	if g.Driver().State() == StateNotActive {
		t.Fatalf("an effectively-zero time budget over a large heap must not complete in one Start call")
	}
	g.FinishGC(ReasonAPI)
	if g.Driver().State() != StateNotActive {
		t.Fatalf("FinishGC must always reach NotActive")
	}
}

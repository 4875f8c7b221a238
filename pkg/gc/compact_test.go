package gc

import "testing"

// TestCompaction covers end-to-end scenario 3: relocating cells out of
// a fragmented region must preserve every edge into the relocated
// cells, rewritten to the post-compaction address.
func TestCompaction(t *testing.T) {
	g := New(DefaultConfig())
	zone := g.NewZone(g.NewZoneGroup(), "z")

	target := newCell(KindObject2, zone, false)
	region := zone.regions.regionFor(KindObject2)
	region.insert(target)

	owner := newCell(KindObject2, zone, false)
	ownerRegion := zone.regions.regionFor(KindObject2)
	ownerRegion.insert(owner)
	owner.Slots = []*Slot{NewSlot(owner, "field")}
	owner.Slots[0].rawSet(target)

	// Fragment the region enough to be selected as a relocation source:
	// reclaim a throwaway cell so free >= live.
	throwaway := newCell(KindObject2, zone, false)
	region.insert(throwaway)
	region.reclaim(throwaway)

	g.relocateCell(region, target)
	if !target.IsForwarded() {
		t.Fatalf("relocateCell must forward the original cell")
	}
	moved := ForwardedTarget(target)

	rewriteCellEdges(owner)
	if owner.Slots[0].RawGet() != moved {
		t.Fatalf("rewriteCellEdges must rewrite an edge into a forwarded cell to its new address")
	}
}

func TestSelectRelocationSourcesThreshold(t *testing.T) {
	g := New(DefaultConfig())
	group := g.NewZoneGroup()
	zone := g.NewZone(group, "z")

	region := zone.regions.regionFor(KindObject2)
	live := newCell(KindObject2, zone, false)
	region.insert(live)

	sources := selectRelocationSources([]*ZoneGroup{group})
	for _, r := range sources {
		if r == region {
			t.Fatalf("a region with no free cells must not be selected for relocation")
		}
	}

	dead := newCell(KindObject2, zone, false)
	region.insert(dead)
	region.reclaim(dead)

	sources = selectRelocationSources([]*ZoneGroup{group})
	found := false
	for _, r := range sources {
		if r == region {
			found = true
		}
	}
	if !found {
		t.Fatalf("a region with free >= live cells must be selected for relocation")
	}
}

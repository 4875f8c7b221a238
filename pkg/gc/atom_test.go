package gc

import "testing"

// TestAtomSurvival covers I7: an atom interned by one zone must survive
// a collection as long as any zone still names it, even if the atoms
// zone's own mark phase never directly marked it black.
func TestAtomSurvival(t *testing.T) {
	g := New(DefaultConfig())
	atomsZone := g.atomsZone

	atomRegion := atomsZone.regions.regionFor(KindAtom)
	atom := newCell(KindAtom, atomsZone, false)
	atomRegion.insert(atom)
	SetColor(atom, ColorWhite)

	group := g.NewZoneGroup()
	userZone := g.NewZone(group, "user")
	id := atom.UniqueID(g)
	userZone.markAtomReachable(id)

	g.updateAtomBitmaps()

	if atom.Color() != ColorBlack {
		t.Fatalf("an atom referenced by a zone's atom bitmap must be kept black by updateAtomBitmaps")
	}
}

func TestAtomNotReferencedStaysWhite(t *testing.T) {
	g := New(DefaultConfig())
	atomsZone := g.atomsZone
	atomRegion := atomsZone.regions.regionFor(KindAtom)
	atom := newCell(KindAtom, atomsZone, false)
	atomRegion.insert(atom)

	g.updateAtomBitmaps()

	if atom.Color() != ColorWhite {
		t.Fatalf("an atom no zone references must not be force-kept black, got %v", atom.Color())
	}
}

func TestMarkAndPushRecordsAtomReachability(t *testing.T) {
	g := New(DefaultConfig())
	zone := g.NewZone(g.NewZoneGroup(), "z")
	owner := newCell(KindObject2, zone, false)

	atom := newCell(KindAtom, g.atomsZone, false)
	g.marker.MarkAndPush(owner, atom)

	id := atom.UniqueID(g)
	if !zone.atomReachable(id) {
		t.Fatalf("marking an atom edge from a zone's cell must record that atom as reachable from that zone")
	}
}

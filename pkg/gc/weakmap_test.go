package gc

import "testing"

// TestWeakMapSweep covers end-to-end scenario 6: a weak map entry whose
// key did not survive a collection's mark phase must be dropped when
// the key's zone sweeps, even though the map itself stayed reachable.
func TestWeakMapSweep(t *testing.T) {
	zone := newZone(0, "z", nil)
	wm := NewWeakMap(zone)

	survivor := newCell(KindObject2, zone, false)
	doomed := newCell(KindObject2, zone, false)
	wm.Set(survivor, newCell(KindObject2, zone, false))
	wm.Set(doomed, newCell(KindObject2, zone, false))

	SetColor(survivor, ColorBlack)
	// doomed is left white, simulating "not reached this mark phase".

	wm.sweep()

	if _, ok := wm.Get(doomed); ok {
		t.Fatalf("sweep must drop entries whose key did not survive marking")
	}
	if _, ok := wm.Get(survivor); !ok {
		t.Fatalf("sweep must keep entries whose key survived marking")
	}
	if wm.Len() != 1 {
		t.Fatalf("expected exactly one surviving entry, got %d", wm.Len())
	}
}

func TestWeakMapRegistersOnZone(t *testing.T) {
	zone := newZone(0, "z", nil)
	NewWeakMap(zone)
	NewWeakMap(zone)
	if len(zone.weakMaps) != 2 {
		t.Fatalf("NewWeakMap must register itself onto the zone, got %d registered", len(zone.weakMaps))
	}
}

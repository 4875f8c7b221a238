package gc

import "testing"

func TestMarkIdempotence(t *testing.T) {
	z := newZone(0, "z", nil)
	c := newCell(KindObject2, z, false)

	if !MarkIfUnmarked(c, ColorBlack) {
		t.Fatalf("first MarkIfUnmarked on a white cell should succeed")
	}
	if MarkIfUnmarked(c, ColorBlack) {
		t.Fatalf("second MarkIfUnmarked on an already-marked cell should be a no-op")
	}
	if MarkIfUnmarked(c, ColorGray) {
		t.Fatalf("MarkIfUnmarked must not transition an already-colored cell, even to a different color")
	}
	if c.Color() != ColorBlack {
		t.Fatalf("color changed unexpectedly: got %v", c.Color())
	}

	SetColor(c, ColorBlack)
	if c.Color() != ColorBlack {
		t.Fatalf("SetColor with the same color must be a no-op, not an error")
	}
}

func TestForwardingFidelity(t *testing.T) {
	z := newZone(0, "z", nil)
	src := newCell(KindString, z, false)
	dst := newCell(KindString, z, false)

	if src.IsForwarded() {
		t.Fatalf("a fresh cell must not report itself as forwarded")
	}

	SetForwarded(src, dst)
	if !src.IsForwarded() {
		t.Fatalf("SetForwarded must publish the forwarded bit")
	}
	if ForwardedTarget(src) != dst {
		t.Fatalf("ForwardedTarget must return exactly what SetForwarded installed")
	}
	if Resolve(src) != dst {
		t.Fatalf("Resolve must follow a single forwarding hop")
	}

	far := newCell(KindString, z, false)
	SetForwarded(dst, far)
	if Resolve(src) != far {
		t.Fatalf("Resolve must follow a forwarding chain to its end")
	}
}

func TestUniqueIDStableAcrossForwarding(t *testing.T) {
	g := New(DefaultConfig())
	z := g.NewZone(g.NewZoneGroup(), "z")
	src := newCell(KindObject2, z, false)

	id := src.UniqueID(g)
	if id == 0 {
		t.Fatalf("UniqueID must never return the zero value")
	}
	if got := src.UniqueID(g); got != id {
		t.Fatalf("UniqueID must be stable across repeated calls: got %v, want %v", got, id)
	}

	dst := newCell(KindObject2, z, false)
	SetForwarded(src, dst)
	// The id was recorded against src's logical identity, not its
	// address; relocateCell-style moves never need to touch uniqueIDs.
	if z.uniqueIDs[id] != src {
		t.Fatalf("zone's unique-id table must key by CellID, independent of forwarding state")
	}
}

package gc

import "testing"

// TestProcessValueArraySuspendsMidArray covers the budget-exhaustion
// path: an owner with more edges than valueArrayChunkSize must not be
// walked to completion in one drainOne call. Instead the remainder is
// converted into a saved-value-array entry, and a second drainOne call
// is required to finish it.
func TestProcessValueArraySuspendsMidArray(t *testing.T) {
	g := New(DefaultConfig())
	zone := g.NewZone(g.NewZoneGroup(), "z")

	owner := newCell(KindObject16, zone, false)
	n := valueArrayChunkSize + 10
	owner.Slots = make([]*Slot, n)
	targets := make([]*Cell, n)
	for i := 0; i < n; i++ {
		targets[i] = newCell(KindObject2, zone, false)
		owner.Slots[i] = NewSlot(owner, "elem")
		owner.Slots[i].rawSet(targets[i])
	}

	zone.setMarking(true)
	g.marker.pushCell(owner)

	progressed, cost := g.marker.drainOne()
	if !progressed {
		t.Fatalf("first drainOne on an oversized owner must report progress")
	}
	if cost != valueArrayChunkSize {
		t.Fatalf("first chunk must cost exactly valueArrayChunkSize, got %d", cost)
	}
	for i := 0; i < valueArrayChunkSize; i++ {
		if targets[i].Color() == ColorWhite {
			t.Fatalf("slot %d should have been marked by the first chunk", i)
		}
	}
	for i := valueArrayChunkSize; i < n; i++ {
		if targets[i].Color() != ColorWhite {
			t.Fatalf("slot %d must not be marked before the array is resumed", i)
		}
	}
	if g.marker.Empty() {
		t.Fatalf("the suspended remainder must still be on the stack")
	}

	progressed, cost = g.marker.drainOne()
	if !progressed {
		t.Fatalf("second drainOne must report progress (resuming the saved entry)")
	}
	_ = cost

	progressed, cost = g.marker.drainOne()
	if !progressed {
		t.Fatalf("third drainOne must finish scanning the remaining 10 slots")
	}
	if cost != int64(n-valueArrayChunkSize) {
		t.Fatalf("final chunk must cost the remaining slot count, got %d", cost)
	}
	for i := valueArrayChunkSize; i < n; i++ {
		if targets[i].Color() == ColorWhite {
			t.Fatalf("slot %d should have been marked by the final chunk", i)
		}
	}

	// Total cost is the chunk (1024) + the saved-entry resume step (1,
	// charged when converting it back into a live value-array entry) +
	// the final chunk (10).
	if want := int64(n + 1); g.marker.WorkBudgetUsed() != want {
		t.Fatalf("WorkBudgetUsed = %d, want %d", g.marker.WorkBudgetUsed(), want)
	}
}

package gc

import "testing"

func TestAllocateNurseryFastPath(t *testing.T) {
	g := New(DefaultConfig())
	group := g.NewZoneGroup()

	c, err := g.Allocate(group, nil, KindObject2, 0, HeapHintDefault)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if !c.inNursery {
		t.Fatalf("a nursery-allocable kind with the default hint must take the nursery fast path")
	}
}

func TestAllocateTenuredHintBypassesNursery(t *testing.T) {
	g := New(DefaultConfig())
	group := g.NewZoneGroup()
	zone := g.NewZone(group, "z")

	c, err := g.Allocate(group, zone, KindObject2, 0, HeapHintTenured)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if c.inNursery {
		t.Fatalf("HeapHintTenured must bypass the nursery even for a nursery-allocable kind")
	}
}

func TestAllocateRejectsInvalidKind(t *testing.T) {
	g := New(DefaultConfig())
	group := g.NewZoneGroup()

	defer func() {
		if recover() == nil {
			t.Fatalf("Allocate must panic on an invalid kind (spec contract, not a recoverable error)")
		}
	}()
	g.Allocate(group, nil, kindCount, 0, HeapHintDefault)
}

func TestAllocateFailsWhileZoneIsSweeping(t *testing.T) {
	g := New(DefaultConfig())
	group := g.NewZoneGroup()
	zone := g.NewZone(group, "z")
	zone.setCollecting(true)
	zone.setSweeping(true)

	_, err := g.Allocate(group, zone, KindObject2, 0, HeapHintTenured)
	if err != ErrOOM {
		t.Fatalf("allocating into a group whose zone is mid-sweep must fail, got %v", err)
	}
}

func TestAllocateFailsInUnsafeRegion(t *testing.T) {
	g := New(DefaultConfig())
	group := g.NewZoneGroup()
	g.EnterUnsafeRegion()
	defer g.LeaveUnsafeRegion()

	_, err := g.Allocate(group, nil, KindObject2, 0, HeapHintDefault)
	if err != ErrOOM {
		t.Fatalf("allocating inside an unsafe region must fail, got %v", err)
	}
}

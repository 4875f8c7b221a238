package gc

import "sync/atomic"

// Slot is an addressable location holding one outgoing GC edge. Barriers
// (C6) operate on Slots, never on raw *Cell writes, because the barrier
// protocol requires observing both the old and new value at the moment
// of the write.
type Slot struct {
	ptr   atomic.Pointer[Cell]
	Owner *Cell
	Name  string
}

// NewSlot creates a slot owned by owner, used for naming during tracing
// (C5's on_edge(&cell_ref, kind, name)).
func NewSlot(owner *Cell, name string) *Slot {
	return &Slot{Owner: owner, Name: name}
}

// Get returns the slot's current value, resolved through any forwarding
// (C1 contract: never read a possibly-moved pointer without resolving).
func (s *Slot) Get() *Cell {
	return Resolve(s.ptr.Load())
}

// RawGet returns the slot's value without resolving forwarding. Used by
// the compactor, which must distinguish "points at the pre-relocation
// address" from "points at nothing," and by the tenuring tracer, root
// set and store buffer during minor GC.
func (s *Slot) RawGet() *Cell {
	return s.ptr.Load()
}

// rawSet stores v without invoking any barrier. Used by root
// registration (initializing a fresh slot has no old value to barrier),
// by the tenuring tracer and by the compactor (rewriting an edge to its
// promoted or forwarded target is not a mutation the mutator barrier
// protocol is about).
func (s *Slot) rawSet(v *Cell) {
	s.ptr.Store(v)
}

// SetSlot installs v into s, running the full write-barrier protocol:
// pre-barrier on the old value, then the store, then the post-barrier on
// the new value. This is the only mutator-facing write path into a Slot.
func (gc *GC) SetSlot(s *Slot, v *Cell) {
	old := s.ptr.Load()
	gc.PreBarrier(old)
	s.ptr.Store(v)
	gc.PostBarrier(s, v)
}

// CellRef names an edge by slot and kind; GraySet returns these.
type CellRef struct {
	Slot *Slot
	Kind Kind
	Name string
}

package gc

import "sync"

// storeBufferEntry is tagged by which of four entry kinds it holds.
type storeBufferEntryKind int

const (
	entrySlot       storeBufferEntryKind = iota // tenured-slot pointing to nursery
	entryWholeCell                               // tenured whole-cell
	entryBufferable                              // generic bufferable-ref (trace(tracer) callback)
	entryValueEdge                               // tagged-pointer value-edge
)

type storeBufferEntry struct {
	kind storeBufferEntryKind
	slot *Slot // entrySlot, entryValueEdge
	cell *Cell // entryWholeCell: the tenured cell to re-scan wholesale
	trace func(Tracer) // entryBufferable
	key  any // identity key used for dedup
}

// StoreBuffer is the deduplicated remembered set of tenured->nursery
// edges consumed by minor GC. The dedup key depends on the entry kind:
// the slot pointer for slot and value-edge entries, the cell pointer for
// whole-cell entries, and a caller-supplied key for bufferable refs.
type StoreBuffer struct {
	group *ZoneGroup // SPSC discipline is per zone group

	mu      sync.Mutex
	entries map[any]storeBufferEntry
	cap     int
	onOverflow func() // triggers an immediate minor GC; wired by GC.NewZoneGroup
}

func newStoreBuffer(group *ZoneGroup, cap int) *StoreBuffer {
	return &StoreBuffer{group: group, entries: make(map[any]storeBufferEntry), cap: cap}
}

// insertEntry is the shared path for all four Insert* methods: it is
// idempotent over e.key, so duplicate entries collapse to one as soon
// as they're inserted rather than waiting for minor GC to dedup them.
func (sb *StoreBuffer) insertEntry(e storeBufferEntry) {
	sb.mu.Lock()
	sb.entries[e.key] = e
	overflow := len(sb.entries) > sb.cap
	sb.mu.Unlock()
	if overflow && sb.onOverflow != nil {
		sb.onOverflow()
	}
}

// InsertSlot records that slot (living in a tenured cell) now points
// into the nursery.
func (sb *StoreBuffer) InsertSlot(slot *Slot) {
	sb.insertEntry(storeBufferEntry{kind: entrySlot, slot: slot, key: slot})
}

// InsertWholeCell records that owner (a tenured cell) has enough slots
// pointing into the nursery that re-scanning it wholesale at minor GC is
// cheaper than tracking each slot.
func (sb *StoreBuffer) InsertWholeCell(owner *Cell) {
	sb.insertEntry(storeBufferEntry{kind: entryWholeCell, cell: owner, key: owner})
}

// InsertBufferable records a generic bufferable reference: an object
// exposing its own trace(tracer) callback, for host-defined slot shapes
// this package's Slot type cannot express directly.
func (sb *StoreBuffer) InsertBufferable(key any, trace func(Tracer)) {
	sb.insertEntry(storeBufferEntry{kind: entryBufferable, trace: trace, key: key})
}

// InsertValueEdge records a tagged-pointer value slot.
func (sb *StoreBuffer) InsertValueEdge(slot *Slot) {
	sb.insertEntry(storeBufferEntry{kind: entryValueEdge, slot: slot, key: slot})
}

// Len reports the current number of distinct entries.
func (sb *StoreBuffer) Len() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return len(sb.entries)
}

// drain visits every entry with tracer and clears the buffer.
func (sb *StoreBuffer) drain(t Tracer) {
	sb.mu.Lock()
	entries := sb.entries
	sb.entries = make(map[any]storeBufferEntry)
	sb.mu.Unlock()

	tt, isTenuring := t.(*tenuringTracer)

	for _, e := range entries {
		switch e.kind {
		case entrySlot, entryValueEdge:
			if isTenuring {
				c := e.slot.RawGet()
				e.slot.rawSet(tt.promote(c))
			} else {
				t.OnEdge(e.slot, 0, "store-buffer")
			}
		case entryWholeCell:
			traceChildren(e.cell, t)
		case entryBufferable:
			if e.trace != nil {
				e.trace(t)
			}
		}
	}
}

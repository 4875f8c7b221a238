package gc

import (
	"sync/atomic"
)

// MarkColor is the tri-color marking state of a cell.
type MarkColor uint8

const (
	// ColorWhite is unmarked: will be collected unless reached this slice.
	ColorWhite MarkColor = iota
	ColorBlack
	ColorGray
)

func (c MarkColor) String() string {
	switch c {
	case ColorWhite:
		return "white"
	case ColorBlack:
		return "black"
	case ColorGray:
		return "gray"
	default:
		return "MarkColor(invalid)"
	}
}

// CellID is a stable logical identity for a cell, assigned lazily on
// first UniqueID() call. It survives compaction because it is never
// derived from the cell's address.
type CellID uint64

// header packs kind, color, forwarded and uidAssigned into one word so
// that mark-if-unmarked can be implemented as a single CAS; this also
// keeps it atomic against concurrent minor-GC promotion writes to the
// same header.
//
// layout (low to high bits): kind[8] color[2] forwarded[1] uid[1]
type header uint32

const (
	headerKindShift      = 0
	headerKindMask       = 0xFF
	headerColorShift      = 8
	headerColorMask       = 0x3
	headerForwardedShift  = 10
	headerForwardedMask   = 0x1
	headerUIDShift        = 11
	headerUIDMask         = 0x1
)

func packHeader(k Kind, c MarkColor, forwarded, uid bool) header {
	h := header(uint32(k)&headerKindMask) << headerKindShift
	h |= header(uint32(c)&headerColorMask) << headerColorShift
	if forwarded {
		h |= 1 << headerForwardedShift
	}
	if uid {
		h |= 1 << headerUIDShift
	}
	return h
}

func (h header) kind() Kind {
	return Kind((h >> headerKindShift) & headerKindMask)
}

func (h header) color() MarkColor {
	return MarkColor((h >> headerColorShift) & headerColorMask)
}

func (h header) forwarded() bool {
	return (h>>headerForwardedShift)&headerForwardedMask != 0
}

func (h header) uidAssigned() bool {
	return (h>>headerUIDShift)&headerUIDMask != 0
}

func (h header) withColor(c MarkColor) header {
	return (h &^ (headerColorMask << headerColorShift)) | header(uint32(c)&headerColorMask)<<headerColorShift
}

func (h header) withForwarded() header {
	return h | (1 << headerForwardedShift)
}

func (h header) withUID() header {
	return h | (1 << headerUIDShift)
}

// Cell is the uniform header every GC-managed object carries (C1).
// Concrete host payloads are opaque to the collector; it only ever
// touches Slots (outgoing GC edges) and the header.
type Cell struct {
	hdr atomic.Uint32 // packed header, see above

	// forwardTo is valid iff hdr.forwarded() is set. It is read/written
	// under the same atomicity as hdr: the writer sets forwardTo first,
	// then publishes the forwarded bit, so readers that observe the bit
	// always observe a valid target: the writer's ordering is "set
	// contents, then publish".
	forwardTo atomic.Pointer[Cell]

	id    CellID // valid iff hdr.uidAssigned()
	zone  *Zone  // nil while in the nursery
	inNursery bool

	// Slots holds every outgoing GC edge this cell owns. trace_children
	// (C5) walks exactly these for TraceObject-like kinds; special trace
	// kinds (ropes, shapes, scopes) use dedicated fields below in
	// addition to, or instead of, Slots.
	Slots []*Slot

	// Rope-specific children, used only when kind is a string kind and
	// IsRope is true (C9 inline marking, §4.9).
	IsRope     bool
	RopeLeft   *Slot
	RopeRight  *Slot

	// Shape/Scope-specific single parent/enclosing edge, used for the
	// eager inline-walk path (C9).
	Parent *Slot

	// Payload is opaque host data (e.g. interned string bytes, bytecode).
	// The collector never interprets it.
	Payload any
}

func newCell(k Kind, z *Zone, inNursery bool) *Cell {
	c := &Cell{zone: z, inNursery: inNursery}
	c.hdr.Store(uint32(packHeader(k, ColorWhite, false, false)))
	return c
}

func (c *Cell) loadHeader() header {
	return header(c.hdr.Load())
}

// Kind returns the cell's kind tag. Undefined (per contract) once the
// cell has been forwarded and the caller has not gone through
// ForwardedTarget — callers that might race with compaction must check
// IsForwarded first.
func (c *Cell) Kind() Kind {
	return c.loadHeader().kind()
}

// Color returns the cell's current mark color.
func (c *Cell) Color() MarkColor {
	return c.loadHeader().color()
}

// IsMarkedColor reports whether the cell's color equals color.
func IsMarkedColor(c *Cell, color MarkColor) bool {
	return c.Color() == color
}

// MarkIfUnmarked atomically transitions c from white to the given
// non-white color if and only if it was white, returning true iff it
// performed the transition. This is the sole primitive that makes the
// marker's termination argument (mark-if-unmarked is monotonic) hold
// under concurrent minor-GC promotion writes to the same header.
func MarkIfUnmarked(c *Cell, color MarkColor) bool {
	for {
		old := header(c.hdr.Load())
		if old.color() != ColorWhite {
			return false
		}
		newH := old.withColor(color)
		if c.hdr.CompareAndSwap(uint32(old), uint32(newH)) {
			return true
		}
	}
}

// SetColor unconditionally sets c's color, used by gray-unmark recursion
// and by the sweeper resetting colors between collections. Idempotent:
// setting the same color twice is a no-op.
func SetColor(c *Cell, color MarkColor) {
	for {
		old := header(c.hdr.Load())
		if old.color() == color {
			return
		}
		newH := old.withColor(color)
		if c.hdr.CompareAndSwap(uint32(old), uint32(newH)) {
			return
		}
	}
}

// IsForwarded reports whether c has been relocated by compaction.
func (c *Cell) IsForwarded() bool {
	return c.loadHeader().forwarded()
}

// SetForwarded installs newAddr as c's forwarding target. The target
// pointer is published before the forwarded bit so that any reader
// observing the bit also observes a valid target.
func SetForwarded(c *Cell, newAddr *Cell) {
	c.forwardTo.Store(newAddr)
	for {
		old := header(c.hdr.Load())
		newH := old.withForwarded()
		if c.hdr.CompareAndSwap(uint32(old), uint32(newH)) {
			return
		}
	}
}

// ForwardedTarget returns the relocation target of c. Callers must check
// IsForwarded first; calling this on a non-forwarded cell returns nil.
func ForwardedTarget(c *Cell) *Cell {
	if !c.IsForwarded() {
		return nil
	}
	return c.forwardTo.Load()
}

// Resolve follows forwarding until it reaches a non-forwarded cell. Any
// code that dereferences a possibly-stale pointer across a compaction
// boundary must call Resolve first.
func Resolve(c *Cell) *Cell {
	for c != nil && c.IsForwarded() {
		c = ForwardedTarget(c)
	}
	return c
}

// UniqueID lazily assigns and returns a stable CellID for c, recording
// it in c.zone's unique-id table. The table is keyed by this logical ID,
// not by address, so it survives compaction without any moved-pointer
// assertion.
func (c *Cell) UniqueID(gc *GC) CellID {
	if c.loadHeader().uidAssigned() {
		return c.id
	}
	id := gc.nextCellID()
	c.id = id
	for {
		old := header(c.hdr.Load())
		newH := old.withUID()
		if c.hdr.CompareAndSwap(uint32(old), uint32(newH)) {
			break
		}
	}
	if c.zone != nil {
		c.zone.recordUniqueID(id, c)
	}
	return id
}

// kindOf is the package-level convenience form of Cell.Kind.
func kindOf(c *Cell) Kind { return c.Kind() }

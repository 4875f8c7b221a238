package gc

// TraceMode distinguishes the Tracer variants this package implements.
// A second, alternate marking implementation alongside this one was
// considered and rejected: one marker plus a separate callback tracer
// covers every variant this package needs (see DESIGN.md).
type TraceMode int

const (
	traceModeMark TraceMode = iota
	traceModeWeakMark
	traceModeTenuring
	traceModeCallback
)

// Tracer is the polymorphic edge visitor used by every traversal in the
// collector (C5). Concrete dispatchers for each source-cell kind call
// OnEdge for every owned edge exactly once; what OnEdge does depends on
// which concrete Tracer is in play.
type Tracer interface {
	Mode() TraceMode
	OnEdge(slot *Slot, kind Kind, name string)
}

// traceChildren visits every edge c owns, dispatching on c's trace kind.
// Behavior is uniform across Tracer variants: it always emits every
// owned edge exactly once; what differs is what the Tracer does with
// each edge.
func traceChildren(c *Cell, t Tracer) {
	switch TraceKindOf(c.Kind()) {
	case TraceString:
		traceStringChildren(c, t)
	case TraceShape, TraceAccessorShape, TraceBaseShape:
		if c.Parent != nil {
			t.OnEdge(c.Parent, c.Kind(), "parent")
		}
		traceGenericSlots(c, t)
	case TraceObject, TraceScript, TraceLazyScript, TraceObjectGroup,
		TraceExternalString, TraceAtom, TraceSymbol, TraceJitCode,
		TraceRegExpShared:
		traceGenericSlots(c, t)
	case TraceScope:
		traceScopeChildren(c, t)
	default:
		fatalf("gc: traceChildren: unhandled trace kind %v", TraceKindOf(c.Kind()))
	}
}

// traceGenericSlots visits every slot in c.Slots. This covers every
// trace kind whose children are a flat, order-independent edge list
// (objects, scripts, symbols, jit code, ...); shapes also use it, after
// their parent edge.
func traceGenericSlots(c *Cell, t Tracer) {
	for _, s := range c.Slots {
		t.OnEdge(s, c.Kind(), s.Name)
	}
}

// traceScopeChildren visits the single enclosing-scope edge plus any
// captured-binding slots. Scopes are one of the inline-marking kinds;
// traceChildren is still used for non-inline traversals (e.g.
// compaction's edge rewrite, which must visit every edge exactly once
// regardless of marking strategy).
func traceScopeChildren(c *Cell, t Tracer) {
	if c.Parent != nil {
		t.OnEdge(c.Parent, c.Kind(), "enclosing")
	}
	traceGenericSlots(c, t)
}

// traceStringChildren visits a rope's two children if c is a rope, else
// nothing (flat strings own no GC edges beyond their own char data,
// which is opaque Payload).
func traceStringChildren(c *Cell, t Tracer) {
	if !c.IsRope {
		return
	}
	if c.RopeLeft != nil {
		t.OnEdge(c.RopeLeft, c.Kind(), "left")
	}
	if c.RopeRight != nil {
		t.OnEdge(c.RopeRight, c.Kind(), "right")
	}
}

// markingTracer drives root and mark-stack tracing: every edge it
// visits gets marked and scheduled via the Marker (C9).
type markingTracer struct {
	marker *Marker
}

func (t *markingTracer) Mode() TraceMode { return traceModeMark }

func (t *markingTracer) OnEdge(slot *Slot, kind Kind, name string) {
	t.marker.MarkAndPush(slot.Owner, slot.Get())
}

// callbackTracer adapts a pair of host-supplied black/gray callbacks to
// the Tracer interface.
type callbackTracer struct {
	black func(*Cell)
	gray  func(*Cell)
	gray_ bool // true while visiting gray roots
}

func (t *callbackTracer) Mode() TraceMode { return traceModeCallback }

func (t *callbackTracer) OnEdge(slot *Slot, kind Kind, name string) {
	c := slot.Get()
	if c == nil {
		return
	}
	if t.gray_ {
		if t.gray != nil {
			t.gray(c)
		}
		return
	}
	if t.black != nil {
		t.black(c)
	}
}

// tenuringTracer drives minor GC (C8): every edge it visits that points
// into the nursery gets promoted, and the edge is rewritten in place to
// point at the tenured copy.
type tenuringTracer struct {
	gc       *GC
	group    *ZoneGroup
	promoted int
	seen     map[*Cell]bool
}

func newTenuringTracer(gc *GC, group *ZoneGroup) *tenuringTracer {
	return &tenuringTracer{gc: gc, group: group, seen: make(map[*Cell]bool)}
}

func (t *tenuringTracer) Mode() TraceMode { return traceModeTenuring }

func (t *tenuringTracer) OnEdge(slot *Slot, kind Kind, name string) {
	c := slot.RawGet()
	if c == nil {
		return
	}
	if c.IsForwarded() {
		slot.rawSet(ForwardedTarget(c))
		return
	}
	if !c.inNursery {
		return // already tenured; no rewrite needed
	}
	dst := promoteCell(t.gc, t.group, c)
	slot.rawSet(dst)
	if !t.seen[dst] {
		t.seen[dst] = true
		t.promoted++
		traceChildren(dst, t)
	}
}

// promote is the entry point used by the root set and store buffer to
// hand a directly-reachable nursery cell to the tenuring tracer. It
// returns the tenured (or forwarded) cell and leaves rewriting the
// root's or store-buffer entry's slot to the caller.
func (t *tenuringTracer) promote(c *Cell) *Cell {
	if c == nil {
		return nil
	}
	if c.IsForwarded() {
		return ForwardedTarget(c)
	}
	if !c.inNursery {
		return c
	}
	dst := promoteCell(t.gc, t.group, c)
	if !t.seen[dst] {
		t.seen[dst] = true
		t.promoted++
		traceChildren(dst, t)
	}
	return dst
}

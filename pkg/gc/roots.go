package gc

import (
	"container/list"
	"sync"
)

// TraceRootMode selects how trace_roots treats what it finds: plain
// marking, or promotion during minor GC.
type TraceRootMode int

const (
	traceRootModeMark TraceRootMode = iota
	traceRootModeTenuring
)

// StackRootHandle is one scope-bound root registration. It is stored as
// the value of a container/list element and keeps that element for
// removal.
type StackRootHandle struct {
	slot    *Slot
	kind    Kind
	thread  uint64
	element *list.Element
}

// Cell returns the handle's current root value, resolved through any
// forwarding.
func (h *StackRootHandle) Cell() *Cell { return h.slot.Get() }

// Set installs a new value into the root, running the write-barrier
// protocol exactly as any other slot write would: roots are slots with
// no owner, not slots exempt from the barrier contract.
func (h *StackRootHandle) Set(gc *GC, c *Cell) { gc.SetSlot(h.slot, c) }

// RootSet owns the three root registries: stack roots, persistent
// roots, and embedding tracer callbacks.
type RootSet struct {
	mu sync.Mutex

	stackRoots map[uint64]*list.List // thread id -> list of *StackRootHandle

	persistent map[Kind]*list.List // kind -> list of *Slot

	blackTracers []func(Tracer)
	grayTracer   func(Tracer)
}

func newRootSet() *RootSet {
	return &RootSet{
		stackRoots: make(map[uint64]*list.List),
		persistent: make(map[Kind]*list.List),
	}
}

// AddStackRoot registers a new scope-bound root for thread on the
// calling goroutine, categorized by kind. It must be removed with
// RemoveStackRoot when the scope exits.
func (rs *RootSet) AddStackRoot(thread uint64, kind Kind, initial *Cell) *StackRootHandle {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	l, ok := rs.stackRoots[thread]
	if !ok {
		l = list.New()
		rs.stackRoots[thread] = l
	}
	h := &StackRootHandle{slot: &Slot{Name: "stack-root"}, kind: kind, thread: thread}
	h.slot.rawSet(initial)
	h.element = l.PushBack(h)
	return h
}

// RemoveStackRoot unregisters h.
func (rs *RootSet) RemoveStackRoot(h *StackRootHandle) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	l, ok := rs.stackRoots[h.thread]
	if !ok {
		return
	}
	l.Remove(h.element)
}

// AddPersistent registers slot as a persistent root of kind, visited on
// every root trace until RemovePersistent is called.
func (rs *RootSet) AddPersistent(kind Kind, slot *Slot) *list.Element {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	l, ok := rs.persistent[kind]
	if !ok {
		l = list.New()
		rs.persistent[kind] = l
	}
	return l.PushBack(slot)
}

// RemovePersistent unregisters a slot previously returned by
// AddPersistent.
func (rs *RootSet) RemovePersistent(kind Kind, e *list.Element) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if l, ok := rs.persistent[kind]; ok {
		l.Remove(e)
	}
}

// AddBlackTracer registers an embedding black-tracer callback. The
// closure fn supplies captures whatever state it needs, Go idiom in
// place of threading a void* through.
func (rs *RootSet) AddBlackTracer(fn func(Tracer)) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.blackTracers = append(rs.blackTracers, fn)
}

// SetGrayTracer installs the single embedding gray-tracer callback.
func (rs *RootSet) SetGrayTracer(fn func(Tracer)) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.grayTracer = fn
}

// traceRoots visits every root exactly once, making each observable to
// t. Within one thread's stack-root list and within one kind's
// persistent list, roots are visited in registration order; the
// per-thread lists are visited in map iteration order (not defined) and
// the persistent lists in ascending kind order, so registration order is
// not kept across threads or kinds. heapBusy gates stack-root visitation:
// stack roots are only visited at slice start, while the heap is busy.
func (rs *RootSet) traceRoots(t Tracer, mode TraceRootMode) {
	rs.traceRootsBusy(t, mode, true)
}

func (rs *RootSet) traceRootsBusy(t Tracer, mode TraceRootMode, heapBusy bool) {
	rs.mu.Lock()
	// Snapshot everything under the lock, then visit outside it: root
	// tracing may itself allocate stack roots (temporaries created while
	// tracing embedding callbacks), and holding the lock across a
	// possibly-reentrant callback would deadlock.
	var stackLists []*list.List
	if heapBusy {
		for _, l := range rs.stackRoots {
			stackLists = append(stackLists, l)
		}
	}
	var persistentLists []*list.List
	for _, k := range orderedKinds(rs.persistent) {
		persistentLists = append(persistentLists, rs.persistent[k])
	}
	blackTracers := append([]func(Tracer){}, rs.blackTracers...)
	grayTracer := rs.grayTracer
	rs.mu.Unlock()

	tt, isTenuring := t.(*tenuringTracer)

	visit := func(s *Slot) {
		if isTenuring {
			c := s.RawGet()
			s.rawSet(tt.promote(c))
			return
		}
		t.OnEdge(s, 0, "root")
	}

	for _, l := range stackLists {
		for e := l.Front(); e != nil; e = e.Next() {
			h := e.Value.(*StackRootHandle)
			visit(h.slot)
		}
	}
	for _, l := range persistentLists {
		for e := l.Front(); e != nil; e = e.Next() {
			visit(e.Value.(*Slot))
		}
	}
	for _, fn := range blackTracers {
		fn(t)
	}
	if grayTracer != nil {
		grayTracer(t)
	}
}

func orderedKinds(m map[Kind]*list.List) []Kind {
	out := make([]Kind, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

package gc

// Kind is the closed set of 27 cell categories the collector knows about.
// Every allocated cell carries exactly one Kind in its header; the kind
// alone determines size class, nursery eligibility, finalization
// discipline, and trace kind (see kindTable below).
type Kind uint8

const (
	KindObject0 Kind = iota
	KindObject0Background
	KindObject2
	KindObject2Background
	KindObject4
	KindObject4Background
	KindObject8
	KindObject8Background
	KindObject12
	KindObject12Background
	KindObject16
	KindObject16Background
	KindScript
	KindLazyScript
	KindShape
	KindAccessorShape
	KindBaseShape
	KindObjectGroup
	KindInlineString
	KindString
	KindExternalString
	KindInlineAtom
	KindAtom
	KindSymbol
	KindJitCode
	KindScope
	KindRegExpShared

	kindCount
)

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= int(kindCount) {
		return "Kind(invalid)"
	}
	return kindTable[k].name
}

// Valid reports whether k is one of the 27 registered kinds.
func (k Kind) Valid() bool {
	return k < kindCount
}

// TraceKind is the set of 14 distinct tracing behaviors. Several Kind
// values share a TraceKind: e.g. all 12 object-size classes trace
// identically.
type TraceKind uint8

const (
	TraceObject TraceKind = iota
	TraceScript
	TraceLazyScript
	TraceShape
	TraceAccessorShape
	TraceBaseShape
	TraceObjectGroup
	TraceString
	TraceExternalString
	TraceAtom
	TraceSymbol
	TraceJitCode
	TraceScope
	TraceRegExpShared

	traceKindCount
)

func (t TraceKind) String() string {
	names := [...]string{
		"Object", "Script", "LazyScript", "Shape", "AccessorShape",
		"BaseShape", "ObjectGroup", "String", "ExternalString", "Atom",
		"Symbol", "JitCode", "Scope", "RegExpShared",
	}
	if int(t) < 0 || int(t) >= len(names) {
		return "TraceKind(invalid)"
	}
	return names[t]
}

// kindInfo is one row of the static kind metadata table (C1).
type kindInfo struct {
	name                  string
	size                  uint32 // fixed byte size of the cell's fixed slots
	nurseryAllocable      bool
	backgroundFinalizable bool
	cycleCollected        bool // participates in the external cycle collector
	trace                 TraceKind
}

// kindTable is the static 27-row table of kind metadata. It is
// read-only after package init and never mutated, so it needs no lock.
var kindTable = [kindCount]kindInfo{
	KindObject0:            {"Object0", 16, true, false, true, TraceObject},
	KindObject0Background:  {"Object0Background", 16, true, true, true, TraceObject},
	KindObject2:            {"Object2", 32, true, false, true, TraceObject},
	KindObject2Background:  {"Object2Background", 32, true, true, true, TraceObject},
	KindObject4:            {"Object4", 48, true, false, true, TraceObject},
	KindObject4Background:  {"Object4Background", 48, true, true, true, TraceObject},
	KindObject8:            {"Object8", 80, true, false, true, TraceObject},
	KindObject8Background:  {"Object8Background", 80, true, true, true, TraceObject},
	KindObject12:           {"Object12", 112, true, false, true, TraceObject},
	KindObject12Background: {"Object12Background", 112, true, true, true, TraceObject},
	KindObject16:           {"Object16", 144, true, false, true, TraceObject},
	KindObject16Background: {"Object16Background", 144, true, true, true, TraceObject},
	KindScript:             {"Script", 88, false, false, true, TraceScript},
	KindLazyScript:         {"LazyScript", 64, false, false, true, TraceLazyScript},
	KindShape:              {"Shape", 48, true, true, true, TraceShape},
	KindAccessorShape:      {"AccessorShape", 64, true, true, true, TraceAccessorShape},
	KindBaseShape:          {"BaseShape", 40, true, true, true, TraceBaseShape},
	KindObjectGroup:        {"ObjectGroup", 56, false, false, true, TraceObjectGroup},
	KindInlineString:       {"InlineString", 24, true, false, false, TraceString},
	KindString:             {"String", 24, true, false, false, TraceString},
	KindExternalString:     {"ExternalString", 24, true, false, false, TraceExternalString},
	KindInlineAtom:         {"InlineAtom", 24, false, false, false, TraceAtom},
	KindAtom:               {"Atom", 24, false, false, false, TraceAtom},
	KindSymbol:             {"Symbol", 16, false, false, false, TraceSymbol},
	KindJitCode:            {"JitCode", 96, false, false, true, TraceJitCode},
	KindScope:              {"Scope", 40, true, false, true, TraceScope},
	KindRegExpShared:       {"RegExpShared", 48, false, false, false, TraceRegExpShared},
}

// SizeOf returns the fixed byte size of cells of the given kind.
func SizeOf(k Kind) uint32 {
	return kindTable[k].size
}

// IsNurseryAllocable reports whether cells of kind k may be allocated in
// the nursery (I4: kinds forbidding nursery residency never appear there
// by construction).
func IsNurseryAllocable(k Kind) bool {
	return kindTable[k].nurseryAllocable
}

// IsBackgroundFinalizable reports whether k's finalizer may run on a
// helper thread (C12).
func IsBackgroundFinalizable(k Kind) bool {
	return kindTable[k].backgroundFinalizable
}

// IsCycleCollected reports whether cells of kind k are visible to the
// external cycle collector via the gray set.
func IsCycleCollected(k Kind) bool {
	return kindTable[k].cycleCollected
}

// TraceKindOf returns the trace behavior used for cells of kind k.
func TraceKindOf(k Kind) TraceKind {
	return kindTable[k].trace
}

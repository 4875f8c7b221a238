package gc

import "sort"

// regionPageMultiple is the page-alignment multiple new regions are sized
// to; it exists purely as a documented constant since this collector
// models pages logically rather than mapping real OS pages (the host's
// own allocator owns actual memory mapping).
const regionPageMultiple = 4096

// cellsPerRegion bounds how many cells of a kind a single Region holds
// before a fresh Region is allocated. Chosen so tests can force multiple
// regions without allocating thousands of cells.
const cellsPerRegion = 64

// Region is a page-aligned block holding cells of exactly one kind.
// Unlike a scope-hierarchy tree, regions never nest; a region's only
// ownership relationship is the Zone it belongs to.
type Region struct {
	Kind Kind
	Zone *Zone

	cells    []*Cell
	free     []*Cell // cells awaiting reuse within this region
	markBits map[*Cell]MarkColor // per-region mark bitmap (C2)
	decommitted bool
}

func newRegion(k Kind, z *Zone) *Region {
	return &Region{
		Kind:     k,
		Zone:     z,
		markBits: make(map[*Cell]MarkColor),
	}
}

// cap reports whether the region has room for one more cell.
func (r *Region) cap() bool {
	return len(r.cells) < cellsPerRegion
}

// insert adds a freshly allocated cell to the region.
func (r *Region) insert(c *Cell) {
	r.cells = append(r.cells, c)
	r.markBits[c] = ColorWhite
}

// first/next/done implement C2's kind-uniform iteration contract.
func (r *Region) first() int {
	if len(r.cells) == 0 {
		return -1
	}
	return 0
}

func (r *Region) next(i int) int {
	if i+1 >= len(r.cells) {
		return -1
	}
	return i + 1
}

func (r *Region) done(i int) bool {
	return i < 0
}

// Cells returns a snapshot slice of all cells currently resident in the
// region, in allocation order.
func (r *Region) Cells() []*Cell {
	out := make([]*Cell, len(r.cells))
	copy(out, r.cells)
	return out
}

// reclaim removes c from the region's live set and appends it to the
// free list, for reuse by a future allocation of the same kind.
func (r *Region) reclaim(c *Cell) {
	for i, cell := range r.cells {
		if cell == c {
			r.cells = append(r.cells[:i], r.cells[i+1:]...)
			break
		}
	}
	delete(r.markBits, c)
	r.free = append(r.free, c)
}

// liveCount reports how many cells currently reside in the region.
func (r *Region) liveCount() int {
	return len(r.cells)
}

// decommit releases the region's backing storage when it holds nothing
// live. A decommitted region is never reused; a fresh one is allocated
// on the next need for its kind.
func (r *Region) decommit() {
	r.cells = nil
	r.free = nil
	r.markBits = nil
	r.decommitted = true
}

// RegionSet owns every Region for a single Zone, keyed by Kind, plus the
// free-list bookkeeping the allocator's tenured slow path consults.
type RegionSet struct {
	zone    *Zone
	regions map[Kind][]*Region
}

func newRegionSet(z *Zone) *RegionSet {
	return &RegionSet{zone: z, regions: make(map[Kind][]*Region)}
}

// regionFor returns a region of kind k with spare capacity, allocating a
// new one if every existing region of that kind is full.
func (rs *RegionSet) regionFor(k Kind) *Region {
	list := rs.regions[k]
	for _, r := range list {
		if !r.decommitted && r.cap() {
			return r
		}
	}
	r := newRegion(k, rs.zone)
	rs.regions[k] = append(list, r)
	return r
}

// AllRegions returns every region across every kind, ordered by kind for
// deterministic sweep iteration (C12 "kind-ordered per-zone sweeping").
func (rs *RegionSet) AllRegions() []*Region {
	kinds := make([]Kind, 0, len(rs.regions))
	for k := range rs.regions {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	var out []*Region
	for _, k := range kinds {
		out = append(out, rs.regions[k]...)
	}
	return out
}

// RegionsOfKind returns every region holding cells of kind k.
func (rs *RegionSet) RegionsOfKind(k Kind) []*Region {
	return rs.regions[k]
}

// decommitEmpty decommits and drops every region of every kind that has
// gone fully empty, implementing C12's post-sweep decommit step.
func (rs *RegionSet) decommitEmpty() int {
	freed := 0
	for k, list := range rs.regions {
		kept := list[:0:0]
		for _, r := range list {
			if r.liveCount() == 0 {
				r.decommit()
				freed++
				continue
			}
			kept = append(kept, r)
		}
		rs.regions[k] = kept
	}
	return freed
}

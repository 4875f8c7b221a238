package gc

import "sort"

// crossZoneEdge is one recorded reference from a cell in fromZone to a
// cell in toZone, discovered while building the outgoing-edges map that
// feeds Tarjan's algorithm.
type crossZoneEdge struct {
	from, to *Zone
}

// buildZoneGraph collects every distinct zone-to-zone edge implied by
// each zone's and compartment's incoming-gray-pointer/cross-wrapper
// bookkeeping. It runs once per collection, after marking, so it only
// ever sees edges that were actually live this collection.
func buildZoneGraph(groups []*ZoneGroup) (zones []*Zone, edges []crossZoneEdge) {
	seen := make(map[[2]int]bool)
	for _, g := range groups {
		for _, z := range g.Zones() {
			zones = append(zones, z)
			for _, w := range z.incomingGray {
				w = Resolve(w)
				if w.zone == nil || w.zone == z {
					continue
				}
				key := [2]int{w.zone.ID, z.ID}
				if !seen[key] {
					seen[key] = true
					edges = append(edges, crossZoneEdge{from: w.zone, to: z})
				}
			}
			for _, c := range z.compartments {
				for _, w := range c.incomingGray {
					w = Resolve(w)
					if w.zone == nil || w.zone == z {
						continue
					}
					key := [2]int{w.zone.ID, z.ID}
					if !seen[key] {
						seen[key] = true
						edges = append(edges, crossZoneEdge{from: w.zone, to: z})
					}
				}
			}
		}
	}
	return zones, edges
}

// tarjan is a textbook Tarjan's-algorithm SCC finder over *Zone nodes.
type tarjan struct {
	index   map[*Zone]int
	lowlink map[*Zone]int
	onStack map[*Zone]bool
	stack   []*Zone
	next    int
	adj     map[*Zone][]*Zone
	sccs    [][]*Zone
}

func newTarjan(zones []*Zone, edges []crossZoneEdge) *tarjan {
	t := &tarjan{
		index:   make(map[*Zone]int),
		lowlink: make(map[*Zone]int),
		onStack: make(map[*Zone]bool),
		adj:     make(map[*Zone][]*Zone),
	}
	for _, z := range zones {
		t.adj[z] = nil
	}
	for _, e := range edges {
		t.adj[e.from] = append(t.adj[e.from], e.to)
	}
	return t
}

func (t *tarjan) run(zones []*Zone) [][]*Zone {
	// Deterministic iteration order: callers depend on reproducible
	// sweep-group numbering across runs with the same input graph.
	sorted := append([]*Zone{}, zones...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, z := range sorted {
		if _, ok := t.index[z]; !ok {
			t.strongconnect(z)
		}
	}
	return t.sccs
}

func (t *tarjan) strongconnect(v *Zone) {
	t.index[v] = t.next
	t.lowlink[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	neighbors := append([]*Zone{}, t.adj[v]...)
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].ID < neighbors[j].ID })
	for _, w := range neighbors {
		if _, ok := t.index[w]; !ok {
			t.strongconnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []*Zone
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}

// scheduleSweepGroups partitions groups' zones into sweep groups (SCCs
// of the cross-zone reference graph) and orders them so that no zone is
// swept while it still has an outgoing unmarked-referent edge to a zone
// not yet swept (P4). Tarjan naturally yields SCCs in reverse
// topological order of the condensed DAG: the first group produced has
// no outgoing edges to a group not yet produced, so referent zones are
// swept before the zones that refer to them, which is exactly the
// ordering sweeping needs.
func (gc *GC) scheduleSweepGroups(groups []*ZoneGroup) [][]*Zone {
	zones, edges := buildZoneGraph(groups)
	if len(zones) == 0 {
		return nil
	}
	t := newTarjan(zones, edges)
	sccs := t.run(zones)
	gc.stats.add(func(s *Stats) { s.SweepGroupsFormed += uint64(len(sccs)) })
	gc.cfg.logf("gc: scheduled %d sweep groups", len(sccs))
	return sccs
}

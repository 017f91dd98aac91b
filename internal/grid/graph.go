package grid

import "github.com/vogtb/go-gridcalc/internal/formula"

// Edge records that the formula at Source read the cell at Target during
// its last successful evaluation.
type Edge struct {
	Source formula.Pos
	Target formula.Pos
}

// DependencyGraph is a flat list of edges scanned linearly in both
// directions. no two edges share (Source, Target); cycles are allowed and
// are reported by the recompute driver.
type DependencyGraph struct {
	edges []Edge
}

// EdgeDiff counts what SetPrecedents did to the edge list
type EdgeDiff struct {
	Kept      int
	Rewritten int
	Removed   int
	Added     int
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{}
}

// GetDirectPrecedents returns the cells pos read, in edge order
func (dg *DependencyGraph) GetDirectPrecedents(pos formula.Pos) []formula.Pos {
	var result []formula.Pos
	for _, e := range dg.edges {
		if e.Source == pos {
			result = append(result, e.Target)
		}
	}
	return result
}

// GetDirectDependents returns the cells that read pos, in edge order
func (dg *DependencyGraph) GetDirectDependents(pos formula.Pos) []formula.Pos {
	var result []formula.Pos
	for _, e := range dg.edges {
		if e.Target == pos {
			result = append(result, e.Source)
		}
	}
	return result
}

// GetAllDependents returns every cell that transitively reads pos, nearest
// first. pos itself is only included when it sits on a cycle.
func (dg *DependencyGraph) GetAllDependents(pos formula.Pos) []formula.Pos {
	visited := map[formula.Pos]struct{}{}
	var result []formula.Pos

	queue := []formula.Pos{pos}
	for head := 0; head < len(queue); head++ {
		for _, dep := range dg.GetDirectDependents(queue[head]) {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			result = append(result, dep)
			queue = append(queue, dep)
		}
	}
	return result
}

// OutgoingCount returns how many edges leave pos
func (dg *DependencyGraph) OutgoingCount(pos formula.Pos) int {
	n := 0
	for _, e := range dg.edges {
		if e.Source == pos {
			n++
		}
	}
	return n
}

// SetPrecedents makes the outgoing edges of src equal targets. edges whose
// target is still wanted are left alone, slots whose target is gone are
// rewritten in place with new targets, leftover slots are deleted and any
// remaining targets are appended. duplicate targets are ignored.
func (dg *DependencyGraph) SetPrecedents(src formula.Pos, targets []formula.Pos) EdgeDiff {
	var diff EdgeDiff

	wanted := make(map[formula.Pos]bool, len(targets))
	for _, t := range targets {
		wanted[t] = true
	}

	var stale []int
	for i, e := range dg.edges {
		if e.Source != src {
			continue
		}
		if wanted[e.Target] {
			delete(wanted, e.Target)
			diff.Kept++
			continue
		}
		stale = append(stale, i)
	}

	missing := make([]formula.Pos, 0, len(wanted))
	for _, t := range targets {
		if wanted[t] {
			delete(wanted, t)
			missing = append(missing, t)
		}
	}

	n := min(len(stale), len(missing))
	for k := 0; k < n; k++ {
		dg.edges[stale[k]].Target = missing[k]
	}
	diff.Rewritten = n

	if surplus := stale[n:]; len(surplus) > 0 {
		dg.removeSlots(surplus)
		diff.Removed = len(surplus)
	}

	for _, t := range missing[n:] {
		dg.edges = append(dg.edges, Edge{Source: src, Target: t})
	}
	diff.Added = len(missing) - n

	return diff
}

// removeSlots deletes the edges at the given ascending indices, keeping
// the order of the rest
func (dg *DependencyGraph) removeSlots(indices []int) {
	w, next := 0, 0
	for i, e := range dg.edges {
		if next < len(indices) && indices[next] == i {
			next++
			continue
		}
		dg.edges[w] = e
		w++
	}
	clear(dg.edges[w:])
	dg.edges = dg.edges[:w]
}

// ClearDependencies removes all outgoing edges of pos
func (dg *DependencyGraph) ClearDependencies(pos formula.Pos) int {
	return dg.SetPrecedents(pos, nil).Removed
}

// Len returns the number of edges
func (dg *DependencyGraph) Len() int {
	return len(dg.edges)
}

// GetCalculationOrder orders every cell that appears in the graph so that
// precedents come before the cells that read them. the boolean reports
// whether a cycle made a full order impossible.
func (dg *DependencyGraph) GetCalculationOrder() ([]formula.Pos, bool) {
	precedents := make(map[formula.Pos][]formula.Pos)
	var nodes []formula.Pos
	seen := map[formula.Pos]struct{}{}
	note := func(p formula.Pos) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			nodes = append(nodes, p)
		}
	}
	for _, e := range dg.edges {
		precedents[e.Source] = append(precedents[e.Source], e.Target)
		note(e.Source)
		note(e.Target)
	}

	// three states: unvisited (not in map), visiting (false), visited (true)
	state := make(map[formula.Pos]bool)
	var order []formula.Pos
	hasCycle := false

	var visit func(pos formula.Pos)
	visit = func(pos formula.Pos) {
		if completed, exists := state[pos]; exists {
			if !completed {
				hasCycle = true
			}
			return
		}

		state[pos] = false
		for _, p := range precedents[pos] {
			visit(p)
		}
		state[pos] = true
		order = append(order, pos)
	}

	for _, pos := range nodes {
		visit(pos)
	}
	return order, hasCycle
}

// HasCycle checks if there are circular dependencies
func (dg *DependencyGraph) HasCycle() bool {
	_, hasCycle := dg.GetCalculationOrder()
	return hasCycle
}

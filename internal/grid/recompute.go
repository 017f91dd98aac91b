package grid

import (
	"slices"

	"github.com/vogtb/go-gridcalc/internal/formula"
)

// visitState tracks a cell through one recompute wave
type visitState uint8

const (
	stateUnvisited  visitState = iota
	stateEvaluating            // evaluated at least once, waiting on a precedent
	stateEvaluated
	stateCycleHead
	stateInCycle
)

func (s visitState) finalized() bool {
	return s >= stateEvaluated
}

// waveCell is the per-wave bookkeeping for one affected cell
type waveCell struct {
	pos      formula.Pos
	state    visitState
	edited   bool             // input changed this wave, old edges are stale
	blockers map[int]struct{} // worklist indices this cell is waiting on
	waiters  []int            // worklist indices waiting on this cell
}

type compiled struct {
	program *formula.Program
	err     *formula.FormulaError
}

// RecomputeContext holds everything one wave needs. it is created per
// SetCellContents or DeleteCellContents call and dropped afterwards.
type RecomputeContext struct {
	Generation uint32

	// worklist is append-only; cursor advances through it during
	// discovery. the index of a cell in worklist is its handle for the
	// rest of the wave.
	worklist []waveCell
	cursor   int
	index    map[formula.Pos]int

	// ready is the scheduling queue, consumed the same way
	ready     []int
	readyHead int

	programs map[string]compiled
	readSet  []formula.Pos
	seen     map[formula.Pos]struct{}

	stats WaveStats
}

func newRecomputeContext(generation uint32) *RecomputeContext {
	return &RecomputeContext{
		Generation: generation,
		index:      make(map[formula.Pos]int),
		programs:   make(map[string]compiled),
		seen:       make(map[formula.Pos]struct{}),
		stats:      WaveStats{Generation: generation},
	}
}

// enqueue adds pos to the worklist once per wave
func (rc *RecomputeContext) enqueue(pos formula.Pos, edited bool) {
	if i, ok := rc.index[pos]; ok {
		rc.worklist[i].edited = rc.worklist[i].edited || edited
		return
	}
	rc.index[pos] = len(rc.worklist)
	rc.worklist = append(rc.worklist, waveCell{pos: pos, edited: edited})
}

// compile tokenizes and parses each distinct input once per wave
func (rc *RecomputeContext) compile(input string) (*formula.Program, *formula.FormulaError) {
	if c, ok := rc.programs[input]; ok {
		rc.stats.CompileCacheHits++
		return c.program, c.err
	}
	program, err := formula.Compile(input)
	rc.programs[input] = compiled{program: program, err: err}
	rc.stats.Compiles++
	return program, err
}

// block records that cell i must wait for cell j
func (rc *RecomputeContext) block(i, j int) {
	wc := &rc.worklist[i]
	if wc.blockers == nil {
		wc.blockers = make(map[int]struct{})
	}
	if _, dup := wc.blockers[j]; dup {
		return
	}
	wc.blockers[j] = struct{}{}
	rc.worklist[j].waiters = append(rc.worklist[j].waiters, i)
}

// release unblocks everything waiting on i
func (rc *RecomputeContext) release(i int) {
	for _, w := range rc.worklist[i].waiters {
		waiter := &rc.worklist[w]
		delete(waiter.blockers, i)
		if len(waiter.blockers) == 0 && !waiter.state.finalized() {
			rc.ready = append(rc.ready, w)
		}
	}
	rc.worklist[i].waiters = nil
}

// dedupe drops repeated reads while keeping first-read order
func (rc *RecomputeContext) dedupe(reads []formula.Pos) []formula.Pos {
	clear(rc.seen)
	out := make([]formula.Pos, 0, len(reads))
	for _, p := range reads {
		if _, dup := rc.seen[p]; dup {
			continue
		}
		rc.seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// recompute runs one wave seeded with seeds. edited seeds had their input
// replaced, so their old outgoing edges are ignored for scheduling.
func (g *Grid) recompute(seeds []formula.Pos, edited bool) WaveStats {
	g.generation++
	rc := newRecomputeContext(g.generation)

	for _, pos := range seeds {
		rc.enqueue(pos, edited)
	}
	rc.stats.Seeds = len(rc.worklist)

	// discover every transitive reader, breadth first
	for rc.cursor < len(rc.worklist) {
		pos := rc.worklist[rc.cursor].pos
		rc.cursor++
		for _, dep := range g.graph.GetDirectDependents(pos) {
			rc.enqueue(dep, false)
		}
	}
	rc.stats.Affected = len(rc.worklist)

	// a cell starts out waiting on every affected cell it read last time
	for i := range rc.worklist {
		wc := &rc.worklist[i]
		if !wc.edited {
			for _, target := range g.graph.GetDirectPrecedents(wc.pos) {
				if j, ok := rc.index[target]; ok {
					rc.block(i, j)
				}
			}
		}
		if len(wc.blockers) == 0 {
			rc.ready = append(rc.ready, i)
		}
	}

	for {
		g.drain(rc)
		// a stall may rest on edges from the previous wave. a cell that has
		// not run yet is evaluated for real before anything is called a
		// cycle.
		i, ok := rc.firstUnvisited()
		if !ok {
			break
		}
		rc.unblock(i)
		g.evaluate(rc, i)
	}

	g.markCycles(rc)

	g.lastWave = rc.stats
	g.logWave(rc)
	return rc.stats
}

// drain evaluates ready cells until the queue is empty
func (g *Grid) drain(rc *RecomputeContext) {
	for rc.readyHead < len(rc.ready) {
		i := rc.ready[rc.readyHead]
		rc.readyHead++
		if rc.worklist[i].state.finalized() {
			continue
		}
		g.evaluate(rc, i)
	}
}

// firstUnvisited returns the earliest cell that is still waiting on the
// edges it had before the wave
func (rc *RecomputeContext) firstUnvisited() (int, bool) {
	for i := range rc.worklist {
		if rc.worklist[i].state == stateUnvisited {
			return i, true
		}
	}
	return 0, false
}

// unblock drops everything cell i is waiting on
func (rc *RecomputeContext) unblock(i int) {
	for j := range rc.worklist[i].blockers {
		target := &rc.worklist[j]
		target.waiters = slices.DeleteFunc(target.waiters, func(w int) bool { return w == i })
	}
	clear(rc.worklist[i].blockers)
}

// evaluate runs the formula of worklist cell i. if it read an affected cell
// that is not final yet, it waits and runs again once that cell is done.
func (g *Grid) evaluate(rc *RecomputeContext, i int) {
	wc := &rc.worklist[i]
	cell := g.store.AccessCell(wc.pos)
	rc.stats.Evaluations++

	program, err := rc.compile(cell.Input)
	if err != nil {
		g.finish(rc, i, nil, err)
		return
	}

	rc.readSet = rc.readSet[:0]
	value, evalErr := program.Evaluate(g.source, wc.pos, &rc.readSet)
	reads := rc.dedupe(rc.readSet)

	pending := false
	for _, target := range reads {
		if j, ok := rc.index[target]; ok && !rc.worklist[j].state.finalized() {
			rc.block(i, j)
			pending = true
		}
	}
	if pending {
		// keep the edges so a cycle found here stays visible to later waves
		g.applyEdges(rc, wc.pos, reads)
		wc.state = stateEvaluating
		return
	}

	// an evaluation error is decided by the cells read so far, so those
	// become the edges. only lex and parse errors leave them alone.
	g.applyEdges(rc, wc.pos, reads)
	if evalErr != nil {
		g.finish(rc, i, nil, evalErr)
		return
	}
	g.finish(rc, i, value, nil)
}

func (g *Grid) applyEdges(rc *RecomputeContext, pos formula.Pos, reads []formula.Pos) {
	diff := g.graph.SetPrecedents(pos, reads)
	rc.stats.EdgesRewritten += diff.Rewritten
	rc.stats.EdgesRemoved += diff.Removed
	rc.stats.EdgesAdded += diff.Added
}

// finish stores the outcome of cell i, stamps it and releases its waiters
func (g *Grid) finish(rc *RecomputeContext, i int, value formula.Value, err *formula.FormulaError) {
	wc := &rc.worklist[i]
	cell := g.store.AccessCell(wc.pos)
	if err != nil {
		cell.setError(err)
		rc.stats.Errors++
	} else {
		cell.setValue(value)
	}
	cell.Generation = rc.Generation
	wc.state = stateEvaluated
	rc.release(i)
}

// markCycles handles the cells left when scheduling stalls. each of them
// has run this wave and waits on what it actually read, so every one sits
// on a reference cycle or waits on one. within each cycle the
// cell earliest in the worklist becomes the head; every other stalled cell
// is marked as part of a cycle.
func (g *Grid) markCycles(rc *RecomputeContext) {
	var stalled []int
	for i := range rc.worklist {
		if !rc.worklist[i].state.finalized() {
			stalled = append(stalled, i)
		}
	}
	if len(stalled) == 0 {
		return
	}

	for _, i := range stalled {
		if rc.worklist[i].state.finalized() {
			continue
		}
		reach := rc.reachable(i, func(wc *waveCell) []int { return keys(wc.blockers) })
		if _, cyclic := reach[i]; !cyclic {
			continue
		}
		coreach := rc.reachable(i, func(wc *waveCell) []int { return wc.waiters })

		g.stampCycle(rc, i, stateCycleHead)
		for j := range reach {
			if _, both := coreach[j]; both && j != i {
				g.stampCycle(rc, j, stateInCycle)
			}
		}
	}

	for _, i := range stalled {
		if !rc.worklist[i].state.finalized() {
			g.stampCycle(rc, i, stateInCycle)
		}
	}
}

// reachable collects the worklist indices reachable from i in one or more
// steps of next
func (rc *RecomputeContext) reachable(i int, next func(*waveCell) []int) map[int]struct{} {
	out := map[int]struct{}{}
	queue := []int{i}
	for head := 0; head < len(queue); head++ {
		for _, j := range next(&rc.worklist[queue[head]]) {
			if _, ok := out[j]; ok {
				continue
			}
			out[j] = struct{}{}
			queue = append(queue, j)
		}
	}
	return out
}

func (g *Grid) stampCycle(rc *RecomputeContext, i int, state visitState) {
	wc := &rc.worklist[i]
	cell := g.store.AccessCell(wc.pos)
	head := state == stateCycleHead
	cell.setError(formula.NewCycleError(head, cell.Input))
	cell.Generation = rc.Generation
	wc.state = state
	if head {
		rc.stats.CycleHeads = append(rc.stats.CycleHeads, wc.pos)
	} else {
		rc.stats.CycleMembers++
	}
}

func keys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

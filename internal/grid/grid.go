package grid

import (
	"log/slog"
	"slices"

	"github.com/vogtb/go-gridcalc/internal/formula"
)

// WaveStats summarizes one recompute wave
type WaveStats struct {
	Generation       uint32
	Seeds            int // distinct cells the wave started from
	Affected         int // seeds plus every transitive reader
	Evaluations      int // formula runs, a cell may run more than once
	Errors           int // cells finalized with a lex, parse or type error
	Compiles         int
	CompileCacheHits int
	EdgesAdded       int
	EdgesRemoved     int
	EdgesRewritten   int
	CycleHeads       []formula.Pos
	CycleMembers     int
	Stale            int // readers of deleted cells left with their old values
}

// Grid ties a cell store to a dependency graph and keeps every formula
// up to date as cells are edited. it is not safe for concurrent use and
// edits must not be issued from inside an evaluation.
type Grid struct {
	store             Store
	graph             *DependencyGraph
	source            storeSource
	generation        uint32
	recomputeOnDelete bool
	logger            *slog.Logger
	lastWave          WaveStats
}

// Option configures a Grid
type Option func(*Grid)

// WithStore replaces the default ChunkedStore
func WithStore(s Store) Option {
	return func(g *Grid) { g.store = s }
}

// WithLogger sets the logger used for per-wave diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(g *Grid) { g.logger = l }
}

// WithRecomputeOnDelete makes DeleteCellContents recompute the readers of
// the deleted cells. by default they keep their old values.
func WithRecomputeOnDelete(enabled bool) Option {
	return func(g *Grid) { g.recomputeOnDelete = enabled }
}

// New creates an empty grid
func New(opts ...Option) *Grid {
	g := &Grid{
		graph:  NewDependencyGraph(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.store == nil {
		g.store = NewChunkedStore()
	}
	g.source = storeSource{store: g.store}
	return g
}

// storeSource lets the evaluator read cells without creating them
type storeSource struct {
	store Store
}

func (s storeSource) ValueAt(pos formula.Pos) formula.Value {
	cell, ok := s.store.TryAccessCell(pos)
	if !ok || cell.Value == nil {
		return formula.Text("")
	}
	return cell.Value
}

// SetCellContents stores text as the raw input of every position and
// recomputes them and everything that transitively reads them.
func (g *Grid) SetCellContents(positions []formula.Pos, text string) WaveStats {
	for _, pos := range positions {
		g.store.AccessCell(pos).Input = text
	}
	return g.recompute(positions, true)
}

// DeleteCellContents clears the cells and their outgoing edges. readers
// are only recomputed when the grid was built WithRecomputeOnDelete.
func (g *Grid) DeleteCellContents(positions []formula.Pos) WaveStats {
	for _, pos := range positions {
		if cell, ok := g.store.TryAccessCell(pos); ok {
			cell.clear()
		}
		g.graph.ClearDependencies(pos)
	}

	if !g.recomputeOnDelete {
		g.generation++
		g.lastWave = WaveStats{Generation: g.generation, Stale: g.countReaders(positions)}
		if g.lastWave.Stale > 0 {
			g.logger.Debug("delete left readers stale",
				"generation", g.generation,
				"stale", g.lastWave.Stale,
			)
		}
		return g.lastWave
	}

	var readers []formula.Pos
	for _, pos := range positions {
		readers = append(readers, g.graph.GetDirectDependents(pos)...)
	}
	return g.recompute(readers, false)
}

// Cell returns a snapshot of the cell at pos. ok is false if the cell was
// never created.
func (g *Grid) Cell(pos formula.Pos) (CellState, bool) {
	cell, ok := g.store.TryAccessCell(pos)
	if !ok {
		return CellState{Pos: pos, Value: formula.Text("")}, false
	}
	return cell.snapshot(pos), true
}

// Value returns the current value at pos. empty cells read as empty text.
func (g *Grid) Value(pos formula.Pos) formula.Value {
	return g.source.ValueAt(pos)
}

// ValueAt implements formula.ValueSource
func (g *Grid) ValueAt(pos formula.Pos) formula.Value {
	return g.source.ValueAt(pos)
}

// Precedents returns the cells pos read during its last successful
// evaluation
func (g *Grid) Precedents(pos formula.Pos) []formula.Pos {
	return g.graph.GetDirectPrecedents(pos)
}

// OutgoingEdgeCount returns the number of edges leaving pos
func (g *Grid) OutgoingEdgeCount(pos formula.Pos) int {
	return g.graph.OutgoingCount(pos)
}

// EdgeCount returns the total number of dependency edges
func (g *Grid) EdgeCount() int {
	return g.graph.Len()
}

// HasCycle reports whether the dependency edges left by the last wave
// contain a cycle
func (g *Grid) HasCycle() bool {
	return g.graph.HasCycle()
}

// Cells returns every non-empty cell in row-major order
func (g *Grid) Cells() []CellState {
	var out []CellState
	for pos, cell := range g.store.All() {
		if cell.isEmpty() {
			continue
		}
		out = append(out, cell.snapshot(pos))
	}
	slices.SortFunc(out, func(a, b CellState) int {
		return formula.ComparePos(a.Pos, b.Pos)
	})
	return out
}

// LastWave returns the statistics of the most recent edit
func (g *Grid) LastWave() WaveStats {
	return g.lastWave
}

// Generation returns the current wave counter
func (g *Grid) Generation() uint32 {
	return g.generation
}

// countReaders counts the distinct cells that transitively read any of
// positions
func (g *Grid) countReaders(positions []formula.Pos) int {
	seen := map[formula.Pos]struct{}{}
	for _, pos := range positions {
		for _, p := range g.graph.GetAllDependents(pos) {
			seen[p] = struct{}{}
		}
	}
	return len(seen)
}

func (g *Grid) logWave(rc *RecomputeContext) {
	s := rc.stats
	g.logger.Debug("recompute wave finished",
		"generation", s.Generation,
		"seeds", s.Seeds,
		"affected", s.Affected,
		"evaluations", s.Evaluations,
		"errors", s.Errors,
		"compiles", s.Compiles,
		"edges", g.graph.Len(),
	)
	if len(s.CycleHeads) > 0 {
		heads := make([]string, len(s.CycleHeads))
		for i, p := range s.CycleHeads {
			heads[i] = p.String()
		}
		g.logger.Warn("reference cycle detected",
			"generation", s.Generation,
			"heads", heads,
			"members", s.CycleMembers,
		)
	}
}

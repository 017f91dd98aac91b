package grid

import "github.com/vogtb/go-gridcalc/internal/formula"

// Cell is one grid cell. it holds either a value or an error: on error the
// value mirrors the raw input as text so readers see a type error rather
// than a stale number.
type Cell struct {
	Input      string
	Value      formula.Value
	Err        *formula.FormulaError
	Generation uint32 // wave in which the cell was last finalized
}

func (c *Cell) setValue(v formula.Value) {
	c.Value = v.Clone()
	c.Err = nil
}

func (c *Cell) setError(err *formula.FormulaError) {
	c.Value = formula.Text(c.Input)
	c.Err = err
}

// clear empties the cell. cells are cleared, never freed.
func (c *Cell) clear() {
	c.Input = ""
	c.Value = formula.Text("")
	c.Err = nil
}

func (c *Cell) isEmpty() bool {
	return c.Input == "" && c.Err == nil
}

// CellState is a read-only snapshot of a cell
type CellState struct {
	Pos   formula.Pos
	Input string
	Value formula.Value
	Err   *formula.FormulaError
}

func (c *Cell) snapshot(pos formula.Pos) CellState {
	value := c.Value
	if value == nil {
		value = formula.Text("")
	}
	return CellState{
		Pos:   pos,
		Input: c.Input,
		Value: value.Clone(),
		Err:   c.Err,
	}
}

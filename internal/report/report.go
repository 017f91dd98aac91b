// Package report renders grid cells as a text table or as JSON.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vogtb/go-gridcalc/internal/formula"
	"github.com/vogtb/go-gridcalc/internal/grid"
)

// Format selects the output encoding
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q: must be 'table' or 'json'", s)
}

// Write renders cells to w.
func Write(w io.Writer, cells []grid.CellState, format Format) error {
	switch format {
	case FormatTable:
		return writeTable(w, cells)
	case FormatJSON:
		return writeJSON(w, cells)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func writeTable(w io.Writer, cells []grid.CellState) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Cell", "Input", "Value", "Error"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)

	for _, c := range cells {
		value := c.Value.String()
		errText := ""
		if c.Err != nil {
			value = ""
			errText = fmt.Sprintf("%s [%d:%d]", c.Err.Error(), c.Err.Span.Start, c.Err.Span.End)
		}
		table.Append([]string{c.Pos.String(), c.Input, value, errText})
	}
	table.Render()
	return nil
}

func writeJSON(w io.Writer, cells []grid.CellState) error {
	val := cellsValue(cells)
	buf, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return fmt.Errorf("failed to encode cells: %w", err)
	}
	if _, err := w.Write(append(buf, '\n')); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func cellsValue(cells []grid.CellState) cty.Value {
	if len(cells) == 0 {
		return cty.EmptyTupleVal
	}
	rows := make([]cty.Value, len(cells))
	for i, c := range cells {
		errVal := cty.NullVal(cty.Object(map[string]cty.Type{
			"kind":    cty.String,
			"message": cty.String,
			"start":   cty.Number,
			"end":     cty.Number,
		}))
		value := ToCty(c.Value)
		if c.Err != nil {
			value = cty.NullVal(cty.String)
			errVal = cty.ObjectVal(map[string]cty.Value{
				"kind":    cty.StringVal(c.Err.Kind.String()),
				"message": cty.StringVal(c.Err.Message),
				"start":   cty.NumberIntVal(int64(c.Err.Span.Start)),
				"end":     cty.NumberIntVal(int64(c.Err.Span.End)),
			})
		}
		rows[i] = cty.ObjectVal(map[string]cty.Value{
			"cell":  cty.StringVal(c.Pos.String()),
			"input": cty.StringVal(c.Input),
			"value": value,
			"error": errVal,
		})
	}
	return cty.TupleVal(rows)
}

// ToCty converts a cell value. numbers JSON cannot hold (NaN and the
// infinities) become their text form.
func ToCty(v formula.Value) cty.Value {
	switch v := v.(type) {
	case formula.Number:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return cty.StringVal(v.String())
		}
		return cty.NumberFloatVal(f)
	case formula.Text:
		return cty.StringVal(string(v))
	case formula.Array:
		return tupleOf(v)
	case formula.Graph:
		return cty.ObjectVal(map[string]cty.Value{"graph": tupleOf(v)})
	}
	return cty.NullVal(cty.String)
}

func tupleOf(values []formula.Value) cty.Value {
	if len(values) == 0 {
		return cty.EmptyTupleVal
	}
	out := make([]cty.Value, len(values))
	for i, v := range values {
		out[i] = ToCty(v)
	}
	return cty.TupleVal(out)
}

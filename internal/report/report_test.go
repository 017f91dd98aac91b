package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vogtb/go-gridcalc/internal/formula"
	"github.com/vogtb/go-gridcalc/internal/grid"
)

func sampleCells(t *testing.T) []grid.CellState {
	t.Helper()
	g := grid.New()
	set := func(addr, input string) {
		pos, err := formula.ParseAddress(addr)
		require.NoError(t, err)
		g.SetCellContents([]formula.Pos{pos}, input)
	}
	set("A1", "2")
	set("B1", "=A1*21")
	set("C1", "=row(1,1,2)")
	set("A2", "=1+")
	set("B2", "note")
	return g.Cells()
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("yaml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleCells(t), FormatTable))
	out := buf.String()

	for _, want := range []string{"CELL", "INPUT", "VALUE", "ERROR", "=A1*21", "42", "{ 2, 42 }", "parse error", "note"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "B1"), strings.Index(out, "A2"), "rows are row-major")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleCells(t), FormatJSON))

	type jsonErr struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
		Start   int    `json:"start"`
		End     int    `json:"end"`
	}
	var rows []struct {
		Cell  string          `json:"cell"`
		Input string          `json:"input"`
		Value json.RawMessage `json:"value"`
		Error *jsonErr        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 5)

	assert.Equal(t, "A1", rows[0].Cell)
	assert.JSONEq(t, `2`, string(rows[0].Value))
	assert.Nil(t, rows[0].Error)

	assert.Equal(t, "C1", rows[2].Cell)
	assert.JSONEq(t, `[2, 42]`, string(rows[2].Value))

	assert.Equal(t, "A2", rows[3].Cell)
	assert.JSONEq(t, `null`, string(rows[3].Value))
	require.NotNil(t, rows[3].Error)
	assert.Equal(t, "parse error", rows[3].Error.Kind)

	assert.JSONEq(t, `"note"`, string(rows[4].Value))
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, FormatJSON))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestToCty(t *testing.T) {
	assert.True(t, ToCty(formula.Number(math.Inf(1))).RawEquals(cty.StringVal("+Inf")))
	assert.True(t, ToCty(formula.Number(math.NaN())).RawEquals(cty.StringVal("NaN")))
	assert.True(t, ToCty(formula.Array{}).RawEquals(cty.EmptyTupleVal))

	g := ToCty(formula.Graph{formula.Array{formula.Number(1)}})
	assert.True(t, g.Type().IsObjectType())
	assert.True(t, g.GetAttr("graph").Index(cty.NumberIntVal(0)).Index(cty.NumberIntVal(0)).Equals(cty.NumberIntVal(1)).True())
}

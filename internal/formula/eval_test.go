package formula

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapSource is a ValueSource over a fixed set of cells
type mapSource map[Pos]Value

func (m mapSource) ValueAt(pos Pos) Value {
	if v, ok := m[pos]; ok {
		return v
	}
	return Text("")
}

func mustAddr(t *testing.T, s string) Pos {
	t.Helper()
	pos, err := ParseAddress(s)
	require.NoError(t, err)
	return pos
}

func evalAt(t *testing.T, src mapSource, target, input string) (Value, *FormulaError, []Pos) {
	t.Helper()
	node, err := Parse(input)
	require.Nil(t, err, "Parse(%q)", input)
	var readSet []Pos
	v, evalErr := Evaluate(src, mustAddr(t, target), node, &readSet)
	return v, evalErr, readSet
}

func TestEvaluate(t *testing.T) {
	src := mapSource{
		{X: 0, Y: 0}: Number(1),   // A1
		{X: 1, Y: 0}: Number(2),   // B1
		{X: 0, Y: 1}: Number(3),   // A2
		{X: 1, Y: 1}: Number(4),   // B2
		{X: 3, Y: 0}: Number(-10), // D1
	}

	tests := []struct {
		input string
		want  Value
	}{
		{"=1+2*3", Number(7)},
		{"=8-3-2", Number(3)},
		{"=2^3^2", Number(512)},
		{"=-2^2", Number(-4)},
		{"=-2+3", Number(-5)},
		{"=2*3%4*5", Number(10)},
		{"=7%4", Number(3)},
		{"=-7%4", Number(-3)},
		{"=!0", Number(1)},
		{"=~5", Number(0)},
		{"={1, {2, 3}}", Array{Number(1), Array{Number(2), Number(3)}}},
		{"=cell(1,1)+cell(2,2)", Number(5)},
		{"=cell(1.9,1)", Number(1)},
		{"=A2*B1", Number(6)},
		{"=relcell(-1,0)", Number(3)},
		{"=relcell(-100,-100)", Number(1)},
		{"=E9", Text("")},
		{"=row(1,2,1)", Array{Number(1), Number(2)}},
		{"=col(2,1,2)", Array{Number(2), Number(4)}},
		{"=rowrect(1,1,2,2)", Array{Array{Number(1), Number(2)}, Array{Number(3), Number(4)}}},
		{"=colrect(2,2,1,1)", Array{Array{Number(1), Number(3)}, Array{Number(2), Number(4)}}},
		{"=sum()", Number(0)},
		{"=sum(1, {2, 3}, rowrect(1,1,2,2))", Number(16)},
		{"=sum(row(1,1,5))", Number(-7)},
		{"=mean(1, 2, 3, 4)", Number(2.5)},
		{"=max(1, {7, 3}, D1)", Number(7)},
		{"=min(1, {7, 3}, D1)", Number(-10)},
		{"=median(5, 1, 3)", Number(3)},
		{"=median({4, 1}, 3, 2)", Number(2.5)},
		{"=median(E1, 4)", Number(4)},
		{"=graph({1, 2}, row(1,1,2))", Graph{Array{Number(1), Number(2)}, Array{Number(1), Number(2)}}},
		{"=graph()", Graph{}},
		{"=sum(graph({1, 2}, {3}))", Number(6)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err, _ := evalAt(t, src, "B2", tt.input)
			require.Nil(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Evaluate(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	src := mapSource{
		{X: 0, Y: 0}: Number(1),
		{X: 1, Y: 0}: Text("hello"),
	}

	tests := []struct {
		input    string
		wantSpan NodePosition
		contains string
	}{
		{"=1/0", NodePosition{Start: 2, End: 3}, "division by zero"},
		{"=1%(2-2)", NodePosition{Start: 2, End: 3}, "division by zero"},
		{"=B1+1", NodePosition{Start: 3, End: 4}, "add expects numbers, got text"},
		{"=-B1", NodePosition{Start: 1, End: 2}, "negate expects a number"},
		{"=!{1}", NodePosition{Start: 1, End: 2}, "not expects a number, got array"},
		{"=1+{1}", NodePosition{Start: 2, End: 3}, "got array"},
		{"=cell(0,1)", NodePosition{Start: 6, End: 7}, "out of range"},
		{"=cell(1,{1})", NodePosition{Start: 8, End: 9}, "numeric coordinates"},
		{"=sum(1, B1)", NodePosition{Start: 8, End: 10}, `got text "hello"`},
		{"=mean()", NodePosition{Start: 1, End: 5}, "mean of no numbers"},
		{"=max({})", NodePosition{Start: 1, End: 4}, "max of no numbers"},
		{"=median(C1)", NodePosition{Start: 1, End: 7}, "median of no numbers"},
		{"=graph(1)", NodePosition{Start: 7, End: 8}, "must be an array"},
		{"=graph({1, B1})", NodePosition{Start: 7, End: 8}, "must hold numbers"},
		{"=row(1, 1, 2000000)", NodePosition{Start: 1, End: 4}, "more than"},
		{"=rowrect(1,1,4294967296,4294967296)", NodePosition{Start: 1, End: 8}, "more than"},
		{"=colrect(4294967296,1,1,4294967296)", NodePosition{Start: 1, End: 8}, "more than"},
		{"=rowrect(1,1,2,1048577)", NodePosition{Start: 1, End: 8}, "more than"},
		{"=(1/0)+B1", NodePosition{Start: 3, End: 4}, "division by zero"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err, _ := evalAt(t, src, "C3", tt.input)
			require.NotNil(t, err)
			assert.Nil(t, got)
			assert.Equal(t, EvalTypeError, err.Kind)
			assert.Equal(t, tt.wantSpan, err.Span, err.Message)
			assert.Contains(t, err.Message, tt.contains)
		})
	}
}

func TestEvaluateRecordsReadSet(t *testing.T) {
	src := mapSource{}

	_, err, reads := evalAt(t, src, "B2", "=A1+cell(1,1)+relcell(1,1)+sum(row(3,1,2))")
	require.Nil(t, err)

	want := []Pos{
		{X: 0, Y: 0},
		{X: 0, Y: 0},
		{X: 2, Y: 2},
		{X: 0, Y: 2},
		{X: 1, Y: 2},
	}
	if diff := cmp.Diff(want, reads); diff != "" {
		t.Errorf("read-set mismatch (-want +got):\n%s", diff)
	}

	// reads made before an error are still recorded
	_, err, reads = evalAt(t, mapSource{{X: 0, Y: 0}: Text("x")}, "B2", "=B1+A1")
	require.NotNil(t, err)
	assert.Equal(t, []Pos{{X: 1, Y: 0}, {X: 0, Y: 0}}, reads)
}

func TestEvaluateIgnoresNilReadSet(t *testing.T) {
	node, err := Parse("=A1+1")
	require.Nil(t, err)
	v, evalErr := Evaluate(mapSource{{}: Number(2)}, Pos{X: 5, Y: 5}, node, nil)
	require.Nil(t, evalErr)
	assert.Equal(t, Number(3), v)
}

func TestKahanSum(t *testing.T) {
	nums := []float64{1}
	for range 10000 {
		nums = append(nums, 1e-16)
	}
	truth := 1 + 10000*1e-16

	naive := 0.0
	for _, x := range nums {
		naive += x
	}

	compensated := kahanSum(nums)
	assert.Less(t, math.Abs(compensated-truth), math.Abs(naive-truth))
	assert.InDelta(t, truth, compensated, 1e-15)
}

func TestSumIsCompensated(t *testing.T) {
	// 0.1 has no exact binary form, so a plain loop drifts
	var b strings.Builder
	b.WriteString("=sum(")
	for i := range 1000 {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("0.1")
	}
	b.WriteString(")")

	node, err := Parse(b.String())
	require.Nil(t, err)
	v, evalErr := Evaluate(mapSource{}, Pos{}, node, nil)
	require.Nil(t, evalErr)
	assert.InDelta(t, 100, float64(v.(Number)), 1e-12)
}

func TestValueClone(t *testing.T) {
	orig := Array{Number(1), Array{Number(2)}, Text("x")}
	clone := orig.Clone().(Array)
	clone[1].(Array)[0] = Number(99)
	clone[0] = Number(42)

	assert.Equal(t, Array{Number(1), Array{Number(2)}, Text("x")}, orig)
	assert.Equal(t, "{ 42, { 99 }, x }", clone.String())
	assert.Equal(t, "graph( { 1 } )", Graph{Array{Number(1)}}.String())
	assert.Equal(t, "{}", Array{}.String())
}

// refPrecedence mirrors the operator levels for the reference evaluator
func refPrecedence(op byte) int {
	switch op {
	case '+', '-':
		return 0
	case '*', '/', '%':
		return 1
	}
	return 2
}

func refApply(op byte, a, b float64) float64 {
	switch op {
	case '+':
		return a + b
	case '-':
		return a - b
	case '*':
		return a * b
	case '/':
		return a / b
	case '%':
		return math.Mod(a, b)
	}
	return math.Pow(a, b)
}

// refEval is an operator-stack evaluator: left associative except for ^.
// it also returns the largest magnitude seen so callers can scale their
// tolerance.
func refEval(nums []float64, ops []byte) (float64, float64) {
	vals := []float64{nums[0]}
	var stack []byte
	largest := math.Abs(nums[0])

	apply := func() {
		b, a := vals[len(vals)-1], vals[len(vals)-2]
		op := stack[len(stack)-1]
		vals, stack = vals[:len(vals)-2], stack[:len(stack)-1]
		r := refApply(op, a, b)
		largest = max(largest, math.Abs(r))
		vals = append(vals, r)
	}

	for i, op := range ops {
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if refPrecedence(top) > refPrecedence(op) || (refPrecedence(top) == refPrecedence(op) && op != '^') {
				apply()
				continue
			}
			break
		}
		stack = append(stack, op)
		vals = append(vals, nums[i+1])
		largest = max(largest, math.Abs(nums[i+1]))
	}
	for len(stack) > 0 {
		apply()
	}
	return vals[0], largest
}

// randomChain builds "=n op n op n ..." from single digit operands
func randomChain(rng *rand.Rand, opChars []byte) (string, []float64, []byte) {
	n := 2 + rng.IntN(8)
	nums := make([]float64, n)
	ops := make([]byte, n-1)
	var b strings.Builder
	b.WriteString("=")
	for i := range nums {
		nums[i] = float64(1 + rng.IntN(9))
		if i > 0 {
			ops[i-1] = opChars[rng.IntN(len(opChars))]
			b.WriteByte(ops[i-1])
		}
		b.WriteString(strconv.Itoa(int(nums[i])))
	}
	return b.String(), nums, ops
}

func evalChain(t *testing.T, input string) (float64, Node) {
	t.Helper()
	node, err := Parse(input)
	require.Nil(t, err, input)
	got, evalErr := Evaluate(mapSource{}, Pos{}, node, nil)
	require.Nil(t, evalErr, input)
	return float64(got.(Number)), node
}

func TestOperatorChainsMatchReference(t *testing.T) {
	// modulo is discontinuous, so value-preserving regrouping that differs
	// from the reference in the last bit could flip it. it is checked on
	// exact integer chains below.
	opChars := []byte{'+', '-', '*', '/', '^'}
	rng := rand.New(rand.NewPCG(7, 11))

	checked := 0
	for range 2000 {
		input, nums, ops := randomChain(rng, opChars)
		want, largest := refEval(nums, ops)
		if math.IsNaN(want) || math.IsInf(want, 0) || math.IsInf(largest, 0) {
			continue
		}

		got, node := evalChain(t, input)
		tolerance := 1e-9 * max(1, largest)
		assert.InDelta(t, want, got, tolerance, "%s parsed as %s", input, node)
		checked++
	}
	assert.Greater(t, checked, 1000)
}

func TestModuloChainsMatchReference(t *testing.T) {
	// with single digit operands and no / or ^ every intermediate is a
	// small integer, so any grouping is exact. the right side of a % is
	// always a literal and never zero.
	opChars := []byte{'+', '-', '*', '%'}
	rng := rand.New(rand.NewPCG(3, 5))

	sawModulo := 0
	for range 2000 {
		input, nums, ops := randomChain(rng, opChars)
		want, _ := refEval(nums, ops)
		got, node := evalChain(t, input)
		assert.Equal(t, want, got, "%s parsed as %s", input, node)
		if strings.Contains(input, "%") {
			sawModulo++
		}
	}
	assert.Greater(t, sawModulo, 1000)
}

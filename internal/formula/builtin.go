package formula

import (
	"math"
	"slices"
)

// call dispatches a built-in function over already evaluated arguments.
// arity was checked by the parser.
func (ev *Evaluator) call(n *FunctionCallNode, args []Value) (Value, *FormulaError) {
	switch n.Func {
	case FuncCell:
		coords, err := numberArgs(n, args)
		if err != nil {
			return nil, err
		}
		x, err := absoluteCoord(n, 0, coords[0])
		if err != nil {
			return nil, err
		}
		y, err := absoluteCoord(n, 1, coords[1])
		if err != nil {
			return nil, err
		}
		return ev.fetch(Pos{X: x, Y: y}), nil

	case FuncRelCell:
		coords, err := numberArgs(n, args)
		if err != nil {
			return nil, err
		}
		x, err := relativeCoord(n, 0, ev.target.X, coords[0])
		if err != nil {
			return nil, err
		}
		y, err := relativeCoord(n, 1, ev.target.Y, coords[1])
		if err != nil {
			return nil, err
		}
		return ev.fetch(Pos{X: x, Y: y}), nil

	case FuncRow, FuncCol:
		c, err := absoluteCoords(n, args)
		if err != nil {
			return nil, err
		}
		lo, hi := min(c[1], c[2]), max(c[1], c[2])
		if err := checkRangeSize(n, uint64(hi-lo)+1); err != nil {
			return nil, err
		}
		if n.Func == FuncRow {
			return ev.fetchLine(lo, hi, func(x uint32) Pos { return Pos{X: x, Y: c[0]} }), nil
		}
		return ev.fetchLine(lo, hi, func(y uint32) Pos { return Pos{X: c[0], Y: y} }), nil

	case FuncRowRect, FuncColRect:
		c, err := absoluteCoords(n, args)
		if err != nil {
			return nil, err
		}
		x0, x1 := min(c[0], c[2]), max(c[0], c[2])
		y0, y1 := min(c[1], c[3]), max(c[1], c[3])
		if _, ok := rectCells(uint64(x1-x0)+1, uint64(y1-y0)+1); !ok {
			return nil, rangeTooLarge(n)
		}
		if n.Func == FuncRowRect {
			return ev.fetchRect(y0, y1, x0, x1, func(outer, inner uint32) Pos { return Pos{X: inner, Y: outer} }), nil
		}
		return ev.fetchRect(x0, x1, y0, y1, func(outer, inner uint32) Pos { return Pos{X: outer, Y: inner} }), nil

	case FuncSum:
		nums, err := flatten(n, args)
		if err != nil {
			return nil, err
		}
		return Number(kahanSum(nums)), nil

	case FuncMean:
		nums, err := flatten(n, args)
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 {
			return nil, NewFormulaError(EvalTypeError, n.Position, "mean of no numbers")
		}
		return Number(kahanSum(nums) / float64(len(nums))), nil

	case FuncMax, FuncMin:
		nums, err := flatten(n, args)
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 {
			return nil, errorf(EvalTypeError, n.Position, "%s of no numbers", n.Func)
		}
		if n.Func == FuncMax {
			return Number(slices.Max(nums)), nil
		}
		return Number(slices.Min(nums)), nil

	case FuncMedian:
		nums, err := flatten(n, args)
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 {
			return nil, NewFormulaError(EvalTypeError, n.Position, "median of no numbers")
		}
		return Number(median(nums)), nil

	case FuncGraph:
		for i, arg := range args {
			if err := checkSeries(n, i, arg); err != nil {
				return nil, err
			}
		}
		return Graph(cloneValues(args)), nil
	}

	return nil, errorf(EvalTypeError, n.Position, "unknown function %s", n.Func)
}

func (ev *Evaluator) fetchLine(lo, hi uint32, at func(uint32) Pos) Array {
	out := make(Array, 0, uint64(hi-lo)+1)
	for i := lo; ; i++ {
		out = append(out, ev.fetch(at(i)))
		if i == hi {
			return out
		}
	}
}

func (ev *Evaluator) fetchRect(outerLo, outerHi, innerLo, innerHi uint32, at func(outer, inner uint32) Pos) Array {
	out := make(Array, 0, uint64(outerHi-outerLo)+1)
	for o := outerLo; ; o++ {
		out = append(out, ev.fetchLine(innerLo, innerHi, func(i uint32) Pos { return at(o, i) }))
		if o == outerHi {
			return out
		}
	}
}

func numberArgs(n *FunctionCallNode, args []Value) ([]float64, *FormulaError) {
	out := make([]float64, len(args))
	for i, arg := range args {
		x, ok := arg.(Number)
		if !ok {
			return nil, errorf(EvalTypeError, n.Args[i].GetPosition(),
				"%s expects numeric coordinates, got %s", n.Func, arg.typeName())
		}
		out[i] = float64(x)
	}
	return out, nil
}

func absoluteCoords(n *FunctionCallNode, args []Value) ([]uint32, *FormulaError) {
	nums, err := numberArgs(n, args)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(nums))
	for i, f := range nums {
		if out[i], err = absoluteCoord(n, i, f); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// absoluteCoord converts a 1-based coordinate to a 0-based index,
// truncating any fraction.
func absoluteCoord(n *FunctionCallNode, arg int, f float64) (uint32, *FormulaError) {
	t := math.Trunc(f)
	if math.IsNaN(t) || t < 1 || t > math.MaxUint32+1 {
		return 0, errorf(EvalTypeError, n.Args[arg].GetPosition(), "%s coordinate %v out of range", n.Func, f)
	}
	return uint32(t - 1), nil
}

// relativeCoord offsets base by d, clamped to the unsigned range.
func relativeCoord(n *FunctionCallNode, arg int, base uint32, d float64) (uint32, *FormulaError) {
	if math.IsNaN(d) {
		return 0, errorf(EvalTypeError, n.Args[arg].GetPosition(), "%s offset is not a number", n.Func)
	}
	t := float64(base) + math.Trunc(d)
	return uint32(max(0, min(t, math.MaxUint32))), nil
}

func checkRangeSize(n *FunctionCallNode, cells uint64) *FormulaError {
	if cells > MaxRangeCells {
		return rangeTooLarge(n)
	}
	return nil
}

func rangeTooLarge(n *FunctionCallNode) *FormulaError {
	return errorf(EvalTypeError, n.Position, "%s range covers more than %d cells", n.Func, MaxRangeCells)
}

func checkSeries(n *FunctionCallNode, arg int, v Value) *FormulaError {
	series, ok := v.(Array)
	if !ok {
		return errorf(EvalTypeError, n.Args[arg].GetPosition(), "graph series must be an array, got %s", v.typeName())
	}
	for _, elem := range series {
		if _, ok := elem.(Number); !ok {
			return errorf(EvalTypeError, n.Args[arg].GetPosition(),
				"graph series must hold numbers, got %s", elem.typeName())
		}
	}
	return nil
}

// flatten walks arrays and graphs depth-first collecting numbers. empty
// text (an empty cell) is skipped, any other text is an error.
func flatten(n *FunctionCallNode, args []Value) ([]float64, *FormulaError) {
	var out []float64
	for i, arg := range args {
		var err *FormulaError
		if out, err = flattenInto(out, n, i, arg); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func flattenInto(out []float64, n *FunctionCallNode, arg int, v Value) ([]float64, *FormulaError) {
	switch v := v.(type) {
	case Number:
		return append(out, float64(v)), nil
	case Text:
		if v == "" {
			return out, nil
		}
		return nil, errorf(EvalTypeError, n.Args[arg].GetPosition(), "%s expects numbers, got text %q", n.Func, string(v))
	case Array:
		return flattenSlice(out, n, arg, v)
	case Graph:
		return flattenSlice(out, n, arg, v)
	}
	return nil, errorf(EvalTypeError, n.Args[arg].GetPosition(), "%s cannot use %s", n.Func, v.typeName())
}

func flattenSlice(out []float64, n *FunctionCallNode, arg int, values []Value) ([]float64, *FormulaError) {
	var err *FormulaError
	for _, elem := range values {
		if out, err = flattenInto(out, n, arg, elem); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// kahanSum adds with a running compensation term so small addends are not
// lost against a large running total.
func kahanSum(nums []float64) float64 {
	var sum, c float64
	for _, x := range nums {
		y := x - c
		t := sum + y
		c = (t - sum) - y
		sum = t
	}
	return sum
}

// median sorts a copy; even counts average the two middle elements.
func median(nums []float64) float64 {
	sorted := slices.Clone(nums)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

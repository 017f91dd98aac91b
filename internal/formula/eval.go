package formula

import "math"

// ValueSource supplies the current value of other cells. a position that
// was never written reads as the empty Text.
type ValueSource interface {
	ValueAt(pos Pos) Value
}

// Evaluator walks an AST for one target cell. every cell it reads is
// appended to the read-set, duplicates included, in evaluation order.
type Evaluator struct {
	src     ValueSource
	target  Pos
	readSet *[]Pos
}

// NewEvaluator prepares an evaluation of a formula stored at target.
// readSet may be nil when the caller does not track dependencies.
func NewEvaluator(src ValueSource, target Pos, readSet *[]Pos) *Evaluator {
	return &Evaluator{src: src, target: target, readSet: readSet}
}

// Evaluate evaluates n as the formula stored at target.
func Evaluate(src ValueSource, target Pos, n Node, readSet *[]Pos) (Value, *FormulaError) {
	return n.Eval(NewEvaluator(src, target, readSet))
}

// Target is the position the formula being evaluated lives at.
func (ev *Evaluator) Target() Pos {
	return ev.target
}

func (ev *Evaluator) fetch(pos Pos) Value {
	if ev.readSet != nil {
		*ev.readSet = append(*ev.readSet, pos)
	}
	v := ev.src.ValueAt(pos)
	if v == nil {
		return Text("")
	}
	return v
}

func (ev *Evaluator) binary(n *BinaryOpNode) (Value, *FormulaError) {
	lv, err := n.Left.Eval(ev)
	if err != nil {
		return nil, err
	}
	rv, err := n.Right.Eval(ev)
	if err != nil {
		return nil, err
	}

	l, lok := lv.(Number)
	r, rok := rv.(Number)
	if !lok || !rok {
		bad := lv
		if lok {
			bad = rv
		}
		return nil, errorf(EvalTypeError, n.Position, "%s expects numbers, got %s", n.Op, bad.typeName())
	}

	switch n.Op {
	case BinOpAdd:
		return l + r, nil
	case BinOpSubtract:
		return l - r, nil
	case BinOpMultiply:
		return l * r, nil
	case BinOpDivide:
		if r == 0 {
			return nil, NewFormulaError(EvalTypeError, n.Position, "division by zero")
		}
		return l / r, nil
	case BinOpModulo:
		if r == 0 {
			return nil, NewFormulaError(EvalTypeError, n.Position, "division by zero")
		}
		return Number(math.Mod(float64(l), float64(r))), nil
	default:
		return Number(math.Pow(float64(l), float64(r))), nil
	}
}

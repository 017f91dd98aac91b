package formula

import (
	"fmt"
	"strings"
)

// NodePosition is a byte span [Start, End) in the formula input.
type NodePosition struct {
	Start int
	End   int
}

// Node is a parsed formula expression. every node keeps the span of the
// token it came from so evaluation errors can point back into the input.
type Node interface {
	Eval(ev *Evaluator) (Value, *FormulaError)
	GetPosition() NodePosition
	// String prints the canonical form, e.g. add( mul( 2, 3 ), 4 ).
	String() string
}

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpModulo
	BinOpPower
)

var binaryOpNames = [...]string{
	BinOpAdd:      "add",
	BinOpSubtract: "sub",
	BinOpMultiply: "mul",
	BinOpDivide:   "div",
	BinOpModulo:   "mod",
	BinOpPower:    "pow",
}

func (op BinaryOp) String() string {
	return binaryOpNames[op]
}

// precedence levels: {+,-} < {*,/,%} < {^}
func (op BinaryOp) precedence() int {
	switch op {
	case BinOpAdd, BinOpSubtract:
		return 0
	case BinOpMultiply, BinOpDivide, BinOpModulo:
		return 1
	default:
		return 2
	}
}

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpNegate UnaryOp = iota
	UnaryOpNot
)

func (op UnaryOp) String() string {
	if op == UnaryOpNot {
		return "not"
	}
	return "negate"
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value    float64
	Literal  string
	Position NodePosition
}

func (n *NumberNode) Eval(ev *Evaluator) (Value, *FormulaError) {
	return Number(n.Value), nil
}

func (n *NumberNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NumberNode) String() string {
	return n.Literal
}

// ArrayNode represents an array literal { a, b ; c }
type ArrayNode struct {
	Elements []Node
	Position NodePosition
}

func (n *ArrayNode) Eval(ev *Evaluator) (Value, *FormulaError) {
	out := make(Array, len(n.Elements))
	for i, elem := range n.Elements {
		v, err := elem.Eval(ev)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (n *ArrayNode) GetPosition() NodePosition {
	return n.Position
}

func (n *ArrayNode) String() string {
	if len(n.Elements) == 0 {
		return "{}"
	}
	return "{ " + joinNodes(n.Elements) + " }"
}

// FunctionCallNode represents a call to a built-in function
type FunctionCallNode struct {
	Func     Function
	Args     []Node
	Position NodePosition
}

func (n *FunctionCallNode) Eval(ev *Evaluator) (Value, *FormulaError) {
	args := make([]Value, len(n.Args))
	for i, arg := range n.Args {
		v, err := arg.Eval(ev)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return ev.call(n, args)
}

func (n *FunctionCallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallNode) String() string {
	if len(n.Args) == 0 {
		return n.Func.String() + "()"
	}
	return n.Func.String() + "( " + joinNodes(n.Args) + " )"
}

// UnaryOpNode represents a prefix operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  Node
	Position NodePosition
}

func (n *UnaryOpNode) Eval(ev *Evaluator) (Value, *FormulaError) {
	v, err := n.Operand.Eval(ev)
	if err != nil {
		return nil, err
	}
	x, ok := v.(Number)
	if !ok {
		return nil, errorf(EvalTypeError, n.Position, "%s expects a number, got %s", n.Op, v.typeName())
	}
	if n.Op == UnaryOpNegate {
		return -x, nil
	}
	if x != 0 {
		return Number(0), nil
	}
	return Number(1), nil
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) String() string {
	return fmt.Sprintf("%s( %s )", n.Op, n.Operand)
}

// BinaryOpNode represents a binary operation. Position is the operator.
type BinaryOpNode struct {
	Op       BinaryOp
	Left     Node
	Right    Node
	Position NodePosition
	// Grouped is set when the node was written inside parentheses. grouped
	// nodes are never rotated.
	Grouped bool
}

func (n *BinaryOpNode) Eval(ev *Evaluator) (Value, *FormulaError) {
	return ev.binary(n)
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryOpNode) String() string {
	return fmt.Sprintf("%s( %s, %s )", n.Op, n.Left, n.Right)
}

// CellRefNode is an A1-style reference. it evaluates like cell(x, y).
type CellRefNode struct {
	Ref      Pos
	Position NodePosition
}

func (n *CellRefNode) Eval(ev *Evaluator) (Value, *FormulaError) {
	return ev.fetch(n.Ref), nil
}

func (n *CellRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *CellRefNode) String() string {
	return fmt.Sprintf("cell( %d, %d )", uint64(n.Ref.X)+1, uint64(n.Ref.Y)+1)
}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

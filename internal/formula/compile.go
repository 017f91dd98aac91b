package formula

import "strings"

// Program is a compiled cell input. input starting with '=' is a formula;
// anything else is a literal: a plain number becomes a Number and
// everything else stays Text.
type Program struct {
	Input   string
	root    Node
	literal Value
}

// Compile classifies and, for formulas, tokenizes and parses input.
func Compile(input string) (*Program, *FormulaError) {
	if !strings.HasPrefix(input, "=") {
		if f, ok := ParseNumberLiteral(input); ok {
			return &Program{Input: input, literal: Number(f)}, nil
		}
		return &Program{Input: input, literal: Text(input)}, nil
	}

	root, err := Parse(input)
	if err != nil {
		return nil, err
	}
	return &Program{Input: input, root: root}, nil
}

// IsFormula reports whether the input was a formula.
func (p *Program) IsFormula() bool {
	return p.root != nil
}

// Root returns the parsed AST, or nil for a literal.
func (p *Program) Root() Node {
	return p.root
}

// Evaluate runs the program as the contents of target. literals read no
// cells.
func (p *Program) Evaluate(src ValueSource, target Pos, readSet *[]Pos) (Value, *FormulaError) {
	if p.root == nil {
		return p.literal, nil
	}
	return Evaluate(src, target, p.root, readSet)
}

package formula

import (
	"fmt"
	"strconv"
)

var binaryOps = map[TokenType]BinaryOp{
	TokenPlus:     BinOpAdd,
	TokenMinus:    BinOpSubtract,
	TokenAsterisk: BinOpMultiply,
	TokenSlash:    BinOpDivide,
	TokenPercent:  BinOpModulo,
	TokenCaret:    BinOpPower,
}

// Parser parses tokens into an AST. it is a plain recursive descent
// parser: chains are first built right-leaning and then fixed up by
// rotate after every binary operator.
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser creates a new parser over tokens ending in TokenEOF
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse tokenizes and parses input. a leading '=' is allowed.
func Parse(input string) (Node, *FormulaError) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// Parse parses the tokens into an AST. the first error aborts parsing.
func (p *Parser) Parse() (Node, *FormulaError) {
	if len(p.tokens) == 0 {
		return nil, NewFormulaError(ParseError, NodePosition{}, "no tokens to parse")
	}

	// skip the formula prefix
	if p.peek().Type == TokenEquals {
		p.pos++
	}

	if p.peek().Type == TokenEOF {
		return nil, NewFormulaError(ParseError, p.peek().Span(), "empty formula")
	}

	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, errorf(ParseError, tok.Span(), "unexpected token %q after expression", tok.Value)
	}
	return node, nil
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *Parser) expect(tt TokenType, what string) (Token, *FormulaError) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, unexpected(tok, what)
	}
	p.pos++
	return tok, nil
}

func unexpected(tok Token, what string) *FormulaError {
	if tok.Type == TokenEOF {
		return errorf(ParseError, tok.Span(), "unexpected end of formula, expected %s", what)
	}
	return errorf(ParseError, tok.Span(), "unexpected token %q, expected %s", tok.Value, what)
}

// parseExpression handles Term (BinOp Term)*.
func (p *Parser) parseExpression() (Node, *FormulaError) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	op, ok := binaryOps[tok.Type]
	if !ok {
		return left, nil
	}
	p.pos++

	right, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	return rotate(&BinaryOpNode{
		Op:       op,
		Left:     left,
		Right:    right,
		Position: tok.Span(),
	}), nil
}

// rotate fixes up the right-leaning tree the recursion produces. when the
// right child binds looser than n, the child becomes the root and n its
// left child, e.g. mul(2, add(3,4)) -> add(mul(2,3), 4). n then takes
// over the child's old left subtree, so the fixup continues down that
// spine until n sits above something that binds at least as tightly.
func rotate(n *BinaryOpNode) Node {
	r, ok := n.Right.(*BinaryOpNode)
	if !ok || r.Grouped || !needsRotation(n.Op, r) {
		return n
	}
	n.Right = r.Left
	r.Left = rotate(n)
	return r
}

// needsRotation reports whether op(a, right(b, c)) must become
// right(op(a, b), c). within one level the right-leaning shape is kept only
// where regrouping cannot change the value, which keeps ^ right
// associative.
func needsRotation(op BinaryOp, right *BinaryOpNode) bool {
	if op.precedence() != right.Op.precedence() {
		return right.Op.precedence() < op.precedence()
	}
	switch op {
	case BinOpAdd, BinOpPower:
		return false
	case BinOpMultiply:
		return hasModulo(right)
	default:
		return true
	}
}

// hasModulo reports whether a % sits on the same-level left spine of n.
// a*((b%c)*d) is not ((a*b)%c)*d, so a product over such a chain has to
// rotate.
func hasModulo(n *BinaryOpNode) bool {
	level := n.Op.precedence()
	for {
		if n.Op == BinOpModulo {
			return true
		}
		left, ok := n.Left.(*BinaryOpNode)
		if !ok || left.Grouped || left.Op.precedence() != level {
			return false
		}
		n = left
	}
}

// parseTerm handles numbers, calls, references, arrays, parentheses and
// prefix operators. a prefix operator takes the whole expression after it,
// so -2+3 is negate(add(2, 3)).
func (p *Parser) parseTerm() (Node, *FormulaError) {
	tok := p.peek()

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, errorf(ParseError, tok.Span(), "invalid number %q", tok.Value)
		}
		return &NumberNode{Value: val, Literal: tok.Value, Position: tok.Span()}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenIdentifier:
		p.pos++
		if !isAddress(tok.Value) {
			return nil, errorf(ParseError, tok.Span(), "unknown identifier %q", tok.Value)
		}
		ref, err := ParseAddress(tok.Value)
		if err != nil {
			return nil, NewFormulaError(ParseError, tok.Span(), err.Error())
		}
		return &CellRefNode{Ref: ref, Position: tok.Span()}, nil

	case TokenLeftBrace:
		return p.parseArray()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRightParen, "')'"); err != nil {
			return nil, err
		}
		if bin, ok := node.(*BinaryOpNode); ok {
			bin.Grouped = true
		}
		return node, nil

	case TokenPlus:
		p.pos++
		node, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if bin, ok := node.(*BinaryOpNode); ok {
			bin.Grouped = true
		}
		return node, nil

	case TokenMinus, TokenBang, TokenTilde:
		p.pos++
		operand, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		op := UnaryOpNot
		if tok.Type == TokenMinus {
			op = UnaryOpNegate
		}
		return &UnaryOpNode{Op: op, Operand: operand, Position: tok.Span()}, nil

	default:
		return nil, unexpected(tok, "a value")
	}
}

// parseFunctionCall parses name(args) and validates the argument count
func (p *Parser) parseFunctionCall() (Node, *FormulaError) {
	funcTok := p.peek()
	p.pos++

	if _, err := p.expect(TokenLeftParen, fmt.Sprintf("'(' after %s", funcTok.Func)); err != nil {
		return nil, err
	}

	args := []Node{}
	if p.peek().Type == TokenRightParen {
		p.pos++
	} else {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			tok := p.peek()
			if tok.Type == TokenRightParen {
				p.pos++
				break
			}
			if tok.Type != TokenComma {
				return nil, unexpected(tok, "',' or ')' in function arguments")
			}
			p.pos++
		}
	}

	if want, ok := funcTok.Func.checkArity(len(args)); !ok {
		return nil, errorf(ParseError, funcTok.Span(), "%s expects %s arguments, got %d",
			funcTok.Func, want, len(args))
	}

	return &FunctionCallNode{
		Func:     funcTok.Func,
		Args:     args,
		Position: funcTok.Span(),
	}, nil
}

// parseArray parses { e , e ; e } with an optional trailing separator.
func (p *Parser) parseArray() (Node, *FormulaError) {
	open := p.peek()
	p.pos++

	elems := []Node{}
	for {
		if p.peek().Type == TokenRightBrace {
			p.pos++
			break
		}

		elem, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)

		tok := p.peek()
		switch tok.Type {
		case TokenComma, TokenSemicolon:
			p.pos++
		case TokenRightBrace:
		default:
			return nil, unexpected(tok, "',', ';' or '}' in array")
		}
	}

	return &ArrayNode{Elements: elems, Position: open.Span()}, nil
}

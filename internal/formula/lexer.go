package formula

import (
	"strconv"
	"strings"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenIdentifier
	TokenFunction // a keyword from the function table
	TokenBang
	TokenTilde
	TokenCaret
	TokenAsterisk
	TokenPlus
	TokenMinus
	TokenSlash
	TokenPercent
	TokenLeftBrace
	TokenRightBrace
	TokenLeftBracket
	TokenRightBracket
	TokenLeftParen
	TokenRightParen
	TokenComma
	TokenEquals
	TokenSemicolon
)

// character classification constants. slightly easier to read.
const (
	charSpace      = ' '
	charTab        = '\t'
	charPeriod     = '.'
	charUnderscore = '_'
)

// punctuation maps single-byte punctuation to its token type
var punctuation = map[byte]TokenType{
	'!': TokenBang,
	'~': TokenTilde,
	'^': TokenCaret,
	'*': TokenAsterisk,
	'+': TokenPlus,
	'-': TokenMinus,
	'/': TokenSlash,
	'%': TokenPercent,
	'{': TokenLeftBrace,
	'}': TokenRightBrace,
	'[': TokenLeftBracket,
	']': TokenRightBracket,
	'(': TokenLeftParen,
	')': TokenRightParen,
	',': TokenComma,
	'=': TokenEquals,
	';': TokenSemicolon,
}

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int      // byte offset in input
	Func  Function // set for TokenFunction only
}

// Span is the byte range the token covers.
func (t Token) Span() NodePosition {
	return NodePosition{Start: t.Pos, End: t.Pos + len(t.Value)}
}

// Lexer tokenizes formula input in a single left-to-right pass
type Lexer struct {
	input  string
	pos    int
	tokens []Token
}

// NewLexer creates a new lexer for the given formula input
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize scans the entire input. tokenizing stops at the first bad byte
// and the error carries its offset. a successful scan always ends with a
// TokenEOF.
func (l *Lexer) Tokenize() ([]Token, *FormulaError) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos})
			return l.tokens, nil
		}

		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, tok)
	}
}

// Tokenize is shorthand for NewLexer(input).Tokenize().
func Tokenize(input string) ([]Token, *FormulaError) {
	return NewLexer(input).Tokenize()
}

func (l *Lexer) nextToken() (Token, *FormulaError) {
	startPos := l.pos
	ch := l.input[l.pos]

	if isDigit(ch) || (ch == charPeriod && isDigit(l.peek(1))) {
		return l.scanNumber()
	}

	if isAlpha(ch) {
		return l.scanIdentifier(), nil
	}

	if tt, ok := punctuation[ch]; ok {
		l.pos++
		return Token{Type: tt, Value: l.input[startPos:l.pos], Pos: startPos}, nil
	}

	return Token{}, errorf(LexError, NodePosition{Start: startPos, End: startPos + 1},
		"unexpected character %q", ch)
}

func (l *Lexer) peek(offset int) byte {
	pos := l.pos + offset
	if pos >= len(l.input) || pos < 0 {
		return 0
	}
	return l.input[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch != charSpace && ch != charTab {
			break
		}
		l.pos++
	}
}

// scanNumber scans digits with at most one decimal point. there is no
// exponent syntax.
func (l *Lexer) scanNumber() (Token, *FormulaError) {
	startPos := l.pos
	end, dot := scanNumberLiteral(l.input, l.pos)
	if dot >= 0 {
		return Token{}, NewFormulaError(LexError, NodePosition{Start: dot, End: dot + 1},
			"number has more than one decimal point")
	}
	l.pos = end
	return Token{Type: TokenNumber, Value: l.input[startPos:end], Pos: startPos}, nil
}

// scanNumberLiteral returns the end of the digit/point run starting at
// start. when the run holds a second decimal point its offset is returned
// as dot, otherwise dot is -1.
func scanNumberLiteral(s string, start int) (end, dot int) {
	seenPoint := false
	end = start
	for end < len(s) {
		ch := s[end]
		if ch == charPeriod {
			if seenPoint {
				return end, end
			}
			seenPoint = true
		} else if !isDigit(ch) {
			break
		}
		end++
	}
	return end, -1
}

// scanIdentifier scans alpha followed by alphanumerics or underscores.
// keywords match case-insensitively.
func (l *Lexer) scanIdentifier() Token {
	startPos := l.pos
	l.pos++
	for l.pos < len(l.input) && (isAlphaNumeric(l.input[l.pos]) || l.input[l.pos] == charUnderscore) {
		l.pos++
	}

	value := l.input[startPos:l.pos]
	if fn, ok := LookupFunction(value); ok {
		return Token{Type: TokenFunction, Value: value, Pos: startPos, Func: fn}
	}
	return Token{Type: TokenIdentifier, Value: value, Pos: startPos}
}

// ParseNumberLiteral reports whether s, ignoring surrounding space, is a
// plain number with an optional sign (the form a user types into a cell).
func ParseNumberLiteral(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	sign := 1.0
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}
	if s == "" || s == "." || !(isDigit(s[0]) || s[0] == charPeriod) {
		return 0, false
	}
	end, dot := scanNumberLiteral(s, 0)
	if dot >= 0 || end != len(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return sign * f, true
}

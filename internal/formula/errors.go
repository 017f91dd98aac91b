package formula

import "fmt"

// ErrorKind classifies why a cell failed to produce a value.
type ErrorKind uint8

const (
	LexError         ErrorKind = iota + 1 // bad character or malformed number
	ParseError                            // token sequence does not match the grammar
	EvalTypeError                         // operand or argument of the wrong type
	CycleHeadError                        // first cell of a reference cycle in a wave
	CycleMemberError                      // any other cell caught in or behind a cycle
)

// ErrorKindNames maps error kinds to their display names.
var ErrorKindNames = map[ErrorKind]string{
	LexError:         "lex error",
	ParseError:       "parse error",
	EvalTypeError:    "type error",
	CycleHeadError:   "cycle",
	CycleMemberError: "cycle",
}

func (k ErrorKind) String() string {
	if name, ok := ErrorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// messages stored on cells caught in a reference cycle
const (
	CycleHeadMessage   = "head of a reference cycle"
	CycleMemberMessage = "part of a reference cycle"
)

// FormulaError is plain data: a kind, a message and the byte span of the
// input that caused it. it is stored on the cell, never thrown.
type FormulaError struct {
	Kind    ErrorKind
	Message string
	Span    NodePosition
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewFormulaError builds an error for the given kind and span.
func NewFormulaError(kind ErrorKind, span NodePosition, message string) *FormulaError {
	return &FormulaError{
		Kind:    kind,
		Message: message,
		Span:    span,
	}
}

func errorf(kind ErrorKind, span NodePosition, format string, args ...any) *FormulaError {
	return NewFormulaError(kind, span, fmt.Sprintf(format, args...))
}

// NewCycleError marks a whole input as belonging to a reference cycle.
func NewCycleError(head bool, input string) *FormulaError {
	span := NodePosition{Start: 0, End: len(input)}
	if head {
		return NewFormulaError(CycleHeadError, span, CycleHeadMessage)
	}
	return NewFormulaError(CycleMemberError, span, CycleMemberMessage)
}

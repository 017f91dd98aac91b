package formula

import (
	"strconv"
	"strings"
)

// Value is the result of evaluating a formula: a Number, Text, Array or
// Graph. composite values own their elements.
type Value interface {
	// Clone returns a deep copy that shares no backing storage.
	Clone() Value
	String() string
	typeName() string
}

// Number is a float64 value.
type Number float64

// Text is raw text. the empty Text is what an empty cell reads as.
type Text string

// Array is an ordered sequence of values. 2-D ranges are arrays of arrays.
type Array []Value

// Graph holds the series passed to graph(). each series is an Array of
// Numbers.
type Graph []Value

func (n Number) Clone() Value { return n }
func (t Text) Clone() Value   { return t }
func (a Array) Clone() Value  { return Array(cloneValues(a)) }
func (g Graph) Clone() Value  { return Graph(cloneValues(g)) }

func cloneValues(in []Value) []Value {
	if in == nil {
		return nil
	}
	out := make([]Value, len(in))
	for i, v := range in {
		out[i] = v.Clone()
	}
	return out
}

func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}

func (t Text) String() string {
	return string(t)
}

func (a Array) String() string {
	return joinValues("{ ", a, " }")
}

func (g Graph) String() string {
	return joinValues("graph( ", g, " )")
}

func joinValues(open string, values []Value, close string) string {
	if len(values) == 0 {
		return strings.TrimSpace(open) + strings.TrimSpace(close)
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return open + strings.Join(parts, ", ") + close
}

func (Number) typeName() string { return "number" }
func (Text) typeName() string   { return "text" }
func (Array) typeName() string  { return "array" }
func (Graph) typeName() string  { return "graph" }

// IsEmpty reports whether v is what an unwritten cell reads as.
func IsEmpty(v Value) bool {
	t, ok := v.(Text)
	return ok && t == ""
}

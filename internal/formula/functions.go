package formula

import (
	"fmt"
	"strings"
)

// Function identifies a built-in function.
type Function uint8

const (
	FuncCell Function = iota
	FuncRow
	FuncCol
	FuncRowRect
	FuncColRect
	FuncRelCell
	FuncSum
	FuncMax
	FuncMin
	FuncMean
	FuncMedian
	FuncGraph
)

const variadic = -1

type functionInfo struct {
	name    string
	minArgs int
	maxArgs int // variadic for no upper bound
}

var functionTable = [...]functionInfo{
	FuncCell:    {name: "cell", minArgs: 2, maxArgs: 2},
	FuncRow:     {name: "row", minArgs: 3, maxArgs: 3},
	FuncCol:     {name: "col", minArgs: 3, maxArgs: 3},
	FuncRowRect: {name: "rowrect", minArgs: 4, maxArgs: 4},
	FuncColRect: {name: "colrect", minArgs: 4, maxArgs: 4},
	FuncRelCell: {name: "relcell", minArgs: 2, maxArgs: 2},
	FuncSum:     {name: "sum", minArgs: 0, maxArgs: variadic},
	FuncMax:     {name: "max", minArgs: 1, maxArgs: variadic},
	FuncMin:     {name: "min", minArgs: 1, maxArgs: variadic},
	FuncMean:    {name: "mean", minArgs: 0, maxArgs: variadic},
	FuncMedian:  {name: "median", minArgs: 1, maxArgs: variadic},
	FuncGraph:   {name: "graph", minArgs: 0, maxArgs: variadic},
}

var functionsByName = func() map[string]Function {
	m := make(map[string]Function, len(functionTable))
	for fn, info := range functionTable {
		m[info.name] = Function(fn)
	}
	return m
}()

// LookupFunction finds a keyword, ignoring case.
func LookupFunction(name string) (Function, bool) {
	fn, ok := functionsByName[strings.ToLower(name)]
	return fn, ok
}

func (f Function) String() string {
	if int(f) < len(functionTable) {
		return functionTable[f].name
	}
	return fmt.Sprintf("Function(%d)", uint8(f))
}

// checkArity returns a description of the accepted argument count when n
// is not acceptable.
func (f Function) checkArity(n int) (string, bool) {
	info := functionTable[f]
	switch {
	case info.maxArgs == variadic && n >= info.minArgs:
		return "", true
	case n >= info.minArgs && n <= info.maxArgs:
		return "", true
	case info.maxArgs == variadic:
		return fmt.Sprintf("at least %d", info.minArgs), false
	default:
		return fmt.Sprintf("exactly %d", info.minArgs), false
	}
}

package formula

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// MaxRangeCells bounds how many positions a single range may expand to,
// both in formulas (row, col, rowrect, colrect) and in A1 ranges.
const MaxRangeCells = 1 << 20

// Pos is an absolute, 0-based grid position. X is the column, Y the row.
type Pos struct {
	X uint32
	Y uint32
}

// String renders the position in A1 notation.
func (p Pos) String() string {
	return ColumnName(p.X) + strconv.FormatUint(uint64(p.Y)+1, 10)
}

// ComparePos orders positions row-major: by row, then by column.
func ComparePos(a, b Pos) int {
	switch {
	case a.Y < b.Y:
		return -1
	case a.Y > b.Y:
		return 1
	case a.X < b.X:
		return -1
	case a.X > b.X:
		return 1
	}
	return 0
}

// ColumnName converts a 0-based column index to letters (0 -> A, 26 -> AA).
func ColumnName(x uint32) string {
	n := uint64(x) + 1
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// splitAddress splits "AB12" into "AB" and "12". both halves must be
// non-empty and the string must contain nothing else.
func splitAddress(s string) (letters, digits string, ok bool) {
	letterEnd := 0
	for letterEnd < len(s) && isAlpha(s[letterEnd]) {
		letterEnd++
	}
	if letterEnd == 0 || letterEnd == len(s) {
		return "", "", false
	}
	for i := letterEnd; i < len(s); i++ {
		if !isDigit(s[i]) {
			return "", "", false
		}
	}
	return s[:letterEnd], s[letterEnd:], true
}

// isAddress reports whether s is shaped like an A1 reference.
func isAddress(s string) bool {
	_, _, ok := splitAddress(s)
	return ok
}

// ParseAddress parses an A1 reference ("B3") into a Pos ({1, 2}). letters
// are case-insensitive.
func ParseAddress(s string) (Pos, error) {
	letters, digits, ok := splitAddress(s)
	if !ok {
		return Pos{}, fmt.Errorf("invalid cell address %q", s)
	}

	var col uint64
	for i := 0; i < len(letters); i++ {
		col = col*26 + uint64(toUpper(letters[i])-'A') + 1
		if col > math.MaxUint32+1 {
			return Pos{}, fmt.Errorf("column out of range in %q", s)
		}
	}

	row, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || row == 0 || row > math.MaxUint32+1 {
		return Pos{}, fmt.Errorf("row out of range in %q", s)
	}

	return Pos{X: uint32(col - 1), Y: uint32(row - 1)}, nil
}

// ParseRange parses "A1" or "A1:B2" and returns every covered position in
// row-major order. corners may be given in any order.
func ParseRange(s string) ([]Pos, error) {
	first, second, isRange := strings.Cut(strings.TrimSpace(s), ":")
	from, err := ParseAddress(strings.TrimSpace(first))
	if err != nil {
		return nil, err
	}
	if !isRange {
		return []Pos{from}, nil
	}
	to, err := ParseAddress(strings.TrimSpace(second))
	if err != nil {
		return nil, err
	}

	x0, x1 := min(from.X, to.X), max(from.X, to.X)
	y0, y1 := min(from.Y, to.Y), max(from.Y, to.Y)
	cells, ok := rectCells(uint64(x1-x0)+1, uint64(y1-y0)+1)
	if !ok {
		return nil, fmt.Errorf("range %q covers more than %d cells", s, MaxRangeCells)
	}

	out := make([]Pos, 0, cells)
	for y := uint64(y0); y <= uint64(y1); y++ {
		for x := uint64(x0); x <= uint64(x1); x++ {
			out = append(out, Pos{X: uint32(x), Y: uint32(y)})
		}
	}
	return out, nil
}

// rectCells returns width*height and whether it fits under MaxRangeCells.
// both sides can be 2^32, so the product is taken in 128 bits.
func rectCells(width, height uint64) (uint64, bool) {
	hi, lo := bits.Mul64(width, height)
	return lo, hi == 0 && lo <= MaxRangeCells
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isAlphaNumeric(ch byte) bool {
	return isAlpha(ch) || isDigit(ch)
}

func toUpper(ch byte) byte {
	if ch >= 'a' && ch <= 'z' {
		return ch - 32
	}
	return ch
}

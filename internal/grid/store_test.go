package grid

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vogtb/go-gridcalc/internal/formula"
)

func TestChunkedStore(t *testing.T) {
	s := NewChunkedStore()
	p := formula.Pos{X: 3, Y: 5}

	_, ok := s.TryAccessCell(p)
	assert.False(t, ok)

	cell := s.AccessCell(p)
	assert.Equal(t, formula.Value(formula.Text("")), cell.Value)
	cell.Input = "12"

	got, ok := s.TryAccessCell(p)
	assert.True(t, ok)
	assert.Same(t, cell, got)
	assert.Equal(t, "12", got.Input)

	// creating neighbours must not move existing cells
	for y := range uint32(64) {
		s.AccessCell(formula.Pos{X: 0, Y: y})
	}
	assert.Same(t, cell, s.AccessCell(p))
	assert.Equal(t, 65, s.Len())
	assert.Equal(t, 1, s.ChunkCount())

	// empty neighbour of a created cell is still absent
	_, ok = s.TryAccessCell(formula.Pos{X: 4, Y: 5})
	assert.False(t, ok)
}

func TestChunkedStoreAll(t *testing.T) {
	s := NewChunkedStore()
	want := []formula.Pos{
		{X: 0, Y: 0},
		{X: 63, Y: 63},
		{X: 64, Y: 0},
		{X: 0, Y: 64},
		{X: 1000, Y: 70000},
	}
	for _, p := range want {
		s.AccessCell(p)
	}
	assert.Equal(t, 4, s.ChunkCount())

	var got []formula.Pos
	for pos, cell := range s.All() {
		assert.NotNil(t, cell)
		got = append(got, pos)
	}
	slices.SortFunc(got, formula.ComparePos)
	slices.SortFunc(want, formula.ComparePos)
	assert.Equal(t, want, got)

	n := 0
	for range s.All() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestGridWithCustomStore(t *testing.T) {
	s := NewChunkedStore()
	g := New(WithStore(s))
	g.SetCellContents([]formula.Pos{{X: 0, Y: 0}}, "=2^10")
	cell, ok := s.TryAccessCell(formula.Pos{X: 0, Y: 0})
	assert.True(t, ok)
	assert.Equal(t, formula.Value(formula.Number(1024)), cell.Value)
}

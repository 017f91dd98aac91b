package grid

import (
	"iter"
	"math/bits"

	"github.com/vogtb/go-gridcalc/internal/formula"
)

// Store owns the cells. the recompute driver only ever reaches cells
// through it.
type Store interface {
	// AccessCell returns the cell at pos, creating it if absent.
	AccessCell(pos formula.Pos) *Cell
	// TryAccessCell looks a cell up without creating it.
	TryAccessCell(pos formula.Pos) (*Cell, bool)
	// All yields every created cell in no particular order.
	All() iter.Seq2[formula.Pos, *Cell]
}

// ChunkKey represents the key for indexing chunks in ChunkedStore
type ChunkKey struct {
	ChunkRow uint32
	ChunkCol uint32
}

const (
	ChunkRows uint32 = 64                    // rows per chunk - power of 2 for efficient modulo
	ChunkCols uint32 = 64                    // columns per chunk
	ChunkSize        = ChunkRows * ChunkCols // 4096 cells per chunk
)

// Chunk is a fixed ChunkRows x ChunkCols block of cells. cells live in one
// array so pointers handed out stay valid for the life of the store.
type Chunk struct {
	Cells          []Cell   // column-first, see cellIndex
	OccupiedBitmap []uint64 // which slots have been created
	Count          int      // number of created cells
}

// ChunkedStore is sparse 2-D cell storage. cells are partitioned into
// chunks for spatial locality and chunks are only allocated once a cell in
// their region is created.
type ChunkedStore struct {
	chunks     map[ChunkKey]*Chunk
	totalCells int
}

// NewChunkedStore creates an empty store
func NewChunkedStore() *ChunkedStore {
	return &ChunkedStore{
		chunks: make(map[ChunkKey]*Chunk),
	}
}

func chunkKeyOf(pos formula.Pos) ChunkKey {
	return ChunkKey{ChunkRow: pos.Y / ChunkRows, ChunkCol: pos.X / ChunkCols}
}

// cellIndex uses column-first indexing within a chunk
func cellIndex(pos formula.Pos) uint32 {
	return (pos.X%ChunkCols)*ChunkRows + pos.Y%ChunkRows
}

// getChunk retrieves or creates a chunk at the given chunk coordinates
func (s *ChunkedStore) getChunk(key ChunkKey) *Chunk {
	chunk, exists := s.chunks[key]
	if !exists {
		chunk = &Chunk{
			Cells:          make([]Cell, ChunkSize),
			OccupiedBitmap: make([]uint64, (ChunkSize+63)/64),
		}
		s.chunks[key] = chunk
	}
	return chunk
}

func (s *ChunkedStore) AccessCell(pos formula.Pos) *Cell {
	chunk := s.getChunk(chunkKeyOf(pos))
	idx := cellIndex(pos)
	word, bit := idx/64, uint64(1)<<(idx%64)
	if chunk.OccupiedBitmap[word]&bit == 0 {
		chunk.OccupiedBitmap[word] |= bit
		chunk.Cells[idx] = Cell{Value: formula.Text("")}
		chunk.Count++
		s.totalCells++
	}
	return &chunk.Cells[idx]
}

func (s *ChunkedStore) TryAccessCell(pos formula.Pos) (*Cell, bool) {
	chunk, exists := s.chunks[chunkKeyOf(pos)]
	if !exists {
		return nil, false
	}
	idx := cellIndex(pos)
	if chunk.OccupiedBitmap[idx/64]&(uint64(1)<<(idx%64)) == 0 {
		return nil, false
	}
	return &chunk.Cells[idx], true
}

func (s *ChunkedStore) All() iter.Seq2[formula.Pos, *Cell] {
	return func(yield func(formula.Pos, *Cell) bool) {
		for key, chunk := range s.chunks {
			for word, bitsSet := range chunk.OccupiedBitmap {
				for bitsSet != 0 {
					tz := bits.TrailingZeros64(bitsSet)
					bitsSet &^= uint64(1) << tz
					idx := uint32(word*64 + tz)
					pos := formula.Pos{
						X: key.ChunkCol*ChunkCols + idx/ChunkRows,
						Y: key.ChunkRow*ChunkRows + idx%ChunkRows,
					}
					if !yield(pos, &chunk.Cells[idx]) {
						return
					}
				}
			}
		}
	}
}

// Len returns the number of created cells
func (s *ChunkedStore) Len() int {
	return s.totalCells
}

// ChunkCount returns the number of allocated chunks
func (s *ChunkedStore) ChunkCount() int {
	return len(s.chunks)
}

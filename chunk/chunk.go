// Package chunk provides the fixed-extent rectangular cell blocks a grid is
// partitioned into.
//
// A chunk is one of three interchangeable encodings:
//
//   - Uniform: one value repeated over every cell, O(1) memory.
//   - Dense: a full row-major array, O(cells) memory.
//   - Sparse: occupied offsets mapped to values plus a single default.
//
// The encoding set is closed: code that needs to branch on encoding switches
// on Kind (or type-switches on the three concrete types) rather than probing
// capabilities. A chunk always reports its logical dimensions independent of
// its encoding.
//
// Chunks never promote themselves. A Uniform chunk cannot absorb a divergent
// write; the owning grid reserves memory for the replacement encoding first
// and installs it atomically (see DenseFromUniform and SparseFromUniform).
package chunk

import (
	"fmt"
	"unsafe"
)

// Number is the set of cell value types a grid can hold. It collapses the
// per-type chunk/grid families of classic raster libraries into one generic
// implementation.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Kind identifies a chunk encoding.
type Kind uint8

const (
	// KindUniform is a single repeated value.
	KindUniform Kind = 1
	// KindDense is a full row-major cell array.
	KindDense Kind = 2
	// KindSparse is an offset->value map with a default.
	KindSparse Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindUniform:
		return "uniform"
	case KindDense:
		return "dense"
	case KindSparse:
		return "sparse"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ID addresses a chunk within its grid by (chunk-row, chunk-col).
type ID struct {
	Row int
	Col int
}

// Less orders IDs by row, then column. Packed order (see Pack) agrees with
// this, so iterating a bitmap of packed IDs visits chunks deterministically.
func (id ID) Less(other ID) bool {
	if id.Row != other.Row {
		return id.Row < other.Row
	}
	return id.Col < other.Col
}

// Pack encodes the ID as a single uint64 with the row in the high 32 bits.
func (id ID) Pack() uint64 {
	return uint64(uint32(id.Row))<<32 | uint64(uint32(id.Col))
}

// Unpack is the inverse of Pack.
func Unpack(v uint64) ID {
	return ID{Row: int(uint32(v >> 32)), Col: int(uint32(v))}
}

func (id ID) String() string {
	return fmt.Sprintf("(%d,%d)", id.Row, id.Col)
}

// Chunk is a rectangular block of cells in one of the closed set of
// encodings. Local coordinates are zero-based and must lie within
// [0,Rows())x[0,Cols()); callers are responsible for bounds.
type Chunk[T Number] interface {
	// Kind reports the encoding.
	Kind() Kind
	// Rows reports the number of cell rows.
	Rows() int
	// Cols reports the number of cell columns.
	Cols() int
	// Get returns the value at the local coordinate.
	Get(row, col int) T
	// Set writes a value and returns the previous one. On a Uniform chunk a
	// divergent write panics; the owner must promote first.
	Set(row, col int, v T) T
	// Footprint estimates the in-memory size of this representation in bytes.
	Footprint() int64
}

const chunkOverhead = 64 // struct, header and table-slot overhead estimate

func valueSize[T Number]() int64 {
	var z T
	return int64(unsafe.Sizeof(z))
}

// DenseFootprint estimates the memory footprint of a Dense chunk with the
// given dimensions. Grids use it both to reserve memory ahead of a promotion
// and as the ceiling a Sparse chunk must stay under.
func DenseFootprint[T Number](rows, cols int) int64 {
	return chunkOverhead + int64(rows)*int64(cols)*valueSize[T]()
}

package chunk

// sparseEntryCost approximates the per-entry cost of a Go map with a uint32
// key: key, value and bucket overhead. It only needs to be a stable
// overestimate; the grid compares it against DenseFootprint to decide when a
// Sparse chunk has stopped paying for itself.
func sparseEntryCost[T Number]() int64 {
	return 16 + valueSize[T]()
}

// Sparse is a chunk that maps occupied local offsets to values and reports a
// single default value for every unmapped offset. It suits chunks where most
// cells share one value but a scattering differ.
type Sparse[T Number] struct {
	rows, cols int
	def        T
	cells      map[uint32]T
}

// NewSparse creates an empty Sparse chunk whose unmapped cells read as def.
func NewSparse[T Number](rows, cols int, def T) *Sparse[T] {
	return &Sparse[T]{
		rows:  rows,
		cols:  cols,
		def:   def,
		cells: make(map[uint32]T),
	}
}

// SparseFromUniform builds the Sparse replacement for a Uniform chunk. Like
// DenseFromUniform, the result is complete before it is installed.
func SparseFromUniform[T Number](u *Uniform[T]) *Sparse[T] {
	return NewSparse(u.rows, u.cols, u.v)
}

// Kind reports KindSparse.
func (s *Sparse[T]) Kind() Kind { return KindSparse }

// Rows reports the number of cell rows.
func (s *Sparse[T]) Rows() int { return s.rows }

// Cols reports the number of cell columns.
func (s *Sparse[T]) Cols() int { return s.cols }

// DefaultValue returns the value of all unmapped cells.
func (s *Sparse[T]) DefaultValue() T { return s.def }

// Len returns the number of mapped cells.
func (s *Sparse[T]) Len() int { return len(s.cells) }

func (s *Sparse[T]) offset(row, col int) uint32 {
	return uint32(row*s.cols + col)
}

// Get returns the mapped value at the local coordinate, or the default.
func (s *Sparse[T]) Get(row, col int) T {
	if v, ok := s.cells[s.offset(row, col)]; ok {
		return v
	}
	return s.def
}

// Set writes a value and returns the previous one. Writing the default value
// unmaps the offset so the map only ever holds divergent cells.
func (s *Sparse[T]) Set(row, col int, v T) T {
	off := s.offset(row, col)
	prev, ok := s.cells[off]
	if !ok {
		prev = s.def
	}
	if v == s.def {
		delete(s.cells, off)
	} else {
		s.cells[off] = v
	}
	return prev
}

// Footprint reports the estimated size of the map plus overhead. It grows
// with mapped cells; owners convert to Dense once it exceeds DenseFootprint
// for the same dimensions.
func (s *Sparse[T]) Footprint() int64 {
	return chunkOverhead + int64(len(s.cells))*sparseEntryCost[T]()
}

package chunk

// Dense is a chunk backed by a full row-major cell array.
type Dense[T Number] struct {
	rows, cols int
	cells      []T
}

// NewDense creates a Dense chunk with every cell set to fill.
func NewDense[T Number](rows, cols int, fill T) *Dense[T] {
	d := &Dense[T]{
		rows:  rows,
		cols:  cols,
		cells: make([]T, rows*cols),
	}
	if fill != *new(T) {
		for i := range d.cells {
			d.cells[i] = fill
		}
	}
	return d
}

// DenseFromUniform builds the Dense replacement for a Uniform chunk. The
// result is fully constructed before it is returned, so installing it in the
// chunk table is all-or-nothing: no reader can observe a half-converted
// chunk.
func DenseFromUniform[T Number](u *Uniform[T]) *Dense[T] {
	return NewDense(u.rows, u.cols, u.v)
}

// DenseFromSparse builds the Dense replacement for a Sparse chunk, preserving
// every mapped value and the default for all unmapped offsets.
func DenseFromSparse[T Number](s *Sparse[T]) *Dense[T] {
	d := NewDense(s.rows, s.cols, s.def)
	for off, v := range s.cells {
		d.cells[off] = v
	}
	return d
}

// Kind reports KindDense.
func (d *Dense[T]) Kind() Kind { return KindDense }

// Rows reports the number of cell rows.
func (d *Dense[T]) Rows() int { return d.rows }

// Cols reports the number of cell columns.
func (d *Dense[T]) Cols() int { return d.cols }

// Get returns the value at the local coordinate.
func (d *Dense[T]) Get(row, col int) T {
	return d.cells[row*d.cols+col]
}

// Set writes a value in place and returns the previous one.
func (d *Dense[T]) Set(row, col int, v T) T {
	i := row*d.cols + col
	prev := d.cells[i]
	d.cells[i] = v
	return prev
}

// Footprint reports the size of the backing array plus overhead.
func (d *Dense[T]) Footprint() int64 {
	return DenseFootprint[T](d.rows, d.cols)
}

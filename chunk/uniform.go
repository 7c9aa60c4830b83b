package chunk

import "fmt"

// Uniform is a chunk whose every cell holds the same value. It is the
// encoding every chunk starts in (at the grid's no-data value) and the
// cheapest by far, which is also why it is never worth swapping out.
type Uniform[T Number] struct {
	rows, cols int
	v          T
}

// NewUniform creates a Uniform chunk with the given dimensions and value.
func NewUniform[T Number](rows, cols int, v T) *Uniform[T] {
	return &Uniform[T]{rows: rows, cols: cols, v: v}
}

// Kind reports KindUniform.
func (u *Uniform[T]) Kind() Kind { return KindUniform }

// Rows reports the number of cell rows.
func (u *Uniform[T]) Rows() int { return u.rows }

// Cols reports the number of cell columns.
func (u *Uniform[T]) Cols() int { return u.cols }

// Value returns the single repeated value.
func (u *Uniform[T]) Value() T { return u.v }

// Get returns the repeated value for any in-range coordinate.
func (u *Uniform[T]) Get(_, _ int) T { return u.v }

// Set is a no-op when v equals the stored value. A divergent write is a
// caller bug: the owner must promote the chunk before re-applying the write.
func (u *Uniform[T]) Set(_, _ int, v T) T {
	if v != u.v {
		panic(fmt.Sprintf("chunk: divergent write %v to uniform chunk of %v; promote first", v, u.v))
	}
	return u.v
}

// Footprint reports the (dimension-independent) size of the representation.
func (u *Uniform[T]) Footprint() int64 { return chunkOverhead }

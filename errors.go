package rastergo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/rastergo/chunk"
)

// ErrResourceExhausted is returned when an eviction pass could not free
// enough memory to satisfy an allocation. It is fatal to the triggering
// operation; the environment never retries beyond its single bounded pass.
var ErrResourceExhausted = errors.New("resource exhausted")

// Out-of-range cell coordinates are NOT an error anywhere in this package:
// reads return the grid's no-data value and writes are no-ops.

// ErrCorruptChunk indicates a chunk blob loaded from the store did not match
// any known encoding or its declared dimensions, or went missing entirely.
// It signals a defect, not a recoverable condition.
//
// The underlying cause (a chunk.ErrCorrupt decode failure, or
// blobstore.ErrNotFound for a vanished blob) can be accessed via
// errors.Unwrap.
type ErrCorruptChunk struct {
	GridID uint64
	Chunk  chunk.ID
	cause  error
}

func (e *ErrCorruptChunk) Error() string {
	return fmt.Sprintf("corrupt chunk %s of grid %d: %v", e.Chunk, e.GridID, e.cause)
}

func (e *ErrCorruptChunk) Unwrap() error { return e.cause }

// ErrArithmetic indicates a coordinate or distance computation failed in the
// decimal domain (overflow, invalid operation). It is propagated to the
// caller, never swallowed.
//
// The underlying decimal error can be accessed via errors.Unwrap.
type ErrArithmetic struct {
	Op    string
	cause error
}

func (e *ErrArithmetic) Error() string {
	return fmt.Sprintf("arithmetic failure in %s: %v", e.Op, e.cause)
}

func (e *ErrArithmetic) Unwrap() error { return e.cause }

func arithErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ErrArithmetic{Op: op, cause: err}
}

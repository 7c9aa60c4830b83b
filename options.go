package rastergo

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/hupe1980/rastergo/chunk"
)

type envOptions struct {
	memoryLimit  int64
	swapIOPerSec int64
	compression  chunk.Compression
	logger       *Logger
}

// EnvOption configures an Env.
type EnvOption func(*envOptions)

// WithMemoryLimit sets the budget, in bytes, for resident chunk
// representations across every grid of the environment. When an allocation
// would exceed it, chunks are swapped out until it fits. 0 (the default)
// disables eviction entirely; usage is still tracked.
func WithMemoryLimit(bytes int64) EnvOption {
	return func(o *envOptions) {
		o.memoryLimit = bytes
	}
}

// WithSwapIOLimit caps the throughput of swap-out writes in bytes per
// second. 0 (the default) means unlimited.
func WithSwapIOLimit(bytesPerSec int64) EnvOption {
	return func(o *envOptions) {
		o.swapIOPerSec = bytesPerSec
	}
}

// WithCompression selects the block compression applied to swapped chunk
// blobs. The default is LZ4; ZSTD trades swap latency for a better ratio.
func WithCompression(c chunk.Compression) EnvOption {
	return func(o *envOptions) {
		o.compression = c
	}
}

// WithLogger sets the environment logger. If nil, logging is disabled.
func WithLogger(l *Logger) EnvOption {
	return func(o *envOptions) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

type gridOptions struct {
	chunkRows int
	chunkCols int
	cellSize  *apd.Decimal
	xll       *apd.Decimal
	yll       *apd.Decimal
	sparse    bool
}

func defaultGridOptions() gridOptions {
	return gridOptions{
		chunkRows: 64,
		chunkCols: 64,
		cellSize:  apd.New(1, 0),
		xll:       apd.New(0, 0),
		yll:       apd.New(0, 0),
	}
}

// GridOption configures a grid constructor.
type GridOption func(*gridOptions)

// WithChunkSize sets the cell extent of a chunk. The default is 64x64.
// Grids whose extents are not multiples of the chunk extents get smaller
// chunks along the top and right edges.
func WithChunkSize(rows, cols int) GridOption {
	return func(o *gridOptions) {
		o.chunkRows = rows
		o.chunkCols = cols
	}
}

// WithCellSize sets the edge length of a cell in the coordinate domain.
// The default is 1.
func WithCellSize(cellSize *apd.Decimal) GridOption {
	return func(o *gridOptions) {
		o.cellSize = cellSize
	}
}

// WithOrigin sets the (x, y) coordinate of the grid's lower-left corner.
// The default is (0, 0).
func WithOrigin(xll, yll *apd.Decimal) GridOption {
	return func(o *gridOptions) {
		o.xll = xll
		o.yll = yll
	}
}

// WithSparseChunks makes Sparse the promotion target when a Uniform chunk
// receives its first divergent write, instead of the default Dense. Suits
// grids where populated chunks stay mostly empty.
func WithSparseChunks() GridOption {
	return func(o *gridOptions) {
		o.sparse = true
	}
}

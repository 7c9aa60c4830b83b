package rastergo

import (
	"context"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/cockroachdb/apd/v3"

	"github.com/hupe1980/rastergo/blobstore"
	"github.com/hupe1980/rastergo/chunk"
)

// CellID addresses a single cell by (row, col). Rows run bottom-up: row 0 is
// the southernmost row of the raster.
type CellID struct {
	Row int
	Col int
}

// Less orders cells by row, then column.
func (c CellID) Less(other CellID) bool {
	if c.Row != other.Row {
		return c.Row < other.Row
	}
	return c.Col < other.Col
}

func (c CellID) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// coordPrecision is the working precision of coordinate arithmetic.
const coordPrecision = 34

func coordContext() *apd.Context {
	return apd.BaseContext.WithPrecision(coordPrecision)
}

// Grid is a logical 2-D array of cells of type T, partitioned into chunks
// that are encoded adaptively and swapped to the environment's blob store
// under memory pressure.
//
// Every cell either holds a data value or the grid's no-data value. The
// no-data value must be distinguishable from every legitimate data value;
// this is a caller-guaranteed precondition, not something the grid verifies.
//
// A Grid is owned by exactly one Env and, like it, is not safe for
// concurrent use.
type Grid[T chunk.Number] struct {
	env *Env
	gid uint64

	nRows, nCols         int
	chunkRows, chunkCols int // cell extent of a full chunk
	nChunkRows           int
	nChunkCols           int

	ndv T

	xll, yll *apd.Decimal
	cellSize *apd.Decimal

	sparse bool // promotion target is Sparse instead of Dense

	// chunks maps every chunk of the grid; a nil value marks an evicted
	// chunk that must be reloaded from the blob store before use.
	chunks map[chunk.ID]chunk.Chunk[T]

	// swap holds the packed IDs of resident chunks worth evicting.
	// Uniform chunks stay out: dropping them saves next to nothing.
	swap *roaring64.Bitmap

	stats  *Stats[T]
	closed bool
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func newGrid[T chunk.Number](ctx context.Context, env *Env, nRows, nCols int, noData T, o gridOptions) (*Grid[T], error) {
	if nRows <= 0 || nCols <= 0 {
		return nil, fmt.Errorf("rastergo: non-positive grid extent %dx%d", nRows, nCols)
	}
	if o.chunkRows <= 0 || o.chunkCols <= 0 {
		return nil, fmt.Errorf("rastergo: non-positive chunk extent %dx%d", o.chunkRows, o.chunkCols)
	}
	if o.cellSize == nil || o.cellSize.Sign() <= 0 {
		return nil, fmt.Errorf("rastergo: cell size must be positive")
	}

	g := &Grid[T]{
		env:       env,
		nRows:     nRows,
		nCols:     nCols,
		chunkRows: min(o.chunkRows, nRows),
		chunkCols: min(o.chunkCols, nCols),
		ndv:       noData,
		xll:       o.xll,
		yll:       o.yll,
		cellSize:  o.cellSize,
		sparse:    o.sparse,
		swap:      roaring64.New(),
	}
	g.nChunkRows = ceilDiv(nRows, g.chunkRows)
	g.nChunkCols = ceilDiv(nCols, g.chunkCols)
	g.stats = newStats(g)

	// Every chunk starts Uniform at the no-data value; reserve their
	// footprint up front so even grid creation respects the budget.
	need := int64(g.nChunkRows*g.nChunkCols) * chunk.NewUniform(1, 1, noData).Footprint()
	if err := env.acquireChunkMemory(ctx, need); err != nil {
		return nil, err
	}

	g.chunks = make(map[chunk.ID]chunk.Chunk[T], g.nChunkRows*g.nChunkCols)
	for cr := range g.nChunkRows {
		for cc := range g.nChunkCols {
			id := chunk.ID{Row: cr, Col: cc}
			rows, cols := g.chunkDims(id)
			g.chunks[id] = chunk.NewUniform(rows, cols, noData)
		}
	}

	g.gid = env.register(g)
	return g, nil
}

// NewGrid creates a grid with every cell at the no-data value.
func NewGrid[T chunk.Number](ctx context.Context, env *Env, nRows, nCols int, noData T, opts ...GridOption) (*Grid[T], error) {
	o := defaultGridOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newGrid(ctx, env, nRows, nCols, noData, o)
}

// NewGridFrom creates a grid as a rectangular sub-window of src, copying
// cells [startRow,endRow]x[startCol,endCol] (inclusive). Chunk extent, cell
// size and promotion target are inherited from src unless overridden; the
// origin shifts so copied cells keep their coordinates. Statistics are kept
// stale during the copy and recomputed on first read.
func NewGridFrom[T chunk.Number](ctx context.Context, env *Env, src *Grid[T], startRow, startCol, endRow, endCol int, opts ...GridOption) (*Grid[T], error) {
	if !src.InGrid(startRow, startCol) || !src.InGrid(endRow, endCol) || startRow > endRow || startCol > endCol {
		return nil, fmt.Errorf("rastergo: sub-window [%d,%d]x[%d,%d] outside grid %dx%d",
			startRow, endRow, startCol, endCol, src.nRows, src.nCols)
	}

	o := gridOptions{
		chunkRows: src.chunkRows,
		chunkCols: src.chunkCols,
		cellSize:  src.cellSize,
		sparse:    src.sparse,
	}

	c := coordContext()
	o.xll = new(apd.Decimal)
	if _, err := c.Mul(o.xll, apd.New(int64(startCol), 0), src.cellSize); err != nil {
		return nil, arithErr("sub-window origin", err)
	}
	if _, err := c.Add(o.xll, o.xll, src.xll); err != nil {
		return nil, arithErr("sub-window origin", err)
	}
	o.yll = new(apd.Decimal)
	if _, err := c.Mul(o.yll, apd.New(int64(startRow), 0), src.cellSize); err != nil {
		return nil, arithErr("sub-window origin", err)
	}
	if _, err := c.Add(o.yll, o.yll, src.yll); err != nil {
		return nil, arithErr("sub-window origin", err)
	}

	for _, opt := range opts {
		opt(&o)
	}

	g, err := newGrid(ctx, env, endRow-startRow+1, endCol-startCol+1, src.ndv, o)
	if err != nil {
		return nil, err
	}

	g.stats.SetMode(StatsStale)
	for row := startRow; row <= endRow; row++ {
		for col := startCol; col <= endCol; col++ {
			v, err := src.GetCell(ctx, row, col)
			if err != nil {
				_ = g.Close(ctx)
				return nil, err
			}
			if v == src.ndv {
				continue
			}
			if err := g.initCell(ctx, row-startRow, col-startCol, v); err != nil {
				_ = g.Close(ctx)
				return nil, err
			}
		}
	}
	g.stats.SetMode(StatsUpdated)
	return g, nil
}

// ID returns the grid's environment-unique identifier.
func (g *Grid[T]) ID() uint64 { return g.gid }

// NRows returns the number of cell rows.
func (g *Grid[T]) NRows() int { return g.nRows }

// NCols returns the number of cell columns.
func (g *Grid[T]) NCols() int { return g.nCols }

// ChunkRows returns the cell-row extent of a full chunk.
func (g *Grid[T]) ChunkRows() int { return g.chunkRows }

// ChunkCols returns the cell-column extent of a full chunk.
func (g *Grid[T]) ChunkCols() int { return g.chunkCols }

// NoData returns the grid's no-data value.
func (g *Grid[T]) NoData() T { return g.ndv }

// CellSize returns the edge length of a cell in the coordinate domain.
func (g *Grid[T]) CellSize() *apd.Decimal { return g.cellSize }

// Origin returns the (x, y) coordinate of the grid's lower-left corner.
func (g *Grid[T]) Origin() (x, y *apd.Decimal) { return g.xll, g.yll }

// Stats returns the grid's aggregate tracker.
func (g *Grid[T]) Stats() *Stats[T] { return g.stats }

// InGrid reports whether (row, col) lies within the grid extent.
func (g *Grid[T]) InGrid(row, col int) bool {
	return row >= 0 && row < g.nRows && col >= 0 && col < g.nCols
}

// CellToChunk maps a cell coordinate to its owning chunk and the chunk-local
// coordinate. It is the exact inverse of ChunkToCell.
func (g *Grid[T]) CellToChunk(row, col int) (chunk.ID, int, int) {
	return chunk.ID{Row: row / g.chunkRows, Col: col / g.chunkCols},
		row % g.chunkRows, col % g.chunkCols
}

// ChunkToCell maps a chunk-local coordinate back to the cell coordinate.
func (g *Grid[T]) ChunkToCell(id chunk.ID, localRow, localCol int) (int, int) {
	return id.Row*g.chunkRows + localRow, id.Col*g.chunkCols + localCol
}

// chunkDims returns the cell extent of the given chunk; chunks on the top
// and right edges may be smaller than the configured chunk extent.
func (g *Grid[T]) chunkDims(id chunk.ID) (rows, cols int) {
	rows = min(g.chunkRows, g.nRows-id.Row*g.chunkRows)
	cols = min(g.chunkCols, g.nCols-id.Col*g.chunkCols)
	return rows, cols
}

func (g *Grid[T]) keyPrefix() string {
	return fmt.Sprintf("grid-%d/", g.gid)
}

func (g *Grid[T]) blobKey(id chunk.ID) string {
	return fmt.Sprintf("grid-%d/chunk-%d-%d", g.gid, id.Row, id.Col)
}

// gridHandle implementation for the Env.

func (g *Grid[T]) gridID() uint64 { return g.gid }

func (g *Grid[T]) swapSet() *roaring64.Bitmap { return g.swap }

func (g *Grid[T]) swapOut(ctx context.Context, id chunk.ID) (int64, error) {
	ch := g.chunks[id]
	if ch == nil || ch.Kind() == chunk.KindUniform {
		return 0, fmt.Errorf("rastergo: chunk %s of grid %d is not swappable", id, g.gid)
	}

	blob, err := chunk.Encode(ch, g.env.compression)
	if err != nil {
		return 0, err
	}
	if err := g.env.swapIO(ctx, len(blob)); err != nil {
		return 0, err
	}
	// A crash after Put and before the drop below is harmless; a crash
	// mid-Put can lose the chunk. The swap store is not transactional.
	if err := g.env.store.Put(ctx, g.blobKey(id), blob); err != nil {
		return 0, err
	}

	g.chunks[id] = nil
	g.swap.Remove(id.Pack())
	return ch.Footprint(), nil
}

// swapIn reloads an evicted chunk from the blob store, reproducing the cell
// values bit-identically.
func (g *Grid[T]) swapIn(ctx context.Context, id chunk.ID) (chunk.Chunk[T], error) {
	data, err := g.env.store.Get(ctx, g.blobKey(id))
	if err != nil {
		cerr := &ErrCorruptChunk{GridID: g.gid, Chunk: id, cause: err}
		g.env.logger.LogSwapIn(ctx, g.gid, id, cerr)
		return nil, cerr
	}

	// Reserve before decoding so the rebuilt chunk never lives outside the
	// budget. The dense footprint bounds every encoding the grid persists
	// for these dimensions; the surplus is returned once the actual
	// encoding is known.
	rows, cols := g.chunkDims(id)
	ceiling := chunk.DenseFootprint[T](rows, cols)
	if err := g.env.acquireChunkMemory(ctx, ceiling, ExcludeChunk(g.gid, id)); err != nil {
		return nil, err
	}

	ch, err := chunk.Decode[T](data)
	if err != nil {
		g.env.releaseChunkMemory(ceiling)
		cerr := &ErrCorruptChunk{GridID: g.gid, Chunk: id, cause: err}
		g.env.logger.LogSwapIn(ctx, g.gid, id, cerr)
		return nil, cerr
	}

	if ch.Rows() != rows || ch.Cols() != cols {
		g.env.releaseChunkMemory(ceiling)
		cerr := &ErrCorruptChunk{GridID: g.gid, Chunk: id, cause: fmt.Errorf(
			"decoded %dx%d, want %dx%d: %w", ch.Rows(), ch.Cols(), rows, cols, chunk.ErrCorrupt)}
		g.env.logger.LogSwapIn(ctx, g.gid, id, cerr)
		return nil, cerr
	}

	switch over := ceiling - ch.Footprint(); {
	case over > 0:
		g.env.releaseChunkMemory(over)
	case over < 0:
		// A foreign blob can carry a sparse map larger than a dense block.
		if err := g.env.acquireChunkMemory(ctx, -over, ExcludeChunk(g.gid, id)); err != nil {
			g.env.releaseChunkMemory(ceiling)
			return nil, err
		}
	}

	g.chunks[id] = ch
	if ch.Kind() != chunk.KindUniform {
		g.swap.Add(id.Pack())
	}
	g.env.logger.LogSwapIn(ctx, g.gid, id, nil)
	return ch, nil
}

func (g *Grid[T]) getChunk(ctx context.Context, id chunk.ID) (chunk.Chunk[T], error) {
	ch, ok := g.chunks[id]
	if !ok {
		return nil, fmt.Errorf("rastergo: chunk %s outside grid %d", id, g.gid)
	}
	if ch == nil {
		return g.swapIn(ctx, id)
	}
	return ch, nil
}

// withChunk runs fn with the chunk resident and pinned. The pin is released
// on every exit path; nested scopes on an already-pinned chunk leave the
// release to the outermost one.
func (g *Grid[T]) withChunk(ctx context.Context, id chunk.ID, fn func(chunk.Chunk[T]) error) error {
	if g.env.pin(g.gid, id) {
		defer g.env.unpin(g.gid, id)
	}
	ch, err := g.getChunk(ctx, id)
	if err != nil {
		return err
	}
	return fn(ch)
}

// promote replaces a Uniform chunk with the grid's promotion target, keeping
// every cell value. The replacement is built in full before the table entry
// is swapped, so no reader can observe a partial conversion.
func (g *Grid[T]) promote(ctx context.Context, id chunk.ID, u *chunk.Uniform[T]) (chunk.Chunk[T], error) {
	var repl chunk.Chunk[T]
	if g.sparse {
		repl = chunk.SparseFromUniform(u)
	} else {
		repl = chunk.DenseFromUniform(u)
	}
	if err := g.env.acquireChunkMemory(ctx, repl.Footprint(), ExcludeChunk(g.gid, id)); err != nil {
		return nil, err
	}

	g.chunks[id] = repl
	g.swap.Add(id.Pack())
	g.env.releaseChunkMemory(u.Footprint())
	return repl, nil
}

// densify replaces a Sparse chunk that has outgrown the dense footprint.
func (g *Grid[T]) densify(ctx context.Context, id chunk.ID, s *chunk.Sparse[T]) error {
	if err := g.env.acquireChunkMemory(ctx, chunk.DenseFootprint[T](s.Rows(), s.Cols()), ExcludeChunk(g.gid, id)); err != nil {
		return err
	}
	g.chunks[id] = chunk.DenseFromSparse(s)
	g.env.releaseChunkMemory(s.Footprint())
	return nil
}

// setInChunk applies a cell write to whatever encoding the chunk currently
// has, promoting or densifying as needed, and returns the previous value.
func (g *Grid[T]) setInChunk(ctx context.Context, id chunk.ID, ch chunk.Chunk[T], localRow, localCol int, v T) (T, error) {
	switch c := ch.(type) {
	case *chunk.Uniform[T]:
		if v == c.Value() {
			return v, nil
		}
		repl, err := g.promote(ctx, id, c)
		if err != nil {
			return g.ndv, err
		}
		if s, ok := repl.(*chunk.Sparse[T]); ok {
			// promote reserved the empty map only; the first entry goes
			// through the same footprint accounting as any other write.
			return g.setInSparse(ctx, id, s, localRow, localCol, v)
		}
		return repl.Set(localRow, localCol, v), nil

	case *chunk.Sparse[T]:
		return g.setInSparse(ctx, id, c, localRow, localCol, v)

	default:
		return ch.Set(localRow, localCol, v), nil
	}
}

// setInSparse applies a write to a sparse chunk, charging footprint growth
// to the memory budget and densifying once the map outgrows a dense block.
// A write the budget cannot cover is rolled back before the error returns.
func (g *Grid[T]) setInSparse(ctx context.Context, id chunk.ID, c *chunk.Sparse[T], localRow, localCol int, v T) (T, error) {
	before := c.Footprint()
	prev := c.Set(localRow, localCol, v)
	switch after := c.Footprint(); {
	case after > before:
		if err := g.env.acquireChunkMemory(ctx, after-before, ExcludeChunk(g.gid, id)); err != nil {
			c.Set(localRow, localCol, prev) // roll back; keeps the budget honest
			return g.ndv, err
		}
		if after > chunk.DenseFootprint[T](c.Rows(), c.Cols()) {
			// The map stopped paying for itself.
			if err := g.densify(ctx, id, c); err != nil {
				c.Set(localRow, localCol, prev)
				g.env.releaseChunkMemory(after - before)
				return g.ndv, err
			}
		}
	case after < before:
		g.env.releaseChunkMemory(before - after)
	}
	return prev, nil
}

// GetCell returns the value at (row, col), or the no-data value when the
// coordinate lies outside the grid extent.
func (g *Grid[T]) GetCell(ctx context.Context, row, col int) (T, error) {
	if !g.InGrid(row, col) {
		return g.ndv, nil
	}
	id, lr, lc := g.CellToChunk(row, col)

	var v T
	err := g.withChunk(ctx, id, func(ch chunk.Chunk[T]) error {
		v = ch.Get(lr, lc)
		return nil
	})
	if err != nil {
		return g.ndv, err
	}
	return v, nil
}

// SetCell writes v at (row, col) and returns the previous value. Writes
// outside the grid extent are no-ops returning the no-data value. The
// statistics tracker observes the mutation unless it is in StatsStale mode.
func (g *Grid[T]) SetCell(ctx context.Context, row, col int, v T) (T, error) {
	if !g.InGrid(row, col) {
		return g.ndv, nil
	}
	id, lr, lc := g.CellToChunk(row, col)

	var prev T
	err := g.withChunk(ctx, id, func(ch chunk.Chunk[T]) error {
		p, err := g.setInChunk(ctx, id, ch, lr, lc, v)
		prev = p
		return err
	})
	if err != nil {
		return g.ndv, err
	}

	if err := g.stats.apply(v, prev); err != nil {
		return prev, err
	}
	return prev, nil
}

// initCell behaves as SetCell but skips statistics bookkeeping; bulk
// construction paths use it for throughput and recompute statistics once at
// the end.
func (g *Grid[T]) initCell(ctx context.Context, row, col int, v T) error {
	id, lr, lc := g.CellToChunk(row, col)
	return g.withChunk(ctx, id, func(ch chunk.Chunk[T]) error {
		_, err := g.setInChunk(ctx, id, ch, lr, lc, v)
		return err
	})
}

// AddToCell adds delta to the cell. A no-data current value acts as zero for
// the addition (the cell ends up holding delta); a no-data delta makes the
// call a no-op. Out-of-extent cells are untouched.
func (g *Grid[T]) AddToCell(ctx context.Context, row, col int, delta T) error {
	if delta == g.ndv || !g.InGrid(row, col) {
		return nil
	}
	current, err := g.GetCell(ctx, row, col)
	if err != nil {
		return err
	}
	if current == g.ndv {
		_, err = g.SetCell(ctx, row, col, delta)
	} else {
		_, err = g.SetCell(ctx, row, col, current+delta)
	}
	return err
}

// Row returns the row index of the cell containing y-coordinate y. The
// result may lie outside the grid extent.
func (g *Grid[T]) Row(y *apd.Decimal) (int, error) {
	return g.coordIndex(y, g.yll, "row")
}

// Col returns the column index of the cell containing x-coordinate x. The
// result may lie outside the grid extent.
func (g *Grid[T]) Col(x *apd.Decimal) (int, error) {
	return g.coordIndex(x, g.xll, "col")
}

func (g *Grid[T]) coordIndex(v, origin *apd.Decimal, op string) (int, error) {
	c := coordContext()
	var d apd.Decimal
	if _, err := c.Sub(&d, v, origin); err != nil {
		return 0, arithErr(op, err)
	}
	if _, err := c.Quo(&d, &d, g.cellSize); err != nil {
		return 0, arithErr(op, err)
	}
	if _, err := c.Floor(&d, &d); err != nil {
		return 0, arithErr(op, err)
	}
	i, err := d.Int64()
	if err != nil {
		return 0, arithErr(op, err)
	}
	return int(i), nil
}

// CellX returns the x-coordinate of the centroid of column col.
func (g *Grid[T]) CellX(col int) (*apd.Decimal, error) {
	return g.centroid(col, g.xll)
}

// CellY returns the y-coordinate of the centroid of row row.
func (g *Grid[T]) CellY(row int) (*apd.Decimal, error) {
	return g.centroid(row, g.yll)
}

func (g *Grid[T]) centroid(i int, origin *apd.Decimal) (*apd.Decimal, error) {
	// origin + (2i+1) * cellSize / 2; dividing by two last keeps it exact.
	c := coordContext()
	d := apd.New(2*int64(i)+1, 0)
	if _, err := c.Mul(d, d, g.cellSize); err != nil {
		return nil, arithErr("centroid", err)
	}
	if _, err := c.Quo(d, d, apd.New(2, 0)); err != nil {
		return nil, arithErr("centroid", err)
	}
	if _, err := c.Add(d, d, origin); err != nil {
		return nil, arithErr("centroid", err)
	}
	return d, nil
}

// GetCellAt returns the value of the cell containing the point (x, y).
func (g *Grid[T]) GetCellAt(ctx context.Context, x, y *apd.Decimal) (T, error) {
	row, col, err := g.pointCell(x, y)
	if err != nil {
		return g.ndv, err
	}
	return g.GetCell(ctx, row, col)
}

// SetCellAt writes v to the cell containing the point (x, y).
func (g *Grid[T]) SetCellAt(ctx context.Context, x, y *apd.Decimal, v T) (T, error) {
	row, col, err := g.pointCell(x, y)
	if err != nil {
		return g.ndv, err
	}
	return g.SetCell(ctx, row, col, v)
}

// AddToCellAt adds delta to the cell containing the point (x, y).
func (g *Grid[T]) AddToCellAt(ctx context.Context, x, y *apd.Decimal, delta T) error {
	row, col, err := g.pointCell(x, y)
	if err != nil {
		return err
	}
	return g.AddToCell(ctx, row, col, delta)
}

func (g *Grid[T]) pointCell(x, y *apd.Decimal) (int, int, error) {
	row, err := g.Row(y)
	if err != nil {
		return 0, 0, err
	}
	col, err := g.Col(x)
	if err != nil {
		return 0, 0, err
	}
	return row, col, nil
}

// forEachChunkID visits every chunk ID in ascending (row, col) order.
func (g *Grid[T]) forEachChunkID(fn func(id chunk.ID) error) error {
	for cr := range g.nChunkRows {
		for cc := range g.nChunkCols {
			if err := fn(chunk.ID{Row: cr, Col: cc}); err != nil {
				return err
			}
		}
	}
	return nil
}

// ForEachCell visits every cell of the grid, reloading evicted chunks as it
// goes. A non-nil error from fn aborts the traversal and is returned.
func (g *Grid[T]) ForEachCell(ctx context.Context, fn func(row, col int, v T) error) error {
	return g.forEachChunkID(func(id chunk.ID) error {
		return g.withChunk(ctx, id, func(ch chunk.Chunk[T]) error {
			rows, cols := g.chunkDims(id)
			for lr := range rows {
				for lc := range cols {
					row, col := g.ChunkToCell(id, lr, lc)
					if err := fn(row, col, ch.Get(lr, lc)); err != nil {
						return err
					}
				}
			}
			return nil
		})
	})
}

// forEachDataValue feeds every data value to fn, skipping all-no-data
// Uniform chunks wholesale. Statistics rescans ride on this.
func (g *Grid[T]) forEachDataValue(ctx context.Context, fn func(v T) error) error {
	return g.forEachChunkID(func(id chunk.ID) error {
		return g.withChunk(ctx, id, func(ch chunk.Chunk[T]) error {
			rows, cols := g.chunkDims(id)
			if u, ok := ch.(*chunk.Uniform[T]); ok {
				if u.Value() == g.ndv {
					return nil
				}
				for range rows * cols {
					if err := fn(u.Value()); err != nil {
						return err
					}
				}
				return nil
			}
			for lr := range rows {
				for lc := range cols {
					if v := ch.Get(lr, lc); v != g.ndv {
						if err := fn(v); err != nil {
							return err
						}
					}
				}
			}
			return nil
		})
	})
}

// EqualValues reports whether both grids have the same extents and every
// cell is either no-data in both or holds the same value in both. Each
// grid's own no-data value is used for its side of the comparison; the
// comparison is only meaningful if neither sentinel collides with a data
// value, which callers must guarantee.
func (g *Grid[T]) EqualValues(ctx context.Context, other *Grid[T]) (bool, error) {
	if g.nRows != other.nRows || g.nCols != other.nCols {
		return false, nil
	}

	errDiffer := errors.New("differ")
	err := g.ForEachCell(ctx, func(row, col int, v T) error {
		ov, err := other.GetCell(ctx, row, col)
		if err != nil {
			return err
		}
		if v == g.ndv && ov == other.ndv {
			return nil
		}
		if v != ov {
			return errDiffer
		}
		return nil
	})
	if errors.Is(err, errDiffer) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close deregisters the grid, returns its resident footprint to the budget
// and deletes its swapped blobs. The grid must not be used afterwards.
func (g *Grid[T]) Close(ctx context.Context) error {
	if g.closed {
		return nil
	}
	g.closed = true

	for _, ch := range g.chunks {
		if ch != nil {
			g.env.releaseChunkMemory(ch.Footprint())
		}
	}
	g.chunks = nil
	g.swap.Clear()
	g.env.deregister(g.gid)

	names, err := g.env.store.List(ctx, g.keyPrefix())
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil
		}
		return err
	}
	for _, name := range names {
		if derr := g.env.store.Delete(ctx, name); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

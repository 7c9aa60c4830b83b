package rastergo

import (
	"context"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rastergo/blobstore"
	"github.com/hupe1980/rastergo/chunk"
)

const testNoData = float64(-9999)

func newTestEnv(opts ...EnvOption) *Env {
	return NewEnv(blobstore.NewMemoryStore(), opts...)
}

func dec(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestNewGridStartsUniformNoData(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 4, 4, testNoData, WithChunkSize(2, 2))
	require.NoError(t, err)
	defer g.Close(ctx)

	for row := range 4 {
		for col := range 4 {
			v, err := g.GetCell(ctx, row, col)
			require.NoError(t, err)
			assert.Equal(t, testNoData, v)
		}
	}
	for id, ch := range g.chunks {
		assert.Equal(t, chunk.KindUniform, ch.Kind(), "chunk %s", id)
	}
	assert.True(t, g.swap.IsEmpty())
}

func TestSetCellPromotesToDense(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 4, 4, testNoData, WithChunkSize(2, 2))
	require.NoError(t, err)
	defer g.Close(ctx)

	prev, err := g.SetCell(ctx, 0, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, testNoData, prev)

	id := chunk.ID{Row: 0, Col: 0}
	assert.Equal(t, chunk.KindDense, g.chunks[id].Kind())
	assert.True(t, g.swap.Contains(id.Pack()))

	// Sibling cells in the promoted chunk keep the old uniform value.
	v, err := g.GetCell(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, testNoData, v)

	// Untouched chunks stay uniform.
	assert.Equal(t, chunk.KindUniform, g.chunks[chunk.ID{Row: 1, Col: 1}].Kind())
}

func TestSetCellSameValueKeepsUniform(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 4, 4, testNoData, WithChunkSize(2, 2))
	require.NoError(t, err)
	defer g.Close(ctx)

	_, err = g.SetCell(ctx, 0, 0, testNoData)
	require.NoError(t, err)
	assert.Equal(t, chunk.KindUniform, g.chunks[chunk.ID{Row: 0, Col: 0}].Kind())
}

func TestSparsePromotionAndDensify(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid[int64](ctx, env, 4, 4, -1, WithChunkSize(4, 4), WithSparseChunks())
	require.NoError(t, err)
	defer g.Close(ctx)

	id := chunk.ID{Row: 0, Col: 0}

	_, err = g.SetCell(ctx, 0, 0, 10)
	require.NoError(t, err)
	require.Equal(t, chunk.KindSparse, g.chunks[id].Kind())

	// Fill cells until the map outweighs a dense array; the chunk must
	// convert without losing a value.
	cells := []CellID{{0, 1}, {0, 2}, {0, 3}, {1, 0}, {1, 1}, {1, 2}, {1, 3}, {2, 0}}
	for i, c := range cells {
		_, err = g.SetCell(ctx, c.Row, c.Col, int64(20+i))
		require.NoError(t, err)
	}
	assert.Equal(t, chunk.KindDense, g.chunks[id].Kind())

	v, err := g.GetCell(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
	for i, c := range cells {
		v, err := g.GetCell(ctx, c.Row, c.Col)
		require.NoError(t, err)
		assert.Equal(t, int64(20+i), v)
	}
	v, err = g.GetCell(ctx, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
}

func TestOutOfRangeAccessIsNotAnError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 3, 3, testNoData)
	require.NoError(t, err)
	defer g.Close(ctx)

	v, err := g.GetCell(ctx, -1, 0)
	require.NoError(t, err)
	assert.Equal(t, testNoData, v)

	prev, err := g.SetCell(ctx, 3, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, testNoData, prev)

	require.NoError(t, g.AddToCell(ctx, 0, 99, 5))

	n, err := g.Stats().N(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddToCell(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 2, 2, testNoData)
	require.NoError(t, err)
	defer g.Close(ctx)

	// Adding to a no-data cell seeds it with the delta.
	require.NoError(t, g.AddToCell(ctx, 0, 0, 5))
	v, err := g.GetCell(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(5), v)

	require.NoError(t, g.AddToCell(ctx, 0, 0, 3))
	v, err = g.GetCell(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(8), v)

	// A no-data delta is a no-op.
	require.NoError(t, g.AddToCell(ctx, 0, 0, testNoData))
	v, err = g.GetCell(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(8), v)
}

func TestEdgeChunksAreSmaller(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 5, 7, testNoData, WithChunkSize(2, 3))
	require.NoError(t, err)
	defer g.Close(ctx)

	assert.Equal(t, 3, g.nChunkRows)
	assert.Equal(t, 3, g.nChunkCols)

	rows, cols := g.chunkDims(chunk.ID{Row: 2, Col: 2})
	assert.Equal(t, 1, rows)
	assert.Equal(t, 1, cols)

	// Cells in the partial edge chunks work like any other.
	_, err = g.SetCell(ctx, 4, 6, 1.5)
	require.NoError(t, err)
	v, err := g.GetCell(ctx, 4, 6)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
}

func TestCellChunkMappingRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 10, 10, testNoData, WithChunkSize(3, 4))
	require.NoError(t, err)
	defer g.Close(ctx)

	for row := range 10 {
		for col := range 10 {
			id, lr, lc := g.CellToChunk(row, col)
			r, c := g.ChunkToCell(id, lr, lc)
			assert.Equal(t, row, r)
			assert.Equal(t, col, c)
		}
	}
}

func TestCoordinateMapping(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 4, 4, testNoData,
		WithCellSize(dec(t, "0.5")),
		WithOrigin(dec(t, "10"), dec(t, "20")),
	)
	require.NoError(t, err)
	defer g.Close(ctx)

	col, err := g.Col(dec(t, "10.6"))
	require.NoError(t, err)
	assert.Equal(t, 1, col)

	// Just left of the origin maps to a negative (out-of-extent) index.
	col, err = g.Col(dec(t, "9.9"))
	require.NoError(t, err)
	assert.Equal(t, -1, col)

	row, err := g.Row(dec(t, "21.0"))
	require.NoError(t, err)
	assert.Equal(t, 2, row)

	x, err := g.CellX(0)
	require.NoError(t, err)
	assert.Zero(t, x.Cmp(dec(t, "10.25")))

	y, err := g.CellY(2)
	require.NoError(t, err)
	assert.Zero(t, y.Cmp(dec(t, "21.25")))
}

func TestCellAtAccessors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 4, 4, testNoData, WithCellSize(dec(t, "2")))
	require.NoError(t, err)
	defer g.Close(ctx)

	// (5, 3) lies in col 2, row 1.
	_, err = g.SetCellAt(ctx, dec(t, "5"), dec(t, "3"), 7)
	require.NoError(t, err)

	v, err := g.GetCell(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, float64(7), v)

	v, err = g.GetCellAt(ctx, dec(t, "5.9"), dec(t, "3.9"))
	require.NoError(t, err)
	assert.Equal(t, float64(7), v)

	require.NoError(t, g.AddToCellAt(ctx, dec(t, "5"), dec(t, "3"), 1))
	v, err = g.GetCell(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, float64(8), v)
}

func TestForEachCellVisitsEverything(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 3, 5, testNoData, WithChunkSize(2, 2))
	require.NoError(t, err)
	defer g.Close(ctx)

	_, err = g.SetCell(ctx, 1, 3, 42)
	require.NoError(t, err)

	seen := map[CellID]float64{}
	err = g.ForEachCell(ctx, func(row, col int, v float64) error {
		seen[CellID{Row: row, Col: col}] = v
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, seen, 15)
	assert.Equal(t, float64(42), seen[CellID{Row: 1, Col: 3}])
	assert.Equal(t, testNoData, seen[CellID{Row: 0, Col: 0}])
}

func TestEqualValues(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	// Same values under different chunk layouts still compare equal.
	a, err := NewGrid(ctx, env, 4, 4, testNoData, WithChunkSize(2, 2))
	require.NoError(t, err)
	defer a.Close(ctx)
	b, err := NewGrid[float64](ctx, env, 4, 4, -1, WithChunkSize(3, 3))
	require.NoError(t, err)
	defer b.Close(ctx)

	for _, c := range []CellID{{0, 0}, {1, 2}, {3, 3}} {
		_, err = a.SetCell(ctx, c.Row, c.Col, float64(c.Row*10+c.Col))
		require.NoError(t, err)
		_, err = b.SetCell(ctx, c.Row, c.Col, float64(c.Row*10+c.Col))
		require.NoError(t, err)
	}

	eq, err := a.EqualValues(ctx, b)
	require.NoError(t, err)
	assert.True(t, eq)

	_, err = b.SetCell(ctx, 3, 3, 99)
	require.NoError(t, err)
	eq, err = a.EqualValues(ctx, b)
	require.NoError(t, err)
	assert.False(t, eq)

	c, err := NewGrid(ctx, env, 4, 5, testNoData)
	require.NoError(t, err)
	defer c.Close(ctx)
	eq, err = a.EqualValues(ctx, c)
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestNewGridFromSubWindow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	src, err := NewGrid(ctx, env, 4, 4, testNoData,
		WithChunkSize(2, 2),
		WithCellSize(dec(t, "2")),
		WithOrigin(dec(t, "100"), dec(t, "200")),
	)
	require.NoError(t, err)
	defer src.Close(ctx)

	for row := range 4 {
		for col := range 4 {
			_, err = src.SetCell(ctx, row, col, float64(row*10+col))
			require.NoError(t, err)
		}
	}

	sub, err := NewGridFrom(ctx, env, src, 1, 1, 2, 3)
	require.NoError(t, err)
	defer sub.Close(ctx)

	assert.Equal(t, 2, sub.NRows())
	assert.Equal(t, 3, sub.NCols())

	for row := range 2 {
		for col := range 3 {
			v, err := sub.GetCell(ctx, row, col)
			require.NoError(t, err)
			assert.Equal(t, float64((row+1)*10+col+1), v)
		}
	}

	// Copied cells keep their coordinates: origin shifts by the window
	// offset times the cell size.
	x, y := sub.Origin()
	assert.Zero(t, x.Cmp(dec(t, "102")))
	assert.Zero(t, y.Cmp(dec(t, "202")))

	// Statistics come back correct after the stale bulk load.
	n, err := sub.Stats().N(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	mx, err := sub.Stats().Max(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(23), mx)

	_, err = NewGridFrom(ctx, env, src, 2, 2, 1, 1)
	assert.Error(t, err)
}

func TestCloseReleasesMemoryAndBlobs(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	env := NewEnv(store)

	g, err := NewGrid(ctx, env, 4, 4, testNoData, WithChunkSize(2, 2))
	require.NoError(t, err)

	_, err = g.SetCell(ctx, 0, 0, 5)
	require.NoError(t, err)
	freed, err := g.swapOut(ctx, chunk.ID{Row: 0, Col: 0})
	require.NoError(t, err)
	env.releaseChunkMemory(freed)
	require.Equal(t, 1, store.Len())

	require.NoError(t, g.Close(ctx))
	assert.Zero(t, env.MemoryUsage())
	assert.Zero(t, store.Len())

	// Close is idempotent.
	require.NoError(t, g.Close(ctx))
}

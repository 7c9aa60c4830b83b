package rastergo

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRaster = `ncols 3
nrows 3
xllcorner 0.0
yllcorner 0.0
cellsize 1.0
NODATA_value -9999
1 2 3
4 -9999 6
7 8 9
`

func TestImportASCII(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGridFromASCII(ctx, env, strings.NewReader(testRaster), testNoData, WithChunkSize(2, 2))
	require.NoError(t, err)
	defer g.Close(ctx)

	require.Equal(t, 3, g.NRows())
	require.Equal(t, 3, g.NCols())

	// The first file row is the top of the raster, so it lands at the
	// highest row index.
	v, err := g.GetCell(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)
	v, err = g.GetCell(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(7), v)
	v, err = g.GetCell(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, float64(9), v)

	// The file's no-data token maps to the grid's no-data value.
	v, err = g.GetCell(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, testNoData, v)

	n, err := g.Stats().N(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	sum, err := g.Stats().Sum(ctx)
	require.NoError(t, err)
	i, err := sum.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(40), i)
	mx, err := g.Stats().Max(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(9), mx)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGridFromASCII(ctx, env, strings.NewReader(testRaster), testNoData, WithChunkSize(2, 2))
	require.NoError(t, err)
	defer g.Close(ctx)

	var sb strings.Builder
	require.NoError(t, g.WriteASCII(ctx, &sb))

	g2, err := NewGridFromASCII(ctx, env, strings.NewReader(sb.String()), testNoData)
	require.NoError(t, err)
	defer g2.Close(ctx)

	eq, err := g.EqualValues(ctx, g2)
	require.NoError(t, err)
	assert.True(t, eq)
}

func TestImportASCIITruncated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	in := `ncols 2
nrows 2
cellsize 1
1 2 3
`
	_, err := NewGridFromASCII(ctx, env, strings.NewReader(in), testNoData)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")

	// The aborted import must not leak its reservation.
	assert.Zero(t, env.MemoryUsage())
}

func TestImportASCIIBadValue(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	in := `ncols 2
nrows 1
cellsize 1
1 oops
`
	_, err := NewGridFromASCII(ctx, env, strings.NewReader(in), testNoData)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
	assert.Zero(t, env.MemoryUsage())
}

func TestImportASCIIIntegerGrid(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	in := `ncols 2
nrows 1
cellsize 1
NODATA_value -9999
7.0 -9999
`
	g, err := NewGridFromASCII[int32](ctx, env, strings.NewReader(in), -9999)
	require.NoError(t, err)
	defer g.Close(ctx)

	v, err := g.GetCell(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
	v, err = g.GetCell(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(-9999), v)
}

package rastergo

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsSingleCellLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 4, 4, testNoData, WithChunkSize(2, 2))
	require.NoError(t, err)
	defer g.Close(ctx)

	s := g.Stats()

	n, err := s.N(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = g.SetCell(ctx, 0, 0, 5)
	require.NoError(t, err)

	n, err = s.N(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sum, err := s.Sum(ctx)
	require.NoError(t, err)
	i, err := sum.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(5), i)

	mn, err := s.Min(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(5), mn)
	mx, err := s.Max(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(5), mx)

	// Writing the no-data value empties the grid again; the extrema report
	// no-data rather than a stale 5.
	_, err = g.SetCell(ctx, 0, 0, testNoData)
	require.NoError(t, err)

	n, err = s.N(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	mn, err = s.Min(ctx)
	require.NoError(t, err)
	assert.Equal(t, testNoData, mn)
	mx, err = s.Max(ctx)
	require.NoError(t, err)
	assert.Equal(t, testNoData, mx)
}

func TestStatsExtremumInvalidationRescans(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 4, 4, testNoData, WithChunkSize(2, 2))
	require.NoError(t, err)
	defer g.Close(ctx)

	_, err = g.SetCell(ctx, 0, 0, 5)
	require.NoError(t, err)
	_, err = g.SetCell(ctx, 0, 1, 3)
	require.NoError(t, err)

	// Overwriting the only cell holding the minimum forces the next Min
	// read to rediscover it by rescanning.
	_, err = g.SetCell(ctx, 0, 1, 7)
	require.NoError(t, err)

	mn, err := g.Stats().Min(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(5), mn)
	nMin, err := g.Stats().NMin(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), nMin)

	mx, err := g.Stats().Max(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(7), mx)
}

func TestStatsExtremumTies(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 4, 4, testNoData, WithChunkSize(2, 2))
	require.NoError(t, err)
	defer g.Close(ctx)

	for _, c := range []CellID{{0, 0}, {1, 1}, {3, 3}} {
		_, err = g.SetCell(ctx, c.Row, c.Col, 2)
		require.NoError(t, err)
	}

	nMin, err := g.Stats().NMin(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), nMin)
	nMax, err := g.Stats().NMax(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), nMax)

	// Clearing one of the tied cells only decrements the count; no rescan
	// is needed while ties remain.
	_, err = g.SetCell(ctx, 1, 1, testNoData)
	require.NoError(t, err)

	nMin, err = g.Stats().NMin(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), nMin)
}

func TestStatsStaleMode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	g, err := NewGrid(ctx, env, 4, 4, testNoData, WithChunkSize(2, 2))
	require.NoError(t, err)
	defer g.Close(ctx)

	s := g.Stats()
	s.SetMode(StatsStale)
	assert.Equal(t, StatsStale, s.Mode())

	_, err = g.SetCell(ctx, 0, 0, 10)
	require.NoError(t, err)
	_, err = g.SetCell(ctx, 3, 3, 20)
	require.NoError(t, err)

	// Reads rescan on demand even while the mode stays stale.
	n, err := s.N(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	mx, err := s.Max(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(20), mx)

	// Another stale-mode mutation dirties the aggregates again.
	_, err = g.SetCell(ctx, 3, 3, testNoData)
	require.NoError(t, err)
	n, err = s.N(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Switching back to updated keeps them correct incrementally.
	s.SetMode(StatsUpdated)
	_, err = g.SetCell(ctx, 1, 1, 30)
	require.NoError(t, err)
	n, err = s.N(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStatsRandomizedAgainstBruteForce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	const noData = int64(-1)
	g, err := NewGrid(ctx, env, 10, 10, noData, WithChunkSize(4, 4))
	require.NoError(t, err)
	defer g.Close(ctx)

	rng := rand.New(rand.NewSource(42))
	for range 500 {
		row, col := rng.Intn(10), rng.Intn(10)
		v := noData
		if rng.Intn(5) != 0 {
			v = int64(rng.Intn(9) + 1)
		}
		_, err = g.SetCell(ctx, row, col, v)
		require.NoError(t, err)
	}

	var (
		wantN, wantSum int64
		wantMin        = int64(1<<62 - 1)
		wantMax        = int64(-(1 << 62))
		wantNMin       int64
		wantNMax       int64
	)
	err = g.ForEachCell(ctx, func(_, _ int, v int64) error {
		if v == noData {
			return nil
		}
		wantN++
		wantSum += v
		switch {
		case v < wantMin:
			wantMin, wantNMin = v, 1
		case v == wantMin:
			wantNMin++
		}
		switch {
		case v > wantMax:
			wantMax, wantNMax = v, 1
		case v == wantMax:
			wantNMax++
		}
		return nil
	})
	require.NoError(t, err)
	require.Positive(t, wantN)

	s := g.Stats()
	n, err := s.N(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantN, n)

	sum, err := s.Sum(ctx)
	require.NoError(t, err)
	i, err := sum.Int64()
	require.NoError(t, err)
	assert.Equal(t, wantSum, i)

	mn, err := s.Min(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantMin, mn)
	nMin, err := s.NMin(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantNMin, nMin)

	mx, err := s.Max(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantMax, mx)
	nMax, err := s.NMax(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantNMax, nMax)
}

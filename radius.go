package rastergo

import (
	"context"

	"github.com/cockroachdb/apd/v3"

	"github.com/hupe1980/rastergo/distance"
)

// radiusDelta returns how many cell rows/cols a radius can span, padded by
// one so centroid offsets near the bounding-box edge are never cut off. The
// exact decimal distance check filters the surplus afterwards.
func (g *Grid[T]) radiusDelta(radius *apd.Decimal) (int, error) {
	c := coordContext()
	var d apd.Decimal
	if _, err := c.Quo(&d, radius, g.cellSize); err != nil {
		return 0, arithErr("radius", err)
	}
	if _, err := c.Ceil(&d, &d); err != nil {
		return 0, arithErr("radius", err)
	}
	n, err := d.Int64()
	if err != nil {
		return 0, arithErr("radius", err)
	}
	return int(n) + 1, nil
}

// forEachCellWithin visits every in-extent cell whose centroid lies within
// radius of (x, y), in (row, col) order, passing the rounded centroid
// distance. Distances round to dp decimal places with rnd, which also
// decides borderline membership.
func (g *Grid[T]) forEachCellWithin(x, y, radius *apd.Decimal, dp uint32, rnd apd.Rounder, fn func(id CellID, d *apd.Decimal) error) error {
	if radius.Sign() < 0 {
		return nil
	}

	row, err := g.Row(y)
	if err != nil {
		return err
	}
	col, err := g.Col(x)
	if err != nil {
		return err
	}
	delta, err := g.radiusDelta(radius)
	if err != nil {
		return err
	}

	for r := max(row-delta, 0); r <= min(row+delta, g.nRows-1); r++ {
		cy, err := g.CellY(r)
		if err != nil {
			return err
		}
		for c := max(col-delta, 0); c <= min(col+delta, g.nCols-1); c++ {
			cx, err := g.CellX(c)
			if err != nil {
				return err
			}
			d, err := distance.Euclidean(x, y, cx, cy, dp, rnd)
			if err != nil {
				return arithErr("distance", err)
			}
			if d.Cmp(radius) > 0 {
				continue
			}
			if err := fn(CellID{Row: r, Col: c}, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// CellIDsWithinRadius returns, in (row, col) order, every in-extent cell
// whose centroid lies within radius of the point (x, y). Membership is
// decided on the centroid distance rounded to dp decimal places with rnd.
func (g *Grid[T]) CellIDsWithinRadius(x, y, radius *apd.Decimal, dp uint32, rnd apd.Rounder) ([]CellID, error) {
	var ids []CellID
	err := g.forEachCellWithin(x, y, radius, dp, rnd, func(id CellID, _ *apd.Decimal) error {
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ValuesWithinRadius returns the values of the data cells whose centroid
// lies within radius of the point (x, y), in (row, col) order of the cells.
// No-data cells inside the radius contribute nothing.
func (g *Grid[T]) ValuesWithinRadius(ctx context.Context, x, y, radius *apd.Decimal, dp uint32, rnd apd.Rounder) ([]T, error) {
	var values []T
	err := g.forEachCellWithin(x, y, radius, dp, rnd, func(id CellID, _ *apd.Decimal) error {
		v, err := g.GetCell(ctx, id.Row, id.Col)
		if err != nil {
			return err
		}
		if v != g.ndv {
			values = append(values, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

package rastergo

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/cockroachdb/apd/v3"

	"github.com/hupe1980/rastergo/distance"
)

// NearestResult is the outcome of a nearest-data-cell query: every data cell
// tied at the minimum rounded centroid distance, in (row, col) order. A grid
// with no data cells at all yields an empty result with a nil Distance.
type NearestResult struct {
	Cells    []CellID
	Distance *apd.Decimal
}

func (g *Grid[T]) cellBit(row, col int) uint64 {
	return uint64(row)*uint64(g.nCols) + uint64(col)
}

// NearestDataCells finds the data cells nearest to the point (x, y). If the
// cell containing the point holds data, that single cell is returned with
// distance zero. Otherwise the search walks outward in rings of
// 8-connectivity until a ring yields data, then sweeps every cell within the
// best ring distance so that off-ring cells with nearer centroids are not
// missed. Distances are rounded to dp decimal places with rnd; ties at the
// minimum are all kept.
func (g *Grid[T]) NearestDataCells(ctx context.Context, x, y *apd.Decimal, dp uint32, rnd apd.Rounder) (NearestResult, error) {
	row, err := g.Row(y)
	if err != nil {
		return NearestResult{}, err
	}
	col, err := g.Col(x)
	if err != nil {
		return NearestResult{}, err
	}

	// Points outside the extent start from the nearest edge cell.
	seedRow := min(max(row, 0), g.nRows-1)
	seedCol := min(max(col, 0), g.nCols-1)

	if seedRow == row && seedCol == col {
		v, err := g.GetCell(ctx, row, col)
		if err != nil {
			return NearestResult{}, err
		}
		if v != g.ndv {
			zero := new(apd.Decimal)
			if _, err := coordContext().Quantize(zero, zero, -int32(dp)); err != nil {
				return NearestResult{}, arithErr("distance", err)
			}
			return NearestResult{Cells: []CellID{{Row: row, Col: col}}, Distance: zero}, nil
		}
	}

	ringDist, found, err := g.nearestRingDistance(ctx, x, y, seedRow, seedCol, dp, rnd)
	if err != nil {
		return NearestResult{}, err
	}
	if !found {
		return NearestResult{}, nil
	}

	// The first ring with data bounds the answer but need not contain all of
	// it: a cell on a later ring can have a nearer centroid. Sweep the exact
	// radius to settle the minimum and collect every tie.
	var (
		best  *apd.Decimal
		cells []CellID
	)
	err = g.forEachCellWithin(x, y, ringDist, dp, rnd, func(id CellID, d *apd.Decimal) error {
		v, err := g.GetCell(ctx, id.Row, id.Col)
		if err != nil {
			return err
		}
		if v == g.ndv {
			return nil
		}
		switch {
		case best == nil || d.Cmp(best) < 0:
			best = d
			cells = append(cells[:0], id)
		case d.Cmp(best) == 0:
			cells = append(cells, id)
		}
		return nil
	})
	if err != nil {
		return NearestResult{}, err
	}
	return NearestResult{Cells: cells, Distance: best}, nil
}

// nearestRingDistance expands 8-connected rings from the seed cell until one
// holds a data cell, and returns the minimum rounded centroid distance found
// on that ring. found is false when the whole grid is no-data.
func (g *Grid[T]) nearestRingDistance(ctx context.Context, x, y *apd.Decimal, seedRow, seedCol int, dp uint32, rnd apd.Rounder) (*apd.Decimal, bool, error) {
	visited := roaring64.New()
	visited.Add(g.cellBit(seedRow, seedCol))
	frontier := []CellID{{Row: seedRow, Col: seedCol}}

	for len(frontier) > 0 {
		var best *apd.Decimal
		for _, id := range frontier {
			v, err := g.GetCell(ctx, id.Row, id.Col)
			if err != nil {
				return nil, false, err
			}
			if v == g.ndv {
				continue
			}
			cx, err := g.CellX(id.Col)
			if err != nil {
				return nil, false, err
			}
			cy, err := g.CellY(id.Row)
			if err != nil {
				return nil, false, err
			}
			d, err := distance.Euclidean(x, y, cx, cy, dp, rnd)
			if err != nil {
				return nil, false, arithErr("distance", err)
			}
			if best == nil || d.Cmp(best) < 0 {
				best = d
			}
		}
		if best != nil {
			return best, true, nil
		}

		var next []CellID
		for _, id := range frontier {
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					r, c := id.Row+dr, id.Col+dc
					if (dr == 0 && dc == 0) || !g.InGrid(r, c) {
						continue
					}
					if visited.CheckedAdd(g.cellBit(r, c)) {
						next = append(next, CellID{Row: r, Col: c})
					}
				}
			}
		}
		frontier = next
	}
	return nil, false, nil
}

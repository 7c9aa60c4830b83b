package rastergo

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"unsafe"

	"github.com/hupe1980/rastergo/ascii"
	"github.com/hupe1980/rastergo/chunk"
)

func parseValue[T chunk.Number](tok string) (T, error) {
	if isFloatValue[T]() {
		f, err := strconv.ParseFloat(tok, int(unsafe.Sizeof(T(0)))*8)
		return T(f), err
	}
	i, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		// Integer rasters in the wild carry tokens like "7.0".
		f, ferr := strconv.ParseFloat(tok, 64)
		if ferr != nil {
			return 0, err
		}
		return T(f), nil
	}
	return T(i), nil
}

func formatValue[T chunk.Number](v T) string {
	if isFloatValue[T]() {
		return strconv.FormatFloat(float64(v), 'g', -1, int(unsafe.Sizeof(v))*8)
	}
	return strconv.FormatInt(int64(v), 10)
}

// NewGridFromASCII imports an Esri ASCII grid raster. The extent, origin and
// cell size come from the file header; chunk extent and promotion target can
// be set through opts. File rows list the top of the raster first and grid
// rows run bottom-up, so the first file row lands at the highest row index.
// Cells carrying the header's no-data token map to the grid's noData value.
// Statistics are kept stale during the load and recomputed on first read.
func NewGridFromASCII[T chunk.Number](ctx context.Context, env *Env, r io.Reader, noData T, opts ...GridOption) (*Grid[T], error) {
	rd, err := ascii.NewReader(r)
	if err != nil {
		return nil, err
	}
	h := rd.Header()

	o := defaultGridOptions()
	o.cellSize = h.CellSize
	o.xll = h.XLL
	o.yll = h.YLL
	for _, opt := range opts {
		opt(&o)
	}

	g, err := newGrid(ctx, env, h.NRows, h.NCols, noData, o)
	if err != nil {
		return nil, err
	}

	g.stats.SetMode(StatsStale)
	for fileRow := range h.NRows {
		row := h.NRows - 1 - fileRow
		for col := range h.NCols {
			tok, err := rd.Next()
			if err != nil {
				if err == io.EOF {
					err = fmt.Errorf("rastergo: raster truncated at file row %d, col %d", fileRow, col)
				}
				_ = g.Close(ctx)
				env.logger.LogImport(ctx, g.gid, h.NRows, h.NCols, err)
				return nil, err
			}
			if tok == h.NoData {
				continue
			}
			v, err := parseValue[T](tok)
			if err != nil {
				err = fmt.Errorf("rastergo: bad value %q at file row %d, col %d: %w", tok, fileRow, col, err)
				_ = g.Close(ctx)
				env.logger.LogImport(ctx, g.gid, h.NRows, h.NCols, err)
				return nil, err
			}
			if err := g.initCell(ctx, row, col, v); err != nil {
				_ = g.Close(ctx)
				env.logger.LogImport(ctx, g.gid, h.NRows, h.NCols, err)
				return nil, err
			}
		}
	}
	g.stats.SetMode(StatsUpdated)

	env.logger.LogImport(ctx, g.gid, h.NRows, h.NCols, nil)
	return g, nil
}

// WriteASCII exports the grid in Esri ASCII grid format, top row first.
// No-data cells are written as the grid's no-data value formatted like any
// other token, and the header declares it as NODATA_value.
func (g *Grid[T]) WriteASCII(ctx context.Context, w io.Writer) error {
	aw, err := ascii.NewWriter(w, ascii.Header{
		NCols:    g.nCols,
		NRows:    g.nRows,
		XLL:      g.xll,
		YLL:      g.yll,
		CellSize: g.cellSize,
		NoData:   formatValue(g.ndv),
	})
	if err != nil {
		return err
	}

	for row := g.nRows - 1; row >= 0; row-- {
		for col := range g.nCols {
			v, err := g.GetCell(ctx, row, col)
			if err != nil {
				return err
			}
			if err := aw.WriteValue(formatValue(v)); err != nil {
				return err
			}
		}
	}
	return aw.Flush()
}

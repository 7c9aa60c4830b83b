package rastergo

import (
	"context"

	"github.com/cockroachdb/apd/v3"

	"github.com/hupe1980/rastergo/chunk"
)

// statsPrecision is the working precision of the aggregate sum. 34 digits
// (IEEE decimal128) holds exact integer sums for any realistic raster.
const statsPrecision = 34

func statsContext() *apd.Context {
	return apd.BaseContext.WithPrecision(statsPrecision)
}

// setDecimal writes v into d exactly. Float cell values convert through
// float64, which is lossless for every Number type.
func setDecimal[T chunk.Number](d *apd.Decimal, v T) error {
	if isFloatValue[T]() {
		_, err := d.SetFloat64(float64(v))
		return err
	}
	d.SetInt64(int64(v))
	return nil
}

func isFloatValue[T chunk.Number]() bool {
	return T(1)/T(2) != T(0)
}

// StatsMode selects how aggregates track mutations.
type StatsMode uint8

const (
	// StatsUpdated maintains aggregates incrementally on every mutation.
	StatsUpdated StatsMode = iota
	// StatsStale only records that a recomputation is needed; the first
	// aggregate read performs a full rescan. Bulk loaders run in this mode.
	StatsStale
)

// Stats tracks the aggregate state of one grid: the number of data cells,
// their exact decimal sum, and the minimum and maximum with the count of
// cells currently at each extremum. No-data cells never contribute.
//
// Every accessor may trigger a full grid rescan (and therefore chunk
// reloads): in StatsStale mode after any mutation, and in StatsUpdated mode
// when the cell holding an extremum was overwritten and the extremum must be
// rediscovered.
type Stats[T chunk.Number] struct {
	g    *Grid[T]
	mode StatsMode

	dirty bool // stale mode: mutated since the last rescan

	n   int64
	sum apd.Decimal

	min      T
	nMin     int64
	minKnown bool

	max      T
	nMax     int64
	maxKnown bool
}

func newStats[T chunk.Number](g *Grid[T]) *Stats[T] {
	return &Stats[T]{g: g}
}

// Mode returns the current tracking mode.
func (s *Stats[T]) Mode() StatsMode { return s.mode }

// SetMode switches the tracking mode. Switching from StatsStale to
// StatsUpdated marks the aggregates for a rescan on the next read; the
// tracker never trusts values it stopped maintaining.
func (s *Stats[T]) SetMode(mode StatsMode) {
	if s.mode == StatsStale && mode == StatsUpdated {
		s.dirty = true
	}
	s.mode = mode
}

// apply folds one cell mutation into the aggregates.
func (s *Stats[T]) apply(newValue, oldValue T) error {
	if s.mode == StatsStale {
		s.dirty = true
		return nil
	}
	if newValue == oldValue {
		return nil
	}

	ndv := s.g.ndv
	c := statsContext()
	var d apd.Decimal

	if oldValue != ndv {
		s.n--
		if err := setDecimal(&d, oldValue); err != nil {
			return arithErr("stats", err)
		}
		if _, err := c.Sub(&s.sum, &s.sum, &d); err != nil {
			return arithErr("stats", err)
		}
		if s.minKnown && oldValue == s.min {
			s.nMin--
			if s.nMin == 0 {
				s.minKnown = false // rediscovered by the next Min read
			}
		}
		if s.maxKnown && oldValue == s.max {
			s.nMax--
			if s.nMax == 0 {
				s.maxKnown = false
			}
		}
	}

	if newValue != ndv {
		s.n++
		if err := setDecimal(&d, newValue); err != nil {
			return arithErr("stats", err)
		}
		if _, err := c.Add(&s.sum, &s.sum, &d); err != nil {
			return arithErr("stats", err)
		}
		s.foldExtrema(newValue)
	}
	return nil
}

// foldExtrema folds one added data value into min/max. Unknown extrema stay
// unknown: the pending rescan will see this value too.
func (s *Stats[T]) foldExtrema(v T) {
	if s.n == 1 {
		// First data value after the grid emptied out.
		s.min, s.nMin, s.minKnown = v, 1, true
		s.max, s.nMax, s.maxKnown = v, 1, true
		return
	}
	if s.minKnown {
		switch {
		case v < s.min:
			s.min, s.nMin = v, 1
		case v == s.min:
			s.nMin++
		}
	}
	if s.maxKnown {
		switch {
		case v > s.max:
			s.max, s.nMax = v, 1
		case v == s.max:
			s.nMax++
		}
	}
}

// refresh rescans the grid if the aggregates cannot be trusted: always after
// a stale-mode mutation, and for extremum reads after an extremum was
// invalidated.
func (s *Stats[T]) refresh(ctx context.Context, needExtrema bool) error {
	stale := s.dirty
	if !stale && needExtrema && s.n > 0 && (!s.minKnown || !s.maxKnown) {
		stale = true
	}
	if !stale {
		return nil
	}
	return s.recompute(ctx)
}

// recompute rebuilds every aggregate with one full pass over the grid.
func (s *Stats[T]) recompute(ctx context.Context) error {
	c := statsContext()

	s.n = 0
	s.sum.SetInt64(0)
	s.minKnown, s.maxKnown = false, false
	s.nMin, s.nMax = 0, 0

	var d apd.Decimal
	err := s.g.forEachDataValue(ctx, func(v T) error {
		s.n++
		if err := setDecimal(&d, v); err != nil {
			return arithErr("stats", err)
		}
		if _, err := c.Add(&s.sum, &s.sum, &d); err != nil {
			return arithErr("stats", err)
		}

		if !s.minKnown || v < s.min {
			s.min, s.nMin, s.minKnown = v, 1, true
		} else if v == s.min {
			s.nMin++
		}
		if !s.maxKnown || v > s.max {
			s.max, s.nMax, s.maxKnown = v, 1, true
		} else if v == s.max {
			s.nMax++
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.dirty = false
	return nil
}

// N returns the number of data (non-no-data) cells.
func (s *Stats[T]) N(ctx context.Context) (int64, error) {
	if err := s.refresh(ctx, false); err != nil {
		return 0, err
	}
	return s.n, nil
}

// Sum returns the exact decimal sum of all data cells.
func (s *Stats[T]) Sum(ctx context.Context) (*apd.Decimal, error) {
	if err := s.refresh(ctx, false); err != nil {
		return nil, err
	}
	out := new(apd.Decimal)
	out.Set(&s.sum)
	return out, nil
}

// Min returns the minimum data value, or the grid's no-data value when the
// grid holds no data cells.
func (s *Stats[T]) Min(ctx context.Context) (T, error) {
	if err := s.refresh(ctx, true); err != nil {
		return s.g.ndv, err
	}
	if s.n == 0 {
		return s.g.ndv, nil
	}
	return s.min, nil
}

// NMin returns the number of cells currently holding the minimum.
func (s *Stats[T]) NMin(ctx context.Context) (int64, error) {
	if err := s.refresh(ctx, true); err != nil {
		return 0, err
	}
	return s.nMin, nil
}

// Max returns the maximum data value, or the grid's no-data value when the
// grid holds no data cells.
func (s *Stats[T]) Max(ctx context.Context) (T, error) {
	if err := s.refresh(ctx, true); err != nil {
		return s.g.ndv, err
	}
	if s.n == 0 {
		return s.g.ndv, nil
	}
	return s.max, nil
}

// NMax returns the number of cells currently holding the maximum.
func (s *Stats[T]) NMax(ctx context.Context) (int64, error) {
	if err := s.refresh(ctx, true); err != nil {
		return 0, err
	}
	return s.nMax, nil
}

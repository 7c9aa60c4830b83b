// Package distance computes Euclidean distances in the arbitrary-precision
// decimal domain grid coordinates live in.
//
// Callers choose the number of decimal places and the rounding mode; both
// are part of the query contract, because nearest-cell ties are defined by
// the rounded distance.
package distance

import (
	"github.com/cockroachdb/apd/v3"
)

// guardDigits is the extra working precision carried through the
// intermediate squares and the square root before the final quantize.
const guardDigits = 16

// Euclidean returns the distance between (x1, y1) and (x2, y2), rounded to
// dp decimal places with the given rounding mode. Overflow or an invalid
// operation in the decimal domain is reported as an error, never swallowed.
func Euclidean(x1, y1, x2, y2 *apd.Decimal, dp uint32, rnd apd.Rounder) (*apd.Decimal, error) {
	c := apd.BaseContext.WithPrecision(dp + guardDigits)
	c.Rounding = rnd

	var dx, dy, sum apd.Decimal
	if _, err := c.Sub(&dx, x1, x2); err != nil {
		return nil, err
	}
	if _, err := c.Sub(&dy, y1, y2); err != nil {
		return nil, err
	}
	if _, err := c.Mul(&dx, &dx, &dx); err != nil {
		return nil, err
	}
	if _, err := c.Mul(&dy, &dy, &dy); err != nil {
		return nil, err
	}
	if _, err := c.Add(&sum, &dx, &dy); err != nil {
		return nil, err
	}

	d := new(apd.Decimal)
	if _, err := c.Sqrt(d, &sum); err != nil {
		return nil, err
	}
	if _, err := c.Quantize(d, d, -int32(dp)); err != nil {
		return nil, err
	}
	return d, nil
}

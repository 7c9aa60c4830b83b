// Package ascii reads and writes the Esri ASCII grid raster text format.
//
// A file starts with a header of key/value lines:
//
//	ncols         4
//	nrows         3
//	xllcorner     0.0
//	yllcorner     0.0
//	cellsize      50.0
//	NODATA_value  -9999
//
// followed by nrows*ncols whitespace-separated numeric tokens in row-major
// order, the first row listed being the TOP row of the raster. Grids index
// rows bottom-up, so bulk loaders write the first file row at the highest
// internal row index.
package ascii

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/cockroachdb/apd/v3"
)

// DefaultNoData is the conventional no-data token used when a header omits
// NODATA_value.
const DefaultNoData = "-9999"

// ErrBadHeader is returned when a header is missing required fields or a
// field fails to parse.
var ErrBadHeader = errors.New("ascii: bad header")

// Header describes the raster that follows it.
type Header struct {
	NCols    int
	NRows    int
	XLL      *apd.Decimal // x of the lower-left corner
	YLL      *apd.Decimal // y of the lower-left corner
	CellSize *apd.Decimal
	NoData   string // raw token; compared textually against data tokens
}

// Reader parses the header eagerly and then yields value tokens one at a
// time in file order (top row first).
type Reader struct {
	s       *bufio.Scanner
	h       Header
	pending string // first data token, consumed while detecting header end
}

// NewReader parses the header of r and returns a Reader positioned at the
// first value token.
func NewReader(r io.Reader) (*Reader, error) {
	s := bufio.NewScanner(r)
	s.Split(bufio.ScanWords)

	rd := &Reader{s: s}
	if err := rd.parseHeader(); err != nil {
		return nil, err
	}
	return rd, nil
}

func (r *Reader) parseHeader() error {
	r.h.NoData = DefaultNoData
	seen := map[string]bool{}
	var center bool // xllcenter/yllcenter instead of corner

	for r.s.Scan() {
		tok := r.s.Text()
		if !unicode.IsLetter(rune(tok[0])) {
			// First numeric token: the header is over.
			r.pending = tok
			break
		}

		key := strings.ToLower(tok)
		if !r.s.Scan() {
			return fmt.Errorf("%w: missing value for %q", ErrBadHeader, key)
		}
		val := r.s.Text()
		seen[key] = true

		var err error
		switch key {
		case "ncols":
			_, err = fmt.Sscanf(val, "%d", &r.h.NCols)
		case "nrows":
			_, err = fmt.Sscanf(val, "%d", &r.h.NRows)
		case "xllcorner", "xllcenter":
			r.h.XLL, _, err = apd.NewFromString(val)
			center = center || key == "xllcenter"
		case "yllcorner", "yllcenter":
			r.h.YLL, _, err = apd.NewFromString(val)
			center = center || key == "yllcenter"
		case "cellsize":
			r.h.CellSize, _, err = apd.NewFromString(val)
		case "nodata_value":
			r.h.NoData = val
		default:
			return fmt.Errorf("%w: unknown field %q", ErrBadHeader, key)
		}
		if err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrBadHeader, key, err)
		}
	}
	if err := r.s.Err(); err != nil {
		return err
	}

	for _, key := range []string{"ncols", "nrows", "cellsize"} {
		if !seen[key] {
			return fmt.Errorf("%w: missing %s", ErrBadHeader, key)
		}
	}
	if r.h.NCols <= 0 || r.h.NRows <= 0 {
		return fmt.Errorf("%w: non-positive extent %dx%d", ErrBadHeader, r.h.NRows, r.h.NCols)
	}
	if r.h.XLL == nil {
		r.h.XLL = apd.New(0, 0)
	}
	if r.h.YLL == nil {
		r.h.YLL = apd.New(0, 0)
	}

	if center {
		// Convert center-of-cell origin to corner convention. Halving by
		// multiplication keeps the exponent tight, so the corner coordinate
		// stays at the scale of the header's own tokens instead of picking
		// up a long tail of zeros from division.
		c := apd.BaseContext.WithPrecision(34)
		half := new(apd.Decimal)
		if _, err := c.Mul(half, r.h.CellSize, apd.New(5, -1)); err != nil {
			return fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
		half.Reduce(half)
		if _, err := c.Sub(r.h.XLL, r.h.XLL, half); err != nil {
			return fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
		if _, err := c.Sub(r.h.YLL, r.h.YLL, half); err != nil {
			return fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
	}
	return nil
}

// Header returns the parsed header.
func (r *Reader) Header() Header { return r.h }

// Next returns the next value token, or io.EOF after the last one.
func (r *Reader) Next() (string, error) {
	if r.pending != "" {
		tok := r.pending
		r.pending = ""
		return tok, nil
	}
	if !r.s.Scan() {
		if err := r.s.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.s.Text(), nil
}

// Writer emits a raster in the same format. Values must be written top row
// first, left to right, NRows*NCols of them.
type Writer struct {
	w     *bufio.Writer
	h     Header
	col   int
	wrote bool
}

// NewWriter writes the header for h and returns a Writer for the values.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\n", h.NCols)
	fmt.Fprintf(bw, "nrows %d\n", h.NRows)
	fmt.Fprintf(bw, "xllcorner %s\n", h.XLL.Text('f'))
	fmt.Fprintf(bw, "yllcorner %s\n", h.YLL.Text('f'))
	fmt.Fprintf(bw, "cellsize %s\n", h.CellSize.Text('f'))
	fmt.Fprintf(bw, "NODATA_value %s\n", h.NoData)
	if err := bw.Flush(); err != nil {
		return nil, err
	}
	return &Writer{w: bw, h: h}, nil
}

// WriteValue appends one value token, breaking lines at row boundaries.
func (w *Writer) WriteValue(token string) error {
	sep := " "
	if w.col == 0 {
		if !w.wrote {
			sep = ""
			w.wrote = true
		} else {
			sep = "\n"
		}
	}
	if _, err := w.w.WriteString(sep + token); err != nil {
		return err
	}
	w.col++
	if w.col == w.h.NCols {
		w.col = 0
	}
	return nil
}

// Flush terminates the last row and flushes buffered output.
func (w *Writer) Flush() error {
	if w.wrote {
		if _, err := w.w.WriteString("\n"); err != nil {
			return err
		}
	}
	return w.w.Flush()
}

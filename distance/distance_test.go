package distance

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestEuclidean(t *testing.T) {
	tests := []struct {
		name           string
		x1, y1, x2, y2 string
		dp             uint32
		want           string
	}{
		{"pythagorean", "0", "0", "3", "4", 2, "5.00"},
		{"zero", "1.5", "2.5", "1.5", "2.5", 3, "0.000"},
		{"unit diagonal", "0", "0", "1", "1", 4, "1.4142"},
		{"negative coords", "-1", "-1", "2", "3", 1, "5.0"},
		{"sub-cell", "0.25", "0.25", "0.75", "0.25", 2, "0.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Euclidean(dec(t, tt.x1), dec(t, tt.y1), dec(t, tt.x2), dec(t, tt.y2), tt.dp, apd.RoundHalfEven)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Text('f'))
		})
	}
}

func TestEuclideanRoundingMode(t *testing.T) {
	// sqrt(2) = 1.41421356... truncates down, rounds half-even up at dp 4.
	x1, y1 := dec(t, "0"), dec(t, "0")
	x2, y2 := dec(t, "1"), dec(t, "1")

	down, err := Euclidean(x1, y1, x2, y2, 3, apd.RoundDown)
	require.NoError(t, err)
	assert.Equal(t, "1.414", down.Text('f'))

	up, err := Euclidean(x1, y1, x2, y2, 3, apd.RoundUp)
	require.NoError(t, err)
	assert.Equal(t, "1.415", up.Text('f'))
}

func TestEuclideanSymmetry(t *testing.T) {
	a, err := Euclidean(dec(t, "1.25"), dec(t, "-7"), dec(t, "42"), dec(t, "0.5"), 6, apd.RoundHalfEven)
	require.NoError(t, err)
	b, err := Euclidean(dec(t, "42"), dec(t, "0.5"), dec(t, "1.25"), dec(t, "-7"), 6, apd.RoundHalfEven)
	require.NoError(t, err)
	assert.Zero(t, a.Cmp(b))
}

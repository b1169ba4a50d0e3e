package curve

import (
	"math"
	"testing"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitPower = Power{K: 1_000_000_000, N: 100}

func TestPowerPriceAt(t *testing.T) {
	tests := []struct {
		name   string
		curve  Power
		supply uint64
		want   uint64
	}{
		{"empty market priced at k", unitPower, 0, 1_000_000_000},
		{"one token", unitPower, 1_000_000, 1_000_000_000},
		{"two tokens", unitPower, 2_000_000, 2_000_000_000},
		{"quadratic", Power{K: 1_000_000_000, N: 200}, 3_000_000, 9_000_000_000},
		{"flat", Power{K: 5, N: 0}, 9_000_000, 5},
		{"three halves", Power{K: 1_000_000_000, N: 150}, 4_000_000, 8_000_000_000},
		{"three halves between squares", Power{K: 1_000_000_000, N: 150}, 2_000_000, 2_828_427_124},
		{"square root", Power{K: 1_000_000_000, N: 50}, 9_000_000, 3_000_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.curve.PriceAt(tt.supply)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPowerPriceOverflow(t *testing.T) {
	_, err := Power{K: math.MaxUint64, N: 100}.PriceAt(2_000_000)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestLinearPriceAt(t *testing.T) {
	l := Linear{Base: 100_000, Slope: 10_000}
	got, err := l.PriceAt(2_500_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(120_000), got)

	got, err = l.PriceAt(999_999)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), got)

	_, err = Linear{Base: math.MaxUint64, Slope: 1}.PriceAt(1_000_000)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestNewValidates(t *testing.T) {
	p, err := New(domain.CurveParams{Shape: domain.CurveShapePower, K: 1, N: 200})
	require.NoError(t, err)
	assert.Equal(t, Power{K: 1, N: 200}, p)

	p, err = New(domain.CurveParams{Shape: domain.CurveShapePower, K: 100_000, N: 150})
	require.NoError(t, err)
	assert.Equal(t, Power{K: 100_000, N: 150}, p)

	p, err = New(domain.CurveParams{Shape: domain.CurveShapeLinear, Base: 3, Slope: 1})
	require.NoError(t, err)
	assert.Equal(t, Linear{Base: 3, Slope: 1}, p)

	bad := []domain.CurveParams{
		{Shape: domain.CurveShapePower, K: 0, N: 100},
		{Shape: domain.CurveShapePower, K: 1, N: 801},
		{Shape: domain.CurveShapePower, K: 1, N: 900},
		{Shape: domain.CurveShapeLinear, Base: 0, Slope: 1},
		{Shape: "sigmoid", K: 1},
	}
	for _, params := range bad {
		_, err := New(params)
		assert.ErrorIs(t, err, domain.ErrInvalidCurve, "%+v", params)
	}
}

func TestDisplayPrice(t *testing.T) {
	assert.Equal(t, "1.5", DisplayPrice(1_500_000_000).String())
	assert.Equal(t, "0.0001", DisplayPrice(100_000).String())
}

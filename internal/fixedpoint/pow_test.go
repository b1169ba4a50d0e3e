package fixedpoint

import (
	"math"
	"testing"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPow(t *testing.T) {
	tests := []struct {
		name string
		base uint64
		n    uint32
		want uint64
	}{
		{"zero exponent", 5_000_000, 0, 1_000_000_000},
		{"identity at one token", 1_000_000, 100, 1_000_000_000},
		{"linear", 2_000_000, 100, 2_000_000_000},
		{"square", 2_000_000, 200, 4_000_000_000},
		{"square of half", 500_000, 200, 250_000_000},
		{"cube", 3_000_000, 300, 27_000_000_000},
		{"fourth power", 2_000_000, 400, 16_000_000_000},
		{"one base unit", 1, 100, 1_000},
		{"precision floor", 1, 200, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Pow(tt.base, tt.n)
			require.NoError(t, err)
			got, err := w.Uint64()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPowFractionalExponent(t *testing.T) {
	tests := []struct {
		base uint64
		n    uint32
		want uint64
	}{
		{4_000_000, 150, 8_000_000_000},
		{2_000_000, 150, 2_828_427_124},
		{1_000_000, 150, 1_000_000_000},
		{250_000, 150, 125_000_000},
		{4_000_000, 50, 2_000_000_000},
		{2_000_000, 50, 1_414_213_562},
		{9_000_000, 50, 3_000_000_000},
		{1, 50, 1_000_000},
		{0, 50, 0},
		{3_000_000, 250, 15_588_457_268},
		{2_000_000, 1, 1_006_955_543},
		{2_000_000, 99, 1_986_184_921},
	}
	for _, tt := range tests {
		w, err := Pow(tt.base, tt.n)
		require.NoError(t, err, "base %d n %d", tt.base, tt.n)
		got, err := w.Uint64()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "base %d n %d", tt.base, tt.n)
	}
}

func TestPowMonotoneInBase(t *testing.T) {
	for _, n := range []uint32{50, 150, 275} {
		prev := FromUint64(0)
		for base := uint64(0); base <= 5_000_000; base += 37_119 {
			w, err := Pow(base, n)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, w.Cmp(prev), 0, "n %d base %d", n, base)
			prev = w
		}
	}
}

func TestPowRejectsLargeExponent(t *testing.T) {
	assert.True(t, ValidExponent(MaxExponent))
	assert.True(t, ValidExponent(150))
	assert.False(t, ValidExponent(MaxExponent+1))

	_, err := Pow(2_000_000, MaxExponent+100)
	assert.ErrorIs(t, err, domain.ErrInvalidCurve)
}

func TestPowOverflow(t *testing.T) {
	_, err := Pow(math.MaxUint64, 400)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestPowLargeBase(t *testing.T) {
	w, err := Pow(math.MaxUint64, 100)
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615000", w.String())

	_, err = Pow(math.MaxUint64, 200)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

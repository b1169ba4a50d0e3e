// Package fixedpoint implements checked integer arithmetic for pricing.
//
// Intermediates live in a 128-bit accumulator. Any step that would leave the
// accumulator range, or narrow to 64 bits when the value does not fit, fails
// with domain.ErrOverflow instead of wrapping.
package fixedpoint

import (
	"math/big"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/holiman/uint256"
)

const (
	// TokenScale is the number of base units in one whole token.
	TokenScale uint64 = 1_000_000
	// TokenDecimals is log10(TokenScale).
	TokenDecimals = 6
	// PriceScale is the fixed-point scale of curve prices.
	PriceScale uint64 = 1_000_000_000
)

const wideBits = 128

// Wide is an unsigned value bounded to 128 bits.
type Wide struct {
	v uint256.Int
}

// FromUint64 widens x.
func FromUint64(x uint64) Wide {
	var w Wide
	w.v.SetUint64(x)
	return w
}

func checked(z *uint256.Int, overflow bool) (Wide, error) {
	if overflow || z.BitLen() > wideBits {
		return Wide{}, domain.ErrOverflow
	}
	return Wide{v: *z}, nil
}

// Add returns w+x.
func (w Wide) Add(x Wide) (Wide, error) {
	var z uint256.Int
	_, overflow := z.AddOverflow(&w.v, &x.v)
	return checked(&z, overflow)
}

// Sub returns w-x, failing on underflow.
func (w Wide) Sub(x Wide) (Wide, error) {
	var z uint256.Int
	_, underflow := z.SubOverflow(&w.v, &x.v)
	return checked(&z, underflow)
}

// Mul returns w*x.
func (w Wide) Mul(x Wide) (Wide, error) {
	var z uint256.Int
	_, overflow := z.MulOverflow(&w.v, &x.v)
	return checked(&z, overflow)
}

// Div returns floor(w/x). A zero divisor is reported as an overflow.
func (w Wide) Div(x Wide) (Wide, error) {
	if x.v.IsZero() {
		return Wide{}, domain.ErrOverflow
	}
	var z uint256.Int
	z.Div(&w.v, &x.v)
	return Wide{v: z}, nil
}

// DivUp returns ceil(w/x).
func (w Wide) DivUp(x Wide) (Wide, error) {
	q, err := w.Div(x)
	if err != nil {
		return Wide{}, err
	}
	var r uint256.Int
	r.Mod(&w.v, &x.v)
	if r.IsZero() {
		return q, nil
	}
	return q.Add(FromUint64(1))
}

// Cmp compares w and x and returns -1, 0 or +1.
func (w Wide) Cmp(x Wide) int { return w.v.Cmp(&x.v) }

// IsZero reports whether w is zero.
func (w Wide) IsZero() bool { return w.v.IsZero() }

// Uint64 narrows w, failing when it does not fit.
func (w Wide) Uint64() (uint64, error) {
	if !w.v.IsUint64() {
		return 0, domain.ErrOverflow
	}
	return w.v.Uint64(), nil
}

// Big returns w as a big.Int.
func (w Wide) Big() *big.Int { return w.v.ToBig() }

func (w Wide) String() string { return w.v.Dec() }

// Add returns a+b.
func Add(a, b uint64) (uint64, error) {
	w, err := FromUint64(a).Add(FromUint64(b))
	if err != nil {
		return 0, err
	}
	return w.Uint64()
}

// Sub returns a-b, failing when b > a.
func Sub(a, b uint64) (uint64, error) {
	w, err := FromUint64(a).Sub(FromUint64(b))
	if err != nil {
		return 0, err
	}
	return w.Uint64()
}

// Mul returns a*b as a wide value. It cannot overflow 128 bits.
func Mul(a, b uint64) Wide {
	w, _ := FromUint64(a).Mul(FromUint64(b))
	return w
}

// MulDiv returns floor(a*b/d).
func MulDiv(a, b, d uint64) (uint64, error) {
	w, err := Mul(a, b).Div(FromUint64(d))
	if err != nil {
		return 0, err
	}
	return w.Uint64()
}

// MulDivUp returns ceil(a*b/d).
func MulDivUp(a, b, d uint64) (uint64, error) {
	w, err := Mul(a, b).DivUp(FromUint64(d))
	if err != nil {
		return 0, err
	}
	return w.Uint64()
}

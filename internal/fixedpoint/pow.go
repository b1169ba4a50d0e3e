package fixedpoint

import (
	"fmt"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/holiman/uint256"
)

// MaxExponent bounds curve exponents; larger powers overflow for any
// supply worth pricing.
const MaxExponent uint32 = 800

const (
	// rootScale is the working scale of the fractional power.
	rootScale uint64 = 1_000_000_000_000_000_000
	// rootBits is the number of binary digits of r/100 that are evaluated.
	rootBits = 24
)

// ValidExponent reports whether Pow supports n.
func ValidExponent(n uint32) bool {
	return n <= MaxExponent
}

// Pow returns (base/TokenScale)^(n/100) scaled by PriceScale.
//
// The whole part n/100 is raised by squaring, dividing by TokenScale after
// every product to keep the accumulator inside 128 bits. The fractional part
// r = n%100 is expanded into binary digits of r/100; digit i selects the
// i-th repeated square root of the base. Every step floors, so the result is
// exact integer arithmetic and non-decreasing in base.
func Pow(base uint64, n uint32) (Wide, error) {
	if !ValidExponent(n) {
		return Wide{}, fmt.Errorf("fixedpoint: pow exponent %d: %w", n, domain.ErrInvalidCurve)
	}

	scale := FromUint64(TokenScale)
	result := FromUint64(PriceScale)
	b := FromUint64(base)

	var err error
	for m := n / 100; m > 0; {
		if m&1 == 1 {
			if result, err = mulScaled(result, b, scale); err != nil {
				return Wide{}, err
			}
		}
		m >>= 1
		// Skip the final squaring; its result would never be read.
		if m > 0 {
			if b, err = mulScaled(b, b, scale); err != nil {
				return Wide{}, err
			}
		}
	}

	if r := n % 100; r != 0 {
		frac := rootPow(base, r)
		var z uint256.Int
		if _, overflow := z.MulOverflow(&result.v, frac); overflow {
			return Wide{}, domain.ErrOverflow
		}
		z.Div(&z, uint256.NewInt(rootScale))
		return checked(&z, false)
	}
	return result, nil
}

// rootPow returns (base/TokenScale)^(r/100) scaled by rootScale, for r < 100.
// Intermediates stay below 2^256: the base is at most 2^64 tokens' worth of
// base units, so every root and product is bounded by base*rootScale^2.
func rootPow(base uint64, r uint32) *uint256.Int {
	one := uint256.NewInt(rootScale)
	root := new(uint256.Int).Mul(uint256.NewInt(base), uint256.NewInt(rootScale/TokenScale))
	acc := new(uint256.Int).Set(one)

	rem := uint64(r)
	for i := 0; i < rootBits; i++ {
		root.Sqrt(root.Mul(root, one))
		rem *= 2
		if rem >= 100 {
			rem -= 100
			acc.Div(acc.Mul(acc, root), one)
		}
		if rem == 0 {
			break
		}
	}
	return acc
}

func mulScaled(a, b, scale Wide) (Wide, error) {
	p, err := a.Mul(b)
	if err != nil {
		return Wide{}, err
	}
	return p.Div(scale)
}

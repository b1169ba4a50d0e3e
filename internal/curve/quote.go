package curve

import (
	"errors"
	"fmt"
	"math"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/fixedpoint"
)

// Steps is the number of cells every quote integrates over.
const Steps = 100

// Cost returns the value charged to issue tokens starting at supply.
//
// The interval [supply, supply+tokens] is cut at supply+floor(i*tokens/Steps)
// for i in 0..Steps. Each cell is charged at the higher of its two endpoint
// prices and rounded up.
func Cost(p Pricer, supply, tokens uint64) (uint64, error) {
	return integrate(p, supply, tokens, true)
}

// Proceeds returns the value paid for redeeming tokens from supply downward.
//
// It uses the same cells as Cost over [supply-tokens, supply], each paid at the
// lower endpoint price and rounded down, so Proceeds(s+t, t) <= Cost(s, t).
func Proceeds(p Pricer, supply, tokens uint64) (uint64, error) {
	if tokens > supply {
		return 0, fmt.Errorf("curve: redeem %d of %d: %w", tokens, supply, domain.ErrInsufficientSupply)
	}
	return integrate(p, supply-tokens, tokens, false)
}

func integrate(p Pricer, low, tokens uint64, issue bool) (uint64, error) {
	if tokens == 0 {
		return 0, nil
	}
	if _, err := fixedpoint.Add(low, tokens); err != nil {
		return 0, err
	}

	scale := fixedpoint.FromUint64(fixedpoint.PriceScale)
	total := fixedpoint.FromUint64(0)
	prevPoint := low
	prevPrice, err := p.PriceAt(low)
	if err != nil {
		return 0, err
	}

	for i := uint64(1); i <= Steps; i++ {
		offset, err := fixedpoint.MulDiv(i, tokens, Steps)
		if err != nil {
			return 0, err
		}
		point := low + offset
		if point == prevPoint {
			continue
		}
		price, err := p.PriceAt(point)
		if err != nil {
			return 0, err
		}

		var cell fixedpoint.Wide
		if issue {
			cell, err = fixedpoint.Mul(point-prevPoint, max(prevPrice, price)).DivUp(scale)
		} else {
			cell, err = fixedpoint.Mul(point-prevPoint, min(prevPrice, price)).Div(scale)
		}
		if err != nil {
			return 0, err
		}
		if total, err = total.Add(cell); err != nil {
			return 0, err
		}
		prevPoint, prevPrice = point, price
	}
	return total.Uint64()
}

// QuoteBuy returns the largest token amount whose Cost from supply does not
// exceed value. Amounts whose cost overflows are treated as unaffordable.
func QuoteBuy(p Pricer, value, supply uint64) (uint64, error) {
	if value == 0 {
		return 0, nil
	}
	lo, hi := uint64(0), math.MaxUint64-supply
	for lo < hi {
		span := hi - lo
		mid := lo + span/2 + span&1
		cost, err := Cost(p, supply, mid)
		switch {
		case err == nil && cost <= value:
			lo = mid
		case err == nil || errors.Is(err, domain.ErrOverflow):
			hi = mid - 1
		default:
			return 0, fmt.Errorf("curve: quote buy: %w", err)
		}
	}
	return lo, nil
}

// QuoteSell returns the value paid for redeeming tokens at supply.
func QuoteSell(p Pricer, tokens, supply uint64) (uint64, error) {
	out, err := Proceeds(p, supply, tokens)
	if err != nil {
		return 0, fmt.Errorf("curve: quote sell: %w", err)
	}
	return out, nil
}

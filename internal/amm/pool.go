// Package amm prices swaps between the two outcome tokens of a market with a
// constant-product pool.
package amm

import (
	"fmt"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/fixedpoint"
	"github.com/shopspring/decimal"
)

// Initialize returns the starting pool state. Both reserves must be positive.
func Initialize(reserveA, reserveB uint64) (domain.PoolState, error) {
	if reserveA == 0 || reserveB == 0 {
		return domain.PoolState{}, fmt.Errorf("amm: initialize %d/%d: %w", reserveA, reserveB, domain.ErrInvalidAmount)
	}
	k := fixedpoint.Mul(reserveA, reserveB)
	return domain.PoolState{
		ReserveA: reserveA,
		ReserveB: reserveB,
		K:        decimal.NewFromBigInt(k.Big(), 0),
	}, nil
}

// QuoteSwap returns floor(reserveOut*amountIn / (reserveIn+amountIn)).
//
// The result is always strictly below reserveOut. A zero amountIn quotes
// zero.
func QuoteSwap(amountIn, reserveIn, reserveOut uint64) (uint64, error) {
	if amountIn == 0 {
		return 0, nil
	}
	denom, err := fixedpoint.Add(reserveIn, amountIn)
	if err != nil {
		return 0, fmt.Errorf("amm: quote reserve_in+amount_in: %w", err)
	}
	out, err := fixedpoint.MulDiv(reserveOut, amountIn, denom)
	if err != nil {
		return 0, fmt.Errorf("amm: quote: %w", err)
	}
	return out, nil
}

// Swap quotes amountIn of side in against the opposite reserve and returns the
// updated pool with the amount paid out.
func Swap(pool domain.PoolState, in domain.Side, amountIn, minOut uint64) (domain.PoolState, uint64, error) {
	if !in.Valid() {
		return pool, 0, fmt.Errorf("amm: swap: %w", domain.ErrInvalidSide)
	}
	reserveIn, reserveOut := pool.Reserve(in), pool.Reserve(in.Other())

	out, err := QuoteSwap(amountIn, reserveIn, reserveOut)
	if err != nil {
		return pool, 0, err
	}
	if out < minOut {
		return pool, 0, fmt.Errorf("amm: swap out %d below minimum %d: %w", out, minOut, domain.ErrSlippageExceeded)
	}

	newIn, err := fixedpoint.Add(reserveIn, amountIn)
	if err != nil {
		return pool, 0, fmt.Errorf("amm: swap reserve in: %w", err)
	}
	newOut, err := fixedpoint.Sub(reserveOut, out)
	if err != nil {
		return pool, 0, fmt.Errorf("amm: swap reserve out: %w", err)
	}

	next := pool
	switch in {
	case domain.SideA:
		next.ReserveA, next.ReserveB = newIn, newOut
	case domain.SideB:
		next.ReserveB, next.ReserveA = newIn, newOut
	}
	return next, out, nil
}

// SpotPrice returns the marginal price of side in units of the other side,
// i.e. reserveOther/reserveSide, for display.
func SpotPrice(pool domain.PoolState, side domain.Side) decimal.Decimal {
	r := pool.Reserve(side)
	if r == 0 {
		return decimal.Zero
	}
	other := decimal.NewFromUint64(pool.Reserve(side.Other()))
	return other.DivRound(decimal.NewFromUint64(r), 6)
}

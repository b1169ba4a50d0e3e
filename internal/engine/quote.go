package engine

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/sportsxchange/internal/amm"
	"github.com/alanyoungcy/sportsxchange/internal/curve"
	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/shopspring/decimal"
)

// Quotes read a committed snapshot without taking the market lock, so the
// executed amount may differ; callers protect themselves with minimums.

// QuoteSwap returns the amount of the other side paid for amountIn of in.
func (e *Engine) QuoteSwap(ctx context.Context, marketID string, in domain.Side, amountIn uint64) (uint64, error) {
	m, err := e.quoteMarket(ctx, marketID, domain.MarketKindPool)
	if err != nil {
		return 0, err
	}
	if !in.Valid() {
		return 0, fmt.Errorf("engine: quote swap: %w", domain.ErrInvalidSide)
	}
	out, err := amm.QuoteSwap(amountIn, m.Pool.Reserve(in), m.Pool.Reserve(in.Other()))
	if err != nil {
		return 0, fmt.Errorf("engine: quote swap on %s: %w", marketID, err)
	}
	return out, nil
}

// QuoteBuy returns the tokens of side issued for value.
func (e *Engine) QuoteBuy(ctx context.Context, marketID string, side domain.Side, value uint64) (uint64, error) {
	m, pricer, err := e.curveMarket(ctx, marketID, side)
	if err != nil {
		return 0, err
	}
	tokens, err := curve.QuoteBuy(pricer, value, m.Supply[side.Index()])
	if err != nil {
		return 0, fmt.Errorf("engine: quote buy on %s: %w", marketID, err)
	}
	return tokens, nil
}

// QuoteSell returns the value paid for redeeming tokens of side.
func (e *Engine) QuoteSell(ctx context.Context, marketID string, side domain.Side, tokens uint64) (uint64, error) {
	m, pricer, err := e.curveMarket(ctx, marketID, side)
	if err != nil {
		return 0, err
	}
	value, err := curve.QuoteSell(pricer, tokens, m.Supply[side.Index()])
	if err != nil {
		return 0, fmt.Errorf("engine: quote sell on %s: %w", marketID, err)
	}
	if value > m.PoolValue {
		return 0, fmt.Errorf("engine: quote sell on %s: %w", marketID, domain.ErrInsufficientPoolValue)
	}
	return value, nil
}

// Price returns the marginal price of side in display units: value units per
// whole token for curve markets, units of the other side for pool markets.
func (e *Engine) Price(ctx context.Context, marketID string, side domain.Side) (decimal.Decimal, error) {
	if !side.Valid() {
		return decimal.Zero, fmt.Errorf("engine: price: %w", domain.ErrInvalidSide)
	}
	m, err := e.reader.GetByID(ctx, marketID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("engine: price %s: %w", marketID, err)
	}
	if m.Kind == domain.MarketKindPool {
		return amm.SpotPrice(m.Pool, side), nil
	}
	pricer, err := curve.New(m.Curve)
	if err != nil {
		return decimal.Zero, err
	}
	p, err := pricer.PriceAt(m.Supply[side.Index()])
	if err != nil {
		return decimal.Zero, fmt.Errorf("engine: price %s: %w", marketID, err)
	}
	return curve.DisplayPrice(p), nil
}

func (e *Engine) quoteMarket(ctx context.Context, marketID string, kind domain.MarketKind) (domain.Market, error) {
	m, err := e.reader.GetByID(ctx, marketID)
	if err != nil {
		return m, fmt.Errorf("engine: quote %s: %w", marketID, err)
	}
	if m.Kind != kind {
		return m, fmt.Errorf("engine: quote %s: %w", marketID, domain.ErrWrongMarketKind)
	}
	return m, nil
}

func (e *Engine) curveMarket(ctx context.Context, marketID string, side domain.Side) (domain.Market, curve.Pricer, error) {
	if !side.Valid() {
		return domain.Market{}, nil, fmt.Errorf("engine: quote: %w", domain.ErrInvalidSide)
	}
	m, err := e.quoteMarket(ctx, marketID, domain.MarketKindCurve)
	if err != nil {
		return m, nil, err
	}
	pricer, err := curve.New(m.Curve)
	if err != nil {
		return m, nil, err
	}
	return m, pricer, nil
}

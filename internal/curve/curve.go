// Package curve prices issuance and redemption of outcome tokens along a
// bonding curve.
package curve

import (
	"fmt"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/fixedpoint"
	"github.com/shopspring/decimal"
)

// Pricer returns the instantaneous price, scaled by fixedpoint.PriceScale,
// at a given outstanding supply.
type Pricer interface {
	PriceAt(supply uint64) (uint64, error)
}

// Power prices k * (supply/TokenScale)^(n/100).
type Power struct {
	K uint64
	N uint32
}

// PriceAt implements Pricer. An empty market is priced at K.
func (p Power) PriceAt(supply uint64) (uint64, error) {
	if supply == 0 {
		return p.K, nil
	}
	factor, err := fixedpoint.Pow(supply, p.N)
	if err != nil {
		return 0, err
	}
	w, err := fixedpoint.FromUint64(p.K).Mul(factor)
	if err != nil {
		return 0, err
	}
	if w, err = w.Div(fixedpoint.FromUint64(fixedpoint.PriceScale)); err != nil {
		return 0, err
	}
	return w.Uint64()
}

// Linear prices base + slope*floor(supply/TokenScale).
type Linear struct {
	Base  uint64
	Slope uint64
}

// PriceAt implements Pricer.
func (l Linear) PriceAt(supply uint64) (uint64, error) {
	step := fixedpoint.Mul(l.Slope, supply/fixedpoint.TokenScale)
	w, err := step.Add(fixedpoint.FromUint64(l.Base))
	if err != nil {
		return 0, err
	}
	return w.Uint64()
}

// New validates params and returns the matching Pricer.
func New(params domain.CurveParams) (Pricer, error) {
	if err := Validate(params); err != nil {
		return nil, err
	}
	if params.Shape == domain.CurveShapeLinear {
		return Linear{Base: params.Base, Slope: params.Slope}, nil
	}
	return Power{K: params.K, N: params.N}, nil
}

// Validate rejects curves that price tokens at zero or use an exponent Pow
// cannot evaluate.
func Validate(params domain.CurveParams) error {
	switch params.Shape {
	case domain.CurveShapePower:
		if params.K == 0 {
			return fmt.Errorf("curve: power k must be positive: %w", domain.ErrInvalidCurve)
		}
		if !fixedpoint.ValidExponent(params.N) {
			return fmt.Errorf("curve: exponent %d exceeds %d: %w",
				params.N, fixedpoint.MaxExponent, domain.ErrInvalidCurve)
		}
	case domain.CurveShapeLinear:
		if params.Base == 0 {
			return fmt.Errorf("curve: linear base price must be positive: %w", domain.ErrInvalidCurve)
		}
	default:
		return fmt.Errorf("curve: unknown shape %q: %w", params.Shape, domain.ErrInvalidCurve)
	}
	return nil
}

// DisplayPrice converts a scaled price to value units per whole token. Both
// assets carry six decimals, so this is the price divided by PriceScale.
func DisplayPrice(price uint64) decimal.Decimal {
	return decimal.NewFromUint64(price).Shift(-9)
}

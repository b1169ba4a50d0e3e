package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/sportsxchange/internal/amm"
	"github.com/alanyoungcy/sportsxchange/internal/curve"
	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/fixedpoint"
	"github.com/alanyoungcy/sportsxchange/internal/lifecycle"
)

// SwapParams swaps AmountIn of side In for the other side of a pool market.
type SwapParams struct {
	Trader   string
	MarketID string
	In       domain.Side
	AmountIn uint64
	MinOut   uint64
}

// Swap trades one outcome token for the other through the pool.
func (e *Engine) Swap(ctx context.Context, p SwapParams) (domain.TradeEvent, error) {
	if p.AmountIn == 0 {
		return domain.TradeEvent{}, fmt.Errorf("engine: swap: %w", domain.ErrInvalidAmount)
	}
	var out domain.TradeEvent
	err := e.withMarket(ctx, p.MarketID, func(ctx context.Context, tx domain.Tx, c *commit) error {
		m, err := loadTradable(ctx, tx, p.MarketID, domain.MarketKindPool)
		if err != nil {
			return err
		}
		pool, amountOut, err := amm.Swap(m.Pool, p.In, p.AmountIn, p.MinOut)
		if err != nil {
			return err
		}

		ledger := tx.Ledger()
		if err := ledger.Transfer(ctx, m.TokenID(p.In), p.Trader, m.PoolVault, p.AmountIn); err != nil {
			return err
		}
		if err := ledger.Transfer(ctx, m.TokenID(p.In.Other()), m.PoolVault, p.Trader, amountOut); err != nil {
			return err
		}

		m.Pool = pool
		m.UpdatedAt = e.now()
		if err := tx.Markets().Update(ctx, m); err != nil {
			return err
		}
		out = e.tradeEvent(m, p.Trader, domain.TradeActionSwap, p.In, p.AmountIn, amountOut)
		return c.trade(ctx, tx, out)
	})
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("engine: swap on %s: %w", p.MarketID, err)
	}

	e.logger.DebugContext(ctx, "swap executed",
		slog.String("market_id", p.MarketID),
		slog.String("trader", p.Trader),
		slog.String("side_in", p.In.String()),
		slog.Uint64("amount_in", p.AmountIn),
		slog.Uint64("amount_out", out.AmountOut),
	)
	return out, nil
}

// BuyParams buys tokens of Side on a curve market with ValueIn of the value
// asset.
type BuyParams struct {
	Trader       string
	MarketID     string
	Side         domain.Side
	ValueIn      uint64
	MinTokensOut uint64
}

// Buy issues outcome tokens priced along the market's bonding curve.
func (e *Engine) Buy(ctx context.Context, p BuyParams) (domain.TradeEvent, error) {
	if p.ValueIn == 0 {
		return domain.TradeEvent{}, fmt.Errorf("engine: buy: %w", domain.ErrInvalidAmount)
	}
	var out domain.TradeEvent
	err := e.withMarket(ctx, p.MarketID, func(ctx context.Context, tx domain.Tx, c *commit) error {
		m, err := loadTradable(ctx, tx, p.MarketID, domain.MarketKindCurve)
		if err != nil {
			return err
		}
		if !p.Side.Valid() {
			return domain.ErrInvalidSide
		}
		pricer, err := curve.New(m.Curve)
		if err != nil {
			return err
		}
		i := p.Side.Index()
		tokens, err := curve.QuoteBuy(pricer, p.ValueIn, m.Supply[i])
		if err != nil {
			return err
		}
		if tokens < p.MinTokensOut {
			return fmt.Errorf("tokens out %d below minimum %d: %w", tokens, p.MinTokensOut, domain.ErrSlippageExceeded)
		}
		if tokens == 0 {
			return fmt.Errorf("value %d buys no tokens: %w", p.ValueIn, domain.ErrInvalidAmount)
		}
		if m.Supply[i], err = fixedpoint.Add(m.Supply[i], tokens); err != nil {
			return err
		}
		if m.PoolValue, err = fixedpoint.Add(m.PoolValue, p.ValueIn); err != nil {
			return err
		}

		ledger := tx.Ledger()
		if err := ledger.Transfer(ctx, m.ValueAsset, p.Trader, m.Vault, p.ValueIn); err != nil {
			return err
		}
		if err := ledger.Mint(ctx, m.TokenID(p.Side), p.Trader, tokens, m.Address); err != nil {
			return err
		}

		m.UpdatedAt = e.now()
		if err := tx.Markets().Update(ctx, m); err != nil {
			return err
		}
		out = e.tradeEvent(m, p.Trader, domain.TradeActionBuy, p.Side, p.ValueIn, tokens)
		return c.trade(ctx, tx, out)
	})
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("engine: buy on %s: %w", p.MarketID, err)
	}
	return out, nil
}

// SellParams redeems TokensIn of Side on a curve market for value.
type SellParams struct {
	Trader      string
	MarketID    string
	Side        domain.Side
	TokensIn    uint64
	MinValueOut uint64
}

// Sell burns outcome tokens and pays the seller from the vault.
func (e *Engine) Sell(ctx context.Context, p SellParams) (domain.TradeEvent, error) {
	if p.TokensIn == 0 {
		return domain.TradeEvent{}, fmt.Errorf("engine: sell: %w", domain.ErrInvalidAmount)
	}
	var out domain.TradeEvent
	err := e.withMarket(ctx, p.MarketID, func(ctx context.Context, tx domain.Tx, c *commit) error {
		m, err := loadTradable(ctx, tx, p.MarketID, domain.MarketKindCurve)
		if err != nil {
			return err
		}
		if !p.Side.Valid() {
			return domain.ErrInvalidSide
		}
		i := p.Side.Index()
		if p.TokensIn > m.Supply[i] {
			return fmt.Errorf("sell %d of supply %d: %w", p.TokensIn, m.Supply[i], domain.ErrInsufficientSupply)
		}
		pricer, err := curve.New(m.Curve)
		if err != nil {
			return err
		}
		value, err := curve.QuoteSell(pricer, p.TokensIn, m.Supply[i])
		if err != nil {
			return err
		}
		if value < p.MinValueOut {
			return fmt.Errorf("value out %d below minimum %d: %w", value, p.MinValueOut, domain.ErrSlippageExceeded)
		}
		if value > m.PoolValue {
			return fmt.Errorf("value out %d exceeds pool value %d: %w", value, m.PoolValue, domain.ErrInsufficientPoolValue)
		}
		m.Supply[i] -= p.TokensIn
		m.PoolValue -= value

		ledger := tx.Ledger()
		if err := ledger.Burn(ctx, m.TokenID(p.Side), p.Trader, p.TokensIn, p.Trader); err != nil {
			return err
		}
		if value > 0 {
			if err := ledger.Transfer(ctx, m.ValueAsset, m.Vault, p.Trader, value); err != nil {
				return err
			}
		}

		m.UpdatedAt = e.now()
		if err := tx.Markets().Update(ctx, m); err != nil {
			return err
		}
		out = e.tradeEvent(m, p.Trader, domain.TradeActionSell, p.Side, p.TokensIn, value)
		return c.trade(ctx, tx, out)
	})
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("engine: sell on %s: %w", p.MarketID, err)
	}
	return out, nil
}

func loadTradable(ctx context.Context, tx domain.Tx, marketID string, kind domain.MarketKind) (domain.Market, error) {
	m, err := tx.Markets().Get(ctx, marketID)
	if err != nil {
		return m, err
	}
	if m.Kind != kind {
		return m, fmt.Errorf("%s market: %w", m.Kind, domain.ErrWrongMarketKind)
	}
	return m, lifecycle.CheckTradable(m)
}

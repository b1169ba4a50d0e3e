package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/lifecycle"
	"github.com/alanyoungcy/sportsxchange/internal/settlement"
)

// Halt closes trading on a market.
func (e *Engine) Halt(ctx context.Context, caller, marketID string) (domain.Market, error) {
	var out domain.Market
	err := e.withMarket(ctx, marketID, func(ctx context.Context, tx domain.Tx, c *commit) error {
		m, err := tx.Markets().Get(ctx, marketID)
		if err != nil {
			return err
		}
		m, ev, err := lifecycle.Halt(m, caller, e.now())
		if err != nil {
			return err
		}
		if err := tx.Markets().Update(ctx, m); err != nil {
			return err
		}
		out = m
		return c.lifecycle(ctx, tx, e.stamp(ev))
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("engine: halt %s: %w", marketID, err)
	}
	e.logger.InfoContext(ctx, "market halted", slog.String("market_id", marketID))
	return out, nil
}

// Resolve records the winning side of a halted market.
func (e *Engine) Resolve(ctx context.Context, caller, marketID string, winner domain.Side) (domain.Market, error) {
	var out domain.Market
	err := e.withMarket(ctx, marketID, func(ctx context.Context, tx domain.Tx, c *commit) error {
		m, err := tx.Markets().Get(ctx, marketID)
		if err != nil {
			return err
		}
		m, ev, err := lifecycle.Resolve(m, caller, winner, e.now())
		if err != nil {
			return err
		}
		if err := tx.Markets().Update(ctx, m); err != nil {
			return err
		}
		out = m
		return c.lifecycle(ctx, tx, e.stamp(ev))
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("engine: resolve %s: %w", marketID, err)
	}
	e.logger.InfoContext(ctx, "market resolved",
		slog.String("market_id", marketID),
		slog.String("winner", winner.String()),
		slog.Uint64("pool_value", out.PoolValue),
	)
	return out, nil
}

// Claim redeems the holder's entire winning balance for its share of the
// pool value. The tokens are burned before the payout is transferred, so a
// second claim finds nothing to redeem.
func (e *Engine) Claim(ctx context.Context, holder, marketID string) (domain.TradeEvent, error) {
	var out domain.TradeEvent
	err := e.withMarket(ctx, marketID, func(ctx context.Context, tx domain.Tx, c *commit) error {
		m, err := tx.Markets().Get(ctx, marketID)
		if err != nil {
			return err
		}
		winner, err := lifecycle.WinningSide(m)
		if err != nil {
			return err
		}

		ledger := tx.Ledger()
		token := m.TokenID(winner)
		balance, err := ledger.BalanceOf(ctx, token, holder)
		if err != nil {
			return err
		}
		next, _, payout, err := settlement.Claim(m, balance)
		if err != nil {
			return err
		}

		if err := ledger.Burn(ctx, token, holder, balance, holder); err != nil {
			return err
		}
		if payout > 0 {
			if err := ledger.Transfer(ctx, m.ValueAsset, m.Vault, holder, payout); err != nil {
				return err
			}
		}

		next.UpdatedAt = e.now()
		if err := tx.Markets().Update(ctx, next); err != nil {
			return err
		}
		out = e.tradeEvent(next, holder, domain.TradeActionClaim, winner, balance, payout)
		return c.trade(ctx, tx, out)
	})
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("engine: claim on %s: %w", marketID, err)
	}
	e.logger.InfoContext(ctx, "winnings claimed",
		slog.String("market_id", marketID),
		slog.String("holder", holder),
		slog.Uint64("burned", out.AmountIn),
		slog.Uint64("payout", out.AmountOut),
	)
	return out, nil
}

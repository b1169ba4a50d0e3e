// Package settlement computes redemption payouts for resolved markets.
package settlement

import (
	"fmt"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/fixedpoint"
	"github.com/alanyoungcy/sportsxchange/internal/lifecycle"
)

// Payout returns floor(balance*poolValue/winningSupply).
func Payout(balance, poolValue, winningSupply uint64) (uint64, error) {
	if balance > winningSupply {
		return 0, fmt.Errorf("settlement: balance %d exceeds winning supply %d: %w", balance, winningSupply, domain.ErrInsufficientSupply)
	}
	out, err := fixedpoint.MulDiv(balance, poolValue, winningSupply)
	if err != nil {
		return 0, fmt.Errorf("settlement: payout: %w", err)
	}
	return out, nil
}

// Claim redeems balance winning tokens. It returns the market with the
// redeemed tokens removed from the winning supply and the payout removed from
// the pool value, plus the payout itself.
//
// Later claims divide what remains by what is still outstanding, so the final
// claimant collects the rounding remainder. Value held against tokens that are
// never redeemed stays in the vault.
func Claim(m domain.Market, balance uint64) (domain.Market, domain.Side, uint64, error) {
	winner, err := lifecycle.WinningSide(m)
	if err != nil {
		return m, 0, 0, err
	}
	if balance == 0 {
		return m, winner, 0, fmt.Errorf("settlement: claim on %s: %w", m.ID, domain.ErrNoWinningTokens)
	}

	supply := m.Supply[winner.Index()]
	payout, err := Payout(balance, m.PoolValue, supply)
	if err != nil {
		return m, winner, 0, err
	}

	next := m
	if next.Supply[winner.Index()], err = fixedpoint.Sub(supply, balance); err != nil {
		return m, winner, 0, fmt.Errorf("settlement: claim supply: %w", err)
	}
	if next.PoolValue, err = fixedpoint.Sub(m.PoolValue, payout); err != nil {
		return m, winner, 0, fmt.Errorf("settlement: claim pool value: %w", domain.ErrInsufficientPoolValue)
	}
	return next, winner, payout, nil
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alanyoungcy/sportsxchange/internal/amm"
	"github.com/alanyoungcy/sportsxchange/internal/crypto"
	"github.com/alanyoungcy/sportsxchange/internal/curve"
	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/fixedpoint"
	"github.com/alanyoungcy/sportsxchange/internal/lifecycle"
)

var gameIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// CreateMarketParams describes a new market. The caller becomes its
// authority.
type CreateMarketParams struct {
	GameID    string
	SideA     string
	SideB     string
	Kind      domain.MarketKind
	Curve     domain.CurveParams
	KickoffAt *time.Time
}

func (e *Engine) validateCreate(p CreateMarketParams) (CreateMarketParams, error) {
	p.GameID = strings.TrimSpace(p.GameID)
	if len(p.GameID) > domain.MaxGameIDLen || !gameIDPattern.MatchString(p.GameID) {
		return p, fmt.Errorf("engine: game id %q must be 1-%d url-safe characters: %w", p.GameID, domain.MaxGameIDLen, domain.ErrInvalidMarket)
	}
	for _, name := range []*string{&p.SideA, &p.SideB} {
		*name = strings.TrimSpace(e.sanitize.Sanitize(*name))
		if *name == "" || len(*name) > domain.MaxSideNameLen || !utf8.ValidString(*name) {
			return p, fmt.Errorf("engine: side name must be 1-%d bytes: %w", domain.MaxSideNameLen, domain.ErrInvalidMarket)
		}
	}
	switch p.Kind {
	case domain.MarketKindPool:
		p.Curve = domain.CurveParams{}
	case domain.MarketKindCurve:
		if err := curve.Validate(p.Curve); err != nil {
			return p, err
		}
	default:
		return p, fmt.Errorf("engine: unknown market kind %q: %w", p.Kind, domain.ErrInvalidMarket)
	}
	return p, nil
}

// CreateMarket provisions a market, its outcome tokens and its vaults.
func (e *Engine) CreateMarket(ctx context.Context, caller string, p CreateMarketParams) (domain.Market, error) {
	if caller == "" {
		return domain.Market{}, fmt.Errorf("engine: create market: %w", domain.ErrUnauthorized)
	}
	p, err := e.validateCreate(p)
	if err != nil {
		return domain.Market{}, err
	}

	accounts := crypto.DeriveMarketAccounts(p.GameID)
	m, events := lifecycle.Open(domain.Market{
		ID:         p.GameID,
		Address:    accounts.Market,
		SideNames:  [2]string{p.SideA, p.SideB},
		Authority:  caller,
		TokenIDs:   accounts.Tokens,
		ValueAsset: e.cfg.ValueAsset,
		Vault:      accounts.Vault,
		PoolVault:  accounts.PoolVault,
		Kind:       p.Kind,
		Curve:      p.Curve,
		KickoffAt:  p.KickoffAt,
	}, e.now())

	err = e.withMarket(ctx, m.ID, func(ctx context.Context, tx domain.Tx, c *commit) error {
		if err := tx.Markets().Create(ctx, m); err != nil {
			return err
		}
		for _, token := range m.TokenIDs {
			if err := tx.Assets().CreateAsset(ctx, token, m.Address); err != nil {
				return err
			}
		}
		for _, ev := range events {
			if err := c.lifecycle(ctx, tx, e.stamp(ev)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("engine: create market %s: %w", p.GameID, err)
	}

	e.logger.InfoContext(ctx, "market created",
		slog.String("market_id", m.ID),
		slog.String("kind", string(m.Kind)),
		slog.String("authority", caller),
	)
	return m, nil
}

// InitializePoolParams seeds a pool market.
type InitializePoolParams struct {
	MarketID string
	ReserveA uint64
	ReserveB uint64
	// ValueDeposit is moved from the authority into the vault and is what
	// winning tokens redeem against.
	ValueDeposit uint64
}

// InitializePool mints the starting reserves to the pool vault and opens the
// market for trading.
func (e *Engine) InitializePool(ctx context.Context, caller string, p InitializePoolParams) (domain.Market, error) {
	var out domain.Market
	err := e.withMarket(ctx, p.MarketID, func(ctx context.Context, tx domain.Tx, c *commit) error {
		m, err := tx.Markets().Get(ctx, p.MarketID)
		if err != nil {
			return err
		}
		if m.Kind != domain.MarketKindPool {
			return domain.ErrWrongMarketKind
		}
		pool, err := amm.Initialize(p.ReserveA, p.ReserveB)
		if err != nil {
			return err
		}
		m, ev, err := lifecycle.Activate(m, caller, e.now())
		if err != nil {
			return err
		}

		m.Pool = pool
		m.Supply = [2]uint64{p.ReserveA, p.ReserveB}
		m.PoolValue = p.ValueDeposit

		ledger := tx.Ledger()
		for _, side := range domain.Sides {
			if err := ledger.Mint(ctx, m.TokenID(side), m.PoolVault, pool.Reserve(side), m.Address); err != nil {
				return err
			}
		}
		if p.ValueDeposit > 0 {
			if err := ledger.Transfer(ctx, m.ValueAsset, caller, m.Vault, p.ValueDeposit); err != nil {
				return err
			}
		}
		if err := tx.Markets().Update(ctx, m); err != nil {
			return err
		}
		out = m
		return c.lifecycle(ctx, tx, e.stamp(ev))
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("engine: initialize pool %s: %w", p.MarketID, err)
	}

	e.logger.InfoContext(ctx, "pool initialized",
		slog.String("market_id", out.ID),
		slog.Uint64("reserve_a", out.Pool.ReserveA),
		slog.Uint64("reserve_b", out.Pool.ReserveB),
		slog.String("k", out.Pool.K.String()),
	)
	return out, nil
}

// FundUser mints amount of both outcome tokens of a pool market to user.
// Only the authority may fund, and only while trading is open.
func (e *Engine) FundUser(ctx context.Context, caller, marketID, user string, amount uint64) (domain.TradeEvent, error) {
	if amount == 0 || user == "" {
		return domain.TradeEvent{}, fmt.Errorf("engine: fund user: %w", domain.ErrInvalidAmount)
	}
	var out domain.TradeEvent
	err := e.withMarket(ctx, marketID, func(ctx context.Context, tx domain.Tx, c *commit) error {
		m, err := tx.Markets().Get(ctx, marketID)
		if err != nil {
			return err
		}
		if caller != m.Authority {
			return domain.ErrUnauthorized
		}
		if m.Kind != domain.MarketKindPool {
			return domain.ErrWrongMarketKind
		}
		if err := lifecycle.CheckTradable(m); err != nil {
			return err
		}
		for _, side := range domain.Sides {
			i := side.Index()
			if m.Supply[i], err = fixedpoint.Add(m.Supply[i], amount); err != nil {
				return err
			}
			if err := tx.Ledger().Mint(ctx, m.TokenID(side), user, amount, m.Address); err != nil {
				return err
			}
		}
		m.UpdatedAt = e.now()
		if err := tx.Markets().Update(ctx, m); err != nil {
			return err
		}
		out = e.tradeEvent(m, user, domain.TradeActionFund, domain.SideA, 0, amount)
		return c.trade(ctx, tx, out)
	})
	if err != nil {
		return domain.TradeEvent{}, fmt.Errorf("engine: fund %s on %s: %w", user, marketID, err)
	}
	return out, nil
}

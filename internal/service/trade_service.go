package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// TradeService answers history and balance queries.
type TradeService struct {
	trades    domain.TradeStore
	lifecycle domain.LifecycleStore
	balances  domain.BalanceReader
	archive   domain.TradeArchive
}

// TradeServiceOption configures a TradeService.
type TradeServiceOption func(*TradeService)

// WithArchive serves trade listings whose until bound is at or before the
// archive watermark from cold storage.
func WithArchive(a domain.TradeArchive) TradeServiceOption {
	return func(s *TradeService) { s.archive = a }
}

// NewTradeService creates a TradeService.
func NewTradeService(trades domain.TradeStore, lifecycle domain.LifecycleStore, balances domain.BalanceReader, opts ...TradeServiceOption) *TradeService {
	s := &TradeService{trades: trades, lifecycle: lifecycle, balances: balances}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClampPage applies the default page size and caps the limit.
func ClampPage(opts domain.ListOpts) domain.ListOpts {
	if opts.Limit <= 0 {
		opts.Limit = defaultPageSize
	}
	if opts.Limit > maxPageSize {
		opts.Limit = maxPageSize
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}

// MarketTrades returns a market's trades, newest first.
func (s *TradeService) MarketTrades(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.TradeEvent, error) {
	opts = ClampPage(opts)
	archived, err := s.archived(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: market %s: %w", marketID, err)
	}
	if archived {
		trades, err := s.archive.ListArchived(ctx, domain.TradeFilter{MarketID: marketID}, opts)
		if err != nil {
			return nil, fmt.Errorf("trade_service: archived market %s: %w", marketID, err)
		}
		return trades, nil
	}

	trades, err := s.trades.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: market %s: %w", marketID, err)
	}
	return trades, nil
}

// TraderTrades returns an account's trades across markets, newest first.
func (s *TradeService) TraderTrades(ctx context.Context, trader string, opts domain.ListOpts) ([]domain.TradeEvent, error) {
	opts = ClampPage(opts)
	archived, err := s.archived(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: trader %s: %w", trader, err)
	}
	if archived {
		trades, err := s.archive.ListArchived(ctx, domain.TradeFilter{Trader: trader}, opts)
		if err != nil {
			return nil, fmt.Errorf("trade_service: archived trader %s: %w", trader, err)
		}
		return trades, nil
	}

	trades, err := s.trades.ListByTrader(ctx, trader, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: trader %s: %w", trader, err)
	}
	return trades, nil
}

// archived reports whether the requested window ends at or before the
// archive watermark. Open-ended listings always read the primary store.
func (s *TradeService) archived(ctx context.Context, opts domain.ListOpts) (bool, error) {
	if s.archive == nil || opts.Until == nil {
		return false, nil
	}
	mark, err := s.archive.Watermark(ctx)
	if err != nil {
		return false, err
	}
	return !mark.IsZero() && !opts.Until.After(mark), nil
}

// MarketHistory returns a market's lifecycle transitions in order.
func (s *TradeService) MarketHistory(ctx context.Context, marketID string) ([]domain.LifecycleEvent, error) {
	events, err := s.lifecycle.ListByMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("trade_service: history %s: %w", marketID, err)
	}
	return events, nil
}

// Balances returns every non-zero balance of owner.
func (s *TradeService) Balances(ctx context.Context, owner string) (map[string]uint64, error) {
	balances, err := s.balances.Balances(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("trade_service: balances %s: %w", owner, err)
	}
	return balances, nil
}

// BalanceOf returns one balance.
func (s *TradeService) BalanceOf(ctx context.Context, asset, owner string) (uint64, error) {
	n, err := s.balances.BalanceOf(ctx, asset, owner)
	if err != nil {
		return 0, fmt.Errorf("trade_service: balance %s/%s: %w", asset, owner, err)
	}
	return n, nil
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/engine"
	"github.com/alanyoungcy/sportsxchange/internal/service"
)

// TradeEngine is the subset of the engine moving balances.
type TradeEngine interface {
	Swap(ctx context.Context, p engine.SwapParams) (domain.TradeEvent, error)
	Buy(ctx context.Context, p engine.BuyParams) (domain.TradeEvent, error)
	Sell(ctx context.Context, p engine.SellParams) (domain.TradeEvent, error)
	Claim(ctx context.Context, holder, marketID string) (domain.TradeEvent, error)
	Faucet(ctx context.Context, caller, to string, amount uint64) error
	ValueAsset() string
}

// TradeService defines the read side of trading.
type TradeService interface {
	MarketTrades(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.TradeEvent, error)
	TraderTrades(ctx context.Context, trader string, opts domain.ListOpts) ([]domain.TradeEvent, error)
	Balances(ctx context.Context, owner string) (map[string]uint64, error)
}

// TradeHandler serves trading and account endpoints.
type TradeHandler struct {
	engine TradeEngine
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(eng TradeEngine, trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{engine: eng, trades: trades, logger: logger.With(slog.String("handler", "trade"))}
}

type swapRequest struct {
	Side     string `json:"side" validate:"required"`
	AmountIn uint64 `json:"amount_in,string"`
	MinOut   uint64 `json:"min_out,string"`
}

// Swap trades one outcome token for the other on a pool market.
// POST /api/markets/{id}/swap
func (h *TradeHandler) Swap(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req swapRequest
	if !decodeBody(w, r, &req) {
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeDomainError(w, r, h.logger, "swap", err)
		return
	}

	ev, err := h.engine.Swap(r.Context(), engine.SwapParams{
		Trader:   caller,
		MarketID: pathParam(r, "id"),
		In:       side,
		AmountIn: req.AmountIn,
		MinOut:   req.MinOut,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, "swap", err)
		return
	}
	writeJSON(w, http.StatusOK, service.NewTradeMessage(ev))
}

type buyRequest struct {
	Side         string `json:"side" validate:"required"`
	ValueIn      uint64 `json:"value_in,string"`
	MinTokensOut uint64 `json:"min_tokens_out,string"`
}

// Buy issues outcome tokens on a curve market.
// POST /api/markets/{id}/buy
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req buyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeDomainError(w, r, h.logger, "buy", err)
		return
	}

	ev, err := h.engine.Buy(r.Context(), engine.BuyParams{
		Trader:       caller,
		MarketID:     pathParam(r, "id"),
		Side:         side,
		ValueIn:      req.ValueIn,
		MinTokensOut: req.MinTokensOut,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, "buy", err)
		return
	}
	writeJSON(w, http.StatusOK, service.NewTradeMessage(ev))
}

type sellRequest struct {
	Side        string `json:"side" validate:"required"`
	TokensIn    uint64 `json:"tokens_in,string"`
	MinValueOut uint64 `json:"min_value_out,string"`
}

// Sell redeems outcome tokens on a curve market.
// POST /api/markets/{id}/sell
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req sellRequest
	if !decodeBody(w, r, &req) {
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeDomainError(w, r, h.logger, "sell", err)
		return
	}

	ev, err := h.engine.Sell(r.Context(), engine.SellParams{
		Trader:      caller,
		MarketID:    pathParam(r, "id"),
		Side:        side,
		TokensIn:    req.TokensIn,
		MinValueOut: req.MinValueOut,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, "sell", err)
		return
	}
	writeJSON(w, http.StatusOK, service.NewTradeMessage(ev))
}

// Claim pays the caller's share of a resolved market.
// POST /api/markets/{id}/claim
func (h *TradeHandler) Claim(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ev, err := h.engine.Claim(r.Context(), caller, pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "claim", err)
		return
	}
	writeJSON(w, http.StatusOK, service.NewTradeMessage(ev))
}

type faucetRequest struct {
	To     string `json:"to" validate:"required"`
	Amount uint64 `json:"amount,string"`
}

// Faucet mints the value asset. Only the treasury may call it.
// POST /api/faucet
func (h *TradeHandler) Faucet(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req faucetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.engine.Faucet(r.Context(), caller, req.To, req.Amount); err != nil {
		writeDomainError(w, r, h.logger, "faucet", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":  h.engine.ValueAsset(),
		"to":     req.To,
		"amount": displayUnits(req.Amount),
	})
}

type tradesResponse struct {
	Trades []service.TradeMessage `json:"trades"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

func (h *TradeHandler) writeTrades(w http.ResponseWriter, r *http.Request, list func(domain.ListOpts) ([]domain.TradeEvent, error)) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	events, err := list(opts)
	if err != nil {
		writeDomainError(w, r, h.logger, "list trades", err)
		return
	}
	out := make([]service.TradeMessage, 0, len(events))
	for _, ev := range events {
		out = append(out, service.NewTradeMessage(ev))
	}
	writeJSON(w, http.StatusOK, tradesResponse{Trades: out, Limit: opts.Limit, Offset: opts.Offset})
}

// MarketTrades lists a market's trades, newest first.
// GET /api/markets/{id}/trades?limit=50&offset=0&since=...&until=...
func (h *TradeHandler) MarketTrades(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	h.writeTrades(w, r, func(opts domain.ListOpts) ([]domain.TradeEvent, error) {
		return h.trades.MarketTrades(r.Context(), id, opts)
	})
}

// TraderTrades lists an account's trades, newest first.
// GET /api/accounts/{owner}/trades
func (h *TradeHandler) TraderTrades(w http.ResponseWriter, r *http.Request) {
	owner := pathParam(r, "owner")
	h.writeTrades(w, r, func(opts domain.ListOpts) ([]domain.TradeEvent, error) {
		return h.trades.TraderTrades(r.Context(), owner, opts)
	})
}

type balanceView struct {
	Asset   string `json:"asset"`
	Amount  uint64 `json:"amount,string"`
	Display string `json:"display"`
}

// Balances lists an account's non-zero balances sorted by asset.
// GET /api/accounts/{owner}/balances
func (h *TradeHandler) Balances(w http.ResponseWriter, r *http.Request) {
	owner := pathParam(r, "owner")
	balances, err := h.trades.Balances(r.Context(), owner)
	if err != nil {
		writeDomainError(w, r, h.logger, "list balances", err)
		return
	}
	out := make([]balanceView, 0, len(balances))
	for asset, amount := range balances {
		out = append(out, balanceView{Asset: asset, Amount: amount, Display: displayUnits(amount)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	writeJSON(w, http.StatusOK, map[string]any{"owner": owner, "balances": out})
}

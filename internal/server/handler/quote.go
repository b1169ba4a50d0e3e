package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/shopspring/decimal"
)

// QuoteEngine prices trades against committed market state without
// executing them.
type QuoteEngine interface {
	QuoteSwap(ctx context.Context, marketID string, in domain.Side, amountIn uint64) (uint64, error)
	QuoteBuy(ctx context.Context, marketID string, side domain.Side, value uint64) (uint64, error)
	QuoteSell(ctx context.Context, marketID string, side domain.Side, tokens uint64) (uint64, error)
	Price(ctx context.Context, marketID string, side domain.Side) (decimal.Decimal, error)
}

// QuoteHandler serves read-only pricing endpoints.
type QuoteHandler struct {
	engine QuoteEngine
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler.
func NewQuoteHandler(eng QuoteEngine, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{engine: eng, logger: logger.With(slog.String("handler", "quote"))}
}

type quoteResponse struct {
	MarketID  string `json:"market_id"`
	Action    string `json:"action"`
	Side      string `json:"side"`
	AmountIn  uint64 `json:"amount_in,string"`
	AmountOut uint64 `json:"amount_out,string"`
	Display   string `json:"amount_out_display"`
}

// Quote returns what a swap, buy or sell would yield right now.
// GET /api/markets/{id}/quote?action=buy&side=a&amount=1000000
func (h *QuoteHandler) Quote(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	side, err := parseSide(r)
	if err != nil {
		writeDomainError(w, r, h.logger, "quote", err)
		return
	}
	q := r.URL.Query()
	amount, err := strconv.ParseUint(q.Get("amount"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", "amount must be an unsigned integer in base units")
		return
	}

	var out uint64
	action := q.Get("action")
	switch action {
	case "swap":
		out, err = h.engine.QuoteSwap(r.Context(), id, side, amount)
	case "buy":
		out, err = h.engine.QuoteBuy(r.Context(), id, side, amount)
	case "sell":
		out, err = h.engine.QuoteSell(r.Context(), id, side, amount)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "action must be swap, buy or sell")
		return
	}
	if err != nil {
		writeDomainError(w, r, h.logger, "quote", err)
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		MarketID:  id,
		Action:    action,
		Side:      side.String(),
		AmountIn:  amount,
		AmountOut: out,
		Display:   displayUnits(out),
	})
}

// Price returns the marginal price of a side.
// GET /api/markets/{id}/price?side=a
func (h *QuoteHandler) Price(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	side, err := parseSide(r)
	if err != nil {
		writeDomainError(w, r, h.logger, "price", err)
		return
	}
	p, err := h.engine.Price(r.Context(), id, side)
	if err != nil {
		writeDomainError(w, r, h.logger, "price", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"market_id": id,
		"side":      side.String(),
		"price":     p.String(),
	})
}

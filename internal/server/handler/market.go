package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/engine"
	"github.com/alanyoungcy/sportsxchange/internal/service"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	GetByID(ctx context.Context, id string) (domain.Market, error)
	List(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error)
	Count(ctx context.Context) (int64, error)
}

// MarketEngine is the subset of the engine driving market lifecycle.
type MarketEngine interface {
	CreateMarket(ctx context.Context, caller string, p engine.CreateMarketParams) (domain.Market, error)
	InitializePool(ctx context.Context, caller string, p engine.InitializePoolParams) (domain.Market, error)
	FundUser(ctx context.Context, caller, marketID, user string, amount uint64) (domain.TradeEvent, error)
	Halt(ctx context.Context, caller, marketID string) (domain.Market, error)
	Resolve(ctx context.Context, caller, marketID string, winner domain.Side) (domain.Market, error)
}

// HistoryService lists lifecycle transitions.
type HistoryService interface {
	MarketHistory(ctx context.Context, marketID string) ([]domain.LifecycleEvent, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	engine  MarketEngine
	history HistoryService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, eng MarketEngine, history HistoryService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		engine:  eng,
		history: history,
		logger:  logger.With(slog.String("handler", "market")),
	}
}

type listMarketsResponse struct {
	Markets []marketView `json:"markets"`
	Total   int64        `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// ListMarkets returns markets with pagination, optionally filtered by state
// and kind.
// GET /api/markets?state=active&kind=curve&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	filter := domain.MarketFilter{ListOpts: opts}

	q := r.URL.Query()
	switch state := domain.MarketState(q.Get("state")); state {
	case "", domain.MarketStateCreated, domain.MarketStateActive, domain.MarketStateHalted, domain.MarketStateResolved:
		filter.State = state
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown state "+string(state))
		return
	}
	switch kind := domain.MarketKind(q.Get("kind")); kind {
	case "", domain.MarketKindPool, domain.MarketKindCurve:
		filter.Kind = kind
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown kind "+string(kind))
		return
	}

	markets, err := h.markets.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, h.logger, "list markets", err)
		return
	}
	total, err := h.markets.Count(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "count markets", err)
		return
	}

	views := make([]marketView, 0, len(markets))
	for _, m := range markets {
		views = append(views, newMarketView(m))
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: views,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.markets.GetByID(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "get market", err)
		return
	}
	writeJSON(w, http.StatusOK, newMarketView(m))
}

type curveRequest struct {
	Shape string `json:"shape" validate:"required,oneof=power linear"`
	K     uint64 `json:"k,string"`
	N     uint32 `json:"n"`
	Base  uint64 `json:"base,string"`
	Slope uint64 `json:"slope,string"`
}

type createMarketRequest struct {
	GameID    string        `json:"game_id" validate:"required,max=50"`
	SideA     string        `json:"side_a" validate:"required"`
	SideB     string        `json:"side_b" validate:"required"`
	Kind      string        `json:"kind" validate:"required,oneof=pool curve"`
	Curve     *curveRequest `json:"curve" validate:"required_if=Kind curve"`
	KickoffAt *time.Time    `json:"kickoff_at"`
}

// CreateMarket provisions a market owned by the caller.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req createMarketRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p := engine.CreateMarketParams{
		GameID:    req.GameID,
		SideA:     req.SideA,
		SideB:     req.SideB,
		Kind:      domain.MarketKind(req.Kind),
		KickoffAt: req.KickoffAt,
	}
	if req.Curve != nil {
		p.Curve = domain.CurveParams{
			Shape: domain.CurveShape(req.Curve.Shape),
			K:     req.Curve.K,
			N:     req.Curve.N,
			Base:  req.Curve.Base,
			Slope: req.Curve.Slope,
		}
	}

	m, err := h.engine.CreateMarket(r.Context(), caller, p)
	if err != nil {
		writeDomainError(w, r, h.logger, "create market", err)
		return
	}
	writeJSON(w, http.StatusCreated, newMarketView(m))
}

type initializePoolRequest struct {
	ReserveA     uint64 `json:"reserve_a,string"`
	ReserveB     uint64 `json:"reserve_b,string"`
	ValueDeposit uint64 `json:"value_deposit,string"`
}

// InitializePool seeds a pool market and opens it.
// POST /api/markets/{id}/initialize
func (h *MarketHandler) InitializePool(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req initializePoolRequest
	if !decodeBody(w, r, &req) {
		return
	}

	m, err := h.engine.InitializePool(r.Context(), caller, engine.InitializePoolParams{
		MarketID:     pathParam(r, "id"),
		ReserveA:     req.ReserveA,
		ReserveB:     req.ReserveB,
		ValueDeposit: req.ValueDeposit,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, "initialize pool", err)
		return
	}
	writeJSON(w, http.StatusOK, newMarketView(m))
}

type fundUserRequest struct {
	User   string `json:"user" validate:"required"`
	Amount uint64 `json:"amount,string"`
}

// FundUser mints both outcome tokens of a pool market to a user.
// POST /api/markets/{id}/fund
func (h *MarketHandler) FundUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req fundUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ev, err := h.engine.FundUser(r.Context(), caller, pathParam(r, "id"), req.User, req.Amount)
	if err != nil {
		writeDomainError(w, r, h.logger, "fund user", err)
		return
	}
	writeJSON(w, http.StatusOK, service.NewTradeMessage(ev))
}

// Halt stops trading on a market.
// POST /api/markets/{id}/halt
func (h *MarketHandler) Halt(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	m, err := h.engine.Halt(r.Context(), caller, pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "halt market", err)
		return
	}
	writeJSON(w, http.StatusOK, newMarketView(m))
}

type resolveRequest struct {
	Winner string `json:"winner" validate:"required"`
}

// Resolve records the winning side of a halted market.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	winner, err := domain.ParseSide(req.Winner)
	if err != nil {
		writeDomainError(w, r, h.logger, "resolve market", err)
		return
	}

	m, err := h.engine.Resolve(r.Context(), caller, pathParam(r, "id"), winner)
	if err != nil {
		writeDomainError(w, r, h.logger, "resolve market", err)
		return
	}
	writeJSON(w, http.StatusOK, newMarketView(m))
}

// History lists a market's lifecycle transitions, oldest first.
// GET /api/markets/{id}/history
func (h *MarketHandler) History(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if _, err := h.markets.GetByID(r.Context(), id); err != nil {
		writeDomainError(w, r, h.logger, "get market", err)
		return
	}
	events, err := h.history.MarketHistory(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "list history", err)
		return
	}
	out := make([]service.LifecycleMessage, 0, len(events))
	for _, ev := range events {
		out = append(out, service.NewLifecycleMessage(ev))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/server/handler"
	"github.com/alanyoungcy/sportsxchange/internal/server/middleware"
	"github.com/alanyoungcy/sportsxchange/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKeys, when non-empty, gate every route except health.
	APIKeys []string
	// SignatureAuth authenticates mutating requests by signature. When off,
	// the X-SX-Address header is trusted.
	SignatureAuth bool
	MaxClockSkew  time.Duration
	// ReplayGuard rejects reused signed requests; nil keeps them in memory.
	ReplayGuard domain.ReplayGuard
	RateLimit   int
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Trades  *handler.TradeHandler
	Quotes  *handler.QuoteHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// limiter may be nil to disable rate limiting; wsHub may be nil to disable
// the live feed.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, wsHub, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed and middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Markets and lifecycle.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/history", handlers.Markets.History)
	mux.HandleFunc("POST /api/markets/{id}/initialize", handlers.Markets.InitializePool)
	mux.HandleFunc("POST /api/markets/{id}/fund", handlers.Markets.FundUser)
	mux.HandleFunc("POST /api/markets/{id}/halt", handlers.Markets.Halt)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Markets.Resolve)

	// Trading.
	mux.HandleFunc("POST /api/markets/{id}/swap", handlers.Trades.Swap)
	mux.HandleFunc("POST /api/markets/{id}/buy", handlers.Trades.Buy)
	mux.HandleFunc("POST /api/markets/{id}/sell", handlers.Trades.Sell)
	mux.HandleFunc("POST /api/markets/{id}/claim", handlers.Trades.Claim)
	mux.HandleFunc("GET /api/markets/{id}/trades", handlers.Trades.MarketTrades)
	mux.HandleFunc("POST /api/faucet", handlers.Trades.Faucet)

	// Quotes.
	mux.HandleFunc("GET /api/markets/{id}/quote", handlers.Quotes.Quote)
	mux.HandleFunc("GET /api/markets/{id}/price", handlers.Quotes.Price)

	// Accounts.
	mux.HandleFunc("GET /api/accounts/{owner}/balances", handlers.Trades.Balances)
	mux.HandleFunc("GET /api/accounts/{owner}/trades", handlers.Trades.TraderTrades)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	if cfg.SignatureAuth {
		h = middleware.Signature(cfg.MaxClockSkew, nil, cfg.ReplayGuard)(h)
	} else {
		h = middleware.TrustedCaller()(h)
	}
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	h = middleware.APIKey(cfg.APIKeys)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

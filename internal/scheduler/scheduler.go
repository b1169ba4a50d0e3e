package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/engine"
)

// Engine is the subset of the engine the scheduler drives.
type Engine interface {
	CreateMarket(ctx context.Context, caller string, p engine.CreateMarketParams) (domain.Market, error)
	InitializePool(ctx context.Context, caller string, p engine.InitializePoolParams) (domain.Market, error)
	Halt(ctx context.Context, caller, marketID string) (domain.Market, error)
	Resolve(ctx context.Context, caller, marketID string, winner domain.Side) (domain.Market, error)
}

// MarketReader looks up committed markets.
type MarketReader interface {
	GetByID(ctx context.Context, id string) (domain.Market, error)
}

// Config controls how scheduled games become markets.
type Config struct {
	SchedulePath string
	PollInterval time.Duration
	CreateAhead  time.Duration
	Kind         domain.MarketKind
	// InitialLiquidity seeds each reserve of pool markets.
	InitialLiquidity uint64
	Curve            domain.CurveParams
	// Authority is the identity creating, halting and resolving markets.
	Authority string
}

// Report counts what one pass over the schedule did.
type Report struct {
	Created  int
	Opened   int
	Halted   int
	Resolved int
	Failed   int
}

// Scheduler reconciles markets with the game schedule. The schedule file is
// re-read on every pass so operators can add games and record results
// without a restart.
type Scheduler struct {
	cfg     Config
	engine  Engine
	markets MarketReader
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler.
func New(cfg Config, eng Engine, markets MarketReader, logger *slog.Logger, opts ...Option) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Kind == "" {
		cfg.Kind = domain.MarketKindCurve
	}
	s := &Scheduler{
		cfg:     cfg,
		engine:  eng,
		markets: markets,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With(slog.String("component", "scheduler")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reconciles immediately and then on every poll interval until ctx is
// cancelled. Failed passes are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "scheduler started",
		slog.String("schedule", s.cfg.SchedulePath),
		slog.Duration("poll_interval", s.cfg.PollInterval),
		slog.Duration("create_ahead", s.cfg.CreateAhead),
	)
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.Reconcile(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "schedule pass failed", slog.String("error", err.Error()))
		return
	}
	if report != (Report{}) {
		s.logger.InfoContext(ctx, "schedule pass complete",
			slog.Int("created", report.Created),
			slog.Int("opened", report.Opened),
			slog.Int("halted", report.Halted),
			slog.Int("resolved", report.Resolved),
			slog.Int("failed", report.Failed),
		)
	}
}

// Reconcile makes one pass over the schedule. Errors on individual games
// are logged and counted; only an unreadable schedule fails the pass.
func (s *Scheduler) Reconcile(ctx context.Context) (Report, error) {
	schedule, err := LoadSchedule(s.cfg.SchedulePath)
	if err != nil {
		return Report{}, err
	}

	var report Report
	now := s.now()
	for _, g := range schedule.Games {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if err := s.reconcileGame(ctx, g, now, &report); err != nil {
			report.Failed++
			s.logger.WarnContext(ctx, "scheduled game failed",
				slog.String("game_id", g.GameID),
				slog.String("error", err.Error()),
			)
		}
	}
	return report, nil
}

// reconcileGame advances one game's market as far as the clock and the
// recorded result allow. Several steps may happen in one pass.
func (s *Scheduler) reconcileGame(ctx context.Context, g Game, now time.Time, report *Report) error {
	started := !now.Before(g.Kickoff)

	m, err := s.markets.GetByID(ctx, g.GameID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if started || now.Before(g.Kickoff.Add(-s.cfg.CreateAhead)) {
			return nil
		}
		if m, err = s.create(ctx, g); err != nil {
			return err
		}
		report.Created++
	case err != nil:
		return fmt.Errorf("load market: %w", err)
	}

	if m.Authority != s.cfg.Authority {
		s.logger.DebugContext(ctx, "market owned by another authority",
			slog.String("game_id", g.GameID),
			slog.String("authority", m.Authority),
		)
		return nil
	}

	if m.State == domain.MarketStateCreated && m.Kind == domain.MarketKindPool && !started {
		m, err = s.engine.InitializePool(ctx, s.cfg.Authority, engine.InitializePoolParams{
			MarketID: m.ID,
			ReserveA: s.cfg.InitialLiquidity,
			ReserveB: s.cfg.InitialLiquidity,
		})
		if err != nil {
			return fmt.Errorf("initialize pool: %w", err)
		}
		report.Opened++
	}

	if m.State == domain.MarketStateActive && started {
		if m, err = s.engine.Halt(ctx, s.cfg.Authority, m.ID); err != nil {
			return fmt.Errorf("halt at kickoff: %w", err)
		}
		report.Halted++
	}

	if m.State == domain.MarketStateHalted && g.Result != "" {
		winner, err := domain.ParseSide(g.Result)
		if err != nil {
			return err
		}
		if _, err = s.engine.Resolve(ctx, s.cfg.Authority, m.ID, winner); err != nil {
			return fmt.Errorf("resolve: %w", err)
		}
		report.Resolved++
	}
	return nil
}

func (s *Scheduler) create(ctx context.Context, g Game) (domain.Market, error) {
	kind := s.cfg.Kind
	if g.Kind != "" {
		kind = domain.MarketKind(g.Kind)
	}
	kickoff := g.Kickoff
	p := engine.CreateMarketParams{
		GameID:    g.GameID,
		SideA:     g.HomeTeam,
		SideB:     g.AwayTeam,
		Kind:      kind,
		KickoffAt: &kickoff,
	}
	if kind == domain.MarketKindCurve {
		p.Curve = s.cfg.Curve
	}
	m, err := s.engine.CreateMarket(ctx, s.cfg.Authority, p)
	if err != nil {
		return domain.Market{}, fmt.Errorf("create market: %w", err)
	}
	s.logger.InfoContext(ctx, "scheduled market created",
		slog.String("game_id", g.GameID),
		slog.String("kind", string(kind)),
		slog.Time("kickoff", g.Kickoff),
	)
	return m, nil
}

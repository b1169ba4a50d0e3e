package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/engine"
	"github.com/alanyoungcy/sportsxchange/internal/pipeline"
	"github.com/alanyoungcy/sportsxchange/internal/scheduler"
	"github.com/alanyoungcy/sportsxchange/internal/server"
	"github.com/alanyoungcy/sportsxchange/internal/server/handler"
	"github.com/alanyoungcy/sportsxchange/internal/server/ws"
	"github.com/alanyoungcy/sportsxchange/internal/service"
)

// core is the engine and the services around it, shared by every mode.
type core struct {
	engine  *engine.Engine
	markets *service.MarketService
	trades  *service.TradeService
	fanout  *service.EventFanout
}

func (a *App) buildCore(ctx context.Context, deps *Dependencies) (*core, error) {
	markets := service.NewMarketService(deps.MarketStore, deps.MarketCache, a.logger)
	fanout := service.NewEventFanout(markets, a.logger,
		service.WithBus(deps.SignalBus),
		service.WithAudit(deps.AuditStore),
		service.WithNotifier(deps.Notifier),
	)

	opts := []engine.Option{engine.WithPublisher(fanout), engine.WithLogger(a.logger)}
	if deps.LockManager != nil {
		opts = append(opts, engine.WithLockManager(deps.LockManager))
	}
	eng := engine.New(deps.Store, markets, engine.Config{
		ValueAsset: a.cfg.Engine.ValueAsset,
		Treasury:   deps.Treasury,
		LockTTL:    a.cfg.Engine.LockTTL.Duration,
		LockWait:   a.cfg.Engine.LockWait.Duration,
	}, opts...)
	if err := eng.Bootstrap(ctx); err != nil {
		return nil, err
	}

	var tradeOpts []service.TradeServiceOption
	if deps.TradeArchive != nil {
		tradeOpts = append(tradeOpts, service.WithArchive(deps.TradeArchive))
	}

	return &core{
		engine:  eng,
		markets: markets,
		trades:  service.NewTradeService(deps.TradeStore, deps.Lifecycle, deps.Balances, tradeOpts...),
		fanout:  fanout,
	}, nil
}

// ServerMode serves the HTTP API and the live feed.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies, c *core) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, c)
	return g.Wait()
}

// SchedulerMode drives market lifecycles from the game schedule.
func (a *App) SchedulerMode(ctx context.Context, deps *Dependencies, c *core) error {
	a.logger.InfoContext(ctx, "starting scheduler mode")
	g, ctx := errgroup.WithContext(ctx)
	if err := a.startScheduler(ctx, g, deps, c); err != nil {
		return fmt.Errorf("scheduler mode: %w", err)
	}
	return g.Wait()
}

// ArchiveMode copies old trades to S3 on the archive cron.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")
	if deps.Archiver == nil {
		return errors.New("archive mode: s3 is not enabled")
	}
	g, ctx := errgroup.WithContext(ctx)
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API, the scheduler and, when S3 is enabled, the archive
// job in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, c *core) error {
	a.logger.InfoContext(ctx, "starting full mode")
	g, ctx := errgroup.WithContext(ctx)

	a.startHTTPServer(ctx, g, deps, c)
	if err := a.startScheduler(ctx, g, deps, c); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	if deps.Archiver != nil {
		a.startArchiver(ctx, g, deps)
	} else {
		a.logger.InfoContext(ctx, "s3 disabled; trade archive not scheduled")
	}
	return g.Wait()
}

// untilCancelled turns the context error a worker returns on shutdown into
// a clean exit.
func untilCancelled(ctx context.Context, name string, run func() error) func() error {
	return func() error {
		err := run()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, c *core) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           a.cfg.Mode,
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})
	g.Go(untilCancelled(ctx, "ws hub", func() error { return hub.Run(ctx) }))

	checks := make(map[string]handler.Checker, len(deps.Health))
	for name, check := range deps.Health {
		checks[name] = check
	}

	srv := server.NewServer(server.Config{
		Port:          a.cfg.Server.Port,
		CORSOrigins:   a.cfg.Server.CORSOrigins,
		APIKeys:       a.cfg.Server.APIKeys,
		SignatureAuth: a.cfg.Server.SignatureAuth,
		MaxClockSkew:  a.cfg.Server.MaxClockSkew.Duration,
		ReplayGuard:   deps.ReplayGuard,
		RateLimit:     a.cfg.Server.RateLimit,
		RateWindow:    a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(a.cfg.Mode, checks, a.logger),
		Markets: handler.NewMarketHandler(c.markets, c.engine, c.trades, a.logger),
		Trades:  handler.NewTradeHandler(c.engine, c.trades, a.logger),
		Quotes:  handler.NewQuoteHandler(c.engine, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	if !a.cfg.Server.SignatureAuth {
		a.logger.WarnContext(ctx, "signature auth disabled; callers are taken from the X-SX-Address header")
	}

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func (a *App) startScheduler(ctx context.Context, g *errgroup.Group, deps *Dependencies, c *core) error {
	if deps.Authority == nil {
		return errors.New("scheduler needs an authority key")
	}
	sc := a.cfg.Scheduler
	sched := scheduler.New(scheduler.Config{
		SchedulePath:     sc.SchedulePath,
		PollInterval:     sc.PollInterval.Duration,
		CreateAhead:      sc.CreateAhead.Duration,
		Kind:             domain.MarketKind(sc.Kind),
		InitialLiquidity: sc.InitialLiquidity,
		Curve: domain.CurveParams{
			Shape: domain.CurveShapePower,
			K:     sc.CurveK,
			N:     uint32(sc.CurveN),
		},
		Authority: deps.Authority.Address(),
	}, c.engine, deps.MarketStore, a.logger)

	a.logger.InfoContext(ctx, "scheduler authority", slog.String("address", deps.Authority.Address()))
	g.Go(untilCancelled(ctx, "scheduler", func() error { return sched.Run(ctx) }))
	return nil
}

func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
	g.Go(untilCancelled(ctx, "archiver", func() error {
		return archiver.RunCron(ctx, a.cfg.Archive.Cron)
	}))
}

package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/sportsxchange/internal/blob/s3"
	"github.com/alanyoungcy/sportsxchange/internal/cache/redis"
	"github.com/alanyoungcy/sportsxchange/internal/config"
	"github.com/alanyoungcy/sportsxchange/internal/crypto"
	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/notify"
	"github.com/alanyoungcy/sportsxchange/internal/server/middleware"
	"github.com/alanyoungcy/sportsxchange/internal/service"
	badgerstore "github.com/alanyoungcy/sportsxchange/internal/store/badger"
	"github.com/alanyoungcy/sportsxchange/internal/store/postgres"
)

// TradeStore reads trades for the API and the archive.
type TradeStore interface {
	domain.TradeStore
	s3blob.TradeArchiveStore
}

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	Store       domain.Store
	MarketStore domain.MarketStore
	TradeStore  TradeStore
	Lifecycle   domain.LifecycleStore
	Balances    domain.BalanceReader
	AuditStore  domain.AuditStore

	// Coordination. MarketCache and LockManager are nil without Redis.
	MarketCache domain.MarketCache
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter
	ReplayGuard domain.ReplayGuard
	SignalBus   domain.SignalBus

	// Archiver and TradeArchive are nil unless S3 is enabled.
	Archiver     domain.Archiver
	TradeArchive domain.TradeArchive

	Notifier *notify.Notifier

	// Authority signs for the scheduler; nil when no key is configured.
	Authority *crypto.Signer
	Treasury  string

	// Health holds one readiness check per external dependency.
	Health map[string]func(ctx context.Context) error
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Health: make(map[string]func(ctx context.Context) error)}

	// --- Transactional store ---
	switch cfg.Storage.Backend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.Store = postgres.NewStore(pool)
		deps.MarketStore = postgres.NewMarketStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.Lifecycle = postgres.NewLifecycleStore(pool)
		deps.Balances = postgres.NewBalanceStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Health["postgres"] = pgClient.Ping

	default:
		var key []byte
		if cfg.Storage.BadgerEncryptionKey != "" {
			key = []byte(cfg.Storage.BadgerEncryptionKey)
		}
		db, err := badgerstore.Open(badgerstore.Options{
			Path:          cfg.Storage.BadgerPath,
			InMemory:      cfg.Storage.BadgerInMemory,
			EncryptionKey: key,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: badger: %w", err))
		}
		closers = append(closers, func() {
			if err := db.Close(); err != nil {
				logger.Warn("badger close failed", slog.String("error", err.Error()))
			}
		})

		deps.Store = badgerstore.NewStore(db)
		deps.MarketStore = badgerstore.NewMarketStore(db)
		deps.TradeStore = badgerstore.NewTradeStore(db)
		deps.Lifecycle = badgerstore.NewLifecycleStore(db)
		deps.Balances = badgerstore.NewBalanceStore(db)
		deps.AuditStore = badgerstore.NewAuditStore(db)
	}

	// --- Redis, or in-process stand-ins for a single node ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			URL:        cfg.Redis.URL,
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Redis.MarketTTL.Duration)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient, cfg.Server.RateLimit, cfg.Server.RateWindow.Duration)
		deps.ReplayGuard = redis.NewReplayGuard(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
		deps.Health["redis"] = redisClient.Ping
	} else {
		logger.Info("redis disabled; using in-process bus, limiter and locks")
		deps.RateLimiter = middleware.NewMemoryLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow.Duration)
		deps.ReplayGuard = middleware.NewMemoryReplayGuard()
		deps.SignalBus = service.NewLocalBus(int(cfg.Redis.StreamMaxLen))
	}

	// --- S3 trade archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		var archiveOpts []s3blob.ArchiverOption
		if cfg.Archive.Prune {
			archiveOpts = append(archiveOpts, s3blob.WithPrune())
		}
		archive := s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.TradeStore,
			deps.AuditStore,
			archiveOpts...,
		)
		deps.Archiver = archive
		deps.TradeArchive = archive
		deps.Health["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramBaseURL,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Identities ---
	if cfg.Authority.PrivateKey != "" || cfg.Authority.EncryptedKeyPath != "" {
		key, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Authority.PrivateKey,
			EncryptedKeyPath: cfg.Authority.EncryptedKeyPath,
			KeyPassword:      cfg.Authority.KeyPassword,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: authority key: %w", err))
		}
		if deps.Authority, err = crypto.NewSigner(key); err != nil {
			return fail(fmt.Errorf("wire: authority signer: %w", err))
		}
	}
	deps.Treasury = crypto.NormalizeAddress(cfg.Engine.Treasury)
	if deps.Treasury == "" && deps.Authority != nil {
		deps.Treasury = deps.Authority.Address()
	}
	if deps.Treasury == "" {
		logger.Warn("no treasury configured; the value-asset faucet is disabled")
	}

	return deps, cleanup, nil
}

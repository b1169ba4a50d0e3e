// Package config defines the top-level configuration for the exchange and
// provides validation helpers.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SX_* environment variables.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Storage   StorageConfig   `toml:"storage"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Engine    EngineConfig    `toml:"engine"`
	Authority AuthorityConfig `toml:"authority"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// LogConfig controls log output. File, when set, is rotated by size.
type LogConfig struct {
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// StorageConfig selects the transactional store.
type StorageConfig struct {
	// Backend is "badger" or "postgres".
	Backend             string `toml:"backend"`
	BadgerPath          string `toml:"badger_path"`
	BadgerInMemory      bool   `toml:"badger_in_memory"`
	BadgerEncryptionKey string `toml:"badger_encryption_key"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	URL        string   `toml:"url"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	MarketTTL  duration `toml:"market_ttl"`
	// StreamMaxLen caps the trade stream.
	StreamMaxLen int64 `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// EngineConfig holds market engine parameters.
type EngineConfig struct {
	ValueAsset string   `toml:"value_asset"`
	Treasury   string   `toml:"treasury"`
	LockTTL    duration `toml:"lock_ttl"`
	LockWait   duration `toml:"lock_wait"`
}

// AuthorityConfig locates the key that signs scheduler requests and whose
// address is the market authority.
type AuthorityConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// SchedulerConfig drives market creation, halting and resolution from a game
// schedule file.
type SchedulerConfig struct {
	SchedulePath string   `toml:"schedule_path"`
	PollInterval duration `toml:"poll_interval"`
	// CreateAhead is how long before kickoff a market is opened.
	CreateAhead duration `toml:"create_ahead"`
	// Kind is the market kind created for scheduled games: "pool" or "curve".
	Kind string `toml:"kind"`
	// InitialLiquidity seeds each side of pool markets.
	InitialLiquidity uint64 `toml:"initial_liquidity"`
	CurveK           uint64 `toml:"curve_k"`
	CurveN           uint64 `toml:"curve_n"`
}

// ArchiveConfig controls the trade archive job.
type ArchiveConfig struct {
	Cron          string `toml:"cron"`
	RetentionDays int    `toml:"retention_days"`
	// Prune deletes archived trades from the primary store.
	Prune bool `toml:"prune"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// maxCurveN is the largest curve exponent, scaled by 100.
const maxCurveN = 800

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKeys, when non-empty, are required in X-API-Key on every request.
	APIKeys []string `toml:"api_keys"`
	// SignatureAuth requires mutating requests to carry a personal-sign
	// signature over the request.
	SignatureAuth bool     `toml:"signature_auth"`
	MaxClockSkew  duration `toml:"max_clock_skew"`
	RateLimit     int      `toml:"rate_limit"`
	RateWindow    duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramBaseURL   string   `toml:"telegram_base_url"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Storage: StorageConfig{
			Backend:    "badger",
			BadgerPath: "data/badger",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "sportsxchange",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			KeyPrefix:    "sx:",
			MarketTTL:    duration{30 * time.Second},
			StreamMaxLen: 100_000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "sportsxchange-archive",
			ForcePathStyle: true,
		},
		Engine: EngineConfig{
			ValueAsset: "USDC",
			LockTTL:    duration{10 * time.Second},
			LockWait:   duration{2 * time.Second},
		},
		Scheduler: SchedulerConfig{
			SchedulePath:     "schedule.yaml",
			PollInterval:     duration{30 * time.Second},
			CreateAhead:      duration{24 * time.Hour},
			Kind:             "curve",
			InitialLiquidity: 1_000_000_000,
			CurveK:           1_000_000_000,
			CurveN:           100,
		},
		Archive: ArchiveConfig{
			Cron:          "0 3 * * *",
			RetentionDays: 30,
		},
		Server: ServerConfig{
			Port:          8000,
			CORSOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			SignatureAuth: true,
			MaxClockSkew:  duration{5 * time.Minute},
			RateLimit:     120,
			RateWindow:    duration{time.Minute},
		},
		Notify: NotifyConfig{
			TelegramBaseURL: "https://api.telegram.org",
			Events:          []string{"market.halted", "market.resolved"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":    true,
	"scheduler": true,
	"archive":   true,
	"full":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var hexAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, scheduler, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Log
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "text" {
		errs = append(errs, fmt.Sprintf("log: format must be json or text, got %q", c.Log.Format))
	}
	if c.Log.File != "" && c.Log.MaxSizeMB < 1 {
		errs = append(errs, "log: max_size_mb must be >= 1 when file is set")
	}

	// Storage
	switch strings.ToLower(c.Storage.Backend) {
	case "badger":
		if !c.Storage.BadgerInMemory && c.Storage.BadgerPath == "" {
			errs = append(errs, "storage: badger_path must not be empty unless badger_in_memory is set")
		}
		if n := len(c.Storage.BadgerEncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
			errs = append(errs, fmt.Sprintf("storage: badger_encryption_key must be 16, 24 or 32 bytes, got %d", n))
		}
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown backend %q (valid: badger, postgres)", c.Storage.Backend))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.URL == "" && c.Redis.Addr == "" {
			errs = append(errs, "redis: url or addr must be set when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3 is required by the archive job.
	needsArchive := mode == "archive" || (mode == "full" && c.S3.Enabled)
	if needsArchive {
		if !c.S3.Enabled {
			errs = append(errs, "s3: must be enabled for mode archive")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.Cron == "" {
			errs = append(errs, "archive: cron must not be empty")
		} else if _, err := cron.ParseStandard(c.Archive.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("archive: invalid cron %q: %v", c.Archive.Cron, err))
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Engine
	if c.Engine.ValueAsset == "" {
		errs = append(errs, "engine: value_asset must not be empty")
	}
	if c.Engine.Treasury != "" && !hexAddress.MatchString(c.Engine.Treasury) {
		errs = append(errs, fmt.Sprintf("engine: treasury must be a 0x-prefixed address, got %q", c.Engine.Treasury))
	}
	if c.Engine.LockTTL.Duration <= 0 || c.Engine.LockWait.Duration <= 0 {
		errs = append(errs, "engine: lock_ttl and lock_wait must be positive")
	}

	// Authority: the scheduler signs as the market authority.
	if mode == "scheduler" || mode == "full" {
		if c.Authority.PrivateKey == "" && c.Authority.EncryptedKeyPath == "" {
			errs = append(errs, "authority: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
	}
	if c.Authority.EncryptedKeyPath != "" && c.Authority.KeyPassword == "" {
		errs = append(errs, "authority: key_password is required when encrypted_key_path is set")
	}

	// Scheduler
	if mode == "scheduler" || mode == "full" {
		if c.Scheduler.SchedulePath == "" {
			errs = append(errs, "scheduler: schedule_path must not be empty")
		}
		if c.Scheduler.PollInterval.Duration <= 0 {
			errs = append(errs, "scheduler: poll_interval must be positive")
		}
		switch c.Scheduler.Kind {
		case "pool":
			if c.Scheduler.InitialLiquidity == 0 {
				errs = append(errs, "scheduler: initial_liquidity must be > 0 for pool markets")
			}
		case "curve":
			if c.Scheduler.CurveK == 0 {
				errs = append(errs, "scheduler: curve_k must be > 0")
			}
			if c.Scheduler.CurveN == 0 || c.Scheduler.CurveN > maxCurveN {
				errs = append(errs, fmt.Sprintf("scheduler: curve_n must be the exponent scaled by 100 (1-%d), got %d", maxCurveN, c.Scheduler.CurveN))
			}
		default:
			errs = append(errs, fmt.Sprintf("scheduler: kind must be pool or curve, got %q", c.Scheduler.Kind))
		}
	}

	// Server
	if mode == "server" || mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be positive when rate_limit is set")
		}
		if c.Server.SignatureAuth && c.Server.MaxClockSkew.Duration <= 0 {
			errs = append(errs, "server: max_clock_skew must be positive when signature_auth is set")
		}
	}

	// Notify: token and chat id go together.
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

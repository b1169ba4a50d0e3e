package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SX_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Log ──
	setStr(&cfg.Log.Format, "SX_LOG_FORMAT")
	setStr(&cfg.Log.File, "SX_LOG_FILE")
	setInt(&cfg.Log.MaxSizeMB, "SX_LOG_MAX_SIZE_MB")
	setInt(&cfg.Log.MaxBackups, "SX_LOG_MAX_BACKUPS")
	setInt(&cfg.Log.MaxAgeDays, "SX_LOG_MAX_AGE_DAYS")
	setBool(&cfg.Log.Compress, "SX_LOG_COMPRESS")

	// ── Storage ──
	setStr(&cfg.Storage.Backend, "SX_STORAGE_BACKEND")
	setStr(&cfg.Storage.BadgerPath, "SX_STORAGE_BADGER_PATH")
	setBool(&cfg.Storage.BadgerInMemory, "SX_STORAGE_BADGER_IN_MEMORY")
	setStr(&cfg.Storage.BadgerEncryptionKey, "SX_STORAGE_BADGER_ENCRYPTION_KEY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.DSN, "SX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SX_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SX_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SX_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SX_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SX_REDIS_ENABLED")
	setStr(&cfg.Redis.URL, "SX_REDIS_URL")
	setStr(&cfg.Redis.Addr, "SX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SX_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "SX_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.MarketTTL, "SX_REDIS_MARKET_TTL")
	setInt64(&cfg.Redis.StreamMaxLen, "SX_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SX_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SX_S3_REGION")
	setStr(&cfg.S3.Bucket, "SX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SX_S3_FORCE_PATH_STYLE")

	// ── Engine ──
	setStr(&cfg.Engine.ValueAsset, "SX_ENGINE_VALUE_ASSET")
	setStr(&cfg.Engine.Treasury, "SX_ENGINE_TREASURY")
	setDuration(&cfg.Engine.LockTTL, "SX_ENGINE_LOCK_TTL")
	setDuration(&cfg.Engine.LockWait, "SX_ENGINE_LOCK_WAIT")

	// ── Authority ──
	setStr(&cfg.Authority.PrivateKey, "SX_AUTHORITY_PRIVATE_KEY")
	setStr(&cfg.Authority.EncryptedKeyPath, "SX_AUTHORITY_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Authority.KeyPassword, "SX_AUTHORITY_KEY_PASSWORD")

	// ── Scheduler ──
	setStr(&cfg.Scheduler.SchedulePath, "SX_SCHEDULER_SCHEDULE_PATH")
	setDuration(&cfg.Scheduler.PollInterval, "SX_SCHEDULER_POLL_INTERVAL")
	setDuration(&cfg.Scheduler.CreateAhead, "SX_SCHEDULER_CREATE_AHEAD")
	setStr(&cfg.Scheduler.Kind, "SX_SCHEDULER_KIND")
	setUint64(&cfg.Scheduler.InitialLiquidity, "SX_SCHEDULER_INITIAL_LIQUIDITY")
	setUint64(&cfg.Scheduler.CurveK, "SX_SCHEDULER_CURVE_K")
	setUint64(&cfg.Scheduler.CurveN, "SX_SCHEDULER_CURVE_N")

	// ── Archive ──
	setStr(&cfg.Archive.Cron, "SX_ARCHIVE_CRON")
	setInt(&cfg.Archive.RetentionDays, "SX_ARCHIVE_RETENTION_DAYS")
	setBool(&cfg.Archive.Prune, "SX_ARCHIVE_PRUNE")

	// ── Server ──
	setInt(&cfg.Server.Port, "PORT") // platform alias
	setInt(&cfg.Server.Port, "SX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SX_SERVER_CORS_ORIGINS")
	setStringSlice(&cfg.Server.APIKeys, "SX_SERVER_API_KEYS")
	setBool(&cfg.Server.SignatureAuth, "SX_SERVER_SIGNATURE_AUTH")
	setDuration(&cfg.Server.MaxClockSkew, "SX_SERVER_MAX_CLOCK_SKEW")
	setInt(&cfg.Server.RateLimit, "SX_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "SX_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramBaseURL, "SX_NOTIFY_TELEGRAM_BASE_URL")
	setStr(&cfg.Notify.TelegramToken, "SX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SX_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SX_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SX_MODE")
	setStr(&cfg.LogLevel, "SX_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

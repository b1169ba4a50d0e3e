package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Authority.PrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	return cfg
}

func TestDefaultsValidateWithAuthority(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestDefaultsNeedAuthorityForScheduler(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authority: either private_key or encrypted_key_path")

	cfg.Mode = "server"
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.LogLevel = "loud"
	cfg.Storage.Backend = "sqlite"
	cfg.Engine.Treasury = "not-an-address"
	cfg.Notify.TelegramToken = "token"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "config validation failed")
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, `unknown log_level "loud"`)
	assert.Contains(t, msg, `unknown backend "sqlite"`)
	assert.Contains(t, msg, "engine: treasury must be a 0x-prefixed address")
	assert.Contains(t, msg, "telegram_token and telegram_chat_id")
}

func TestValidateCurveExponent(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.CurveN = 150
	require.NoError(t, cfg.Validate())

	cfg.Scheduler.CurveN = 801
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "curve_n must be the exponent scaled by 100")
}

func TestValidatePostgresAndArchive(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Backend = "postgres"
	cfg.Postgres.Host = ""
	cfg.Postgres.PoolMinConns = 20
	cfg.Mode = "archive"
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "postgres: host must not be empty")
	assert.Contains(t, msg, "pool_min_conns must not exceed pool_max_conns")
	assert.Contains(t, msg, "s3: must be enabled for mode archive")
	assert.Contains(t, msg, "s3: bucket must not be empty")

	cfg.Postgres.DSN = "postgres://u:p@db:5432/sx"
	cfg.Postgres.PoolMinConns = 1
	cfg.S3.Enabled = true
	cfg.S3.Bucket = "archive"
	require.NoError(t, cfg.Validate())

	cfg.Archive.Cron = "0 25 * * *"
	assert.ErrorContains(t, cfg.Validate(), `archive: invalid cron "0 25 * * *"`)
}

func TestValidateBadgerEncryptionKeyLength(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.BadgerEncryptionKey = "short"
	require.ErrorContains(t, cfg.Validate(), "badger_encryption_key must be 16, 24 or 32 bytes")

	cfg.Storage.BadgerEncryptionKey = "0123456789abcdef"
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "server"
log_level = "debug"

[engine]
value_asset = "USDT"
lock_wait = "750ms"

[server]
port = 9090
api_keys = ["k1"]

[scheduler]
kind = "pool"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "USDT", cfg.Engine.ValueAsset)
	assert.Equal(t, 750*time.Millisecond, cfg.Engine.LockWait.Duration)
	assert.Equal(t, 10*time.Second, cfg.Engine.LockTTL.Duration)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"k1"}, cfg.Server.APIKeys)
	assert.Equal(t, "pool", cfg.Scheduler.Kind)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SX_MODE", "scheduler")
	t.Setenv("SX_STORAGE_BACKEND", "postgres")
	t.Setenv("SX_POSTGRES_DSN", "postgres://db/sx")
	t.Setenv("SX_REDIS_ENABLED", "true")
	t.Setenv("SX_REDIS_MARKET_TTL", "45s")
	t.Setenv("SX_SCHEDULER_CURVE_N", "200")
	t.Setenv("SX_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("SX_SERVER_PORT", "not-a-number")
	t.Setenv("SX_ARCHIVE_PRUNE", "true")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "scheduler", cfg.Mode)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "postgres://db/sx", cfg.Postgres.DSN)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Redis.MarketTTL.Duration)
	assert.Equal(t, uint64(200), cfg.Scheduler.CurveN)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 8000, cfg.Server.Port, "unparsable values are ignored")
	assert.True(t, cfg.Archive.Prune)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "pw"
	cfg.Redis.URL = "redis://:secret@cache:6379/0"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Server.APIKeys = []string{"k1", "k2"}
	cfg.Notify.TelegramToken = "tg"

	out := RedactedConfig(&cfg)

	assert.Equal(t, redacted, out.Authority.PrivateKey)
	assert.Equal(t, redacted, out.Postgres.Password)
	assert.Equal(t, redacted, out.Redis.URL)
	assert.Equal(t, redacted, out.S3.SecretKey)
	assert.Equal(t, redacted, out.Notify.TelegramToken)
	assert.Equal(t, []string{redacted, redacted}, out.Server.APIKeys)
	assert.Empty(t, out.Postgres.DSN, "empty secrets stay empty")

	out.Server.CORSOrigins[0] = "mutated"
	assert.Equal(t, "http://localhost:3000", cfg.Server.CORSOrigins[0])
	assert.Equal(t, "k1", cfg.Server.APIKeys[0])
	assert.Equal(t, "pw", cfg.Postgres.Password)
}

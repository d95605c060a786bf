package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto_backend/internal/feature/coins/usecase"
	"crypto_backend/internal/platform/db"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, db.DriverSQLite, cfg.Database().Driver)
	assert.Equal(t, "coins.db", cfg.Database().SQLitePath)
	assert.True(t, cfg.Database().RunMigrations)
	assert.Equal(t, 60*time.Second, cfg.Database().ConnectTimeout)
	assert.Empty(t, cfg.RedisClient().Host)
	assert.Equal(t, 30*time.Second, cfg.RedisClient().TTL)
	assert.Equal(t, "EUR", cfg.Remote().Quote)
	assert.Equal(t, usecase.DefaultPolicy(), cfg.Policy())
	assert.Equal(t, usecase.RefreshInterval, cfg.RefreshInterval)
	assert.Empty(t, cfg.RefreshSchedule)
	assert.False(t, cfg.AssumeOnline)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_CONNECT_TIMEOUT", "5s")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REMOTE_CACHE_TTL", "1m")
	t.Setenv("CRYPTOCOMPARE_API_KEY", "secret")
	t.Setenv("CRYPTOCOMPARE_QUOTE", "USD")
	t.Setenv("CRYPTOCOMPARE_RATE_PER_SEC", "2.5")
	t.Setenv("CACHE_VALIDITY", "5m")
	t.Setenv("PAGE_SIZE", "50")
	t.Setenv("REFRESH_SCHEDULE", "*/5 * * * *")
	t.Setenv("ASSUME_ONLINE", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, db.DriverPostgres, cfg.Database().Driver)
	assert.Equal(t, "db", cfg.Database().Host)
	assert.Equal(t, 5*time.Second, cfg.Database().ConnectTimeout)
	assert.Equal(t, "cache", cfg.RedisClient().Host)
	assert.Equal(t, time.Minute, cfg.RedisClient().TTL)
	assert.Equal(t, "secret", cfg.Remote().APIKey)
	assert.Equal(t, "USD", cfg.Remote().Quote)
	assert.Equal(t, 2.5, cfg.Remote().RatePerSecond)
	assert.Equal(t, 5*time.Minute, cfg.Policy().Validity)
	assert.Equal(t, 50, cfg.Policy().PageSize)
	assert.Equal(t, "*/5 * * * *", cfg.RefreshSchedule)
	assert.True(t, cfg.AssumeOnline)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("http:\n  addr: \":7070\"\npage_size: 30\ncryptocompare:\n  quote: GBP\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("PAGE_SIZE", "40")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "GBP", cfg.Remote().Quote)
	assert.Equal(t, 40, cfg.PageSize)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLogConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		cfg      LogConfig
		contains string
		debug    bool
	}{
		{name: "success: json", cfg: LogConfig{Level: "info", Format: "json"}, contains: `"msg":"hello"`},
		{name: "success: text", cfg: LogConfig{Level: "info", Format: "text"}, contains: "msg=hello"},
		{name: "success: debug level", cfg: LogConfig{Level: "debug", Format: "json"}, contains: `"msg":"hello"`, debug: true},
		{name: "error: unknown level falls back to info", cfg: LogConfig{Level: "loud"}, contains: `"msg":"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := tt.cfg.NewLogger(&buf)
			logger.Debug("quiet")
			logger.Info("hello")

			assert.Contains(t, buf.String(), tt.contains)
			assert.Equal(t, tt.debug, bytes.Contains(buf.Bytes(), []byte("quiet")))
		})
	}
}

// Package config loads the service configuration from the environment and an optional file.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"crypto_backend/internal/feature/coins/usecase"
	"crypto_backend/internal/platform/cache"
	"crypto_backend/internal/platform/db"
	"crypto_backend/internal/platform/externalapi/cryptocompare"
	"crypto_backend/internal/platform/metrics"
	"crypto_backend/internal/platform/network"
	"crypto_backend/internal/platform/redis"
	"crypto_backend/internal/shared/workerpool"
)

type Config struct {
	HTTP          HTTPConfig          `mapstructure:"http"`
	DB            DBConfig            `mapstructure:"db"`
	SQLitePath    string              `mapstructure:"sqlite_path"`
	RunMigrations bool                `mapstructure:"run_migrations"`
	Redis         RedisConfig         `mapstructure:"redis"`
	CryptoCompare CryptoCompareConfig `mapstructure:"cryptocompare"`
	Connectivity  ConnectivityConfig  `mapstructure:"connectivity"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Log           LogConfig           `mapstructure:"log"`

	RemoteCacheTTL  time.Duration `mapstructure:"remote_cache_ttl"`
	CacheValidity   time.Duration `mapstructure:"cache_validity"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RefreshSchedule string        `mapstructure:"refresh_schedule"` // cron expression, overrides RefreshInterval
	PageSize        int           `mapstructure:"page_size"`
	MaxLimit        int           `mapstructure:"max_limit"`
	Workers         int           `mapstructure:"workers"`
	AssumeOnline    bool          `mapstructure:"assume_online"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DBConfig struct {
	Driver         string        `mapstructure:"driver"`
	DSN            string        `mapstructure:"dsn"`
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name"`
	SSLMode        string        `mapstructure:"sslmode"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
}

type CryptoCompareConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Quote      string        `mapstructure:"quote"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RatePerSec float64       `mapstructure:"rate_per_sec"`
	Burst      int           `mapstructure:"burst"`
}

type ConnectivityConfig struct {
	ProbeAddr     string        `mapstructure:"probe_addr"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the configuration. Environment variables override the file at
// path, which is optional; nested keys map to upper snake case
// (cryptocompare.api_key is CRYPTOCOMPARE_API_KEY).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")

	dbDefaults := db.DefaultConfig()
	v.SetDefault("db.driver", dbDefaults.Driver)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.host", dbDefaults.Host)
	v.SetDefault("db.port", dbDefaults.Port)
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "coins")
	v.SetDefault("db.sslmode", dbDefaults.SSLMode)
	v.SetDefault("db.connect_timeout", dbDefaults.ConnectTimeout.String())
	v.SetDefault("sqlite_path", dbDefaults.SQLitePath)
	v.SetDefault("run_migrations", dbDefaults.RunMigrations)

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("remote_cache_ttl", cache.DefaultTTL.String())

	ccDefaults := cryptocompare.DefaultConfig()
	v.SetDefault("cryptocompare.base_url", ccDefaults.BaseURL)
	v.SetDefault("cryptocompare.api_key", "")
	v.SetDefault("cryptocompare.quote", ccDefaults.Quote)
	v.SetDefault("cryptocompare.timeout", ccDefaults.Timeout.String())
	v.SetDefault("cryptocompare.rate_per_sec", ccDefaults.RatePerSecond)
	v.SetDefault("cryptocompare.burst", ccDefaults.Burst)

	v.SetDefault("cache_validity", usecase.CacheValidity.String())
	v.SetDefault("refresh_interval", usecase.RefreshInterval.String())
	v.SetDefault("refresh_schedule", "")
	v.SetDefault("page_size", usecase.DefaultPageSize)
	v.SetDefault("max_limit", usecase.MaxLimit)
	v.SetDefault("workers", workerpool.DefaultWorkers)

	v.SetDefault("connectivity.probe_addr", network.DefaultProbeAddr)
	v.SetDefault("connectivity.probe_interval", network.DefaultProbeInterval.String())
	v.SetDefault("assume_online", false)

	v.SetDefault("metrics.namespace", metrics.DefaultNamespace)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Database returns the settings of platform/db.
func (c Config) Database() db.Config {
	return db.Config{
		Driver:         c.DB.Driver,
		DSN:            c.DB.DSN,
		User:           c.DB.User,
		Password:       c.DB.Password,
		Name:           c.DB.Name,
		Host:           c.DB.Host,
		Port:           c.DB.Port,
		SSLMode:        c.DB.SSLMode,
		SQLitePath:     c.SQLitePath,
		RunMigrations:  c.RunMigrations,
		ConnectTimeout: c.DB.ConnectTimeout,
	}
}

// RedisClient returns the settings of platform/redis. Redis is off while Host is empty.
func (c Config) RedisClient() redis.Config {
	return redis.Config{
		Host:     c.Redis.Host,
		Port:     c.Redis.Port,
		Password: c.Redis.Password,
		TTL:      c.RemoteCacheTTL,
	}
}

// Remote returns the settings of the CryptoCompare client.
func (c Config) Remote() cryptocompare.Config {
	return cryptocompare.Config{
		BaseURL:       c.CryptoCompare.BaseURL,
		APIKey:        c.CryptoCompare.APIKey,
		Quote:         c.CryptoCompare.Quote,
		Timeout:       c.CryptoCompare.Timeout,
		RatePerSecond: c.CryptoCompare.RatePerSec,
		Burst:         c.CryptoCompare.Burst,
	}
}

// Policy returns the engine policy.
func (c Config) Policy() usecase.Policy {
	return usecase.Policy{
		PageSize: c.PageSize,
		MaxLimit: c.MaxLimit,
		Validity: c.CacheValidity,
	}
}

// NewLogger builds the slog logger selected by LOG_FORMAT ("json" or "text") and LOG_LEVEL.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

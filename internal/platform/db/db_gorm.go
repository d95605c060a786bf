// Package db opens the gorm connection backing the coin cache.
package db

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	retryInterval = 3 * time.Second
)

// ErrUnknownDriver is returned for a driver other than sqlite or postgres.
var ErrUnknownDriver = errors.New("unknown database driver")

// Config holds database connection settings.
type Config struct {
	Driver         string // "sqlite" or "postgres"
	DSN            string // Full DSN; overrides the fields below when set
	User           string
	Password       string
	Name           string
	Host           string
	Port           string
	SSLMode        string
	SQLitePath     string        // File path, or ":memory:"
	RunMigrations  bool          // Create or update the tables on start
	ConnectTimeout time.Duration // How long to keep retrying the first connection
}

// DefaultConfig returns a local SQLite configuration.
func DefaultConfig() Config {
	return Config{
		Driver:         DriverSQLite,
		Host:           "localhost",
		Port:           "5432",
		SSLMode:        "disable",
		SQLitePath:     "coins.db",
		RunMigrations:  true,
		ConnectTimeout: 60 * time.Second,
	}
}

// BuildDSN returns the connection string of cfg's driver.
func BuildDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	if cfg.Driver == DriverPostgres {
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, sslmode)
	}
	return cfg.SQLitePath
}

// ConnectWithRetry calls opener until it succeeds or timeout elapses,
// waiting retryInterval between attempts.
func ConnectWithRetry(dsn string, timeout time.Duration, opener func(string) (*gorm.DB, error)) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := opener(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("db connect failed after %s: %w", timeout, err)
		}
		slog.Warn("db connect failed, retrying", "error", err, "retry_in", retryInterval)
		time.Sleep(retryInterval)
	}
}

// Open connects with the driver of cfg and migrates models when cfg.RunMigrations is set.
func Open(cfg Config, models ...any) (*gorm.DB, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	opener, err := openerFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ConnectTimeout
	}

	db, err := ConnectWithRetry(BuildDSN(cfg), timeout, opener)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite {
		// a single connection serializes writers and keeps ":memory:" one database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if cfg.RunMigrations {
		if err := AutoMigrate(db, models...); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// AutoMigrate creates or updates the tables of models.
func AutoMigrate(db *gorm.DB, models ...any) error {
	if len(models) == 0 {
		return nil
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func openerFor(driver string) (func(string) (*gorm.DB, error), error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch driver {
	case DriverSQLite:
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(sqlite.Open(dsn), gcfg) }, nil
	case DriverPostgres:
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(postgres.Open(dsn), gcfg) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

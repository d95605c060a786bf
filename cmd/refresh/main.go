package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"

	"crypto_backend/internal/app/config"
	"crypto_backend/internal/app/di"
	"crypto_backend/internal/feature/coins/adapters"
	infradb "crypto_backend/internal/platform/db"
	infraredis "crypto_backend/internal/platform/redis"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	timeout := flag.Duration("timeout", 5*time.Minute, "upper bound of the whole refresh")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		slog.Info(".env not found; using system environment variables")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	db, err := infradb.Open(cfg.Database(), adapters.Models()...)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var rdb *redisv9.Client
	if cfg.Redis.Host != "" {
		if rdb, err = infraredis.NewRedisClient(ctx, cfg.RedisClient()); err != nil {
			logger.Warn("Redis unavailable. Running without cache.", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	remote := di.NewRemoteSource(cfg.Remote(), rdb, cfg.RemoteCacheTTL, nil)
	conn := di.NewConnectivity(ctx, cfg.Connectivity, true)
	coordinator := di.NewCoordinator(cfg, adapters.NewCoinStore(db), remote, conn, nil, logger)
	defer coordinator.Dispose()

	start := time.Now()
	if err := coordinator.RefreshNow(ctx); err != nil {
		logger.Error("refresh failed", "error", err)
		coordinator.Dispose()
		os.Exit(1)
	}
	logger.Info("refresh ok", "elapsed", time.Since(start))
}

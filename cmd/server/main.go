package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"

	"crypto_backend/internal/app/config"
	"crypto_backend/internal/app/di"
	"crypto_backend/internal/app/router"
	"crypto_backend/internal/feature/coins/adapters"
	coinshandler "crypto_backend/internal/feature/coins/transport/handler"
	infradb "crypto_backend/internal/platform/db"
	"crypto_backend/internal/platform/http/handler"
	"crypto_backend/internal/platform/metrics"
	infraredis "crypto_backend/internal/platform/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
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

	refresher, err := di.NewRefresher(cfg, logger)
	if err != nil {
		logger.Error("invalid refresh schedule", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	db, err := infradb.Open(cfg.Database(), adapters.Models()...)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	store := adapters.NewCoinStore(db)

	// Redis
	var rdb *redisv9.Client
	if cfg.Redis.Host != "" {
		if tmp, err := infraredis.NewRedisClient(ctx, cfg.RedisClient()); err != nil {
			logger.Warn("Redis unavailable. Running without cache.", "error", err)
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					logger.Error("failed to close Redis client", "error", err)
				}
			}()
		}
	}

	m := metrics.NewMetrics(cfg.Metrics.Namespace, nil)
	remote := di.NewRemoteSource(cfg.Remote(), rdb, cfg.RemoteCacheTTL, m)
	conn := di.NewConnectivity(ctx, cfg.Connectivity, cfg.AssumeOnline)
	coordinator := di.NewCoordinator(cfg, store, remote, conn, m, logger)

	registry := coinshandler.NewListingRegistry(coinshandler.ListingsFrom(coordinator), refresher, m)
	listingsH := coinshandler.NewListingHandler(registry, logger)
	detailsH := coinshandler.NewDetailHandler(coordinator, refresher, logger)

	deps := map[string]handler.Pinger{"database": handler.PingFunc(store.Ping)}
	if rdb != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router.NewRouter(listingsH, detailsH, handler.Ready(deps), m.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}
	registry.CloseAll()
	coordinator.Dispose()
	coordinator.Wait()
}

// Package di provides dependency injection factories for creating application components.
package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"crypto_backend/internal/app/config"
	"crypto_backend/internal/feature/coins/usecase"
	"crypto_backend/internal/platform/cache"
	"crypto_backend/internal/platform/externalapi/cryptocompare"
	infrahttp "crypto_backend/internal/platform/http"
	"crypto_backend/internal/platform/metrics"
	"crypto_backend/internal/platform/network"
	"crypto_backend/internal/shared/ratelimiter"
	"crypto_backend/internal/shared/workerpool"
)

// NewRemoteSource creates the CryptoCompare client with a rate limiter and
// an API key header. When m is set the requests are instrumented.
// If Redis is available, the client is wrapped in a Redis cache.
// Otherwise, every call goes to the API.
func NewRemoteSource(cfg cryptocompare.Config, rdb *redis.Client, ttl time.Duration, m *metrics.Metrics) usecase.RemoteSource {
	wrappers := []func(http.RoundTripper) http.RoundTripper{infrahttp.WithAPIKey(cfg.APIKey)}
	if m != nil {
		wrappers = append(wrappers, m.InstrumentRoundTripper)
	}
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout, wrappers...)
	limiter := ratelimiter.NewPerSecond(cfg.RatePerSecond, cfg.Burst)
	client := cryptocompare.NewClient(cfg, httpClient, limiter)

	if rdb != nil {
		return cache.NewCachingRemoteSource(rdb, ttl, client, cache.DefaultNamespace)
	}
	return client
}

// NewConnectivity returns a fixed online state when assumeOnline is set.
// Otherwise it starts a TCP probe that runs until ctx is done.
func NewConnectivity(ctx context.Context, cfg config.ConnectivityConfig, assumeOnline bool) usecase.Connectivity {
	if assumeOnline {
		return network.Static(true)
	}
	checker := network.NewChecker(cfg.ProbeAddr, cfg.ProbeInterval)
	go checker.Run(ctx)
	return checker
}

// NewCoordinator creates the cache coordinator with its own worker pool.
func NewCoordinator(cfg config.Config, store usecase.CoinStore, remote usecase.RemoteSource, conn usecase.Connectivity, m *metrics.Metrics, logger *slog.Logger) *usecase.CacheCoordinator {
	opts := usecase.Options{Policy: cfg.Policy(), Logger: logger}
	if m != nil {
		opts.Metrics = m
	}
	return usecase.NewCacheCoordinator(store, remote, conn, workerpool.NewPool(cfg.Workers), opts)
}

// NewRefresher returns the listing auto-refresher of cfg. A cron schedule,
// when set, takes precedence over the fixed interval.
func NewRefresher(cfg config.Config, logger *slog.Logger) (*usecase.AutoRefresher, error) {
	if cfg.RefreshSchedule == "" {
		return usecase.NewAutoRefresher(cfg.RefreshInterval).WithLogger(logger), nil
	}
	r, err := usecase.ParseAutoRefresher(cfg.RefreshSchedule)
	if err != nil {
		return nil, err
	}
	return r.WithLogger(logger), nil
}

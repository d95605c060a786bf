// Package network reports whether the remote API is reachable.
package network

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"crypto_backend/internal/feature/coins/usecase"
)

const (
	DefaultProbeAddr     = "min-api.cryptocompare.com:443"
	DefaultProbeInterval = 15 * time.Second
	dialTimeout          = 3 * time.Second
)

// Checker probes a TCP address on an interval and caches the outcome, so
// IsConnected never blocks.
type Checker struct {
	addr     string
	interval time.Duration
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
	online   atomic.Bool
	logger   *slog.Logger
}

var _ usecase.Connectivity = (*Checker)(nil)

// NewChecker returns a checker for addr. It reports online until the first probe says otherwise.
func NewChecker(addr string, interval time.Duration) *Checker {
	if addr == "" {
		addr = DefaultProbeAddr
	}
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	c := &Checker{
		addr:     addr,
		interval: interval,
		dial:     (&net.Dialer{Timeout: dialTimeout}).DialContext,
		logger:   slog.Default(),
	}
	c.online.Store(true)
	return c
}

func (c *Checker) IsConnected() bool {
	return c.online.Load()
}

// Probe dials the address once and records the result.
func (c *Checker) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := c.dial(ctx, "tcp", c.addr)
	online := err == nil
	if conn != nil {
		_ = conn.Close()
	}
	if was := c.online.Swap(online); was != online {
		c.logger.Info("connectivity changed", "online", online, "addr", c.addr, "error", err)
	}
	return online
}

// Run probes immediately and then on every interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	c.Probe(ctx)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Probe(ctx)
		}
	}
}

// Static is a Connectivity with a fixed answer.
type Static bool

func (s Static) IsConnected() bool { return bool(s) }

package network

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_ProbeRealListener(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	c := NewChecker(addr, time.Hour)
	assert.True(t, c.Probe(context.Background()))
	assert.True(t, c.IsConnected())

	require.NoError(t, ln.Close())
	assert.False(t, c.Probe(context.Background()))
	assert.False(t, c.IsConnected())
}

func TestChecker_Defaults(t *testing.T) {
	t.Parallel()

	c := NewChecker("", 0)

	assert.Equal(t, DefaultProbeAddr, c.addr)
	assert.Equal(t, DefaultProbeInterval, c.interval)
	assert.True(t, c.IsConnected(), "online until a probe fails")
}

func TestChecker_Run(t *testing.T) {
	t.Parallel()

	var (
		calls atomic.Int32
		fail  atomic.Bool
	)
	c := NewChecker("probe:1", 5*time.Millisecond)
	c.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		calls.Add(1)
		if fail.Load() {
			return nil, errors.New("unreachable")
		}
		client, server := net.Pipe()
		_ = server.Close()
		return client, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)
	assert.True(t, c.IsConnected())

	fail.Store(true)
	require.Eventually(t, func() bool { return !c.IsConnected() }, time.Second, time.Millisecond)

	fail.Store(false)
	require.Eventually(t, c.IsConnected, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestStatic(t *testing.T) {
	t.Parallel()

	assert.True(t, Static(true).IsConnected())
	assert.False(t, Static(false).IsConnected())
}

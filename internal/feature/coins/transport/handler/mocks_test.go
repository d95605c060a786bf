package handler_test

import (
	"context"
	"sync"
	"sync/atomic"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/shared/signal"
)

// mockListing is a hand-written Listing with func fields and call records.
type mockListing struct {
	ItemsFunc    func() []entity.Coin
	LoadMoreFunc func(ctx context.Context) error

	network *signal.Signal[entity.Status]
	refresh *signal.Signal[entity.Status]
	items   *signal.Signal[[]entity.Coin]

	mu           sync.Mutex
	refreshCalls []bool
	retryCalls   int
	closeCalls   atomic.Int32
}

func newMockListing() *mockListing {
	return &mockListing{
		network: signal.New[entity.Status](),
		refresh: signal.New[entity.Status](),
		items:   signal.New[[]entity.Coin](),
	}
}

func (m *mockListing) Items() []entity.Coin {
	if m.ItemsFunc == nil {
		return nil
	}
	return m.ItemsFunc()
}

func (m *mockListing) LoadMore(ctx context.Context) error {
	if m.LoadMoreFunc == nil {
		return nil
	}
	return m.LoadMoreFunc(ctx)
}

func (m *mockListing) Refresh(withFeedback bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCalls = append(m.refreshCalls, withFeedback)
}

func (m *mockListing) Retry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCalls++
}

func (m *mockListing) RefreshCalls() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.refreshCalls...)
}

func (m *mockListing) RetryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryCalls
}

func (m *mockListing) Network() *signal.Signal[entity.Status]      { return m.network }
func (m *mockListing) RefreshState() *signal.Signal[entity.Status] { return m.refresh }
func (m *mockListing) ItemChanges() *signal.Signal[[]entity.Coin]  { return m.items }

func (m *mockListing) Close() {
	m.closeCalls.Add(1)
	m.network.Close()
	m.refresh.Close()
	m.items.Close()
}

// countingGauge records ListingOpened and ListingClosed calls.
type countingGauge struct {
	opened atomic.Int32
	closed atomic.Int32
}

func (g *countingGauge) ListingOpened() { g.opened.Add(1) }

func (g *countingGauge) ListingClosed() { g.closed.Add(1) }

// mockDetailService is a hand-written DetailService.
type mockDetailService struct {
	FindDetailFunc func(ctx context.Context, symbol string) (*entity.CoinWithDetail, error)
	values         chan *entity.CoinWithDetail

	mu      sync.Mutex
	updates []string
	stopped atomic.Bool
}

func (m *mockDetailService) FindDetail(ctx context.Context, symbol string) (*entity.CoinWithDetail, error) {
	return m.FindDetailFunc(ctx, symbol)
}

func (m *mockDetailService) UpdateDetail(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, symbol)
}

func (m *mockDetailService) Updates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.updates...)
}

func (m *mockDetailService) WatchDetail(string) (<-chan *entity.CoinWithDetail, func()) {
	return m.values, func() { m.stopped.Store(true) }
}

package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/shared/signal"
)

var (
	ErrRemote = errors.New("remote unavailable")
	ErrDB     = errors.New("database error")
)

// memState is the content of memStore; transactions work on a clone.
type memState struct {
	coins   map[int]entity.Coin
	details map[string]entity.CoinDetail
	last    *time.Time
}

func (s memState) clone() memState {
	out := memState{
		coins:   make(map[int]entity.Coin, len(s.coins)),
		details: make(map[string]entity.CoinDetail, len(s.details)),
	}
	for k, v := range s.coins {
		out.coins[k] = v
	}
	for k, v := range s.details {
		out.details[k] = v
	}
	if s.last != nil {
		t := *s.last
		out.last = &t
	}
	return out
}

// memStore is an in-memory CoinStore with commit-or-rollback transactions.
type memStore struct {
	mu      sync.Mutex
	state   memState
	changes *signal.Signal[entity.Change]

	upsertCoinsErr error
	txCalls        int32
}

var _ CoinStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		state:   memState{coins: map[int]entity.Coin{}, details: map[string]entity.CoinDetail{}},
		changes: signal.New[entity.Change](),
	}
}

func (m *memStore) RunInTransaction(ctx context.Context, fn func(tx StoreTx) error) error {
	atomic.AddInt32(&m.txCalls, 1)
	m.mu.Lock()
	tx := &memTx{st: m.state.clone(), upsertErr: m.upsertCoinsErr}
	err := fn(tx)
	if err == nil {
		m.state = tx.st
	}
	m.mu.Unlock()
	if err == nil && tx.touched != 0 {
		m.changes.Publish(tx.touched)
	}
	return err
}

func (m *memStore) UpsertCoins(ctx context.Context, coins []entity.Coin) error {
	return m.RunInTransaction(ctx, func(tx StoreTx) error { return tx.UpsertCoins(ctx, coins) })
}

func (m *memStore) SetLastUpdate(ctx context.Context, at time.Time) error {
	return m.RunInTransaction(ctx, func(tx StoreTx) error { return tx.SetLastUpdate(ctx, at) })
}

func (m *memStore) LastUpdate(ctx context.Context) (at time.Time, ok bool, err error) {
	err = m.RunInTransaction(ctx, func(tx StoreTx) error {
		at, ok, err = tx.LastUpdate(ctx)
		return err
	})
	return at, ok, err
}

func (m *memStore) DeleteAllCoins(ctx context.Context) error {
	return m.RunInTransaction(ctx, func(tx StoreTx) error { return tx.DeleteAllCoins(ctx) })
}

func (m *memStore) DeleteAllDetails(ctx context.Context) error {
	return m.RunInTransaction(ctx, func(tx StoreTx) error { return tx.DeleteAllDetails(ctx) })
}

func (m *memStore) CountCoins(ctx context.Context) (n int, err error) {
	err = m.RunInTransaction(ctx, func(tx StoreTx) error {
		n, err = tx.CountCoins(ctx)
		return err
	})
	return n, err
}

func (m *memStore) UpsertDetail(ctx context.Context, d entity.CoinDetail) error {
	return m.RunInTransaction(ctx, func(tx StoreTx) error { return tx.UpsertDetail(ctx, d) })
}

func (m *memStore) ListCoins(ctx context.Context, offset, limit int) ([]entity.Coin, error) {
	all := m.sorted()
	if offset >= len(all) {
		return []entity.Coin{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (m *memStore) FindCoinWithDetail(ctx context.Context, name string) (*entity.CoinWithDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.state.coins {
		if c.Name != name {
			continue
		}
		out := &entity.CoinWithDetail{Coin: c}
		if d, ok := m.state.details[name]; ok {
			out.Detail = &d
		}
		return out, nil
	}
	return nil, nil
}

func (m *memStore) Changes() *signal.Signal[entity.Change] {
	return m.changes
}

func (m *memStore) sorted() []entity.Coin {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.Coin, 0, len(m.state.coins))
	for _, c := range m.state.coins {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceIndex < out[j].SequenceIndex })
	return out
}

func (m *memStore) detailCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.details)
}

func (m *memStore) lastUpdate() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.last
}

// seed writes coins with consecutive sequence indices and the given timestamp.
func (m *memStore) seed(t *testing.T, n int, at time.Time) {
	t.Helper()
	coins := make([]entity.Coin, n)
	for i := range coins {
		coins[i] = entity.Coin{ID: i + 1, Name: coinName(i + 1), SequenceIndex: i, Price: float64(i + 1)}
	}
	require.NoError(t, m.RunInTransaction(context.Background(), func(tx StoreTx) error {
		if err := tx.UpsertCoins(context.Background(), coins); err != nil {
			return err
		}
		return tx.SetLastUpdate(context.Background(), at)
	}))
}

type memTx struct {
	st        memState
	touched   entity.Change
	upsertErr error
}

func (tx *memTx) UpsertCoins(ctx context.Context, coins []entity.Coin) error {
	if tx.upsertErr != nil {
		return tx.upsertErr
	}
	for _, c := range coins {
		tx.st.coins[c.ID] = c
	}
	if len(coins) > 0 {
		tx.touched |= entity.ChangeCoins
	}
	return nil
}

func (tx *memTx) SetLastUpdate(ctx context.Context, at time.Time) error {
	tx.st.last = &at
	return nil
}

func (tx *memTx) LastUpdate(ctx context.Context) (time.Time, bool, error) {
	if tx.st.last == nil {
		return time.Time{}, false, nil
	}
	return *tx.st.last, true, nil
}

func (tx *memTx) DeleteAllCoins(ctx context.Context) error {
	tx.st.coins = map[int]entity.Coin{}
	tx.touched |= entity.ChangeCoins
	return nil
}

func (tx *memTx) DeleteAllDetails(ctx context.Context) error {
	tx.st.details = map[string]entity.CoinDetail{}
	tx.touched |= entity.ChangeDetails
	return nil
}

func (tx *memTx) CountCoins(ctx context.Context) (int, error) {
	return len(tx.st.coins), nil
}

func (tx *memTx) UpsertDetail(ctx context.Context, d entity.CoinDetail) error {
	tx.st.details[d.SymbolKey] = d
	tx.touched |= entity.ChangeDetails
	return nil
}

type pageCall struct {
	Limit, Page int
}

// mockRemoteSource is a RemoteSource driven by func fields, safe for concurrent use.
type mockRemoteSource struct {
	FetchPageFunc    func(ctx context.Context, limit, page int) (*entity.CoinPage, error)
	FetchDetailsFunc func(ctx context.Context, symbol string) (*entity.VolumeHistory, error)

	mu          sync.Mutex
	pageCalls   []pageCall
	detailCalls []string
}

func (m *mockRemoteSource) FetchPage(ctx context.Context, limit, page int) (*entity.CoinPage, error) {
	m.mu.Lock()
	m.pageCalls = append(m.pageCalls, pageCall{Limit: limit, Page: page})
	m.mu.Unlock()
	if m.FetchPageFunc != nil {
		return m.FetchPageFunc(ctx, limit, page)
	}
	return nil, errors.New("FetchPageFunc is not implemented")
}

func (m *mockRemoteSource) FetchDetails(ctx context.Context, symbol string) (*entity.VolumeHistory, error) {
	m.mu.Lock()
	m.detailCalls = append(m.detailCalls, symbol)
	m.mu.Unlock()
	if m.FetchDetailsFunc != nil {
		return m.FetchDetailsFunc(ctx, symbol)
	}
	return nil, errors.New("FetchDetailsFunc is not implemented")
}

func (m *mockRemoteSource) PageCalls() []pageCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pageCall(nil), m.pageCalls...)
}

func (m *mockRemoteSource) DetailCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.detailCalls...)
}

// invalidatingRemote adds RemoteInvalidator to mockRemoteSource.
type invalidatingRemote struct {
	*mockRemoteSource
	invalidated atomic.Int32
}

func (r *invalidatingRemote) Invalidate(ctx context.Context) error {
	r.invalidated.Add(1)
	return nil
}

// fakeConnectivity reports a switchable connectivity state.
type fakeConnectivity struct {
	online atomic.Bool
}

func connectivity(online bool) *fakeConnectivity {
	c := &fakeConnectivity{}
	c.online.Store(online)
	return c
}

func (c *fakeConnectivity) IsConnected() bool { return c.online.Load() }

// generatedPage returns a page of limit coins whose ids continue from page*limit.
func generatedPage(limit, page int) *entity.CoinPage {
	coins := make([]entity.Coin, limit)
	for i := range coins {
		id := page*limit + i + 1
		coins[i] = entity.Coin{ID: id, Name: coinName(id), FullName: "Coin " + coinName(id), Price: float64(id)}
	}
	return &entity.CoinPage{Coins: coins}
}

func coinName(id int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	name := ""
	for id > 0 {
		id--
		name = string(letters[id%26]) + name
		id /= 26
	}
	return name
}

const waitTimeout = 2 * time.Second

// nextStatus waits for the next value on ch.
func nextStatus(t *testing.T, ch <-chan entity.Status) entity.Status {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "status channel closed")
		return s
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for status")
		return entity.Status{}
	}
}

// noStatus asserts nothing arrives on ch for a short while.
func noStatus(t *testing.T, ch <-chan entity.Status) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if ok {
			t.Fatalf("unexpected status %+v", s)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

package usecase

import (
	"context"
	"log/slog"
	"sync"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/shared/signal"
)

// boundary is the part of BoundaryController a PagedSequence drives. Both
// events report whether they started a fetch.
type boundary interface {
	OnExhaustedEmpty() bool
	OnReachedEnd(last entity.Coin) bool
	NetworkStatus() *signal.Signal[entity.Status]
}

// PagedSequence is a window over the store's coins ordered by SequenceIndex
// that grows one page at a time and asks its boundary controller for remote
// pages once the local rows run out.
//
// Each boundary (empty window, or a given last coin) is raised at most once
// until the store changes or the network status settles. A boundary whose
// event started no fetch stays armed and is raised again by the next LoadMore.
type PagedSequence struct {
	store    CoinStore
	boundary boundary
	pageSize int
	logger   *slog.Logger

	mu       sync.Mutex
	items    []entity.Coin
	atEnd    bool // the store had no rows past the window at the last read
	raised   bool
	raisedAt int

	changes *signal.Signal[[]entity.Coin]
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPagedSequence starts a sequence: it loads the first page in the
// background and keeps the window in sync with store changes until Close.
func NewPagedSequence(store CoinStore, b boundary, pageSize int) *PagedSequence {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &PagedSequence{
		store:    store,
		boundary: b,
		pageSize: pageSize,
		logger:   slog.Default(),
		changes:  signal.New[[]entity.Coin](),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.watch(ctx)
	return s
}

// Items returns a copy of the materialized window.
func (s *PagedSequence) Items() []entity.Coin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Coin(nil), s.items...)
}

// Changes publishes a snapshot of the window after every update.
func (s *PagedSequence) Changes() *signal.Signal[[]entity.Coin] {
	return s.changes
}

// LoadMore appends the next local page to the window. When the store has no
// further rows it raises the matching boundary event instead.
func (s *PagedSequence) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.store.ListCoins(ctx, len(s.items), s.pageSize)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		s.items = append(s.items, rows...)
		s.publishLocked()
	}
	s.atEnd = len(rows) < s.pageSize
	if s.atEnd {
		s.raiseLocked()
	}
	return nil
}

// Close stops following the store. The window keeps its last content.
func (s *PagedSequence) Close() {
	s.cancel()
	<-s.done
	s.changes.Close()
}

func (s *PagedSequence) watch(ctx context.Context) {
	defer close(s.done)

	changes, stopChanges := s.store.Changes().Subscribe(0)
	defer stopChanges()
	status, stopStatus := s.boundary.NetworkStatus().Subscribe(0)
	defer stopStatus()

	if err := s.LoadMore(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial page load failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if c.Has(entity.ChangeCoins) {
				s.reload(ctx)
			}
		case st, ok := <-status:
			if !ok {
				status = nil
				continue
			}
			if st.Kind != entity.StatusLoading {
				s.mu.Lock()
				s.raised = false
				s.mu.Unlock()
			}
		}
	}
}

// reload re-reads the window after a store change. A window that was waiting
// at its end grows by one page so freshly fetched rows become visible.
func (s *PagedSequence) reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.items)
	if s.atEnd {
		n += s.pageSize
	}
	if n < s.pageSize {
		n = s.pageSize
	}
	rows, err := s.store.ListCoins(ctx, 0, n)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("failed to reload coins", "error", err)
		}
		return
	}
	prevEnd := s.endKeyLocked()
	s.atEnd = len(rows) < n
	s.items = rows
	if s.endKeyLocked() != prevEnd {
		s.raised = false
	}
	s.publishLocked()

	if len(rows) == 0 {
		s.raiseLocked()
	}
}

func (s *PagedSequence) endKeyLocked() int {
	if n := len(s.items); n > 0 {
		return s.items[n-1].SequenceIndex
	}
	return -1
}

func (s *PagedSequence) raiseLocked() {
	key := s.endKeyLocked()
	if s.raised && s.raisedAt == key {
		return
	}
	var started bool
	if key < 0 {
		started = s.boundary.OnExhaustedEmpty()
	} else {
		started = s.boundary.OnReachedEnd(s.items[len(s.items)-1])
	}
	// Without a fetch no status settles the boundary, so it stays armed.
	s.raised = started
	s.raisedAt = key
}

func (s *PagedSequence) publishLocked() {
	s.changes.Publish(append([]entity.Coin(nil), s.items...))
}

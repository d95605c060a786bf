package usecase

import (
	"context"
	"log/slog"
	"sync"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/shared/signal"
	"crypto_backend/internal/shared/workerpool"
)

// PersistFunc stores a fetched page that was requested as (pageNumber, pageSize).
type PersistFunc func(ctx context.Context, page *entity.CoinPage, pageNumber, pageSize int) error

// BoundaryController fetches the remote page a paged sequence needs when its
// local window is exhausted, and reports progress on its network status signal.
//
// It does not deduplicate boundary events; the caller must wait for the
// previous event to settle on Loaded or Error before raising another one.
type BoundaryController struct {
	remote   RemoteSource
	conn     Connectivity
	persist  PersistFunc
	pageSize int

	tasks   *workerpool.Group
	status  *signal.Signal[entity.Status]
	metrics Metrics
	logger  *slog.Logger

	// mu guards disposed; persisting and publishing hold it for reading so
	// neither can happen once Dispose has returned.
	mu       sync.RWMutex
	disposed bool
}

// NewBoundaryController creates a controller fetching pages of pageSize.
// Fetches run as tasks of the given group, which the controller owns from now on.
func NewBoundaryController(remote RemoteSource, conn Connectivity, tasks *workerpool.Group, persist PersistFunc, pageSize int) *BoundaryController {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &BoundaryController{
		remote:   remote,
		conn:     conn,
		persist:  persist,
		pageSize: pageSize,
		tasks:    tasks,
		status:   signal.New[entity.Status](),
		metrics:  noopMetrics{},
		logger:   slog.Default(),
	}
}

// NetworkStatus is the signal carrying the state of boundary fetches.
func (b *BoundaryController) NetworkStatus() *signal.Signal[entity.Status] {
	return b.status
}

// PageSize returns the number of coins requested per boundary fetch.
func (b *BoundaryController) PageSize() int {
	return b.pageSize
}

// OnExhaustedEmpty loads the first page when the local sequence has no items.
// Offline, it reports ErrNotConnected instead. It reports whether a fetch started.
func (b *BoundaryController) OnExhaustedEmpty() bool {
	if !b.conn.IsConnected() {
		b.publish(entity.Failed(ErrNotConnected.Error()))
		return false
	}
	b.publish(entity.Loading())
	return b.fetch(0)
}

// OnReachedEnd loads the page after the one holding last.
// Offline it does nothing at all, not even a status change, and reports false.
func (b *BoundaryController) OnReachedEnd(last entity.Coin) bool {
	if !b.conn.IsConnected() {
		return false
	}
	b.publish(entity.Loading())
	return b.fetch(last.NextPage(b.pageSize))
}

// Retry fetches the first page again.
func (b *BoundaryController) Retry() {
	b.fetch(0)
}

// Dispose cancels in-flight fetches and silences the status signal for good.
// It waits for a page already being persisted and is safe to call repeatedly.
func (b *BoundaryController) Dispose() {
	if !b.tasks.Dispose() {
		return
	}
	b.mu.Lock()
	b.disposed = true
	b.mu.Unlock()
	b.status.Close()
}

func (b *BoundaryController) publish(s entity.Status) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.disposed {
		b.status.Publish(s)
	}
}

func (b *BoundaryController) fetch(page int) bool {
	return b.tasks.Go(func(ctx context.Context) {
		resp, err := b.remote.FetchPage(ctx, b.pageSize, page)

		b.mu.RLock()
		defer b.mu.RUnlock()
		if b.disposed || ctx.Err() != nil {
			return
		}
		if err != nil {
			b.logger.Debug("page fetch failed", "page", page, "page_size", b.pageSize, "error", err)
			b.metrics.FetchFailed(OriginBoundary)
			b.status.Publish(entity.Failed(err.Error()))
			return
		}
		if err := b.persist(ctx, resp, page, b.pageSize); err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("failed to persist page", "page", page, "error", err)
			b.status.Publish(entity.Failed(err.Error()))
			return
		}
		b.metrics.PageFetched(OriginBoundary)
		b.status.Publish(entity.Loaded())
	})
}

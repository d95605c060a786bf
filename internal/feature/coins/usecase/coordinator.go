package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/shared/signal"
	"crypto_backend/internal/shared/workerpool"
)

// Options tunes a CacheCoordinator. Zero values select the defaults.
type Options struct {
	Policy  Policy
	Metrics Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// CacheCoordinator owns the cache validity policy and the bulk refresh, and
// hands out listings whose boundary controllers page through the same store.
type CacheCoordinator struct {
	store  CoinStore
	remote RemoteSource
	conn   Connectivity
	pool   *workerpool.Pool
	tasks  *workerpool.Group

	policy  Policy
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time

	// mu guards disposed and boundaries; status emissions hold it for reading
	// so none can happen once Dispose has returned.
	mu         sync.RWMutex
	disposed   bool
	boundaries map[*BoundaryController]struct{}
}

// NewCacheCoordinator wires a coordinator. Every request it starts runs on pool.
func NewCacheCoordinator(store CoinStore, remote RemoteSource, conn Connectivity, pool *workerpool.Pool, opts Options) *CacheCoordinator {
	c := &CacheCoordinator{
		store:   store,
		remote:  remote,
		conn:    conn,
		pool:    pool,
		tasks:   pool.NewGroup(context.Background()),
		policy:  opts.Policy.withDefaults(),
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     opts.Now,

		boundaries: make(map[*BoundaryController]struct{}),
	}
	if c.metrics == nil {
		c.metrics = noopMetrics{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Policy returns the effective policy.
func (c *CacheCoordinator) Policy() Policy {
	return c.policy
}

// GetListing starts a cache validity check in the background and returns a
// new listing paging through the store pageSize coins at a time.
func (c *CacheCoordinator) GetListing(pageSize int) *Listing {
	if pageSize <= 0 {
		pageSize = c.policy.PageSize
	}

	c.tasks.Background(func(ctx context.Context) {
		if _, err := c.CheckCacheValidity(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("cache validity check failed", "error", err)
		}
	})

	bc := NewBoundaryController(c.remote, c.conn, c.pool.NewGroup(c.tasks.Context()), c.insertPage, pageSize)
	bc.metrics = c.metrics
	bc.logger = c.logger
	if !c.track(bc) {
		bc.Dispose()
	}

	data := NewPagedSequence(c.store, bc, pageSize)
	data.logger = c.logger

	return &Listing{
		Data:          data,
		NetworkStatus: bc.NetworkStatus(),
		RefreshStatus: signal.New[entity.Status](),
		coordinator:   c,
		boundary:      bc,
	}
}

// CheckCacheValidity purges every detail and then every coin when the cache
// timestamp is older than the validity window. Both deletes and the timestamp
// read share one transaction. A cache that was never written counts as fresh.
func (c *CacheCoordinator) CheckCacheValidity(ctx context.Context) (bool, error) {
	purged := false
	err := c.store.RunInTransaction(ctx, func(tx StoreTx) error {
		last, ok, err := tx.LastUpdate(ctx)
		if err != nil {
			return err
		}
		var age time.Duration
		if ok {
			age = c.now().Sub(last)
		}
		if age <= c.policy.Validity {
			return nil
		}
		if err := tx.DeleteAllDetails(ctx); err != nil {
			return err
		}
		if err := tx.DeleteAllCoins(ctx); err != nil {
			return err
		}
		purged = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("check cache validity: %w", err)
	}
	if !purged {
		return false, nil
	}

	c.logger.Info("coin cache expired, purged", "validity", c.policy.Validity)
	c.metrics.CachePurged()
	if inv, ok := c.remote.(RemoteInvalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			c.logger.Warn("failed to invalidate remote cache", "error", err)
		}
	}
	return true, nil
}

// Refresh re-fetches every page currently cached and reports progress on the returned signal.
// Offline, the signal settles on Loaded without any remote call.
func (c *CacheCoordinator) Refresh(withFeedback bool) *signal.Signal[entity.Status] {
	st := signal.New[entity.Status]()
	c.refresh(withFeedback, func(s entity.Status) { st.Publish(s) })
	return st
}

// RefreshNow runs the validity check and the bulk refresh synchronously and
// returns the failures of every chunk joined. An empty cache is seeded with
// its first page instead.
func (c *CacheCoordinator) RefreshNow(ctx context.Context) error {
	if c.isDisposed() {
		return ErrDisposed
	}
	if _, err := c.CheckCacheValidity(ctx); err != nil {
		return err
	}
	if !c.conn.IsConnected() {
		return ErrNotConnected
	}

	count, err := c.store.CountCoins(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		page, err := c.remote.FetchPage(ctx, c.policy.PageSize, 0)
		if err != nil {
			return fmt.Errorf("seed first page: %w", err)
		}
		return c.insertPage(ctx, page, 0, c.policy.PageSize)
	}
	return c.runRefresh(ctx, func(entity.Status) {})
}

func (c *CacheCoordinator) refresh(withFeedback bool, emit func(entity.Status)) {
	emit = c.guard(emit)
	if !c.conn.IsConnected() {
		emit(entity.Loaded())
		return
	}
	if withFeedback {
		emit(entity.Loading())
	}
	c.tasks.Background(func(ctx context.Context) {
		if err := c.runRefresh(ctx, emit); err != nil && ctx.Err() == nil {
			c.logger.Warn("refresh finished with errors", "error", err)
		}
	})
}

// runRefresh splits the current row count into MaxLimit chunks and re-fetches
// them concurrently. The row count bounds the refresh, so it only backfills
// what is already cached.
func (c *CacheCoordinator) runRefresh(ctx context.Context, emit func(entity.Status)) error {
	count, err := c.store.CountCoins(ctx)
	if err != nil {
		emit(entity.Failed(err.Error()))
		return err
	}

	limits := chunkLimits(count, c.policy.MaxLimit)
	var (
		eg   errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for page, limit := range limits {
		eg.Go(func() error {
			err := c.pool.Do(ctx, func(ctx context.Context) error {
				resp, err := c.remote.FetchPage(ctx, limit, page)
				if err != nil {
					return err
				}
				return c.insertPage(ctx, resp, page, c.policy.MaxLimit)
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.metrics.FetchFailed(OriginRefresh)
				mu.Lock()
				errs = append(errs, fmt.Errorf("chunk %d: %w", page, err))
				mu.Unlock()
				emit(entity.Failed(err.Error()))
				return nil
			}
			c.metrics.PageFetched(OriginRefresh)
			emit(entity.Loaded())
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	c.metrics.RefreshCompleted(len(limits), len(errs))
	emit(entity.Loaded())
	return errors.Join(errs...)
}

// chunkLimits returns the limit of each refresh chunk: full chunks of size, then the remainder.
func chunkLimits(count, size int) []int {
	var limits []int
	for remaining := count; remaining > 0; remaining -= size {
		limits = append(limits, min(remaining, size))
	}
	return limits
}

// insertPage assigns sequence indices and upserts the page together with the
// cache timestamp in one transaction.
func (c *CacheCoordinator) insertPage(ctx context.Context, page *entity.CoinPage, pageNumber, pageSize int) error {
	coins := page.Indexed(pageNumber, pageSize)
	return c.store.RunInTransaction(ctx, func(tx StoreTx) error {
		if err := tx.UpsertCoins(ctx, coins); err != nil {
			return err
		}
		return tx.SetLastUpdate(ctx, c.now())
	})
}

// UpdateDetail fetches the volumes of symbol and stores them when online.
// Failures are only logged.
func (c *CacheCoordinator) UpdateDetail(symbol string) {
	if !c.conn.IsConnected() {
		return
	}
	c.tasks.Go(func(ctx context.Context) {
		if err := c.updateDetail(ctx, symbol); err != nil && ctx.Err() == nil {
			c.metrics.FetchFailed(OriginDetail)
			c.logger.Warn("failed to update coin detail", "symbol", symbol, "error", err)
		}
	})
}

func (c *CacheCoordinator) updateDetail(ctx context.Context, symbol string) error {
	history, err := c.remote.FetchDetails(ctx, symbol)
	if err != nil {
		return err
	}
	d, ok := history.ToDetail(symbol)
	if !ok {
		c.logger.Debug("ignoring malformed volume history", "symbol", symbol, "samples", len(history.Samples))
		return nil
	}
	if err := c.store.RunInTransaction(ctx, func(tx StoreTx) error {
		return tx.UpsertDetail(ctx, d)
	}); err != nil {
		return err
	}
	c.metrics.DetailUpdated()
	return nil
}

// GetDetail returns a live view of the coin named symbol joined with its detail.
func (c *CacheCoordinator) GetDetail(symbol string) *DetailView {
	v := newDetailView(c.store, symbol, c.logger)
	if !c.tasks.Background(v.run) {
		v.abort()
	}
	return v
}

// FindDetail reads the coin named symbol joined with its detail once; nil when it is not cached.
func (c *CacheCoordinator) FindDetail(ctx context.Context, symbol string) (*entity.CoinWithDetail, error) {
	return c.store.FindCoinWithDetail(ctx, symbol)
}

// WatchDetail subscribes to the live view of symbol. stop unsubscribes and closes the view.
func (c *CacheCoordinator) WatchDetail(symbol string) (values <-chan *entity.CoinWithDetail, stop func()) {
	v := c.GetDetail(symbol)
	ch, cancel := v.Values.Subscribe(0)
	return ch, func() {
		cancel()
		v.Close()
	}
}

// Dispose cancels every request the coordinator started, including the
// boundary fetches of listings that are still open. It is idempotent.
func (c *CacheCoordinator) Dispose() {
	c.mu.Lock()
	c.disposed = true
	boundaries := c.boundaries
	c.boundaries = nil
	c.mu.Unlock()

	for bc := range boundaries {
		bc.Dispose()
	}
	c.tasks.Dispose()
}

// Wait blocks until the coordinator's background work has stopped. Call it after Dispose.
func (c *CacheCoordinator) Wait() {
	c.tasks.Wait()
}

func (c *CacheCoordinator) isDisposed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disposed
}

// track registers a listing's boundary controller for Dispose. It reports
// false once the coordinator is disposed.
func (c *CacheCoordinator) track(bc *BoundaryController) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return false
	}
	c.boundaries[bc] = struct{}{}
	return true
}

func (c *CacheCoordinator) forget(bc *BoundaryController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.boundaries, bc)
}

func (c *CacheCoordinator) guard(emit func(entity.Status)) func(entity.Status) {
	return func(s entity.Status) {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.disposed {
			return
		}
		emit(s)
	}
}

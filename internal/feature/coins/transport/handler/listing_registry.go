package handler

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/feature/coins/usecase"
	"crypto_backend/internal/shared/signal"
)

var (
	// ErrListingNotFound is returned for an unknown or closed listing id.
	ErrListingNotFound = errors.New("listing not found")
	// ErrRegistryClosed is returned by Open after CloseAll.
	ErrRegistryClosed = errors.New("listing registry closed")
)

// Listing is what the handlers need from a listing session.
type Listing interface {
	Items() []entity.Coin
	LoadMore(ctx context.Context) error
	Refresh(withFeedback bool)
	Retry()
	Network() *signal.Signal[entity.Status]
	RefreshState() *signal.Signal[entity.Status]
	ItemChanges() *signal.Signal[[]entity.Coin]
	Close()
}

// ListingGauge counts open listings. *metrics.Metrics satisfies it.
type ListingGauge interface {
	ListingOpened()
	ListingClosed()
}

type coordinatorListing struct {
	*usecase.Listing
}

func (l coordinatorListing) Items() []entity.Coin                        { return l.Data.Items() }
func (l coordinatorListing) LoadMore(ctx context.Context) error          { return l.Data.LoadMore(ctx) }
func (l coordinatorListing) Network() *signal.Signal[entity.Status]      { return l.NetworkStatus }
func (l coordinatorListing) RefreshState() *signal.Signal[entity.Status] { return l.RefreshStatus }
func (l coordinatorListing) ItemChanges() *signal.Signal[[]entity.Coin]  { return l.Data.Changes() }

// ListingsFrom opens listings on c.
func ListingsFrom(c *usecase.CacheCoordinator) func(pageSize int) Listing {
	return func(pageSize int) Listing {
		return coordinatorListing{Listing: c.GetListing(pageSize)}
	}
}

type listingSession struct {
	listing Listing
	stop    func()
}

// ListingRegistry keeps the open listing sessions by id and runs the
// auto-refresh of each one until it is closed.
type ListingRegistry struct {
	open      func(pageSize int) Listing
	refresher *usecase.AutoRefresher
	gauge     ListingGauge

	mu       sync.Mutex
	sessions map[string]*listingSession
	closed   bool
}

// NewListingRegistry returns a registry opening listings with open. A nil
// refresher disables auto-refresh and a nil gauge disables counting.
func NewListingRegistry(open func(pageSize int) Listing, refresher *usecase.AutoRefresher, gauge ListingGauge) *ListingRegistry {
	return &ListingRegistry{
		open:      open,
		refresher: refresher,
		gauge:     gauge,
		sessions:  make(map[string]*listingSession),
	}
}

// Open creates a listing and starts its auto-refresh.
func (r *ListingRegistry) Open(pageSize int) (string, Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", nil, ErrRegistryClosed
	}

	id := uuid.NewString()
	l := r.open(pageSize)
	s := &listingSession{listing: l, stop: func() {}}
	if r.refresher != nil {
		s.stop = r.refresher.Start(context.Background(), false, "listing "+id, usecase.ListingJob(l))
	}
	r.sessions[id] = s
	if r.gauge != nil {
		r.gauge.ListingOpened()
	}
	return id, l, nil
}

func (r *ListingRegistry) Get(id string) (Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	return s.listing, nil
}

// Close stops the auto-refresh of the listing and closes it.
func (r *ListingRegistry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrListingNotFound
	}
	r.release(s)
	return nil
}

// CloseAll closes every session; later Open calls fail.
func (r *ListingRegistry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*listingSession)
	r.mu.Unlock()

	for _, s := range sessions {
		r.release(s)
	}
}

func (r *ListingRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *ListingRegistry) release(s *listingSession) {
	s.stop()
	s.listing.Close()
	if r.gauge != nil {
		r.gauge.ListingClosed()
	}
}

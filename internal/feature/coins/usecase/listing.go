package usecase

import (
	"sync"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/shared/signal"
)

// Listing bundles everything a list view needs: the paged data, the status
// of boundary loads and of refreshes, and the refresh and retry actions.
type Listing struct {
	Data          *PagedSequence
	NetworkStatus *signal.Signal[entity.Status]
	RefreshStatus *signal.Signal[entity.Status]

	coordinator *CacheCoordinator
	boundary    *BoundaryController

	mu         sync.Mutex
	generation uint64
	closed     bool
}

// Refresh starts a bulk refresh. RefreshStatus follows only the latest
// refresh; late statuses of a superseded one are dropped.
func (l *Listing) Refresh(withFeedback bool) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.generation++
	gen := l.generation
	l.mu.Unlock()

	l.coordinator.refresh(withFeedback, func(s entity.Status) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if gen != l.generation || l.closed {
			return
		}
		l.RefreshStatus.Publish(s)
	})
}

// Retry re-requests the first page after a failed initial load.
func (l *Listing) Retry() {
	l.boundary.Retry()
}

// Close disposes the boundary controller and stops the data and status signals.
// It is idempotent.
func (l *Listing) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.coordinator.forget(l.boundary)
	l.boundary.Dispose()
	l.Data.Close()
	l.RefreshStatus.Close()
}

// Package usecase implements the paginated cache synchronization of the coin listing.
package usecase

import (
	"context"
	"time"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/shared/signal"
)

// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).

// StoreTx is the set of writes and reads available inside one store transaction.
type StoreTx interface {
	// UpsertCoins inserts coins or overwrites existing rows with the same id.
	UpsertCoins(ctx context.Context, coins []entity.Coin) error
	// SetLastUpdate overwrites the singleton cache timestamp.
	SetLastUpdate(ctx context.Context, at time.Time) error
	// LastUpdate reads the cache timestamp; ok is false when none was ever written.
	LastUpdate(ctx context.Context) (at time.Time, ok bool, err error)
	DeleteAllCoins(ctx context.Context) error
	DeleteAllDetails(ctx context.Context) error
	CountCoins(ctx context.Context) (int, error)
	UpsertDetail(ctx context.Context, d entity.CoinDetail) error
}

// CoinStore is the persistent cache shared by every listing and the coordinator.
type CoinStore interface {
	StoreTx
	// RunInTransaction executes fn atomically. Writes made through tx are
	// published on Changes only after a successful commit.
	RunInTransaction(ctx context.Context, fn func(tx StoreTx) error) error
	// ListCoins returns up to limit coins ordered by SequenceIndex, skipping offset rows.
	ListCoins(ctx context.Context, offset, limit int) ([]entity.Coin, error)
	// FindCoinWithDetail joins the coin named name with its detail. It returns nil when no coin matches.
	FindCoinWithDetail(ctx context.Context, name string) (*entity.CoinWithDetail, error)
	// Changes publishes the tables touched by each committed write.
	Changes() *signal.Signal[entity.Change]
}

// RemoteSource fetches coins and volumes from the market data API.
type RemoteSource interface {
	FetchPage(ctx context.Context, limit, page int) (*entity.CoinPage, error)
	FetchDetails(ctx context.Context, symbol string) (*entity.VolumeHistory, error)
}

// RemoteInvalidator is implemented by remote sources that keep their own cache.
type RemoteInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Connectivity reports whether the network is reachable. It must not block.
type Connectivity interface {
	IsConnected() bool
}

// Metrics receives engine events. A nil Metrics is replaced by a no-op recorder.
type Metrics interface {
	PageFetched(origin string)
	FetchFailed(origin string)
	CachePurged()
	DetailUpdated()
	RefreshCompleted(chunks int, failed int)
}

const (
	// OriginBoundary labels fetches triggered by scroll boundaries.
	OriginBoundary = "boundary"
	// OriginRefresh labels fetches of the bulk refresh.
	OriginRefresh = "refresh"
	// OriginDetail labels detail fetches.
	OriginDetail = "detail"
)

type noopMetrics struct{}

func (noopMetrics) PageFetched(string)        {}
func (noopMetrics) FetchFailed(string)        {}
func (noopMetrics) CachePurged()              {}
func (noopMetrics) DetailUpdated()            {}
func (noopMetrics) RefreshCompleted(int, int) {}

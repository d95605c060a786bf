package usecase

import (
	"context"
	"log/slog"
	"sync"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/shared/signal"
)

// DetailView follows the join of one coin with its detail. Values is
// republished after every committed write to coins or details; a nil value
// means the coin is not cached.
type DetailView struct {
	Values *signal.Signal[*entity.CoinWithDetail]

	store  CoinStore
	name   string
	logger *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newDetailView(store CoinStore, name string, logger *slog.Logger) *DetailView {
	return &DetailView{
		Values: signal.New[*entity.CoinWithDetail](),
		store:  store,
		name:   name,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Close stops following the store and closes Values.
func (v *DetailView) Close() {
	v.stopOnce.Do(func() { close(v.stop) })
	<-v.done
	v.Values.Close()
}

func (v *DetailView) abort() {
	close(v.done)
	v.Values.Close()
}

func (v *DetailView) run(ctx context.Context) {
	defer close(v.done)

	changes, cancel := v.store.Changes().Subscribe(0)
	defer cancel()

	v.query(ctx)
	for {
		select {
		case <-ctx.Done():
			v.Values.Close()
			return
		case <-v.stop:
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if c.Has(entity.ChangeCoins) || c.Has(entity.ChangeDetails) {
				v.query(ctx)
			}
		}
	}
}

func (v *DetailView) query(ctx context.Context) {
	joined, err := v.store.FindCoinWithDetail(ctx, v.name)
	if err != nil {
		if ctx.Err() == nil {
			v.logger.Error("failed to query coin detail", "name", v.name, "error", err)
		}
		return
	}
	v.Values.Publish(joined)
}

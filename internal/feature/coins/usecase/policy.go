package usecase

import "time"

const (
	// DefaultPageSize is the listing page size used when none is given.
	DefaultPageSize = 20
	// MaxLimit is the largest page the remote API serves; bulk refresh chunks use it.
	MaxLimit = 100
	// CacheValidity is how long cached coins stay valid before a full purge.
	CacheValidity = 20 * time.Minute
	// RefreshInterval is the period of the auto-refresh timers.
	RefreshInterval = 2 * time.Minute
)

// Policy tunes the cache coordinator.
type Policy struct {
	PageSize int           // Default page size of listings
	MaxLimit int           // Chunk size of the bulk refresh
	Validity time.Duration // Cache validity window
}

// DefaultPolicy returns the production policy.
func DefaultPolicy() Policy {
	return Policy{PageSize: DefaultPageSize, MaxLimit: MaxLimit, Validity: CacheValidity}
}

func (p Policy) withDefaults() Policy {
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.MaxLimit <= 0 || p.MaxLimit > MaxLimit {
		p.MaxLimit = MaxLimit
	}
	if p.Validity <= 0 {
		p.Validity = CacheValidity
	}
	return p
}

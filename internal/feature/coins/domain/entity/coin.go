// Package entity defines the domain models for the coins feature.
package entity

import "time"

// Coin is one crypto currency row of the cached market-cap listing.
type Coin struct {
	ID            int     // CryptoCompare coin id
	Name          string  // Ticker-like unique name (e.g., "BTC")
	FullName      string  // Display name (e.g., "Bitcoin")
	ImageURL      string  // Relative logo path on cryptocompare.com
	Symbol        string  // Display symbol of the coin
	Price         float64 // Price in the quote currency
	SequenceIndex int     // Global rank in the remote listing; the only sort key
}

// CoinPage is one page of coins as returned by the remote source, in remote order.
type CoinPage struct {
	Coins []Coin
}

// Indexed returns the page's coins with SequenceIndex set to page*pageSize + position.
func (p CoinPage) Indexed(page, pageSize int) []Coin {
	out := make([]Coin, len(p.Coins))
	for i, c := range p.Coins {
		c.SequenceIndex = page*pageSize + i
		out[i] = c
	}
	return out
}

// NextPage returns the page that follows the one containing c.
func (c Coin) NextPage(pageSize int) int {
	return c.SequenceIndex/pageSize + 1
}

// CacheInfo is the singleton row recording when the coin cache was last written.
type CacheInfo struct {
	ID             int
	LastUpdateTime time.Time
}

// CacheInfoID is the fixed id of the CacheInfo row.
const CacheInfoID = 1

// Change flags which tables a committed write touched.
type Change uint8

const (
	// ChangeCoins is set when coin rows were written or deleted.
	ChangeCoins Change = 1 << iota
	// ChangeDetails is set when detail rows were written or deleted.
	ChangeDetails
)

// Has reports whether c includes every flag of other.
func (c Change) Has(other Change) bool {
	return c&other == other && other != 0
}

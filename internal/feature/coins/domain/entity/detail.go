package entity

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned by BuySimulation when the coin has no usable price.
var ErrNoPrice = errors.New("coin has no price")

// CoinDetail holds the daily traded volumes of one coin.
type CoinDetail struct {
	SymbolKey          string  // References Coin.Name
	CurrentVolume      float64 // Today's volume in coin units
	Last24Volume       float64 // Previous day's volume in coin units
	CurrentVolumeQuote float64 // Today's volume in the quote currency
	Last24VolumeQuote  float64 // Previous day's volume in the quote currency
}

// VolumeSample is one day of a volume time series.
type VolumeSample struct {
	VolumeFrom float64
	VolumeTo   float64
}

// VolumeHistory is the remote daily volume series, oldest sample first.
type VolumeHistory struct {
	Samples []VolumeSample
}

// ToDetail converts a two-day series into a CoinDetail for symbol.
// Any other series length is malformed and yields false.
func (h VolumeHistory) ToDetail(symbol string) (CoinDetail, bool) {
	if len(h.Samples) != 2 {
		return CoinDetail{}, false
	}
	prev, cur := h.Samples[0], h.Samples[1]
	return CoinDetail{
		SymbolKey:          symbol,
		CurrentVolume:      cur.VolumeFrom,
		Last24Volume:       prev.VolumeFrom,
		CurrentVolumeQuote: cur.VolumeTo,
		Last24VolumeQuote:  prev.VolumeTo,
	}, true
}

// CoinWithDetail joins a coin with its detail; Detail is nil until one was fetched.
type CoinWithDetail struct {
	Coin
	Detail *CoinDetail
}

// BuySimulation returns how many coins amount (in the quote currency) buys, rounded to 2 decimals.
func (v CoinWithDetail) BuySimulation(amount decimal.Decimal) (decimal.Decimal, error) {
	if v.Price <= 0 {
		return decimal.Zero, ErrNoPrice
	}
	return amount.Div(decimal.NewFromFloat(v.Price)).Round(2), nil
}

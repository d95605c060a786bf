// Package dto holds the JSON bodies of the coins HTTP and WebSocket API.
package dto

import (
	"github.com/shopspring/decimal"

	"crypto_backend/internal/feature/coins/domain/entity"
)

// Stream message types.
const (
	MessageNetwork = "network"
	MessageRefresh = "refresh"
	MessageItems   = "items"
	MessageDetail  = "detail"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateListingResponse struct {
	ID string `json:"id"`
}

type CoinResponse struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	FullName      string  `json:"full_name"`
	ImageURL      string  `json:"image_url"`
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	SequenceIndex int     `json:"sequence_index"`
}

// StatusResponse is a network or refresh status; Message is set for errors only.
type StatusResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// ListingResponse is a snapshot of a listing session. A status is null until
// the first one was published.
type ListingResponse struct {
	ID      string          `json:"id"`
	Items   []CoinResponse  `json:"items"`
	Network *StatusResponse `json:"network"`
	Refresh *StatusResponse `json:"refresh"`
}

type DetailBody struct {
	CurrentVolume      float64 `json:"current_volume"`
	Last24Volume       float64 `json:"last24_volume"`
	CurrentVolumeQuote float64 `json:"current_volume_quote"`
	Last24VolumeQuote  float64 `json:"last24_volume_quote"`
}

// DetailResponse is a coin joined with its volumes. Amount and Quantity are
// set when a buy simulation was requested.
type DetailResponse struct {
	Coin     CoinResponse `json:"coin"`
	Detail   *DetailBody  `json:"detail"`
	Amount   string       `json:"amount,omitempty"`
	Quantity string       `json:"quantity,omitempty"`
}

// StreamMessage is one WebSocket frame.
type StreamMessage struct {
	Type   string          `json:"type"`
	Status *StatusResponse `json:"status,omitempty"`
	Items  []CoinResponse  `json:"items,omitempty"`
	Detail *DetailResponse `json:"detail,omitempty"`
}

func NewCoinResponse(c entity.Coin) CoinResponse {
	return CoinResponse{
		ID:            c.ID,
		Name:          c.Name,
		FullName:      c.FullName,
		ImageURL:      c.ImageURL,
		Symbol:        c.Symbol,
		Price:         c.Price,
		SequenceIndex: c.SequenceIndex,
	}
}

// NewCoinResponses never returns nil so an empty window encodes as [].
func NewCoinResponses(coins []entity.Coin) []CoinResponse {
	out := make([]CoinResponse, 0, len(coins))
	for _, c := range coins {
		out = append(out, NewCoinResponse(c))
	}
	return out
}

func NewStatusResponse(s entity.Status, ok bool) *StatusResponse {
	if !ok {
		return nil
	}
	return &StatusResponse{Kind: s.Kind.String(), Message: s.Message}
}

func NewDetailResponse(v *entity.CoinWithDetail) *DetailResponse {
	if v == nil {
		return nil
	}
	out := &DetailResponse{Coin: NewCoinResponse(v.Coin)}
	if d := v.Detail; d != nil {
		out.Detail = &DetailBody{
			CurrentVolume:      d.CurrentVolume,
			Last24Volume:       d.Last24Volume,
			CurrentVolumeQuote: d.CurrentVolumeQuote,
			Last24VolumeQuote:  d.Last24VolumeQuote,
		}
	}
	return out
}

// WithSimulation records a buy of amount resulting in quantity coins.
func (r *DetailResponse) WithSimulation(amount, quantity decimal.Decimal) *DetailResponse {
	r.Amount = amount.String()
	r.Quantity = quantity.StringFixed(2)
	return r
}

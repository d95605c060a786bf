// Package dto holds the wire format of the CryptoCompare API.
package dto

import (
	"sort"
	"strconv"

	json "github.com/goccy/go-json"
)

// Envelope is the part shared by every response. Failed calls carry
// Response "Error" and a Message, usually with HTTP 200.
type Envelope struct {
	Response string `json:"Response"`
	Message  string `json:"Message"`
}

// Failed reports whether the API rejected the call.
func (e Envelope) Failed() bool {
	return e.Response == "Error"
}

// TopListResponse is returned by /data/top/mktcapfull.
type TopListResponse struct {
	Envelope
	Data []TopListEntry `json:"Data"`
}

// TopListEntry is one coin of the market-cap listing. RAW and DISPLAY are
// keyed by the quote currency.
type TopListEntry struct {
	CoinInfo CoinInfo                `json:"CoinInfo"`
	Raw      map[string]RawQuote     `json:"RAW"`
	Display  map[string]DisplayQuote `json:"DISPLAY"`
}

type CoinInfo struct {
	ID       FlexInt `json:"Id"`
	Name     string  `json:"Name"`
	FullName string  `json:"FullName"`
	ImageURL string  `json:"ImageUrl"`
}

type RawQuote struct {
	Price float64 `json:"PRICE"`
}

type DisplayQuote struct {
	FromSymbol string `json:"FROMSYMBOL"`
}

// QuoteKey returns quote when the entry is priced in it, otherwise the first
// quote key present in DISPLAY, then in RAW.
func (e TopListEntry) QuoteKey(quote string) string {
	if _, ok := e.Display[quote]; ok {
		return quote
	}
	if _, ok := e.Raw[quote]; ok {
		return quote
	}
	if k := firstKey(e.Display); k != "" {
		return k
	}
	return firstKey(e.Raw)
}

func firstKey[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return keys[0]
}

// HistoDayResponse is returned by /data/histoday, oldest sample first.
type HistoDayResponse struct {
	Envelope
	Data []HistoDaySample `json:"Data"`
}

type HistoDaySample struct {
	Time       int64   `json:"time"`
	VolumeFrom float64 `json:"volumefrom"`
	VolumeTo   float64 `json:"volumeto"`
}

// FlexInt decodes ids sent either as a JSON number or as a numeric string.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*f = FlexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

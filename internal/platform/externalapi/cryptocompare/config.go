// Package cryptocompare provides a client for the CryptoCompare market data API.
package cryptocompare

import "time"

const (
	DefaultBaseURL = "https://min-api.cryptocompare.com"
	DefaultQuote   = "EUR"
)

// Config holds configuration for the CryptoCompare API client.
type Config struct {
	BaseURL       string        // Base URL for the API (e.g., "https://min-api.cryptocompare.com")
	APIKey        string        // Optional API key, sent as "Authorization: Apikey <key>"
	Quote         string        // Quote currency of prices and volumes (e.g., "EUR")
	Timeout       time.Duration // HTTP request timeout
	RatePerSecond float64       // Request budget; zero disables throttling
	Burst         int
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		BaseURL:       DefaultBaseURL,
		Quote:         DefaultQuote,
		Timeout:       10 * time.Second,
		RatePerSecond: 5,
		Burst:         5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Quote == "" {
		c.Quote = d.Quote
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

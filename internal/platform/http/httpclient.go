// Package http builds the outbound HTTP clients used for external APIs.
package http

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient creates an HTTP client configured for external API calls.
//
// Settings:
//   - Proxy: taken from the environment (HTTP_PROXY and friends)
//   - Dialer.Timeout: TCP connect timeout, shorter than the default
//   - Dialer.KeepAlive: how long reusable TCP connections are kept
//   - MaxIdleConns: 100
//   - IdleConnTimeout: how long idle connections are kept
//   - TLSHandshakeTimeout: upper bound of the HTTPS handshake
//   - Client.Timeout: whole-request timeout, passed by the caller
//
// http.DefaultClient has no timeout; always use a client from here.
func NewHTTPClient(timeout time.Duration, wrappers ...func(http.RoundTripper) http.RoundTripper) *http.Client {
	var rt http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	for _, wrap := range wrappers {
		rt = wrap(rt)
	}
	return &http.Client{Timeout: timeout, Transport: rt}
}

// WithHeader returns a wrapper setting header to value on every request.
// An empty value leaves requests untouched.
func WithHeader(header, value string) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		if value == "" {
			return next
		}
		return &headerTransport{next: next, header: header, value: value}
	}
}

// WithAPIKey sends key as "Authorization: Apikey <key>", the scheme CryptoCompare expects.
func WithAPIKey(key string) func(http.RoundTripper) http.RoundTripper {
	if key == "" {
		return WithHeader("Authorization", "")
	}
	return WithHeader("Authorization", "Apikey "+key)
}

type headerTransport struct {
	next   http.RoundTripper
	header string
	value  string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set(t.header, t.value)
	return t.next.RoundTrip(r)
}

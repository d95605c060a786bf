package cryptocompare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/feature/coins/usecase"
	"crypto_backend/internal/platform/externalapi/cryptocompare/dto"
	"crypto_backend/internal/shared/ratelimiter"
)

// ErrRemote is wrapped by every failure reported by the API itself.
var ErrRemote = errors.New("cryptocompare")

const (
	topListPath  = "/data/top/mktcapfull"
	histoDayPath = "/data/histoday"

	// histoDayLimit asks for yesterday and today.
	histoDayLimit = 1

	// maxResponseBytes caps a response body; a full top list page is far below it.
	maxResponseBytes = 4 << 20
)

// Client is the RemoteSource backed by the CryptoCompare REST API.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter ratelimiter.RateLimiterInterface
}

var _ usecase.RemoteSource = (*Client)(nil)

// NewClient returns a client using httpClient for transport. A nil limiter
// disables throttling.
func NewClient(cfg Config, httpClient *http.Client, limiter ratelimiter.RateLimiterInterface) *Client {
	if limiter == nil {
		limiter = ratelimiter.NewPerSecond(0, 0)
	}
	return &Client{cfg: cfg.withDefaults(), client: httpClient, limiter: limiter}
}

// FetchPage returns one page of the market-cap listing, in listing order.
func (c *Client) FetchPage(ctx context.Context, limit, page int) (*entity.CoinPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))
	q.Set("tsym", c.cfg.Quote)

	var body dto.TopListResponse
	if err := c.get(ctx, topListPath, q, &body); err != nil {
		return nil, err
	}

	coins := make([]entity.Coin, 0, len(body.Data))
	for _, e := range body.Data {
		key := e.QuoteKey(c.cfg.Quote)
		coins = append(coins, entity.Coin{
			ID:       int(e.CoinInfo.ID),
			Name:     e.CoinInfo.Name,
			FullName: e.CoinInfo.FullName,
			ImageURL: e.CoinInfo.ImageURL,
			Symbol:   e.Display[key].FromSymbol,
			Price:    e.Raw[key].Price,
		})
	}
	return &entity.CoinPage{Coins: coins}, nil
}

// FetchDetails returns the daily volumes of symbol for yesterday and today.
func (c *Client) FetchDetails(ctx context.Context, symbol string) (*entity.VolumeHistory, error) {
	q := url.Values{}
	q.Set("fsym", symbol)
	q.Set("tsym", c.cfg.Quote)
	q.Set("limit", strconv.Itoa(histoDayLimit))

	var body dto.HistoDayResponse
	if err := c.get(ctx, histoDayPath, q, &body); err != nil {
		return nil, err
	}

	samples := make([]entity.VolumeSample, 0, len(body.Data))
	for _, s := range body.Data {
		samples = append(samples, entity.VolumeSample{VolumeFrom: s.VolumeFrom, VolumeTo: s.VolumeTo})
	}
	return &entity.VolumeHistory{Samples: samples}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := fmt.Sprintf("%s%s?%s", strings.TrimRight(c.cfg.BaseURL, "/"), path, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return fmt.Errorf("%w: http %d", ErrRemote, res.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if err != nil {
		return err
	}
	if len(raw) > maxResponseBytes {
		return fmt.Errorf("%w: response exceeds %d bytes", ErrRemote, maxResponseBytes)
	}
	// Error envelopes may carry Data as an object, so check them first.
	var env dto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if env.Failed() {
		return fmt.Errorf("%w: %s", ErrRemote, env.Message)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/feature/coins/usecase"
)

const (
	DefaultTTL       = 30 * time.Second
	DefaultNamespace = "cryptocompare"

	scanCount = 200
)

// CachingRemoteSource decorates a RemoteSource with Redis caching, so that
// several instances share one view of the remote API within the ttl.
type CachingRemoteSource struct {
	inner     usecase.RemoteSource
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var (
	_ usecase.RemoteSource      = (*CachingRemoteSource)(nil)
	_ usecase.RemoteInvalidator = (*CachingRemoteSource)(nil)
)

// NewCachingRemoteSource decorates inner with Redis caching.
// If ttl is 0, it defaults to 30 seconds. If namespace is empty, it uses "cryptocompare".
// A nil rdb bypasses the cache.
func NewCachingRemoteSource(rdb *redis.Client, ttl time.Duration, inner usecase.RemoteSource, namespace string) *CachingRemoteSource {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CachingRemoteSource{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// FetchPage returns a cached page when present, otherwise asks the remote and caches the answer.
func (c *CachingRemoteSource) FetchPage(ctx context.Context, limit, page int) (*entity.CoinPage, error) {
	return cached(ctx, c, c.pageKey(limit, page), func() (*entity.CoinPage, error) {
		return c.inner.FetchPage(ctx, limit, page)
	})
}

// FetchDetails returns cached volumes when present, otherwise asks the remote and caches the answer.
func (c *CachingRemoteSource) FetchDetails(ctx context.Context, symbol string) (*entity.VolumeHistory, error) {
	return cached(ctx, c, c.detailKey(symbol), func() (*entity.VolumeHistory, error) {
		return c.inner.FetchDetails(ctx, symbol)
	})
}

// Invalidate drops every entry of the namespace.
func (c *CachingRemoteSource) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.deleteByPattern(ctx, c.namespace+":*")
}

func cached[T any](ctx context.Context, c *CachingRemoteSource, key string, load func() (*T, error)) (*T, error) {
	if c.rdb == nil {
		return load()
	}

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out T
		if err := json.Unmarshal(b, &out); err == nil {
			return &out, nil
		}
		// corrupted entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := load()
	if err != nil {
		return nil, err
	}

	// best effort
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return out, nil
}

func (c *CachingRemoteSource) pageKey(limit, page int) string {
	return fmt.Sprintf("%s:page:%d:%d", c.namespace, limit, page)
}

func (c *CachingRemoteSource) detailKey(symbol string) string {
	return fmt.Sprintf("%s:detail:%s", c.namespace, safe(symbol))
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingRemoteSource) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}

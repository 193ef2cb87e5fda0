package matrix

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"fleetopt/internal/model"
)

// CachedProvider wraps another Provider with a Redis cache keyed by the
// point set. Cache failures are ignored; the inner provider still decides
// success or failure.
type CachedProvider struct {
	inner Provider
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedProvider builds a caching wrapper. TTL <= 0 defaults to 10 minutes.
func NewCachedProvider(inner Provider, rdb *redis.Client, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedProvider{inner: inner, rdb: rdb, ttl: ttl}
}

// cacheKey hashes the coordinates at ~1m resolution so float noise does not
// fragment the cache.
func cacheKey(points []model.GeoPoint) string {
	h := sha256.New()
	for _, p := range points {
		fmt.Fprintf(h, "%.5f,%.5f;", p.Lat, p.Lng)
	}
	return "matrix:" + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedProvider) GetMatrix(ctx context.Context, points []model.GeoPoint) (*Matrix, error) {
	key := cacheKey(points)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var m Matrix
		if err := json.Unmarshal(raw, &m); err == nil && m.N == len(points) {
			return &m, nil
		}
	}
	m, err := c.inner.GetMatrix(ctx, points)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(m); err == nil {
		_ = c.rdb.Set(ctx, key, raw, c.ttl).Err()
	}
	return m, nil
}

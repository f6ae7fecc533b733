package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const productsCacheKey = "rv:catalog:products"

// ListCache keeps the full product listing in Redis. The kiosk UI polls it
// on every screen, so misses are collapsed through singleflight to keep one
// query in flight per instance.
type ListCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

func NewListCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ListCache {
	return &ListCache{client: client, ttl: ttl, logger: logger}
}

// Products returns the cached listing, loading through fill on a miss.
// Cache failures degrade to the loader; they never fail the request.
func (c *ListCache) Products(ctx context.Context, fill func(context.Context) ([]Product, error)) ([]Product, error) {
	raw, err := c.client.Get(ctx, productsCacheKey).Bytes()
	if err == nil {
		var products []Product
		if err := json.Unmarshal(raw, &products); err == nil {
			return products, nil
		}
		c.logger.Warn("catalog cache entry unreadable, refilling", slog.String("key", productsCacheKey))
	} else if err != redis.Nil {
		c.logger.Warn("catalog cache read failed", slog.Any("error", err))
	}

	v, err, _ := c.group.Do(productsCacheKey, func() (any, error) {
		products, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(products); err == nil {
			if err := c.client.Set(ctx, productsCacheKey, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("catalog cache write failed", slog.Any("error", err))
			}
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Product), nil
}

// Invalidate drops the cached listing after any write that changes stock,
// prices or the product set.
func (c *ListCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, productsCacheKey).Err(); err != nil {
		c.logger.Warn("catalog cache invalidation failed", slog.Any("error", err))
	}
}

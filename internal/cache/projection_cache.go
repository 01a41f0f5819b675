// Package cache fronts the projection store with a redis snapshot of the
// product list.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/catalog-sync/internal/repository"
)

const defaultKey = "catalogsync:projection:products"

// Option configures a ProjectionCache.
type Option func(*ProjectionCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *ProjectionCache) { c.ttl = ttl }
}

func WithKey(key string) Option {
	return func(c *ProjectionCache) { c.key = key }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *ProjectionCache) { c.logger = l }
}

// ProjectionCache is a read-through decorator. The wrapped store stays
// authoritative: redis failures are logged and the call falls through.
//
// Snapshots live under key:<generation>. Upsert bumps key:gen after the
// store write, so a snapshot loaded before that bump is filed under a
// generation no reader will ask for again.
type ProjectionCache struct {
	next   repository.ProjectionRepository
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

var _ repository.ProjectionRepository = (*ProjectionCache)(nil)

func NewProjectionCache(next repository.ProjectionRepository, client redis.UniversalClient, opts ...Option) *ProjectionCache {
	c := &ProjectionCache{
		next:   next,
		client: client,
		key:    defaultKey,
		ttl:    30 * time.Second,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ProjectionCache) genKey() string { return c.key + ":gen" }

func (c *ProjectionCache) listKey(gen int64) string { return fmt.Sprintf("%s:%d", c.key, gen) }

// Upsert writes through and moves readers to a fresh generation.
func (c *ProjectionCache) Upsert(ctx context.Context, p entity.Product) (entity.Product, error) {
	stored, err := c.next.Upsert(ctx, p)
	if err != nil {
		return entity.Product{}, err
	}
	gen, err := c.client.Incr(ctx, c.genKey()).Result()
	if err != nil {
		c.logger.Warn("Failed to invalidate product cache", "key", c.genKey(), "err", err)
		return stored, nil
	}
	if err := c.client.Del(ctx, c.listKey(gen-1)).Err(); err != nil {
		c.logger.Debug("Failed to drop previous product cache entry", "key", c.listKey(gen-1), "err", err)
	}
	return stored, nil
}

func (c *ProjectionCache) FindAll(ctx context.Context) ([]entity.Product, error) {
	// The generation is read before the store so a concurrent Upsert
	// always lands after it.
	gen, err := c.client.Get(ctx, c.genKey()).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		gen = 0
	case err != nil:
		c.logger.Warn("Failed to read product cache generation", "key", c.genKey(), "err", err)
		return c.next.FindAll(ctx)
	}
	key := c.listKey(gen)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var products []entity.Product
		if err := json.Unmarshal(data, &products); err == nil {
			return products, nil
		}
		c.logger.Warn("Discarding unreadable product cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Failed to read product cache", "key", key, "err", err)
	}

	products, err := c.next.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	data, err = json.Marshal(products)
	if err != nil {
		c.logger.Warn("Failed to encode product cache entry", "err", err)
		return products, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to write product cache", "key", key, "err", err)
	}
	return products, nil
}

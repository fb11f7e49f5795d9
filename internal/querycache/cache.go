// Package querycache is the read-through cache in front of the blog API, keyed by
// (resource, slug) and invalidated explicitly after writes.
package querycache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Key identifies one cached query, e.g. {"blog", "hello-world"}.
type Key struct {
	Resource string
	Slug     string
}

func (k Key) String() string {
	return k.Resource + ":" + k.Slug
}

// Store is the backing key/value store.
type Store interface {
	// Get decodes the entry into dest; it reports false on a miss.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cache implements cache-aside reads and explicit invalidation over a Store.
type Cache struct {
	store  Store
	ttl    time.Duration
	prefix string
	log    zerolog.Logger
}

// New creates a Cache; entries expire after ttl (0 keeps them until invalidated).
func New(store Store, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{store: store, ttl: ttl, prefix: "postdesk:", log: log}
}

// Fetch fills dest from the cache, or calls fetch and stores its result.
// Failed fetches are never cached.
func (c *Cache) Fetch(ctx context.Context, key Key, dest any, fetch func(ctx context.Context) error) error {
	storeKey := c.prefix + key.String()

	found, err := c.store.Get(ctx, storeKey, dest)
	if err != nil {
		c.log.Warn().Err(err).Str("key", storeKey).Msg("query cache read failed, fetching")
	}
	if found {
		return nil
	}

	if err := fetch(ctx); err != nil {
		return err
	}

	if err := c.store.Set(ctx, storeKey, dest, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", storeKey).Msg("query cache write failed")
	}
	return nil
}

// Invalidate drops the entry so the next Fetch goes to the source.
func (c *Cache) Invalidate(ctx context.Context, key Key) error {
	storeKey := c.prefix + key.String()
	if err := c.store.Delete(ctx, storeKey); err != nil {
		return err
	}
	c.log.Debug().Str("key", storeKey).Msg("query cache entry invalidated")
	return nil
}

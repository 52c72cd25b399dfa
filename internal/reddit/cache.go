package reddit

import (
	"context"
	"log/slog"
	"time"

	"github.com/lepinkainen/subwatch/pkg/database"
)

// ExistenceChecker confirms that a subreddit exists.
type ExistenceChecker interface {
	FeedExists(ctx context.Context, feedID string) (bool, error)
}

// CachedChecker remembers existence lookups in a TTL cache. Lookup errors
// are never cached.
type CachedChecker struct {
	next  ExistenceChecker
	cache *database.Cache
	ttl   time.Duration
}

// NewCachedChecker wraps next with cache.
func NewCachedChecker(next ExistenceChecker, cache *database.Cache, ttl time.Duration) *CachedChecker {
	return &CachedChecker{next: next, cache: cache, ttl: ttl}
}

// FeedExists answers from the cache when possible.
func (c *CachedChecker) FeedExists(ctx context.Context, feedID string) (bool, error) {
	key := "exists:" + feedID

	if value, ok, err := c.cache.Get(ctx, key); err != nil {
		slog.Warn("Existence cache lookup failed", "feed", feedID, "error", err)
	} else if ok {
		return value == "1", nil
	}

	exists, err := c.next.FeedExists(ctx, feedID)
	if err != nil {
		return false, err
	}

	value := "0"
	if exists {
		value = "1"
	}
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		slog.Warn("Existence cache store failed", "feed", feedID, "error", err)
	}
	return exists, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
)

// Cache is a key/value table with per-entry expiry. Expiry is stored as
// unix seconds so comparisons do not depend on timestamp formatting.
type Cache struct {
	db        *Database
	tableName string
	now       func() time.Time
}

// CacheStats counts cache entries.
type CacheStats struct {
	TotalEntries int64 `json:"total_entries"`
	ValidEntries int64 `json:"valid_entries"`
}

// NewCache creates a new cache instance
func NewCache(db *Database, tableName string) *Cache {
	return &Cache{
		db:        db,
		tableName: tableName,
		now:       time.Now,
	}
}

// InitializeCache creates the cache table if it doesn't exist
func (c *Cache) InitializeCache(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at);
	`, c.tableName, c.tableName, c.tableName)

	return c.db.ExecuteSchema(ctx, schema)
}

// Get retrieves an unexpired value from the cache
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("value").From(c.tableName).Where(
		sb.Equal("key", key),
		sb.GreaterThan("expires_at", c.now().Unix()),
	)
	query, args := sb.Build()

	var value string
	err := c.db.DB().QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cache value: %w", err)
	}

	return value, true, nil
}

// Set stores a value in the cache
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := c.now()

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.ReplaceInto(c.tableName).
		Cols("key", "value", "expires_at", "updated_at").
		Values(key, value, now.Add(ttl).Unix(), now.Unix())
	query, args := ib.Build()

	if _, err := c.db.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set cache value: %w", err)
	}
	return nil
}

// CleanupExpired removes expired entries from the cache
func (c *Cache) CleanupExpired(ctx context.Context) error {
	db := sqlbuilder.SQLite.NewDeleteBuilder()
	db.DeleteFrom(c.tableName).Where(db.LessEqualThan("expires_at", c.now().Unix()))
	query, args := db.Build()

	result, err := c.db.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired entries: %w", err)
	}

	if rowsAffected, _ := result.RowsAffected(); rowsAffected > 0 {
		slog.Debug("Cleaned up expired cache entries", "table", c.tableName, "count", rowsAffected)
	}
	return nil
}

// Stats returns cache statistics
func (c *Cache) Stats(ctx context.Context) (*CacheStats, error) {
	var stats CacheStats

	total := sqlbuilder.SQLite.NewSelectBuilder()
	total.Select("COUNT(*)").From(c.tableName)
	query, args := total.Build()
	if err := c.db.DB().QueryRowContext(ctx, query, args...).Scan(&stats.TotalEntries); err != nil {
		return nil, fmt.Errorf("failed to count cache entries: %w", err)
	}

	valid := sqlbuilder.SQLite.NewSelectBuilder()
	valid.Select("COUNT(*)").From(c.tableName).Where(valid.GreaterThan("expires_at", c.now().Unix()))
	query, args = valid.Build()
	if err := c.db.DB().QueryRowContext(ctx, query, args...).Scan(&stats.ValidEntries); err != nil {
		return nil, fmt.Errorf("failed to count valid cache entries: %w", err)
	}

	return &stats, nil
}

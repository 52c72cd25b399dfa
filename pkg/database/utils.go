package database

import (
	"context"
	"fmt"
	"os"
)

// Info describes the database for the status endpoint.
type Info struct {
	SQLiteVersion string `json:"sqlite_version"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	TableCount    int    `json:"table_count"`
}

// GetDatabaseSize returns the size of the database file in bytes
func GetDatabaseSize(dbPath string) (int64, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get database file info: %w", err)
	}
	return info.Size(), nil
}

// GetInfo returns version and size information about the database
func (db *Database) GetInfo(ctx context.Context) (*Info, error) {
	var info Info

	if err := db.DB().QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&info.SQLiteVersion); err != nil {
		return nil, fmt.Errorf("failed to get SQLite version: %w", err)
	}

	if size, err := GetDatabaseSize(db.Path()); err == nil {
		info.FileSizeBytes = size
	}

	err := db.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&info.TableCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get table count: %w", err)
	}

	return &info, nil
}

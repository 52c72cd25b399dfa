// Package store persists per-user watch state. Every backend stores the
// whole state of one user at a time; the watchlist registry decides when.
package store

import (
	"context"
	"fmt"

	"github.com/lepinkainen/subwatch/internal/watch"
)

// Backend names accepted by the storage.backend setting.
const (
	BackendSQLite = "sqlite"
	BackendYAML   = "yaml"
	BackendMemory = "memory"
)

// Store loads and saves user watch state. Load of an unknown user returns
// an empty state, not an error.
type Store interface {
	Load(ctx context.Context, userID string) (*watch.UserWatchState, error)
	Save(ctx context.Context, state *watch.UserWatchState) error
	Users(ctx context.Context) ([]string, error)
}

// ValidateBackend checks a configured backend name.
func ValidateBackend(name string) error {
	switch name {
	case BackendSQLite, BackendYAML, BackendMemory:
		return nil
	default:
		return fmt.Errorf("unknown storage backend %q", name)
	}
}

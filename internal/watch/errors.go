package watch

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is through the typed errors below.
var (
	ErrInvalidFeedName = errors.New("invalid feed name")
	ErrInvalidPattern  = errors.New("invalid filter pattern")
	ErrFeedNotFound    = errors.New("feed does not exist")
	ErrNotWatched      = errors.New("feed not in watchlist")
	ErrTransientFetch  = errors.New("feed fetch failed")
	ErrPersistence     = errors.New("persisting watch state failed")
)

// ValidationError reports malformed user input. Nothing was mutated.
type ValidationError struct {
	Field string
	Value string
	Err   error
	cause error
}

func (e *ValidationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s %q: %v: %v", e.Field, e.Value, e.Err, e.cause)
	}
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Err, e.cause}
	}
	return []error{e.Err}
}

// NotFoundError reports a feed that does not exist upstream or is not on
// the user's watchlist.
type NotFoundError struct {
	FeedID string
	Err    error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("r/%s: %v", e.FeedID, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// TransientFetchError wraps a failed fetch of one feed. The feed is skipped
// for the current cycle and retried on the next.
type TransientFetchError struct {
	FeedID string
	Err    error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetching r/%s: %v", e.FeedID, e.Err)
}

func (e *TransientFetchError) Unwrap() []error { return []error{ErrTransientFetch, e.Err} }

// PersistenceError reports that a state change could not be saved. The
// in-memory state keeps the change.
type PersistenceError struct {
	UserID string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("saving state for user %s: %v", e.UserID, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

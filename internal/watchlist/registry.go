// Package watchlist is the per-user watch record store. It owns the
// in-memory state of every user seen so far, serializes all access to one
// user's state and persists the state after every mutation.
package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/lepinkainen/subwatch/internal/metrics"
	"github.com/lepinkainen/subwatch/internal/watch"
)

// Store persists whole user states.
type Store interface {
	Load(ctx context.Context, userID string) (*watch.UserWatchState, error)
	Save(ctx context.Context, state *watch.UserWatchState) error
	Users(ctx context.Context) ([]string, error)
}

// ExistenceChecker confirms that a feed exists before it is first watched.
type ExistenceChecker interface {
	FeedExists(ctx context.Context, feedID string) (bool, error)
}

// AddResult is the outcome of AddOrUpdate.
type AddResult int

const (
	// Added means the feed was appended to the watchlist.
	Added AddResult = iota
	// Updated means an existing feed got a new filter pattern.
	Updated
	// AlreadyWatched means the feed is present and no pattern was given.
	AlreadyWatched
)

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case AlreadyWatched:
		return "already_watched"
	default:
		return fmt.Sprintf("AddResult(%d)", int(r))
	}
}

type userEntry struct {
	mu    sync.Mutex
	state *watch.UserWatchState
}

// Registry hands out serialized access to user states.
type Registry struct {
	store   Store
	checker ExistenceChecker

	mu    sync.Mutex
	users map[string]*userEntry
}

// NewRegistry creates a registry backed by store.
func NewRegistry(store Store, checker ExistenceChecker) *Registry {
	return &Registry{
		store:   store,
		checker: checker,
		users:   make(map[string]*userEntry),
	}
}

// lock returns the user's entry locked with its state loaded. The caller
// must unlock e.mu.
func (r *Registry) lock(ctx context.Context, userID string) (*userEntry, error) {
	r.mu.Lock()
	e, ok := r.users[userID]
	if !ok {
		e = &userEntry{}
		r.users[userID] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	if e.state == nil {
		state, err := r.store.Load(ctx, userID)
		if err != nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("failed to load state of user %s: %w", userID, err)
		}
		e.state = state
	}
	return e, nil
}

// save persists the state. A failure leaves the in-memory change in place
// and is reported as a PersistenceError.
func (r *Registry) save(ctx context.Context, state *watch.UserWatchState) error {
	if err := r.store.Save(ctx, state.Clone()); err != nil {
		metrics.PersistenceErrors.Inc()
		slog.Warn("Failed to persist watch state", "user", state.UserID, "error", err)
		return &watch.PersistenceError{UserID: state.UserID, Err: err}
	}
	return nil
}

// Mutate runs fn with exclusive access to the user's state and saves the
// state afterwards, even when fn reports an error.
func (r *Registry) Mutate(ctx context.Context, userID string, fn func(*watch.UserWatchState) error) error {
	e, err := r.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	fnErr := fn(e.state)
	if err := r.save(ctx, e.state); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

// View runs fn with exclusive read access to the user's state. fn must not
// retain or modify the state.
func (r *Registry) View(ctx context.Context, userID string, fn func(*watch.UserWatchState)) error {
	e, err := r.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	fn(e.state)
	return nil
}

// AddOrUpdate adds feedID to the user's watchlist or replaces its pattern.
// A nil pattern on an already watched feed changes nothing; an empty
// pattern watches every post. New feeds must exist upstream.
func (r *Registry) AddOrUpdate(ctx context.Context, userID, feedID string, pattern *string) (AddResult, error) {
	if err := watch.ValidateFeedName(feedID); err != nil {
		return 0, err
	}
	if pattern != nil {
		if _, err := watch.CompilePattern(*pattern); err != nil {
			return 0, err
		}
	}

	result, done, err := r.updateExisting(ctx, userID, feedID, pattern)
	if done || err != nil {
		return result, err
	}

	// the upstream lookup runs without the user lock so a slow check
	// does not hold up the user's poll cycle
	exists, err := r.checker.FeedExists(ctx, feedID)
	if err != nil {
		return 0, fmt.Errorf("failed to check r/%s: %w", feedID, err)
	}
	if !exists {
		return 0, &watch.NotFoundError{FeedID: feedID, Err: watch.ErrFeedNotFound}
	}

	e, err := r.lock(ctx, userID)
	if err != nil {
		return 0, err
	}
	defer e.mu.Unlock()

	// another command may have added it while the lock was released
	if f := e.state.Feed(feedID); f != nil {
		if pattern == nil {
			return AlreadyWatched, nil
		}
		f.FilterPattern = *pattern
		return Updated, r.save(ctx, e.state)
	}

	e.state.Feeds = append(e.state.Feeds, watch.WatchedFeed{
		FeedID:        feedID,
		SeenItemIDs:   []string{},
		FilterPattern: lo.FromPtr(pattern),
	})
	slog.Info("Feed added to watchlist", "user", userID, "feed", feedID)
	return Added, r.save(ctx, e.state)
}

func (r *Registry) updateExisting(ctx context.Context, userID, feedID string, pattern *string) (AddResult, bool, error) {
	e, err := r.lock(ctx, userID)
	if err != nil {
		return 0, true, err
	}
	defer e.mu.Unlock()

	f := e.state.Feed(feedID)
	if f == nil {
		return 0, false, nil
	}
	if pattern == nil {
		return AlreadyWatched, true, nil
	}
	f.FilterPattern = *pattern
	return Updated, true, r.save(ctx, e.state)
}

// Remove deletes feedID from the user's watchlist. It reports false when
// the feed was not watched.
func (r *Registry) Remove(ctx context.Context, userID, feedID string) (bool, error) {
	e, err := r.lock(ctx, userID)
	if err != nil {
		return false, err
	}
	defer e.mu.Unlock()

	i := e.state.FeedIndex(feedID)
	if i < 0 {
		return false, nil
	}
	e.state.Feeds = append(e.state.Feeds[:i], e.state.Feeds[i+1:]...)
	slog.Info("Feed removed from watchlist", "user", userID, "feed", feedID)
	return true, r.save(ctx, e.state)
}

// List returns copies of the user's watched feeds in insertion order.
func (r *Registry) List(ctx context.Context, userID string) ([]watch.WatchedFeed, error) {
	var feeds []watch.WatchedFeed
	err := r.View(ctx, userID, func(s *watch.UserWatchState) {
		feeds = lo.Map(s.Feeds, func(f watch.WatchedFeed, _ int) watch.WatchedFeed {
			return f.Clone()
		})
	})
	return feeds, err
}

// SetPattern replaces the filter of a watched feed; an empty pattern clears
// it. It reports false when the feed is not watched.
func (r *Registry) SetPattern(ctx context.Context, userID, feedID, pattern string) (bool, error) {
	if _, err := watch.CompilePattern(pattern); err != nil {
		return false, err
	}

	e, err := r.lock(ctx, userID)
	if err != nil {
		return false, err
	}
	defer e.mu.Unlock()

	f := e.state.Feed(feedID)
	if f == nil {
		return false, nil
	}
	f.FilterPattern = pattern
	return true, r.save(ctx, e.state)
}

// ClearPattern removes the filter of a watched feed.
func (r *Registry) ClearPattern(ctx context.Context, userID, feedID string) (bool, error) {
	return r.SetPattern(ctx, userID, feedID, "")
}

// Pattern returns the filter of a watched feed. ok is false when the feed
// is not watched.
func (r *Registry) Pattern(ctx context.Context, userID, feedID string) (pattern string, ok bool, err error) {
	err = r.View(ctx, userID, func(s *watch.UserWatchState) {
		if f := s.Feed(feedID); f != nil {
			pattern, ok = f.FilterPattern, true
		}
	})
	return pattern, ok, err
}

// SetPolling records whether the user's poller is enabled. It reports
// whether the flag changed.
func (r *Registry) SetPolling(ctx context.Context, userID string, enabled bool) (bool, error) {
	e, err := r.lock(ctx, userID)
	if err != nil {
		return false, err
	}
	defer e.mu.Unlock()

	if e.state.PollingEnabled == enabled {
		return false, nil
	}
	e.state.PollingEnabled = enabled
	return true, r.save(ctx, e.state)
}

// PollingUsers returns every stored user whose polling flag is set.
func (r *Registry) PollingUsers(ctx context.Context) ([]string, error) {
	ids, err := r.store.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var enabled []string
	for _, id := range ids {
		var on bool
		if err := r.View(ctx, id, func(s *watch.UserWatchState) { on = s.PollingEnabled }); err != nil {
			return nil, err
		}
		if on {
			enabled = append(enabled, id)
		}
	}
	return enabled, nil
}

// Stats summarizes the users loaded into memory.
type Stats struct {
	Users          int `json:"users"`
	PollingEnabled int `json:"polling_enabled"`
	WatchedFeeds   int `json:"watched_feeds"`
}

// Stats counts loaded users and their feeds. Users are inspected one at a
// time, so the totals are not a single consistent snapshot.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	entries := lo.Values(r.users)
	r.mu.Unlock()

	var stats Stats
	for _, e := range entries {
		e.mu.Lock()
		if e.state != nil {
			stats.Users++
			stats.WatchedFeeds += len(e.state.Feeds)
			if e.state.PollingEnabled {
				stats.PollingEnabled++
			}
		}
		e.mu.Unlock()
	}
	return stats
}

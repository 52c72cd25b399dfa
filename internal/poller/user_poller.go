package poller

import (
	"context"

	"github.com/samber/lo"

	"github.com/lepinkainen/subwatch/internal/watch"
)

// StateMutator gives exclusive access to one user's state. Mutate persists
// the state afterwards. Implemented by watchlist.Registry.
type StateMutator interface {
	View(ctx context.Context, userID string, fn func(*watch.UserWatchState)) error
	Mutate(ctx context.Context, userID string, fn func(*watch.UserWatchState) error) error
}

// UserPoller runs a cycle for a user in three steps: read the feed list
// under the user's lock, fetch without it, then apply the results under it
// again. Network time never holds the lock, so the user's commands are not
// delayed by a slow feed.
type UserPoller struct {
	states StateMutator
	engine *Engine
}

// NewUserPoller creates a UserPoller.
func NewUserPoller(states StateMutator, engine *Engine) *UserPoller {
	return &UserPoller{states: states, engine: engine}
}

// Poll runs one cycle for userID. The returned error is a persistence
// warning or a load failure; the notification is valid either way.
func (p *UserPoller) Poll(ctx context.Context, userID string) (string, bool, error) {
	var feedIDs []string
	err := p.states.View(ctx, userID, func(state *watch.UserWatchState) {
		feedIDs = lo.Map(state.Feeds, func(f watch.WatchedFeed, _ int) string { return f.FeedID })
	})
	if err != nil || len(feedIDs) == 0 {
		return "", false, err
	}

	snap := p.engine.Fetch(ctx, userID, feedIDs)

	var (
		text string
		ok   bool
	)
	err = p.states.Mutate(ctx, userID, func(state *watch.UserWatchState) error {
		text, ok = p.engine.Apply(state, snap)
		return nil
	})
	return text, ok, err
}

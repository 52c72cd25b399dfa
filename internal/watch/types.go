// Package watch holds the domain types shared by the watchlist, poller and
// scheduler: watched feeds, per-user watch state, fetched items, the title
// filter and the error taxonomy.
package watch

import "slices"

// WatchedFeed is one subreddit on a user's watchlist.
type WatchedFeed struct {
	FeedID string `json:"feed_id" yaml:"feed_id"`
	// SeenItemIDs holds the item ids returned by the last completed poll, in
	// fetch order. Membership is what matters; order is kept for stable storage.
	SeenItemIDs   []string `json:"seen_item_ids" yaml:"seen_item_ids"`
	FilterPattern string   `json:"filter_pattern,omitempty" yaml:"filter_pattern,omitempty"`
}

// Clone returns a deep copy of the feed.
func (f WatchedFeed) Clone() WatchedFeed {
	f.SeenItemIDs = slices.Clone(f.SeenItemIDs)
	return f
}

// UserWatchState is everything stored for one user.
type UserWatchState struct {
	UserID         string        `json:"user_id" yaml:"user_id"`
	Feeds          []WatchedFeed `json:"feeds" yaml:"feeds"`
	PollingEnabled bool          `json:"polling_enabled" yaml:"polling_enabled"`
}

// NewUserWatchState returns an empty state for userID.
func NewUserWatchState(userID string) *UserWatchState {
	return &UserWatchState{UserID: userID}
}

// Clone returns a deep copy of the state.
func (s *UserWatchState) Clone() *UserWatchState {
	c := &UserWatchState{
		UserID:         s.UserID,
		PollingEnabled: s.PollingEnabled,
		Feeds:          make([]WatchedFeed, len(s.Feeds)),
	}
	for i, f := range s.Feeds {
		c.Feeds[i] = f.Clone()
	}
	return c
}

// FeedIndex returns the position of feedID in the watchlist, or -1.
func (s *UserWatchState) FeedIndex(feedID string) int {
	return slices.IndexFunc(s.Feeds, func(f WatchedFeed) bool {
		return f.FeedID == feedID
	})
}

// Feed returns a pointer to the watched feed with feedID, or nil.
func (s *UserWatchState) Feed(feedID string) *WatchedFeed {
	if i := s.FeedIndex(feedID); i >= 0 {
		return &s.Feeds[i]
	}
	return nil
}

// Item is a single post fetched from a feed during a poll cycle.
type Item struct {
	ID         string
	AuthorName string
	Permalink  string
	Title      string
}

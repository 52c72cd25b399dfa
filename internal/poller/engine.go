// Package poller runs poll cycles: fetch every watched feed of a user,
// announce new matching items and remember what was seen.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/lepinkainen/subwatch/internal/metrics"
	"github.com/lepinkainen/subwatch/internal/render"
	"github.com/lepinkainen/subwatch/internal/watch"
)

// Fetcher returns the current items of a feed, newest first.
type Fetcher interface {
	FetchFeedItems(ctx context.Context, feedID string) ([]watch.Item, error)
}

// Snapshot holds the items fetched for one cycle, keyed by feed ID. Feeds
// whose fetch failed or was not attempted are absent.
type Snapshot map[string][]watch.Item

// Engine executes poll cycles over a user's watch state.
type Engine struct {
	fetcher   Fetcher
	formatter render.Formatter
}

// NewEngine creates an engine.
func NewEngine(fetcher Fetcher, formatter render.Formatter) *Engine {
	return &Engine{fetcher: fetcher, formatter: formatter}
}

// RunCycle polls every feed in state in watchlist order and updates the
// seen sets in place. It returns the aggregated notification, or false when
// nothing new matched. A feed polled for the first time only records a
// baseline. A feed whose fetch fails keeps its seen set untouched.
func (e *Engine) RunCycle(ctx context.Context, state *watch.UserWatchState) (string, bool) {
	feedIDs := lo.Map(state.Feeds, func(f watch.WatchedFeed, _ int) string { return f.FeedID })
	return e.Apply(state, e.Fetch(ctx, state.UserID, feedIDs))
}

// Fetch downloads the given feeds in order. It touches no user state, so
// callers run it without holding the user's lock. A cancelled ctx stops
// before the next feed.
func (e *Engine) Fetch(ctx context.Context, userID string, feedIDs []string) Snapshot {
	snap := make(Snapshot, len(feedIDs))

	for _, feedID := range feedIDs {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		items, err := e.fetcher.FetchFeedItems(ctx, feedID)
		metrics.FeedFetchDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.FeedFetches.WithLabelValues(metrics.FetchError).Inc()
			fetchErr := &watch.TransientFetchError{FeedID: feedID, Err: err}
			if !errors.Is(err, context.Canceled) {
				slog.Warn("Skipping feed for this cycle", "user", userID, "error", fetchErr)
			}
			continue
		}
		metrics.FeedFetches.WithLabelValues(metrics.FetchOK).Inc()
		snap[feedID] = items
	}

	return snap
}

// Apply diffs snap against the state's current feeds and updates their seen
// sets. Feeds missing from snap are left alone, which covers failed fetches
// and feeds added after the fetch started. Feeds removed meanwhile are
// simply no longer in state.
func (e *Engine) Apply(state *watch.UserWatchState, snap Snapshot) (string, bool) {
	var lines []string

	for i := range state.Feeds {
		feed := &state.Feeds[i]
		items, ok := snap[feed.FeedID]
		if !ok {
			continue
		}
		lines = append(lines, e.applyFeed(state.UserID, feed, items)...)
	}

	metrics.PollCycles.Inc()
	metrics.ItemsMatched.Add(float64(len(lines)))
	return render.Notification(lines)
}

func (e *Engine) applyFeed(userID string, feed *watch.WatchedFeed, items []watch.Item) []string {
	currentIDs := lo.Map(items, func(item watch.Item, _ int) string { return item.ID })
	firstPoll := len(feed.SeenItemIDs) == 0
	seen := lo.Associate(feed.SeenItemIDs, func(id string) (string, struct{}) { return id, struct{}{} })

	var lines []string
	if !firstPoll {
		filter, err := watch.CompilePattern(feed.FilterPattern)
		if err != nil {
			// patterns are validated on write; a bad one here means the store was edited by hand
			slog.Error("Stored filter pattern does not compile", "user", userID, "feed", feed.FeedID, "error", err)
		} else {
			for _, item := range items {
				if _, ok := seen[item.ID]; ok || !filter.Match(item.Title) {
					continue
				}
				lines = append(lines, e.formatter.ItemLine(feed.FeedID, item))
			}
		}
	}

	slog.Debug("Polled feed",
		"user", userID,
		"feed", feed.FeedID,
		"fetched", len(items),
		"firstPoll", firstPoll,
		"matched", len(lines))

	feed.SeenItemIDs = currentIDs
	return lines
}

package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/subwatch/internal/render"
	"github.com/lepinkainen/subwatch/internal/watch"
)

// fakeFetcher serves a fixed snapshot per feed; a feed mapped to an error fails.
type fakeFetcher struct {
	mu     sync.Mutex
	items  map[string][]watch.Item
	errs   map[string]error
	called []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{items: map[string][]watch.Item{}, errs: map[string]error{}}
}

func (f *fakeFetcher) set(feedID string, items ...watch.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[feedID] = items
	delete(f.errs, feedID)
}

func (f *fakeFetcher) fail(feedID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[feedID] = err
}

func (f *fakeFetcher) FetchFeedItems(_ context.Context, feedID string) ([]watch.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = append(f.called, feedID)
	if err, ok := f.errs[feedID]; ok {
		return nil, err
	}
	return f.items[feedID], nil
}

// idFormatter renders "feed:id" so assertions stay readable.
type idFormatter struct{}

func (idFormatter) FeedLink(feedID string) string { return feedID }
func (idFormatter) ItemLine(feedID string, item watch.Item) string {
	return feedID + ":" + item.ID
}
func (idFormatter) Escape(s string) string { return s }

func items(ids ...string) []watch.Item {
	out := make([]watch.Item, len(ids))
	for i, id := range ids {
		out[i] = watch.Item{ID: id, AuthorName: "author", Permalink: "/p/" + id, Title: "post " + id}
	}
	return out
}

func lines(t *testing.T, text string) []string {
	t.Helper()
	parts := strings.Split(text, "\n")
	require.Equal(t, render.NotificationHeader, parts[0])
	return parts[1:]
}

func TestFirstPollSuppression(t *testing.T) {
	f := newFakeFetcher()
	f.set("space", items("a", "b", "c")...)
	e := NewEngine(f, idFormatter{})

	state := &watch.UserWatchState{UserID: "42", Feeds: []watch.WatchedFeed{{FeedID: "space"}}}

	text, ok := e.RunCycle(context.Background(), state)
	assert.False(t, ok)
	assert.Empty(t, text)
	assert.Equal(t, []string{"a", "b", "c"}, state.Feeds[0].SeenItemIDs)
}

func TestDeltaCorrectness(t *testing.T) {
	f := newFakeFetcher()
	f.set("space", items("b", "c", "d")...)
	e := NewEngine(f, idFormatter{})

	state := &watch.UserWatchState{UserID: "42", Feeds: []watch.WatchedFeed{
		{FeedID: "space", SeenItemIDs: []string{"a", "b"}},
	}}

	text, ok := e.RunCycle(context.Background(), state)
	require.True(t, ok)
	assert.Equal(t, []string{"space:c", "space:d"}, lines(t, text))
	assert.Equal(t, []string{"b", "c", "d"}, state.Feeds[0].SeenItemIDs)
}

func TestNoNewItemsProducesNothing(t *testing.T) {
	f := newFakeFetcher()
	f.set("space", items("a", "b")...)
	e := NewEngine(f, idFormatter{})

	state := &watch.UserWatchState{UserID: "42", Feeds: []watch.WatchedFeed{
		{FeedID: "space", SeenItemIDs: []string{"b", "a"}},
	}}

	_, ok := e.RunCycle(context.Background(), state)
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, state.Feeds[0].SeenItemIDs)
}

func TestFilterAppliesToNewItemsOnly(t *testing.T) {
	f := newFakeFetcher()
	f.set("space",
		watch.Item{ID: "1", Title: "SpaceX Launch Update"},
		watch.Item{ID: "2", Title: "Quarterly report"},
		watch.Item{ID: "3", Title: "launch delayed"},
		watch.Item{ID: "old", Title: "Old launch"},
	)
	e := NewEngine(f, idFormatter{})

	state := &watch.UserWatchState{UserID: "42", Feeds: []watch.WatchedFeed{
		{FeedID: "space", SeenItemIDs: []string{"old"}, FilterPattern: "launch"},
	}}

	text, ok := e.RunCycle(context.Background(), state)
	require.True(t, ok)
	assert.Equal(t, []string{"space:1", "space:3"}, lines(t, text))
	// non-matching items are still remembered
	assert.Equal(t, []string{"1", "2", "3", "old"}, state.Feeds[0].SeenItemIDs)
}

func TestAggregationAcrossFeeds(t *testing.T) {
	f := newFakeFetcher()
	f.set("space", items("s1", "s2")...)
	f.set("golang", items("g1")...)
	e := NewEngine(f, idFormatter{})

	state := &watch.UserWatchState{UserID: "42", Feeds: []watch.WatchedFeed{
		{FeedID: "space", SeenItemIDs: []string{"s1"}},
		{FeedID: "golang", SeenItemIDs: []string{"g1"}},
	}}

	text, ok := e.RunCycle(context.Background(), state)
	require.True(t, ok)
	assert.Equal(t, []string{"space:s2"}, lines(t, text))
	assert.Equal(t, []string{"space", "golang"}, f.called)
}

func TestAggregationPreservesFeedOrder(t *testing.T) {
	f := newFakeFetcher()
	f.set("b", items("b2", "b1")...)
	f.set("a", items("a2", "a1")...)
	e := NewEngine(f, idFormatter{})

	state := &watch.UserWatchState{UserID: "42", Feeds: []watch.WatchedFeed{
		{FeedID: "b", SeenItemIDs: []string{"b1"}},
		{FeedID: "a", SeenItemIDs: []string{"a1"}},
	}}

	text, ok := e.RunCycle(context.Background(), state)
	require.True(t, ok)
	assert.Equal(t, []string{"b:b2", "a:a2"}, lines(t, text))
}

func TestFirstPollOfOneFeedDoesNotSuppressOthers(t *testing.T) {
	f := newFakeFetcher()
	f.set("old", items("o2", "o1")...)
	f.set("new", items("n1", "n2")...)
	e := NewEngine(f, idFormatter{})

	state := &watch.UserWatchState{UserID: "42", Feeds: []watch.WatchedFeed{
		{FeedID: "old", SeenItemIDs: []string{"o1"}},
		{FeedID: "new"},
	}}

	text, ok := e.RunCycle(context.Background(), state)
	require.True(t, ok)
	assert.Equal(t, []string{"old:o2"}, lines(t, text))
	assert.Equal(t, []string{"n1", "n2"}, state.Feeds[1].SeenItemIDs)
}

func TestFetchErrorIsolation(t *testing.T) {
	f := newFakeFetcher()
	f.fail("broken", errors.New("503"))
	f.set("space", items("s1", "s2")...)
	e := NewEngine(f, idFormatter{})

	state := &watch.UserWatchState{UserID: "42", Feeds: []watch.WatchedFeed{
		{FeedID: "broken", SeenItemIDs: []string{"x", "y"}},
		{FeedID: "space", SeenItemIDs: []string{"s1"}},
	}}

	text, ok := e.RunCycle(context.Background(), state)
	require.True(t, ok)
	assert.Equal(t, []string{"space:s2"}, lines(t, text))
	assert.Equal(t, []string{"x", "y"}, state.Feeds[0].SeenItemIDs)
}

func TestFailedFirstPollStaysBaseline(t *testing.T) {
	f := newFakeFetcher()
	f.fail("space", errors.New("timeout"))
	e := NewEngine(f, idFormatter{})

	state := &watch.UserWatchState{UserID: "42", Feeds: []watch.WatchedFeed{{FeedID: "space"}}}
	_, ok := e.RunCycle(context.Background(), state)
	assert.False(t, ok)
	assert.Empty(t, state.Feeds[0].SeenItemIDs)

	// the next successful poll is still the baseline
	f.set("space", items("a", "b")...)
	_, ok = e.RunCycle(context.Background(), state)
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, state.Feeds[0].SeenItemIDs)
}

func TestEndToEndScenario(t *testing.T) {
	f := newFakeFetcher()
	e := NewEngine(f, idFormatter{})
	state := &watch.UserWatchState{UserID: "42", Feeds: []watch.WatchedFeed{{FeedID: "golang"}}}

	f.set("golang", items("1", "2", "3")...)
	_, ok := e.RunCycle(context.Background(), state)
	require.False(t, ok)

	f.set("golang", items("2", "3", "4", "5")...)
	text, ok := e.RunCycle(context.Background(), state)
	require.True(t, ok)
	assert.Equal(t, []string{"golang:4", "golang:5"}, lines(t, text))
	assert.Equal(t, []string{"2", "3", "4", "5"}, state.Feeds[0].SeenItemIDs)
}

func TestEmptyWatchlist(t *testing.T) {
	e := NewEngine(newFakeFetcher(), idFormatter{})
	_, ok := e.RunCycle(context.Background(), watch.NewUserWatchState("42"))
	assert.False(t, ok)
}

func TestHTMLNotification(t *testing.T) {
	f := newFakeFetcher()
	f.set("golang", watch.Item{ID: "2", AuthorName: "gopher", Permalink: "/r/golang/comments/2/", Title: "Go 1.26 released"})
	e := NewEngine(f, render.HTML{})

	state := &watch.UserWatchState{UserID: "42", Feeds: []watch.WatchedFeed{
		{FeedID: "golang", SeenItemIDs: []string{"1"}},
	}}

	text, ok := e.RunCycle(context.Background(), state)
	require.True(t, ok)
	assert.Equal(t, "matched post:\n"+
		"r/golang - [<a href='https://www.reddit.com/u/gopher'>gopher</a>]: "+
		"<a href='https://www.reddit.com/r/golang/comments/2/'>Go 1.26 released</a>", text)
}

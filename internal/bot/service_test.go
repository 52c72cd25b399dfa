package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/subwatch/internal/render"
	"github.com/lepinkainen/subwatch/internal/store"
	"github.com/lepinkainen/subwatch/internal/watch"
	"github.com/lepinkainen/subwatch/internal/watchlist"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) FeedExists(ctx context.Context, feedID string) (bool, error) {
	args := m.Called(ctx, feedID)
	return args.Bool(0), args.Error(1)
}

type fakeScheduler struct {
	enabled map[string]bool
}

func (f *fakeScheduler) Enable(userID string) bool {
	if f.enabled[userID] {
		return false
	}
	f.enabled[userID] = true
	return true
}

func (f *fakeScheduler) Disable(userID string) bool {
	if !f.enabled[userID] {
		return false
	}
	delete(f.enabled, userID)
	return true
}

type fixture struct {
	svc     *Service
	mem     *store.Memory
	checker *mockChecker
	sched   *fakeScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	checker := &mockChecker{}
	checker.On("FeedExists", mock.Anything, "spacex").Return(true, nil).Maybe()
	checker.On("FeedExists", mock.Anything, "golang").Return(true, nil).Maybe()
	checker.On("FeedExists", mock.Anything, "nosuchsub").Return(false, nil).Maybe()
	checker.On("FeedExists", mock.Anything, "flaky").Return(false, errors.New("503")).Maybe()

	mem := store.NewMemory()
	sched := &fakeScheduler{enabled: map[string]bool{}}
	return &fixture{
		svc:     NewService(watchlist.NewRegistry(mem, checker), sched, render.HTML{}),
		mem:     mem,
		checker: checker,
		sched:   sched,
	}
}

func (f *fixture) send(text string) string {
	return f.svc.Handle(context.Background(), "42", text)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		name string
		args []string
		ok   bool
	}{
		{"/watch spacex launch", "watch", []string{"spacex", "launch"}, true},
		{"/list@subwatch_bot", "list", []string{}, true},
		{"  /enable  ", "enable", []string{}, true},
		{"hello there", "", nil, false},
		{"/", "", nil, false},
		{"", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, args, ok := ParseCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			if tt.ok {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestHelpFallback(t *testing.T) {
	f := newFixture(t)

	for _, text := range []string{"hello", "/dump someone", "/start"} {
		reply := f.send(text)
		assert.Equal(t, HelpText(), reply, text)
	}

	help := HelpText()
	for _, name := range []string{"/list", "/watch", "/unwatch", "/regclear", "/regshow", "/enable", "/disable"} {
		assert.Contains(t, help, name)
	}
	assert.Contains(t, help, "every 5 minutes")
}

func TestLookupAliases(t *testing.T) {
	c, ok := Lookup("watchlist")
	require.True(t, ok)
	assert.Equal(t, "list", c.Name)

	c, ok = Lookup("WATCH")
	require.True(t, ok)
	assert.Equal(t, "watch", c.Name)

	_, ok = Lookup("dump")
	assert.False(t, ok)
}

func TestWatchFlow(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "Usage: /watch <subreddit name> <optional regex>", f.send("/watch"))
	assert.Equal(t, "Usage: /watch <subreddit name> <optional regex>", f.send("/watch <b>x</b>"))
	assert.Equal(t, "Subreddit does not exist", f.send("/watch nosuchsub"))
	assert.Equal(t, "Could not reach reddit, please try again later", f.send("/watch flaky"))
	assert.Equal(t, "Invalid regex expression", f.send("/watch spacex (unclosed"))

	assert.Equal(t, `Added <a href="https://reddit.com/r/spacex">r/spacex</a> to your watchlist`, f.send("/watch spacex"))
	assert.Equal(t, "It is already in your watchlist. use /regclear to clear regex", f.send("/watch spacex"))
	assert.Equal(t, "Updated regex for r/spacex", f.send("/watch spacex starship launch"))
	assert.Equal(t, "starship launch", f.send("/regshow spacex"))

	state, err := f.mem.Load(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, state.Feeds, 1)
	assert.Equal(t, "starship launch", state.Feeds[0].FilterPattern)
}

func TestPatternCommands(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "Usage: /regclear <subreddit name>", f.send("/regclear"))
	assert.Equal(t, "Usage: /regshow <subreddit name>", f.send("/regshow"))
	assert.Equal(t, "subreddit not in watchlist", f.send("/regclear golang"))
	assert.Equal(t, "subreddit not in watchlist", f.send("/regshow golang"))

	f.send("/watch golang generics|<iter>")
	assert.Equal(t, "generics|&lt;iter&gt;", f.send("/regshow golang"))
	assert.Equal(t, "regex cleared for r/golang", f.send("/regclear golang"))
	assert.Equal(t, "No regex is set", f.send("/regshow golang"))
}

func TestUnwatchAndList(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "No subreddits on watchlist", f.send("/list"))
	assert.Equal(t, "Usage: /unwatch <subreddit name>", f.send("/unwatch"))
	assert.Equal(t, `<a href="https://reddit.com/r/golang">r/golang</a> was not in the watchlist`, f.send("/unwatch golang"))

	f.send("/watch spacex launch")
	f.send("/watch golang")

	want := "Subreddits on your watchlist:\n" +
		`<a href="https://reddit.com/r/spacex">r/spacex</a>: launch` + "\n" +
		`<a href="https://reddit.com/r/golang">r/golang</a>: *all post titles*`
	assert.Equal(t, want, f.send("/list"))
	assert.Equal(t, want, f.send("/watchlist"))

	assert.Equal(t, `removed <a href="https://reddit.com/r/spacex">r/spacex</a> from watchlist`, f.send("/unwatch spacex"))
	assert.True(t, strings.HasSuffix(f.send("/list"), "*all post titles*"))
	assert.NotContains(t, f.send("/list"), "spacex")
}

func TestEnableDisable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, "Already disabled", f.send("/disable"))
	assert.Equal(t, "Reddit polling enabled", f.send("/enable"))
	assert.Equal(t, "Already enabled", f.send("/enable"))
	assert.True(t, f.sched.enabled["42"])

	state, err := f.mem.Load(ctx, "42")
	require.NoError(t, err)
	assert.True(t, state.PollingEnabled)

	assert.Equal(t, "reddit polling disabled", f.send("/disable"))
	assert.Equal(t, "Already disabled", f.send("/disable"))

	state, _ = f.mem.Load(ctx, "42")
	assert.False(t, state.PollingEnabled)
}

type failingStore struct {
	*store.Memory
}

func (failingStore) Save(context.Context, *watch.UserWatchState) error {
	return errors.New("disk full")
}

func TestPersistenceFailureKeepsChange(t *testing.T) {
	checker := &mockChecker{}
	checker.On("FeedExists", mock.Anything, "golang").Return(true, nil)
	reg := watchlist.NewRegistry(failingStore{store.NewMemory()}, checker)
	svc := NewService(reg, &fakeScheduler{enabled: map[string]bool{}}, render.Plain{})
	ctx := context.Background()

	assert.Equal(t, "Added r/golang to your watchlist", svc.Handle(ctx, "7", "/watch golang"))
	assert.Equal(t, "Subreddits on your watchlist:\nr/golang: *all post titles*", svc.Handle(ctx, "7", "/list"))
	checker.AssertExpectations(t)
}

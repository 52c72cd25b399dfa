package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/subwatch/internal/config"
	"github.com/lepinkainen/subwatch/internal/reddit"
	"github.com/lepinkainen/subwatch/internal/render"
	"github.com/lepinkainen/subwatch/internal/store"
)

type nopNotifier struct{}

func (nopNotifier) SendNotification(context.Context, string, string) error { return nil }

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Storage.Backend = backend
	cfg.Storage.Path = filepath.Join(t.TempDir(), "state")
	return cfg
}

func TestNewFetcherFollowsSource(t *testing.T) {
	cfg := testConfig(t, store.BackendMemory)
	client := newRedditClient(cfg)

	assert.IsType(t, &reddit.JSONSource{}, newFetcher(cfg, client))

	cfg.Reddit.Source = config.SourceRSS
	assert.IsType(t, &reddit.RSSSource{}, newFetcher(cfg, client))
}

func TestAppRestoresEnabledUsers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(t, store.BackendSQLite)
	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.registry.SetPolling(ctx, "alice", true)
	require.NoError(t, err)
	_, err = a.registry.SetPolling(ctx, "bob", true)
	require.NoError(t, err)

	svc, sched := a.start(ctx, nopNotifier{}, render.Plain{}, func(id string) bool { return id == "alice" })
	defer sched.Stop()

	assert.True(t, sched.IsEnabled("alice"))
	assert.False(t, sched.IsEnabled("bob"))
	assert.Equal(t, "Already enabled", svc.Handle(ctx, "alice", "/enable"))
	assert.Equal(t, "No subreddits on watchlist", svc.Handle(ctx, "alice", "/list"))
}

func TestDeferredHandler(t *testing.T) {
	h := &deferredHandler{}
	assert.Equal(t, "starting up, try again", h.Handle(context.Background(), "u", "/list"))
}

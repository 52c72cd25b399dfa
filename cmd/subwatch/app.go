package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/lepinkainen/subwatch/internal/bot"
	"github.com/lepinkainen/subwatch/internal/config"
	"github.com/lepinkainen/subwatch/internal/poller"
	"github.com/lepinkainen/subwatch/internal/reddit"
	"github.com/lepinkainen/subwatch/internal/render"
	"github.com/lepinkainen/subwatch/internal/scheduler"
	"github.com/lepinkainen/subwatch/internal/server"
	"github.com/lepinkainen/subwatch/internal/store"
	"github.com/lepinkainen/subwatch/internal/watchlist"
	"github.com/lepinkainen/subwatch/pkg/api"
	"github.com/lepinkainen/subwatch/pkg/database"
	"github.com/lepinkainen/subwatch/pkg/filesystem"
)

const (
	cacheTable           = "feed_cache"
	cacheCleanupInterval = time.Hour
)

// app holds the long lived components shared by the bot and the console.
type app struct {
	cfg      *config.Config
	db       *database.Database
	cache    *database.Cache
	store    watchlist.Store
	fetcher  poller.Fetcher
	registry *watchlist.Registry
}

func newRedditClient(cfg *config.Config) *api.EnhancedClient {
	return api.NewRedditClient(&http.Client{Timeout: 30 * time.Second}, cfg.Reddit.UserAgent, cfg.Reddit.MinDelay)
}

func newFetcher(cfg *config.Config, client *api.EnhancedClient) poller.Fetcher {
	if cfg.Reddit.Source == config.SourceRSS {
		return reddit.NewRSSSource(client, cfg.Reddit.BaseURL, cfg.Poll.Limit)
	}
	return reddit.NewJSONSource(client, cfg.Reddit.BaseURL, cfg.Poll.Limit)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	client := newRedditClient(cfg)
	a.fetcher = newFetcher(cfg, client)

	// existence is always checked against about.json
	var checker watchlist.ExistenceChecker = reddit.NewJSONSource(client, cfg.Reddit.BaseURL, cfg.Poll.Limit)

	path := filesystem.ResolvePath(cfg.Storage.Path)

	switch cfg.Storage.Backend {
	case store.BackendSQLite:
		db, err := database.Open(database.Config{Path: path, BusyTimeout: database.DefaultConfig().BusyTimeout})
		if err != nil {
			return nil, err
		}
		a.db = db

		st, err := store.NewSQLite(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.store = st

		a.cache = database.NewCache(db, cacheTable)
		if err := a.cache.InitializeCache(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		checker = reddit.NewCachedChecker(checker, a.cache, cfg.Reddit.ExistsTTL)

	case store.BackendYAML:
		st, err := store.NewYAML(path)
		if err != nil {
			return nil, err
		}
		a.store = st

	case store.BackendMemory:
		a.store = store.NewMemory()

	default:
		return nil, store.ValidateBackend(cfg.Storage.Backend)
	}

	slog.Info("Storage ready", "backend", cfg.Storage.Backend, "path", filepath.Clean(path))
	a.registry = watchlist.NewRegistry(a.store, checker)
	return a, nil
}

// start builds the scheduler and the command service, restores polling for
// persisted users accepted by restore (all users when nil) and launches the
// background helpers.
func (a *app) start(ctx context.Context, notifier scheduler.Notifier, format render.Formatter, restore func(string) bool) (*bot.Service, *scheduler.Scheduler) {
	engine := poller.NewEngine(a.fetcher, format)
	sched := scheduler.New(poller.NewUserPoller(a.registry, engine), notifier, scheduler.Config{
		Interval:     a.cfg.Poll.Interval,
		InitialDelay: a.cfg.Poll.InitialDelay,
	})

	users, err := a.registry.PollingUsers(ctx)
	if err != nil {
		slog.Warn("Failed to restore pollers", "error", err)
	}
	var toRestore []string
	for _, id := range users {
		if restore == nil || restore(id) {
			toRestore = append(toRestore, id)
		}
	}
	sched.Restore(toRestore)

	if a.cfg.HTTP.Addr != "" {
		deps := server.Deps{Registry: a.registry, Scheduler: sched}
		if a.db != nil {
			deps.Database = a.db
			deps.Cache = a.cache
		}
		go func() {
			if err := server.Serve(ctx, a.cfg.HTTP.Addr, server.NewServer(deps)); err != nil {
				slog.Error("HTTP server stopped", "error", err)
			}
		}()
	}

	if a.cache != nil {
		go a.cleanupCache(ctx)
	}

	return bot.NewService(a.registry, sched, format), sched
}

func (a *app) cleanupCache(ctx context.Context) {
	ticker := time.NewTicker(cacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.cache.CleanupExpired(ctx); err != nil {
				slog.Warn("Cache cleanup failed", "error", err)
			}
		}
	}
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}
}

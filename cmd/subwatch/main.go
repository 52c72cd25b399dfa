// Package main provides the CLI entry point for subwatch.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/lepinkainen/subwatch/internal/config"
	"github.com/lepinkainen/subwatch/internal/console"
	"github.com/lepinkainen/subwatch/internal/render"
	"github.com/lepinkainen/subwatch/internal/telegram"
	"github.com/lepinkainen/subwatch/internal/watch"
)

// CLI structure
var CLI struct {
	Config string `help:"Configuration file path" default:"config.yaml"`
	Debug  bool   `help:"Enable debug logging" default:"false"`

	Bot struct{} `cmd:"bot" help:"Run the Telegram bot."`

	Console struct {
		User    string `help:"Watchlist user for the console session" default:"console"`
		LogFile string `help:"Log file while the console is open" default:"subwatch.log"`
	} `cmd:"console" help:"Run an interactive local console instead of Telegram."`

	Check struct {
		Feed    string   `arg:"" help:"Subreddit name"`
		Pattern []string `arg:"" optional:"" help:"Optional title filter"`
	} `cmd:"check" help:"Fetch a subreddit once and print the matching posts."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("subwatch"),
		kong.Description("Watch subreddits for new posts matching a filter."),
	)

	if CLI.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		slog.SetLogLoggerLevel(slog.LevelInfo)
	}

	cfg, err := config.LoadConfig(CLI.Config)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch strings.Fields(kctx.Command())[0] {
	case "bot":
		err = runBot(ctx, cfg)
	case "console":
		err = runConsole(ctx, cfg)
	case "check":
		err = runCheck(ctx, cfg, CLI.Check.Feed, strings.Join(CLI.Check.Pattern, " "))
	default:
		panic(kctx.Command())
	}

	if err != nil {
		slog.Error("Command failed", "command", kctx.Command(), "error", err)
		stop()
		os.Exit(1)
	}
}

func runBot(ctx context.Context, cfg *config.Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is not set (config file or SUBWATCH_TELEGRAM_TOKEN)")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	tg, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.Timeout)
	if err != nil {
		return err
	}

	svc, sched := a.start(ctx, tg, render.HTML{}, nil)
	defer sched.Stop()

	slog.Info("Bot running")
	return tg.Run(ctx, svc)
}

func runConsole(ctx context.Context, cfg *config.Config) error {
	logFile, err := os.OpenFile(CLI.Console.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	level := slog.LevelInfo
	if CLI.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level})))

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	user := CLI.Console.User
	handler := &deferredHandler{}
	con := console.New(ctx, handler, user)

	svc, sched := a.start(ctx, con, render.Plain{}, func(id string) bool { return id == user })
	defer sched.Stop()
	handler.target = svc

	return con.Run()
}

func runCheck(ctx context.Context, cfg *config.Config, feedID, pattern string) error {
	if err := watch.ValidateFeedName(feedID); err != nil {
		return err
	}
	filter, err := watch.CompilePattern(pattern)
	if err != nil {
		return err
	}

	fetcher := newFetcher(cfg, newRedditClient(cfg))
	items, err := fetcher.FetchFeedItems(ctx, feedID)
	if err != nil {
		return err
	}

	format := render.Plain{}
	matched := 0
	for _, item := range items {
		if !filter.Match(item.Title) {
			continue
		}
		matched++
		fmt.Println(format.ItemLine(feedID, item))
	}
	fmt.Printf("%d of %d posts matched\n", matched, len(items))
	return nil
}

// deferredHandler lets the console exist before the command service it
// forwards to.
type deferredHandler struct {
	target console.Handler
}

func (d *deferredHandler) Handle(ctx context.Context, userID, text string) string {
	if d.target == nil {
		return "starting up, try again"
	}
	return d.target.Handle(ctx, userID, text)
}

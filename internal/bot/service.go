// Package bot implements the chat commands on top of the watchlist and
// the scheduler. Transports feed it raw message text and send back the
// reply it returns.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/lepinkainen/subwatch/internal/metrics"
	"github.com/lepinkainen/subwatch/internal/render"
	"github.com/lepinkainen/subwatch/internal/watch"
	"github.com/lepinkainen/subwatch/internal/watchlist"
)

// Watchlist is the part of the watch record store the commands use.
type Watchlist interface {
	AddOrUpdate(ctx context.Context, userID, feedID string, pattern *string) (watchlist.AddResult, error)
	Remove(ctx context.Context, userID, feedID string) (bool, error)
	List(ctx context.Context, userID string) ([]watch.WatchedFeed, error)
	ClearPattern(ctx context.Context, userID, feedID string) (bool, error)
	Pattern(ctx context.Context, userID, feedID string) (string, bool, error)
	SetPolling(ctx context.Context, userID string, enabled bool) (bool, error)
}

// Scheduler starts and stops per-user polling.
type Scheduler interface {
	Enable(userID string) bool
	Disable(userID string) bool
}

// Request is one incoming command.
type Request struct {
	Ctx    context.Context
	UserID string
	Args   []string
	// Usage is the command's usage line, replied on malformed input.
	Usage string
}

// Replies that are not tied to a feed.
const (
	replyInternalError = "Something went wrong, please try again later"
	replyUnreachable   = "Could not reach reddit, please try again later"
)

// Service dispatches commands.
type Service struct {
	watchlist Watchlist
	scheduler Scheduler
	format    render.Formatter
}

// NewService creates a command service. format decides how subreddit
// links and user supplied text appear in replies.
func NewService(wl Watchlist, sched Scheduler, format render.Formatter) *Service {
	return &Service{watchlist: wl, scheduler: sched, format: format}
}

// Handle runs the command in text for userID and returns the reply.
// Unknown commands and plain messages get the help text.
func (s *Service) Handle(ctx context.Context, userID, text string) string {
	name, args, ok := ParseCommand(text)
	if !ok {
		metrics.Commands.WithLabelValues("help").Inc()
		return HelpText()
	}

	cmd, ok := Lookup(name)
	if !ok {
		metrics.Commands.WithLabelValues("help").Inc()
		return HelpText()
	}

	metrics.Commands.WithLabelValues(cmd.Name).Inc()
	slog.Debug("Handling command", "user", userID, "command", cmd.Name, "args", len(args))

	return cmd.Handler(s, Request{Ctx: ctx, UserID: userID, Args: args, Usage: cmd.usageLine()})
}

// warnPersistence logs a failed save. The in-memory change still stands,
// so callers keep their success reply. It reports false for any other
// error.
func warnPersistence(userID string, err error) bool {
	if !errors.Is(err, watch.ErrPersistence) {
		return false
	}
	slog.Warn("Watchlist change not persisted", "user", userID, "error", err)
	return true
}

func (s *Service) enable(req Request) string {
	if _, err := s.watchlist.SetPolling(req.Ctx, req.UserID, true); err != nil && !warnPersistence(req.UserID, err) {
		slog.Error("Failed to enable polling", "user", req.UserID, "error", err)
		return replyInternalError
	}
	if !s.scheduler.Enable(req.UserID) {
		return "Already enabled"
	}
	return "Reddit polling enabled"
}

func (s *Service) disable(req Request) string {
	if _, err := s.watchlist.SetPolling(req.Ctx, req.UserID, false); err != nil && !warnPersistence(req.UserID, err) {
		slog.Error("Failed to disable polling", "user", req.UserID, "error", err)
		return replyInternalError
	}
	if !s.scheduler.Disable(req.UserID) {
		return "Already disabled"
	}
	return "reddit polling disabled"
}

func (s *Service) watchFeed(req Request) string {
	if len(req.Args) == 0 {
		return req.Usage
	}

	feed := req.Args[0]
	var pattern *string
	if len(req.Args) > 1 {
		p := strings.Join(req.Args[1:], " ")
		pattern = &p
	}

	result, err := s.watchlist.AddOrUpdate(req.Ctx, req.UserID, feed, pattern)
	switch {
	case err == nil, warnPersistence(req.UserID, err):
	case errors.Is(err, watch.ErrInvalidFeedName):
		return req.Usage
	case errors.Is(err, watch.ErrInvalidPattern):
		return "Invalid regex expression"
	case errors.Is(err, watch.ErrFeedNotFound):
		return "Subreddit does not exist"
	default:
		slog.Error("Failed to watch feed", "user", req.UserID, "feed", feed, "error", err)
		return replyUnreachable
	}

	switch result {
	case watchlist.AlreadyWatched:
		return "It is already in your watchlist. use /regclear to clear regex"
	case watchlist.Updated:
		return "Updated regex for r/" + s.format.Escape(feed)
	default:
		return "Added " + s.format.FeedLink(feed) + " to your watchlist"
	}
}

func (s *Service) unwatch(req Request) string {
	if len(req.Args) == 0 {
		return req.Usage
	}
	feed := req.Args[0]
	link := s.format.FeedLink(s.format.Escape(feed))

	removed, err := s.watchlist.Remove(req.Ctx, req.UserID, feed)
	if err != nil && !warnPersistence(req.UserID, err) {
		slog.Error("Failed to unwatch feed", "user", req.UserID, "feed", feed, "error", err)
		return replyInternalError
	}
	if !removed {
		return link + " was not in the watchlist"
	}
	return "removed " + link + " from watchlist"
}

func (s *Service) clearPattern(req Request) string {
	if len(req.Args) == 0 {
		return req.Usage
	}
	feed := req.Args[0]

	ok, err := s.watchlist.ClearPattern(req.Ctx, req.UserID, feed)
	if err != nil && !warnPersistence(req.UserID, err) {
		slog.Error("Failed to clear pattern", "user", req.UserID, "feed", feed, "error", err)
		return replyInternalError
	}
	if !ok {
		return "subreddit not in watchlist"
	}
	return "regex cleared for r/" + s.format.Escape(feed)
}

func (s *Service) showPattern(req Request) string {
	if len(req.Args) == 0 {
		return req.Usage
	}

	pattern, ok, err := s.watchlist.Pattern(req.Ctx, req.UserID, req.Args[0])
	switch {
	case err != nil:
		slog.Error("Failed to read pattern", "user", req.UserID, "error", err)
		return replyInternalError
	case !ok:
		return "subreddit not in watchlist"
	case pattern == "":
		return "No regex is set"
	default:
		return s.format.Escape(pattern)
	}
}

func (s *Service) list(req Request) string {
	feeds, err := s.watchlist.List(req.Ctx, req.UserID)
	if err != nil {
		slog.Error("Failed to list feeds", "user", req.UserID, "error", err)
		return replyInternalError
	}
	if len(feeds) == 0 {
		return "No subreddits on watchlist"
	}

	lines := make([]string, len(feeds))
	for i, f := range feeds {
		filter := "*all post titles*"
		if f.FilterPattern != "" {
			filter = s.format.Escape(f.FilterPattern)
		}
		lines[i] = s.format.FeedLink(f.FeedID) + ": " + filter
	}
	return "Subreddits on your watchlist:\n" + strings.Join(lines, "\n")
}

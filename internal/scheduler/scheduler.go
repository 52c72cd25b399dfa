// Package scheduler drives one recurring poll timer per enabled user.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lepinkainen/subwatch/internal/metrics"
)

// Default timings.
const (
	DefaultInterval     = 300 * time.Second
	DefaultInitialDelay = time.Second
)

// Poller runs one poll cycle for a user.
type Poller interface {
	Poll(ctx context.Context, userID string) (string, bool, error)
}

// Notifier delivers a notification to a user.
type Notifier interface {
	SendNotification(ctx context.Context, userID, text string) error
}

// Config holds the scheduler timings.
type Config struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

// DefaultConfig returns the default timings.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, InitialDelay: DefaultInitialDelay}
}

type job struct {
	stop context.CancelFunc
	ctx  context.Context
}

// Scheduler owns the per-user timers. Users are either disabled (no timer)
// or enabled (exactly one timer).
type Scheduler struct {
	poller   Poller
	notifier Notifier
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]*job
}

// New creates a scheduler. Zero timings fall back to the defaults.
func New(poller Poller, notifier Notifier, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		poller:   poller,
		notifier: notifier,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*job),
	}
}

// Enable starts the user's timer. It returns false if one is already running.
func (s *Scheduler) Enable(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[userID]; ok {
		return false
	}
	if s.ctx.Err() != nil {
		return false
	}

	ctx, stop := context.WithCancel(s.ctx)
	j := &job{ctx: ctx, stop: stop}
	s.jobs[userID] = j
	metrics.ActivePollers.Inc()

	s.wg.Add(1)
	go s.run(userID, j)

	slog.Info("Polling enabled", "user", userID, "interval", s.cfg.Interval)
	return true
}

// Disable cancels the user's timer. It returns false if none was running.
// A cycle already in flight finishes but its result is discarded.
func (s *Scheduler) Disable(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[userID]
	if !ok {
		return false
	}
	j.stop()
	delete(s.jobs, userID)
	metrics.ActivePollers.Dec()

	slog.Info("Polling disabled", "user", userID)
	return true
}

// IsEnabled reports whether the user has a running timer.
func (s *Scheduler) IsEnabled(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[userID]
	return ok
}

// Active returns the number of running timers.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Restore enables every given user, typically those persisted as enabled.
func (s *Scheduler) Restore(userIDs []string) int {
	restored := 0
	for _, id := range userIDs {
		if s.Enable(id) {
			restored++
		}
	}
	if restored > 0 {
		slog.Info("Restored pollers", "count", restored)
	}
	return restored
}

// Stop cancels all timers and waits for in-flight cycles to return.
func (s *Scheduler) Stop() {
	s.cancel()

	s.mu.Lock()
	for id, j := range s.jobs {
		j.stop()
		delete(s.jobs, id)
		metrics.ActivePollers.Dec()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) run(userID string, j *job) {
	defer s.wg.Done()

	timer := time.NewTimer(s.cfg.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-timer.C:
		}

		s.fire(userID, j)
		timer.Reset(s.cfg.Interval)
	}
}

// fire runs a cycle on the scheduler context, so disabling the user does
// not interrupt it halfway through a feed.
func (s *Scheduler) fire(userID string, j *job) {
	text, ok, err := s.poller.Poll(s.ctx, userID)
	if err != nil {
		slog.Warn("Poll cycle finished with error", "user", userID, "error", err)
	}
	if !ok {
		return
	}

	if j.ctx.Err() != nil {
		metrics.Notifications.WithLabelValues(metrics.NotificationDiscarded).Inc()
		slog.Debug("Discarding notification for disabled user", "user", userID)
		return
	}

	if err := s.notifier.SendNotification(s.ctx, userID, text); err != nil {
		metrics.Notifications.WithLabelValues(metrics.NotificationFailed).Inc()
		slog.Error("Failed to send notification", "user", userID, "error", err)
		return
	}
	metrics.Notifications.WithLabelValues(metrics.NotificationSent).Inc()
}

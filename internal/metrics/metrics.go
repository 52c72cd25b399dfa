// Package metrics declares the Prometheus collectors shared across subwatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for FeedFetches.
const (
	FetchOK    = "ok"
	FetchError = "error"
)

// Label values for Notifications.
const (
	NotificationSent      = "sent"
	NotificationFailed    = "failed"
	NotificationDiscarded = "discarded"
)

var (
	PollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subwatch_poll_cycles_total",
		Help: "The total number of completed poll cycles",
	})

	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subwatch_feed_fetches_total",
		Help: "Feed fetches by result",
	}, []string{"result"})

	FeedFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "subwatch_feed_fetch_duration_seconds",
		Help:    "Duration of a single feed fetch including retries",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})

	ItemsMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subwatch_items_matched_total",
		Help: "New items that passed their feed filter",
	})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subwatch_notifications_total",
		Help: "Poll notifications by delivery result",
	}, []string{"result"})

	ActivePollers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "subwatch_active_pollers",
		Help: "Users with polling enabled",
	})

	PersistenceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subwatch_persistence_errors_total",
		Help: "Failed saves of user watch state",
	})

	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subwatch_commands_total",
		Help: "Chat commands handled, by command name",
	}, []string{"command"})
)

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"

	"github.com/lepinkainen/subwatch/internal/watch"
	"github.com/lepinkainen/subwatch/pkg/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite stores users and their watched feeds in two tables. Seen item ids
// are kept as a JSON array per feed.
type SQLite struct {
	db *database.Database
}

// NewSQLite migrates db and returns a store backed by it.
func NewSQLite(db *database.Database) (*SQLite, error) {
	if err := db.Migrate(migrations, "migrations"); err != nil {
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context, userID string) (*watch.UserWatchState, error) {
	state := watch.NewUserWatchState(userID)

	ub := sqlbuilder.SQLite.NewSelectBuilder()
	ub.Select("polling_enabled").From("users").Where(ub.Equal("user_id", userID))
	query, args := ub.Build()

	err := s.db.DB().QueryRowContext(ctx, query, args...).Scan(&state.PollingEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	fb := sqlbuilder.SQLite.NewSelectBuilder()
	fb.Select("feed_id", "filter_pattern", "seen_item_ids").
		From("watched_feeds").
		Where(fb.Equal("user_id", userID)).
		OrderBy("position").Asc()
	query, args = fb.Build()

	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load feeds of user %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			feed watch.WatchedFeed
			seen string
		)
		if err := rows.Scan(&feed.FeedID, &feed.FilterPattern, &seen); err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		if err := json.Unmarshal([]byte(seen), &feed.SeenItemIDs); err != nil {
			return nil, fmt.Errorf("corrupt seen ids for r/%s: %w", feed.FeedID, err)
		}
		state.Feeds = append(state.Feeds, feed)
	}

	return state, rows.Err()
}

func (s *SQLite) Save(ctx context.Context, state *watch.UserWatchState) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.ReplaceInto("users").
			Cols("user_id", "polling_enabled", "updated_at").
			Values(state.UserID, state.PollingEnabled, time.Now().Unix())
		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to save user %s: %w", state.UserID, err)
		}

		db := sqlbuilder.SQLite.NewDeleteBuilder()
		db.DeleteFrom("watched_feeds").Where(db.Equal("user_id", state.UserID))
		query, args = db.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to clear feeds of user %s: %w", state.UserID, err)
		}

		if len(state.Feeds) == 0 {
			return nil
		}

		fb := sqlbuilder.SQLite.NewInsertBuilder()
		fb.InsertInto("watched_feeds").
			Cols("user_id", "position", "feed_id", "filter_pattern", "seen_item_ids")
		for i, feed := range state.Feeds {
			seen := feed.SeenItemIDs
			if seen == nil {
				seen = []string{}
			}
			encoded, err := json.Marshal(seen)
			if err != nil {
				return fmt.Errorf("failed to encode seen ids: %w", err)
			}
			fb.Values(state.UserID, i, feed.FeedID, feed.FilterPattern, string(encoded))
		}
		query, args = fb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to save feeds of user %s: %w", state.UserID, err)
		}
		return nil
	})
}

func (s *SQLite) Users(ctx context.Context) ([]string, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("user_id").From("users").OrderBy("user_id")
	query, args := sb.Build()

	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

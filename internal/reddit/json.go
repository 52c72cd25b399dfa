package reddit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lepinkainen/subwatch/internal/watch"
	"github.com/lepinkainen/subwatch/pkg/api"
)

// DefaultBaseURL is reddit's public web root.
const DefaultBaseURL = "https://www.reddit.com"

// DefaultLimit is how many of the newest posts are fetched per poll.
const DefaultLimit = 15

// JSONSource reads the newest posts of a subreddit from new.json.
type JSONSource struct {
	client  *api.EnhancedClient
	baseURL string
	limit   int
}

// NewJSONSource creates a source. An empty baseURL selects reddit.com and a
// non-positive limit selects DefaultLimit.
func NewJSONSource(client *api.EnhancedClient, baseURL string, limit int) *JSONSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &JSONSource{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   limit,
	}
}

// FetchFeedItems returns the newest posts of feedID in listing order.
func (s *JSONSource) FetchFeedItems(ctx context.Context, feedID string) ([]watch.Item, error) {
	endpoint := fmt.Sprintf("%s/r/%s/new.json?limit=%s",
		s.baseURL, url.PathEscape(feedID), strconv.Itoa(s.limit))

	var listing Listing
	if err := s.client.GetAndDecode(ctx, endpoint, &listing, map[string]string{"Accept": "application/json"}); err != nil {
		return nil, fmt.Errorf("failed to fetch r/%s listing: %w", feedID, err)
	}

	items := make([]watch.Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Data.ID == "" {
			continue
		}
		items = append(items, watch.Item{
			ID:         child.Data.ID,
			AuthorName: child.Data.Author,
			Permalink:  child.Data.Permalink,
			Title:      child.Data.Title,
		})
	}

	slog.Debug("Fetched subreddit listing", "feed", feedID, "count", len(items))
	return items, nil
}

// FeedExists reports whether the subreddit exists upstream.
func (s *JSONSource) FeedExists(ctx context.Context, feedID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/r/%s/about.json", s.baseURL, url.PathEscape(feedID))

	var about About
	err := s.client.GetAndDecode(ctx, endpoint, &about, map[string]string{"Accept": "application/json"})
	switch {
	case api.IsStatus(err, http.StatusNotFound):
		return false, nil
	case api.IsStatus(err, http.StatusForbidden):
		// private and quarantined subreddits exist but cannot be read
		return true, nil
	case err != nil:
		return false, fmt.Errorf("failed to look up r/%s: %w", feedID, err)
	}

	return about.Kind == subredditKind, nil
}

package reddit

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/lepinkainen/subwatch/internal/watch"
	"github.com/lepinkainen/subwatch/pkg/api"
	httputil "github.com/lepinkainen/subwatch/pkg/http"
)

// RSSSource reads the newest posts of a subreddit from its Atom feed. It is
// an alternative to JSONSource for hosts where new.json is blocked.
type RSSSource struct {
	client  *api.EnhancedClient
	parser  *gofeed.Parser
	baseURL string
	limit   int
}

// NewRSSSource creates a source with the same defaults as NewJSONSource.
func NewRSSSource(client *api.EnhancedClient, baseURL string, limit int) *RSSSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &RSSSource{
		client:  client,
		parser:  gofeed.NewParser(),
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   limit,
	}
}

// FetchFeedItems returns the newest posts of feedID in feed order.
func (s *RSSSource) FetchFeedItems(ctx context.Context, feedID string) ([]watch.Item, error) {
	endpoint := fmt.Sprintf("%s/r/%s/new/.rss?limit=%d", s.baseURL, url.PathEscape(feedID), s.limit)

	res, err := s.client.Get(ctx, endpoint, map[string]string{"Accept": "application/atom+xml"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch r/%s feed: %w", feedID, err)
	}
	data, err := httputil.ReadResponseBody(res)
	if err != nil {
		return nil, fmt.Errorf("failed to read r/%s feed: %w", feedID, err)
	}

	feed, err := s.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse r/%s feed: %w", feedID, err)
	}

	items := make([]watch.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item := normalizeEntry(entry)
		if item.ID == "" {
			continue
		}
		items = append(items, item)
	}

	slog.Debug("Fetched subreddit feed", "feed", feedID, "count", len(items))
	return items, nil
}

// normalizeEntry maps an Atom entry onto the ids and paths new.json uses,
// so switching sources does not re-announce posts.
func normalizeEntry(entry *gofeed.Item) watch.Item {
	item := watch.Item{
		ID:    strings.TrimPrefix(entry.GUID, "t3_"),
		Title: entry.Title,
	}

	var author string
	if entry.Author != nil {
		author = entry.Author.Name
	} else if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		author = entry.Authors[0].Name
	}
	item.AuthorName = strings.TrimPrefix(author, "/u/")

	if u, err := url.Parse(entry.Link); err == nil {
		item.Permalink = u.Path
	}

	return item
}

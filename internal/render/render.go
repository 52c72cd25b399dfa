// Package render formats notifications and command replies for a chat
// transport. HTML output targets Telegram's HTML parse mode; Plain output
// is used by the console.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/lepinkainen/subwatch/internal/watch"
	"github.com/lepinkainen/subwatch/pkg/textutil"
)

// NotificationHeader prefixes every aggregated poll notification.
const NotificationHeader = "matched post:"

const redditBase = "https://www.reddit.com"

// Formatter renders domain values as message text.
type Formatter interface {
	// FeedLink renders a reference to a subreddit.
	FeedLink(feedID string) string
	// ItemLine renders one new item of feedID.
	ItemLine(feedID string, item watch.Item) string
	// Escape makes user supplied text safe to embed in a message.
	Escape(s string) string
}

// Notification joins rendered item lines under the fixed header. It returns
// false when there are no lines.
func Notification(lines []string) (string, bool) {
	if len(lines) == 0 {
		return "", false
	}
	return NotificationHeader + "\n" + strings.Join(lines, "\n"), true
}

// HTML renders links as anchors for Telegram.
type HTML struct{}

func (HTML) FeedLink(feedID string) string {
	return fmt.Sprintf(`<a href="https://reddit.com/r/%s">r/%s</a>`, feedID, feedID)
}

func (HTML) ItemLine(feedID string, item watch.Item) string {
	author := html.EscapeString(item.AuthorName)
	return fmt.Sprintf("r/%s - [<a href='%s/u/%s'>%s</a>]: <a href='%s%s'>%s</a>",
		feedID,
		redditBase, author, author,
		redditBase, html.EscapeString(item.Permalink),
		html.EscapeString(textutil.PlainText(item.Title)),
	)
}

func (HTML) Escape(s string) string {
	return html.EscapeString(s)
}

// Plain renders text with bare URLs.
type Plain struct{}

func (Plain) FeedLink(feedID string) string {
	return "r/" + feedID
}

func (Plain) ItemLine(feedID string, item watch.Item) string {
	return fmt.Sprintf("r/%s - [u/%s]: %s (%s%s)",
		feedID, item.AuthorName, textutil.PlainText(item.Title), redditBase, item.Permalink)
}

func (Plain) Escape(s string) string {
	return s
}

// Package reddit fetches subreddit listings from reddit's public JSON and
// RSS endpoints and checks whether a subreddit exists.
package reddit

// Listing is the envelope of /r/<name>/new.json.
type Listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []Post `json:"children"`
	} `json:"data"`
}

// Post is a single child of a listing, trimmed to the fields the watcher uses.
type Post struct {
	Kind string `json:"kind"`
	Data struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Author    string `json:"author"`
		Permalink string `json:"permalink"`
		Subreddit string `json:"subreddit"`
	} `json:"data"`
}

// About is the envelope of /r/<name>/about.json. Existing subreddits come
// back with kind "t5"; unknown names are redirected to a search listing.
type About struct {
	Kind string `json:"kind"`
	Data struct {
		DisplayName string `json:"display_name"`
	} `json:"data"`
}

const subredditKind = "t5"

package watch

import "regexp"

var feedNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateFeedName checks that name is a well-formed subreddit name.
func ValidateFeedName(name string) error {
	if !feedNameRe.MatchString(name) {
		return &ValidationError{Field: "feed", Value: name, Err: ErrInvalidFeedName}
	}
	return nil
}

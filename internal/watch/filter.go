package watch

import (
	"regexp"
)

// Filter is a compiled title pattern. The zero value matches every title.
type Filter struct {
	pattern string
	re      *regexp.Regexp
}

// CompilePattern validates pattern and compiles it for case-insensitive,
// unanchored matching. An empty pattern yields a match-all filter.
func CompilePattern(pattern string) (*Filter, error) {
	if pattern == "" {
		return &Filter{}, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, &ValidationError{
			Field: "pattern",
			Value: pattern,
			Err:   ErrInvalidPattern,
			cause: err,
		}
	}
	return &Filter{pattern: pattern, re: re}, nil
}

// Pattern returns the source pattern.
func (f *Filter) Pattern() string {
	return f.pattern
}

// Match reports whether title is accepted by the filter.
func (f *Filter) Match(title string) bool {
	if f == nil || f.re == nil {
		return true
	}
	return f.re.MatchString(title)
}

// Matches reports whether title matches pattern. Stored patterns were
// validated when written, so a pattern that no longer compiles matches
// nothing rather than failing the caller.
func Matches(pattern, title string) bool {
	f, err := CompilePattern(pattern)
	if err != nil {
		return false
	}
	return f.Match(title)
}

package watch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		title   string
		want    bool
	}{
		{"empty pattern matches anything", "", "Anything at all", true},
		{"empty pattern matches empty title", "", "", true},
		{"case insensitive", "launch", "Rocket LAUNCH today", true},
		{"unanchored search", "launch", "Pre-launch checklist", true},
		{"no match", "launch", "Landing", false},
		{"alternation", "^(wts|wtb)", "WTB: keyboard", true},
		{"anchor respected", "^launch", "Pre-launch", false},
		{"invalid stored pattern matches nothing", "(", "(", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.pattern, tt.title))
		})
	}
}

func TestCompilePattern(t *testing.T) {
	f, err := CompilePattern("gpu|cpu")
	require.NoError(t, err)
	assert.Equal(t, "gpu|cpu", f.Pattern())
	assert.True(t, f.Match("New GPU prices"))
	assert.False(t, f.Match("Monitor deals"))

	all, err := CompilePattern("")
	require.NoError(t, err)
	assert.True(t, all.Match("whatever"))

	var nilFilter *Filter
	assert.True(t, nilFilter.Match("whatever"))
}

func TestCompilePatternInvalid(t *testing.T) {
	for _, pattern := range []string{"(", "[a-", "*abc", "a{2,1}"} {
		t.Run(pattern, func(t *testing.T) {
			_, err := CompilePattern(pattern)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPattern)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "pattern", verr.Field)
			assert.Equal(t, pattern, verr.Value)
		})
	}
}

func TestValidateFeedName(t *testing.T) {
	valid := []string{"golang", "Go_Lang", "buildapcsales", "a-b", "123"}
	for _, name := range valid {
		assert.NoError(t, ValidateFeedName(name), name)
	}

	invalid := []string{"", "go lang", "r/golang", "../etc", "golang!", "gö"}
	for _, name := range invalid {
		err := ValidateFeedName(name)
		assert.ErrorIs(t, err, ErrInvalidFeedName, name)
	}
}

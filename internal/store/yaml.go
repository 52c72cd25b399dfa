package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/subwatch/internal/watch"
	"github.com/lepinkainen/subwatch/pkg/filesystem"
)

const yamlExt = ".yaml"

// YAML keeps one file per user under a directory. Files are replaced
// atomically, so a crash mid-save leaves the previous state intact.
type YAML struct {
	dir string
}

// NewYAML creates the directory if needed and returns a store rooted there.
func NewYAML(dir string) (*YAML, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	return &YAML{dir: dir}, nil
}

func (y *YAML) path(userID string) string {
	return filepath.Join(y.dir, url.PathEscape(userID)+yamlExt)
}

func (y *YAML) Load(_ context.Context, userID string) (*watch.UserWatchState, error) {
	data, err := os.ReadFile(y.path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return watch.NewUserWatchState(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state of user %s: %w", userID, err)
	}

	var state watch.UserWatchState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state of user %s: %w", userID, err)
	}
	state.UserID = userID
	return &state, nil
}

func (y *YAML) Save(_ context.Context, state *watch.UserWatchState) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state of user %s: %w", state.UserID, err)
	}
	return filesystem.WriteFileAtomic(y.path(state.UserID), data, 0o600)
}

func (y *YAML) Users(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(y.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list state directory: %w", err)
	}

	var users []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, yamlExt) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, yamlExt))
		if err != nil {
			continue
		}
		users = append(users, id)
	}
	slices.Sort(users)
	return users, nil
}

package store

import (
	"context"
	"slices"
	"sync"

	"github.com/lepinkainen/subwatch/internal/watch"
)

// Memory keeps state in process memory. Used by tests and the console.
type Memory struct {
	mu     sync.Mutex
	states map[string]*watch.UserWatchState
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{states: make(map[string]*watch.UserWatchState)}
}

func (m *Memory) Load(_ context.Context, userID string) (*watch.UserWatchState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.states[userID]; ok {
		return s.Clone(), nil
	}
	return watch.NewUserWatchState(userID), nil
}

func (m *Memory) Save(_ context.Context, state *watch.UserWatchState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[state.UserID] = state.Clone()
	return nil
}

func (m *Memory) Users(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]string, 0, len(m.states))
	for id := range m.states {
		users = append(users, id)
	}
	slices.Sort(users)
	return users, nil
}

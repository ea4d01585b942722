package badge

import (
	"context"
	"sync"
)

// Indicator surfaces the count of due reminders.
type Indicator interface {
	SetText(ctx context.Context, text string) error
	SetColor(ctx context.Context, color string) error
}

// Snapshot is the badge as last published.
type Snapshot struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

// State is an in-memory Indicator read back by the HTTP API.
type State struct {
	mu    sync.RWMutex
	state Snapshot
}

func NewState() *State {
	return &State{}
}

func (s *State) SetText(_ context.Context, text string) error {
	s.mu.Lock()
	s.state.Text = text
	s.mu.Unlock()
	return nil
}

func (s *State) SetColor(_ context.Context, color string) error {
	s.mu.Lock()
	s.state.Color = color
	s.mu.Unlock()
	return nil
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

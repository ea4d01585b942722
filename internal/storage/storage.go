package storage

import (
	"context"
	"errors"
	"fmt"

	"reminder-agent/internal/reminder"
)

// Key is the fixed key the reminder collection is persisted under.
const Key = "reminders"

var (
	ErrNotFound    = errors.New("reminder not found")
	ErrDuplicateID = errors.New("duplicate reminder id")
)

// Storage defines the interface for persisting the reminder collection.
// The whole ordered list is the unit of work: callers read it, mutate it
// in memory and write it back.
type Storage interface {
	Load(ctx context.Context) ([]*reminder.Reminder, error)
	Save(ctx context.Context, list []*reminder.Reminder) error
	Close() error
}

// Find returns the index of the reminder with the given id, or -1.
func Find(list []*reminder.Reminder, id string) int {
	for i, r := range list {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// checkUnique enforces that no two reminders share an id.
func checkUnique(list []*reminder.Reminder) error {
	seen := make(map[string]struct{}, len(list))
	for _, r := range list {
		if r.ID == "" {
			continue
		}
		if _, ok := seen[r.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}
